package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTicketRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Minute)

	ticket, err := svc.IssueTicket("ada")
	require.NoError(t, err)

	username, err := svc.VerifyTicket(ticket)
	require.NoError(t, err)
	require.Equal(t, "ada", username)
}

func TestExpiredTicketRejected(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	ticket, err := svc.IssueTicket("ada")
	require.NoError(t, err)

	_, err = svc.VerifyTicket(ticket)
	require.ErrorIs(t, err, ErrInvalidTicket)
}

func TestForgedTicketRejected(t *testing.T) {
	issuer := NewService("secret-a", time.Minute)
	verifier := NewService("secret-b", time.Minute)

	ticket, err := issuer.IssueTicket("ada")
	require.NoError(t, err)

	_, err = verifier.VerifyTicket(ticket)
	require.ErrorIs(t, err, ErrInvalidTicket)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	require.True(t, CheckPassword("hunter2", hash))
	require.False(t, CheckPassword("hunter3", hash))
}
