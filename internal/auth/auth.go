package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidTicket is returned for a ticket that is missing, forged or
	// expired.
	ErrInvalidTicket = errors.New("invalid or expired join ticket")
)

// Claims are the JWT claims carried by a join ticket.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service issues and verifies the short-lived tickets the directory hands to
// players on matchmaking, and hashes account credentials.
type Service struct {
	secret    []byte
	ticketTTL time.Duration
}

// NewService creates a new auth service.
func NewService(secret string, ticketTTL time.Duration) *Service {
	if ticketTTL == 0 {
		ticketTTL = time.Minute
	}
	return &Service{
		secret:    []byte(secret),
		ticketTTL: ticketTTL,
	}
}

// HashPassword creates a bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword compares a password against a hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueTicket creates a join ticket binding the given username.
func (s *Service) IssueTicket(username string) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ticketTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyTicket validates a join ticket and returns the username it binds.
func (s *Service) VerifyTicket(ticket string) (string, error) {
	token, err := jwt.ParseWithClaims(ticket, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidTicket
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Username == "" {
		return "", ErrInvalidTicket
	}
	return claims.Username, nil
}
