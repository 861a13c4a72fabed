package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
	}{
		{"player join", &Join{Username: "ada", Ticket: "tok123"}},
		{"worker join", &Join{ClientPort: 8040}},
		{"login", &Login{Username: "ada", Password: "hunter2"}},
		{"menuChoice", &MenuChoice{Choice: 2}},
		{"askForMenu", &AskForMenu{}},
		{"askForLogin", &AskForLogin{Message: "Welcome!"}},
		{"showMenu", &ShowMenu{Menu: "1. Play a game"}},
		{"exit", &Exit{Message: "Goodbye!"}},
		{"joinGame", &JoinGame{Host: "10.0.0.7", Port: 8040, Message: "Game found!", Ticket: "tok123"}},
		{"leaderboard", &Leaderboard{Leaderboard: "3 - ada\n1 - bob"}},
		{"recentGames", &RecentGames{Games: "ada won on 10.0.0.7:8040"}},
		{"connected", &Connected{Message: "Connection established!"}},
		{"answer", &Answer{Answer: "the quick brown fox"}},
		{"answerCheck", &AnswerCheck{Correct: true, Message: "You placed #1!"}},
		{"broadcast", &Broadcast{Message: "Less than 30 seconds remain!"}},
		{"standings", &Standings{
			Entries: []StandingEntry{
				{Rank: 1, Username: "ada", Finished: true},
				{Username: "bob"},
			},
			Message: "Game over!",
		}},
		{"disconnect", &Disconnect{}},
		{"checkGameState", &CheckGameState{}},
		{"gameState", &GameState{Finished: true, PlayerCount: 3}},
		{"gameWinner", &GameWinner{Winner: "ada", ContestID: "c-1", PlayerCount: 4}},
		{"error", &Error{Message: "An invalid request was received!"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Encode(tc.msg)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, tc.msg, got)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport"}`))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeMalformedFrame(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	require.Error(t, err)
}

func TestDecodeMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"username":"ada"}`))
	require.ErrorIs(t, err, ErrUnknownType)
}
