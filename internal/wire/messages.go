// Package wire defines the message catalogue shared by the directory, the
// workers and the play client, plus the framed connection all three speak
// over. Every frame is a single JSON object carrying a "type" discriminator.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned when a frame carries a type discriminator
	// that is not part of the catalogue.
	ErrUnknownType = errors.New("unknown message type")
)

// Message is any record of the wire catalogue.
type Message interface {
	kind() string
}

// Type discriminators, as they appear on the wire.
const (
	TypeJoin           = "join"
	TypeLogin          = "login"
	TypeMenuChoice     = "menuChoice"
	TypeAskForMenu     = "askForMenu"
	TypeAskForLogin    = "askForLogin"
	TypeShowMenu       = "showMenu"
	TypeExit           = "exit"
	TypeJoinGame       = "joinGame"
	TypeLeaderboard    = "leaderboard"
	TypeRecentGames    = "recentGames"
	TypeConnected      = "connected"
	TypeAnswer         = "answer"
	TypeAnswerCheck    = "answerCheck"
	TypeBroadcast      = "broadcast"
	TypeStandings      = "standings"
	TypeDisconnect     = "disconnect"
	TypeCheckGameState = "checkGameState"
	TypeGameState      = "gameState"
	TypeGameWinner     = "gameWinner"
	TypeError          = "error"
)

// Join opens a session. Players send it bare to the directory, with a
// username and ticket to a worker; workers send it with their client port to
// register on the directory's control port.
type Join struct {
	Username   string `json:"username,omitempty"`
	Ticket     string `json:"ticket,omitempty"`
	ClientPort int    `json:"clientPort,omitempty"`
}

// Login authenticates a player with the directory.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// MenuChoice selects a main-menu entry.
type MenuChoice struct {
	Choice int `json:"choice"`
}

// AskForMenu requests the main menu again, e.g. after returning from a game.
type AskForMenu struct{}

// AskForLogin prompts the player for credentials.
type AskForLogin struct {
	Message string `json:"message"`
}

// ShowMenu presents the main menu.
type ShowMenu struct {
	Menu string `json:"menu"`
}

// Exit ends a player's directory session.
type Exit struct {
	Message string `json:"message"`
}

// JoinGame routes a player to an available worker. The ticket must be
// presented to the worker on join.
type JoinGame struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Message string `json:"message"`
	Ticket  string `json:"ticket,omitempty"`
}

// Leaderboard carries the rendered leaderboard.
type Leaderboard struct {
	Leaderboard string `json:"leaderboard"`
}

// RecentGames carries the rendered recent-contest history.
type RecentGames struct {
	Games string `json:"games"`
}

// Connected acknowledges a join.
type Connected struct {
	Message string `json:"message"`
}

// Answer submits a typed answer during a contest.
type Answer struct {
	Answer string `json:"answer"`
}

// AnswerCheck reports whether a submitted answer matched the prompt.
type AnswerCheck struct {
	Correct bool   `json:"correct"`
	Message string `json:"message"`
}

// Broadcast is an unsolicited server-to-player text event.
type Broadcast struct {
	Message string `json:"message"`
}

// StandingEntry is one row of the final standings. Rank is 1-based for
// finishers and zero for players that did not finish.
type StandingEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Finished bool   `json:"finished"`
}

// Standings carries the final result list of a contest.
type Standings struct {
	Entries []StandingEntry `json:"entries"`
	Message string          `json:"message"`
}

// Disconnect announces that a player is leaving a worker. No reply is sent.
type Disconnect struct{}

// CheckGameState is the directory's liveness/capacity probe.
type CheckGameState struct{}

// GameState is a worker's reply to CheckGameState.
type GameState struct {
	Finished    bool `json:"finished"`
	PlayerCount int  `json:"playerCount"`
}

// GameWinner reports a completed contest's winner to the directory.
type GameWinner struct {
	Winner      string `json:"winner"`
	ContestID   string `json:"contestId"`
	PlayerCount int    `json:"playerCount"`
}

// Error terminates a connection after a protocol violation.
type Error struct {
	Message string `json:"message"`
}

func (Join) kind() string           { return TypeJoin }
func (Login) kind() string          { return TypeLogin }
func (MenuChoice) kind() string     { return TypeMenuChoice }
func (AskForMenu) kind() string     { return TypeAskForMenu }
func (AskForLogin) kind() string    { return TypeAskForLogin }
func (ShowMenu) kind() string       { return TypeShowMenu }
func (Exit) kind() string           { return TypeExit }
func (JoinGame) kind() string       { return TypeJoinGame }
func (Leaderboard) kind() string    { return TypeLeaderboard }
func (RecentGames) kind() string    { return TypeRecentGames }
func (Connected) kind() string      { return TypeConnected }
func (Answer) kind() string         { return TypeAnswer }
func (AnswerCheck) kind() string    { return TypeAnswerCheck }
func (Broadcast) kind() string      { return TypeBroadcast }
func (Standings) kind() string      { return TypeStandings }
func (Disconnect) kind() string     { return TypeDisconnect }
func (CheckGameState) kind() string { return TypeCheckGameState }
func (GameState) kind() string      { return TypeGameState }
func (GameWinner) kind() string     { return TypeGameWinner }
func (Error) kind() string          { return TypeError }

var constructors = map[string]func() Message{
	TypeJoin:           func() Message { return &Join{} },
	TypeLogin:          func() Message { return &Login{} },
	TypeMenuChoice:     func() Message { return &MenuChoice{} },
	TypeAskForMenu:     func() Message { return &AskForMenu{} },
	TypeAskForLogin:    func() Message { return &AskForLogin{} },
	TypeShowMenu:       func() Message { return &ShowMenu{} },
	TypeExit:           func() Message { return &Exit{} },
	TypeJoinGame:       func() Message { return &JoinGame{} },
	TypeLeaderboard:    func() Message { return &Leaderboard{} },
	TypeRecentGames:    func() Message { return &RecentGames{} },
	TypeConnected:      func() Message { return &Connected{} },
	TypeAnswer:         func() Message { return &Answer{} },
	TypeAnswerCheck:    func() Message { return &AnswerCheck{} },
	TypeBroadcast:      func() Message { return &Broadcast{} },
	TypeStandings:      func() Message { return &Standings{} },
	TypeDisconnect:     func() Message { return &Disconnect{} },
	TypeCheckGameState: func() Message { return &CheckGameState{} },
	TypeGameState:      func() Message { return &GameState{} },
	TypeGameWinner:     func() Message { return &GameWinner{} },
	TypeError:          func() Message { return &Error{} },
}

// Encode serializes a message as one self-describing JSON frame.
func Encode(m Message) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.kind(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.kind(), err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}

	typ, err := json.Marshal(m.kind())
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.kind(), err)
	}
	fields["type"] = typ

	return json.Marshal(fields)
}

// Decode parses one frame back into its concrete message type.
func Decode(data []byte) (Message, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	construct, ok := constructors[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	m := construct()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decoding %s message: %w", env.Type, err)
	}
	return m, nil
}
