// Package domain holds the core types shared across the directory and
// worker sides of the system.
package domain

import "time"

// Account is one persisted player record.
type Account struct {
	Username   string
	Credential string // bcrypt hash of the password
	Wins       int
}

// GameState is a worker's occupancy snapshot as seen by matchmaking.
// Finished is true while no contest is actively running (idle or still in
// the lobby countdown), which is exactly when new joiners may be routed in.
type GameState struct {
	Finished    bool
	PlayerCount int
}

// ContestRecord is one completed contest as kept in the history store.
type ContestRecord struct {
	ID          string
	Winner      string
	WorkerAddr  string
	PlayerCount int
	FinishedAt  time.Time
}
