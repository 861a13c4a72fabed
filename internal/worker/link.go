package worker

import (
	"fmt"
	"log"
	"time"

	"github.com/mpratt/typerace/internal/wire"
)

// stateFunc yields the occupancy snapshot sent in reply to a directory
// probe.
type stateFunc func() (finished bool, playerCount int)

// Link is the worker's control connection to the directory. Losing it is
// fatal to the worker process: a worker cannot serve without its directory.
type Link struct {
	conn *wire.Conn
}

// DialLink connects to the directory's worker port and registers this
// worker's player-listen port. It returns once the directory acknowledges
// the registration.
func DialLink(directoryURL string, handshakeTimeout, writeTimeout time.Duration, clientPort int) (*Link, error) {
	conn, err := wire.Dial(directoryURL, handshakeTimeout, writeTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to directory: %w", err)
	}

	if err := conn.Send(&wire.Join{ClientPort: clientPort}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registering with directory: %w", err)
	}

	msg, err := conn.Receive()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("registering with directory: %w", err)
	}
	connected, ok := msg.(*wire.Connected)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("registering with directory: unexpected %T reply", msg)
	}

	log.Printf("registered with directory: %s", connected.Message)
	return &Link{conn: conn}, nil
}

// Run serves the directory's control requests until the connection fails or
// the directory sends an error. The returned error is always non-nil and the
// caller treats it as fatal.
func (l *Link) Run(state stateFunc) error {
	for {
		msg, err := l.conn.Receive()
		if err != nil {
			return fmt.Errorf("directory link lost: %w", err)
		}

		switch m := msg.(type) {
		case *wire.CheckGameState:
			finished, count := state()
			if err := l.conn.Send(&wire.GameState{Finished: finished, PlayerCount: count}); err != nil {
				return fmt.Errorf("directory link lost: %w", err)
			}
		case *wire.Error:
			return fmt.Errorf("directory rejected this worker: %s", m.Message)
		default:
			return fmt.Errorf("unexpected %T on directory link", msg)
		}
	}
}

// ReportWinner pushes a completed contest's winner to the directory.
func (l *Link) ReportWinner(winner, contestID string, playerCount int) error {
	return l.conn.Send(&wire.GameWinner{Winner: winner, ContestID: contestID, PlayerCount: playerCount})
}

// Close tears the control connection down.
func (l *Link) Close() error {
	return l.conn.Close()
}
