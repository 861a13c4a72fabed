package worker

import (
	"errors"
	"log"
	"sync/atomic"

	"github.com/mpratt/typerace/internal/wire"
)

var errParticipantGone = errors.New("participant disconnected")

// participant is one player's connection to this worker. It is the sole
// writer on that connection; Deliver is the broadcast primitive the session
// fans out through, atomic per message and bounded by the connection's
// write timeout.
type participant struct {
	conn     *wire.Conn
	username string
	gone     atomic.Bool
}

func (p *participant) Username() string { return p.username }

// Deliver sends one session event to the player. After a disconnect it fails
// fast; the player stays in the roster and simply stops receiving.
func (p *participant) Deliver(msg wire.Message) error {
	if p.gone.Load() {
		return errParticipantGone
	}
	return p.conn.Send(msg)
}

// handlePlayer services one player connection: a ticketed join, then answers
// until the player disconnects or the connection fails. A failure mid-game
// is logged and leaves the roster untouched.
func (s *Server) handlePlayer(conn *wire.Conn) {
	defer conn.Close()

	msg, err := conn.Receive()
	if err != nil {
		log.Printf("player %s dropped before joining: %v", conn.RemoteAddr(), err)
		return
	}
	join, ok := msg.(*wire.Join)
	if !ok {
		conn.Send(&wire.Error{Message: "An invalid request was received! Goodbye!"})
		return
	}

	username, err := s.auth.VerifyTicket(join.Ticket)
	if err != nil || (join.Username != "" && join.Username != username) {
		log.Printf("player %s presented a bad join ticket", conn.RemoteAddr())
		conn.Send(&wire.Error{Message: "Invalid join ticket! Please matchmake through the directory."})
		return
	}

	p := &participant{conn: conn, username: username}
	if err := s.session.Join(p); err != nil {
		// Lost the admission race or arrived mid-contest.
		log.Printf("player %s not admitted: %v", username, err)
		conn.Send(&wire.Error{Message: "No room in the current game! Please matchmake again."})
		return
	}

	if err := conn.Send(&wire.Connected{Message: "Connection established to game server!\n"}); err != nil {
		p.gone.Store(true)
		log.Printf("player %s write failed: %v", username, err)
		return
	}
	log.Printf("player %s connected from %s", username, conn.RemoteAddr())

	for {
		msg, err := conn.Receive()
		if err != nil {
			p.gone.Store(true)
			log.Printf("player %s disconnected: %v", username, err)
			return
		}

		switch m := msg.(type) {
		case *wire.Answer:
			correct, text := s.session.Submit(p, m.Answer)
			if err := conn.Send(&wire.AnswerCheck{Correct: correct, Message: text}); err != nil {
				p.gone.Store(true)
				log.Printf("player %s write failed: %v", username, err)
				return
			}
		case *wire.Disconnect:
			p.gone.Store(true)
			log.Printf("player %s left", username)
			return
		default:
			p.gone.Store(true)
			conn.Send(&wire.Error{Message: "An invalid request was received! Goodbye!"})
			return
		}
	}
}
