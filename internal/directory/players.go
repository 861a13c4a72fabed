package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mpratt/typerace/internal/accounts"
	"github.com/mpratt/typerace/internal/wire"
)

const (
	historyLimit = 10

	menuChoiceExit        = 0
	menuChoicePlay        = 1
	menuChoiceLeaderboard = 2
	menuChoiceHistory     = 3
)

func loginText() string {
	return "Welcome!\nIf you are a new user: Please sign-up by entering a username followed by a password.\n" +
		"If you are a returning user: Please enter your existing username and password to login!"
}

func menuText() string {
	return "Please select an option (0 to exit):\n 1. Play a game\n 2. See current leaderboard\n 3. See recent games"
}

// playerSession is one player's connection to the directory.
type playerSession struct {
	srv      *Server
	conn     *wire.Conn
	username string // empty until login succeeds
}

// handlePlayer services one player connection until it exits, errors out, or
// violates the protocol.
func (s *Server) handlePlayer(conn *wire.Conn) {
	defer conn.Close()
	log.Printf("player connected from %s", conn.RemoteAddr())

	ps := &playerSession{srv: s, conn: conn}
	for {
		msg, err := conn.Receive()
		if err != nil {
			log.Printf("player %s disconnected: %v", conn.RemoteAddr(), err)
			return
		}

		var reply wire.Message
		switch m := msg.(type) {
		case *wire.Join:
			reply = &wire.AskForLogin{Message: "Connection established!\n\n" + loginText()}
		case *wire.Login:
			reply = ps.handleLogin(m)
		case *wire.MenuChoice:
			reply = ps.handleMenuChoice(m)
		case *wire.AskForMenu:
			reply = &wire.ShowMenu{Menu: menuText()}
		default:
			conn.Send(&wire.Error{Message: "An invalid request was received! Goodbye!"})
			return
		}

		if err := conn.Send(reply); err != nil {
			log.Printf("player %s write failed: %v", conn.RemoteAddr(), err)
			return
		}
		if _, done := reply.(*wire.Exit); done {
			return
		}
	}
}

func (ps *playerSession) handleLogin(m *wire.Login) wire.Message {
	if m.Username == "" || m.Password == "" {
		return &wire.AskForLogin{Message: "Username/Password is empty! Please try again."}
	}

	created, err := ps.srv.accounts.Login(m.Username, m.Password)
	switch {
	case errors.Is(err, accounts.ErrWrongPassword):
		return &wire.AskForLogin{Message: "Incorrect password for the existing username! Please try again."}
	case err != nil:
		log.Printf("login for %q failed: %v", m.Username, err)
		return &wire.AskForLogin{Message: "Login failed, please try again."}
	}

	ps.username = m.Username
	if created {
		return &wire.ShowMenu{Menu: "New account created!\n\n" + menuText()}
	}
	return &wire.ShowMenu{Menu: "Login successful!\n\n" + menuText()}
}

func (ps *playerSession) handleMenuChoice(m *wire.MenuChoice) wire.Message {
	if ps.username == "" {
		return &wire.AskForLogin{Message: "Please login first.\n\n" + loginText()}
	}

	switch m.Choice {
	case menuChoiceExit:
		return &wire.Exit{Message: "\nGoodbye!"}
	case menuChoicePlay:
		return ps.handlePlay()
	case menuChoiceLeaderboard:
		board, err := ps.srv.accounts.Leaderboard(ps.username)
		if err != nil {
			log.Printf("leaderboard for %q failed: %v", ps.username, err)
			return &wire.ShowMenu{Menu: "Leaderboard unavailable right now.\n\n" + menuText()}
		}
		return &wire.Leaderboard{Leaderboard: board + "\n" + menuText()}
	case menuChoiceHistory:
		return ps.handleHistory()
	default:
		return &wire.ShowMenu{Menu: "Not a valid integer! Please enter a valid option. (0-3)\n" + menuText()}
	}
}

func (ps *playerSession) handlePlay() wire.Message {
	addr, ok := ps.srv.registry.FindSession()
	if !ok {
		return &wire.ShowMenu{Menu: "No available game servers! Please try again later when there is capacity.\n\n" + menuText()}
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		log.Printf("matchmaking returned bad address %q: %v", addr, err)
		return &wire.ShowMenu{Menu: "No available game servers! Please try again later when there is capacity.\n\n" + menuText()}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Printf("matchmaking returned bad address %q: %v", addr, err)
		return &wire.ShowMenu{Menu: "No available game servers! Please try again later when there is capacity.\n\n" + menuText()}
	}

	ticket, err := ps.srv.auth.IssueTicket(ps.username)
	if err != nil {
		log.Printf("issuing ticket for %q failed: %v", ps.username, err)
		return &wire.ShowMenu{Menu: "No available game servers! Please try again later when there is capacity.\n\n" + menuText()}
	}

	return &wire.JoinGame{Host: host, Port: port, Ticket: ticket, Message: "Game found! Joining game..."}
}

func (ps *playerSession) handleHistory() wire.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recs, err := ps.srv.history.RecentContests(ctx, historyLimit)
	if err != nil {
		log.Printf("recent contests query failed: %v", err)
		return &wire.ShowMenu{Menu: "History unavailable right now.\n\n" + menuText()}
	}

	var sb strings.Builder
	sb.WriteString("\nRecent games:\n")
	if len(recs) == 0 {
		sb.WriteString("(none yet)\n")
	}
	for _, rec := range recs {
		fmt.Fprintf(&sb, "%s - %s won (%d players, %s)\n",
			rec.FinishedAt.UTC().Format("2006-01-02 15:04"), rec.Winner, rec.PlayerCount, rec.WorkerAddr)
	}
	return &wire.RecentGames{Games: sb.String() + "\n" + menuText()}
}
