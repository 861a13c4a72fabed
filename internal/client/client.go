// Package client implements the interactive play client: it logs the player
// into the directory, drives the main menu, and runs the typing loop against
// whichever worker the directory routes the player to.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/mpratt/typerace/internal/config"
	"github.com/mpratt/typerace/internal/wire"
)

// Client is one interactive player session.
type Client struct {
	cfg *config.Config
	raw io.Reader
	in  *bufio.Reader
	out io.Writer

	username string
	lines    chan string
}

// New builds a client reading player input from in and writing to out.
func New(cfg *config.Config, in io.Reader, out io.Writer) *Client {
	return &Client{cfg: cfg, raw: in, in: bufio.NewReader(in), out: out}
}

// Run connects to the directory and drives the session until the player
// exits, input runs out, or a connection is lost.
func (c *Client) Run(directoryHost string, directoryPort int) error {
	url := fmt.Sprintf("ws://%s/", net.JoinHostPort(directoryHost, strconv.Itoa(directoryPort)))
	conn, err := wire.Dial(url, c.cfg.Net.HandshakeTimeout, c.cfg.Net.WriteTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send(&wire.Join{}); err != nil {
		return err
	}

	menu, err := c.login(conn)
	if err != nil {
		return err
	}

	// Login uses direct reads so the password prompt can disable echo.
	// Everything after shares one background line reader.
	c.lines = make(chan string)
	go c.readLines()

	return c.menuLoop(conn, menu)
}

// login repeats the credential exchange until the directory shows the menu.
func (c *Client) login(conn *wire.Conn) (*wire.ShowMenu, error) {
	var attempted string
	for {
		msg, err := conn.Receive()
		if err != nil {
			return nil, err
		}

		switch m := msg.(type) {
		case *wire.AskForLogin:
			fmt.Fprintln(c.out, m.Message)
			username, password, err := c.readCredentials()
			if err != nil {
				return nil, err
			}
			attempted = username
			if err := conn.Send(&wire.Login{Username: username, Password: password}); err != nil {
				return nil, err
			}
		case *wire.ShowMenu:
			c.username = attempted
			return m, nil
		case *wire.Error:
			return nil, fmt.Errorf("directory: %s", m.Message)
		default:
			return nil, fmt.Errorf("unexpected %T during login", msg)
		}
	}
}

func (c *Client) readCredentials() (username, password string, err error) {
	fmt.Fprint(c.out, "Username: ")
	username, err = c.readLine()
	if err != nil {
		return "", "", err
	}

	fmt.Fprint(c.out, "Password: ")
	password, err = c.readPassword()
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

func (c *Client) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return line, nil
}

// readPassword suppresses echo when input is a real terminal and falls back
// to a plain line read otherwise, e.g. when input is piped.
func (c *Client) readPassword() (string, error) {
	if f, ok := c.raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		defer fmt.Fprintln(c.out)
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return c.readLine()
}

// readLines feeds player input to whichever loop is active, the menu or a
// game. The channel closes when input runs out.
func (c *Client) readLines() {
	defer close(c.lines)
	for {
		line, err := c.in.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if err != nil {
			if line != "" {
				c.lines <- line
			}
			return
		}
		c.lines <- line
	}
}

func (c *Client) menuLoop(conn *wire.Conn, menu *wire.ShowMenu) error {
	fmt.Fprintln(c.out, menu.Menu)
	for {
		line, ok := <-c.lines
		if !ok {
			conn.Send(&wire.MenuChoice{Choice: 0})
			return nil
		}

		// Non-numeric input is still sent; the directory answers with the
		// valid-range reminder.
		choice, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			choice = -1
		}
		if err := conn.Send(&wire.MenuChoice{Choice: choice}); err != nil {
			return err
		}

		msg, err := conn.Receive()
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *wire.Exit:
			fmt.Fprintln(c.out, m.Message)
			return nil
		case *wire.ShowMenu:
			fmt.Fprintln(c.out, m.Menu)
		case *wire.Leaderboard:
			fmt.Fprintln(c.out, m.Leaderboard)
		case *wire.RecentGames:
			fmt.Fprintln(c.out, m.Games)
		case *wire.JoinGame:
			fmt.Fprintln(c.out, m.Message)
			if err := c.playGame(m); err != nil {
				fmt.Fprintln(c.out, err)
			}
			if err := conn.Send(&wire.AskForMenu{}); err != nil {
				return err
			}
			reply, err := conn.Receive()
			if err != nil {
				return err
			}
			if again, ok := reply.(*wire.ShowMenu); ok {
				fmt.Fprintln(c.out, again.Menu)
			}
		case *wire.Error:
			return fmt.Errorf("directory: %s", m.Message)
		default:
			return fmt.Errorf("unexpected %T from directory", msg)
		}
	}
}

// playGame runs one contest against a worker: every input line is submitted
// as an answer, every server event is printed, and the final standings end
// the game.
func (c *Client) playGame(join *wire.JoinGame) error {
	url := fmt.Sprintf("ws://%s/", net.JoinHostPort(join.Host, strconv.Itoa(join.Port)))
	conn, err := wire.Dial(url, c.cfg.Net.HandshakeTimeout, c.cfg.Net.WriteTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send(&wire.Join{Username: c.username, Ticket: join.Ticket}); err != nil {
		return err
	}

	events := make(chan wire.Message, 8)
	readErr := make(chan error, 1)
	go func() {
		for {
			msg, err := conn.Receive()
			if err != nil {
				readErr <- err
				return
			}
			events <- msg
		}
	}()

	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				conn.Send(&wire.Disconnect{})
				return nil
			}
			if err := conn.Send(&wire.Answer{Answer: line}); err != nil {
				return err
			}
		case err := <-readErr:
			return err
		case msg := <-events:
			switch m := msg.(type) {
			case *wire.Connected:
				fmt.Fprintln(c.out, m.Message)
			case *wire.Broadcast:
				fmt.Fprintln(c.out, m.Message)
			case *wire.AnswerCheck:
				fmt.Fprintln(c.out, m.Message)
			case *wire.Standings:
				fmt.Fprintln(c.out, m.Message)
				conn.Send(&wire.Disconnect{})
				return nil
			case *wire.Error:
				return fmt.Errorf("game server: %s", m.Message)
			default:
				return fmt.Errorf("unexpected %T from game server", msg)
			}
		}
	}
}
