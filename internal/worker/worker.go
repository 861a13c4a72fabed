// Package worker implements a contest host: it maintains a control link to
// the directory, accepts routed players, and drives one session at a time
// through its lobby, contest and reporting phases.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/mpratt/typerace/internal/auth"
	"github.com/mpratt/typerace/internal/config"
	"github.com/mpratt/typerace/internal/wire"
)

// Server is one worker node.
type Server struct {
	cfg     *config.Config
	auth    *auth.Service
	link    *Link
	session *Session
}

// New assembles a worker around an established directory link.
func New(cfg *config.Config, authSvc *auth.Service, link *Link, prompts []string) *Server {
	return &Server{
		cfg:     cfg,
		auth:    authSvc,
		link:    link,
		session: NewSession(cfg.Game, prompts, link),
	}
}

// Run binds the player port and serves until the context is cancelled, the
// listener fails, or the directory link is lost. Directory-link loss is
// returned as an error; the caller exits the process on it.
func (s *Server) Run(ctx context.Context, playerAddr string) error {
	ln, err := net.Listen("tcp", playerAddr)
	if err != nil {
		return fmt.Errorf("binding player port: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.servePlayer)
	httpSrv := &http.Server{Handler: mux}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("worker listening for players on %s", ln.Addr())
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		errCh <- s.link.Run(func() (bool, int) {
			state := s.session.Snapshot()
			return state.Finished, state.PlayerCount
		})
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	s.session.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
	s.link.Close()
	return runErr
}

func (s *Server) servePlayer(w http.ResponseWriter, r *http.Request) {
	conn, err := wire.Upgrade(w, r, s.cfg.Net.WriteTimeout)
	if err != nil {
		log.Printf("player upgrade failed: %v", err)
		return
	}
	s.handlePlayer(conn)
}
