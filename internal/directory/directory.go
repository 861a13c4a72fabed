// Package directory implements the central node: it registers workers,
// matchmakes players onto them via synchronous probes, and owns the
// account-of-record and contest history.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/mpratt/typerace/internal/accounts"
	"github.com/mpratt/typerace/internal/auth"
	"github.com/mpratt/typerace/internal/config"
	"github.com/mpratt/typerace/internal/domain"
	"github.com/mpratt/typerace/internal/storage"
	"github.com/mpratt/typerace/internal/wire"
)

// Server is the directory node.
type Server struct {
	cfg      *config.Config
	registry *Registry
	accounts *accounts.Store
	history  *storage.Store
	auth     *auth.Service
}

// New assembles a directory server.
func New(cfg *config.Config, accts *accounts.Store, history *storage.Store, authSvc *auth.Service) *Server {
	return &Server{
		cfg:      cfg,
		registry: NewRegistry(cfg.Matchmaking.ProbeTimeout, cfg.Game.Capacity),
		accounts: accts,
		history:  history,
		auth:     authSvc,
	}
}

// Registry exposes the worker registry, mainly for tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Run binds both listen addresses and serves until the context is cancelled
// or a listener fails. Failure to bind either port is returned immediately
// so the caller can treat it as a fatal startup error.
func (s *Server) Run(ctx context.Context, playerAddr, workerAddr string) error {
	playerLn, err := net.Listen("tcp", playerAddr)
	if err != nil {
		return fmt.Errorf("binding player port: %w", err)
	}
	workerLn, err := net.Listen("tcp", workerAddr)
	if err != nil {
		playerLn.Close()
		return fmt.Errorf("binding worker port: %w", err)
	}

	playerMux := http.NewServeMux()
	playerMux.HandleFunc("/", s.servePlayer)
	workerMux := http.NewServeMux()
	workerMux.HandleFunc("/", s.serveWorker)

	playerSrv := &http.Server{Handler: playerMux}
	workerSrv := &http.Server{Handler: workerMux}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("directory listening for players on %s", playerLn.Addr())
		if err := playerSrv.Serve(playerLn); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.Printf("directory listening for workers on %s", workerLn.Addr())
		if err := workerSrv.Serve(workerLn); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("directory listener failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	playerSrv.Shutdown(shutdownCtx)
	workerSrv.Shutdown(shutdownCtx)
	return nil
}

func (s *Server) servePlayer(w http.ResponseWriter, r *http.Request) {
	conn, err := wire.Upgrade(w, r, s.cfg.Net.WriteTimeout)
	if err != nil {
		log.Printf("player upgrade failed: %v", err)
		return
	}
	s.handlePlayer(conn)
}

// serveWorker registers one worker: the first frame must be a join carrying
// the worker's player-listen port, after which the connection becomes that
// worker's control channel for the rest of its life.
func (s *Server) serveWorker(w http.ResponseWriter, r *http.Request) {
	conn, err := wire.Upgrade(w, r, s.cfg.Net.WriteTimeout)
	if err != nil {
		log.Printf("worker upgrade failed: %v", err)
		return
	}

	msg, err := conn.Receive()
	if err != nil {
		log.Printf("worker %s registration failed: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	join, ok := msg.(*wire.Join)
	if !ok || join.ClientPort <= 0 {
		conn.Send(&wire.Error{Message: "An invalid request was received! Goodbye!"})
		conn.Close()
		return
	}

	host, _, err := net.SplitHostPort(conn.RemoteAddr())
	if err != nil {
		host = conn.RemoteAddr()
	}

	if err := conn.Send(&wire.Connected{Message: "Connection established!\n"}); err != nil {
		log.Printf("worker %s registration failed: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	proxy := newWorkerProxy(conn, host, join.ClientPort)
	s.registry.Add(proxy)
	proxy.run(s.onWinner)
}

// onWinner applies a completed contest: the winner's account gains a win and
// the contest lands in the history store.
func (s *Server) onWinner(p *WorkerProxy, m wire.GameWinner) {
	log.Printf("contest %s on %s won by %s", m.ContestID, p.Addr(), m.Winner)

	if err := s.accounts.AddWin(m.Winner); err != nil {
		log.Printf("recording win for %q: %v", m.Winner, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.history.InsertContest(ctx, &domain.ContestRecord{
		ID:          m.ContestID,
		Winner:      m.Winner,
		WorkerAddr:  p.Addr(),
		PlayerCount: m.PlayerCount,
		FinishedAt:  time.Now(),
	})
	if err != nil {
		log.Printf("recording contest %s: %v", m.ContestID, err)
	}
}
