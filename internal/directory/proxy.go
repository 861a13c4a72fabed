package directory

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mpratt/typerace/internal/domain"
	"github.com/mpratt/typerace/internal/wire"
)

// ErrWorkerGone is returned for probes against a worker whose control
// connection has closed.
var ErrWorkerGone = errors.New("worker control connection closed")

// WorkerProxy is the directory-side handle to one connected worker: its
// advertised player address plus a synchronous probe over the worker's
// control connection.
type WorkerProxy struct {
	conn *wire.Conn
	host string
	port int

	// probeMu serializes probes so at most one checkGameState is in flight;
	// replies are routed to the waiter through the reply channel, which
	// wakes it exactly once.
	probeMu sync.Mutex
	reply   chan wire.GameState

	closeOnce sync.Once
	closed    chan struct{}
}

func newWorkerProxy(conn *wire.Conn, host string, clientPort int) *WorkerProxy {
	return &WorkerProxy{
		conn:   conn,
		host:   host,
		port:   clientPort,
		reply:  make(chan wire.GameState, 1),
		closed: make(chan struct{}),
	}
}

// Addr returns the host:port players should dial to reach this worker.
func (p *WorkerProxy) Addr() string {
	return net.JoinHostPort(p.host, strconv.Itoa(p.port))
}

// Probe asks the worker for its current occupancy and whether its contest
// has finished, blocking until the reply, the timeout, or loss of the
// control connection.
func (p *WorkerProxy) Probe(timeout time.Duration) (domain.GameState, error) {
	p.probeMu.Lock()
	defer p.probeMu.Unlock()

	select {
	case <-p.closed:
		return domain.GameState{}, ErrWorkerGone
	default:
	}

	// Drop any reply left over from a probe that timed out.
	select {
	case <-p.reply:
	default:
	}

	if err := p.conn.Send(&wire.CheckGameState{}); err != nil {
		return domain.GameState{}, fmt.Errorf("probing worker %s: %w", p.Addr(), err)
	}

	select {
	case state := <-p.reply:
		return domain.GameState{Finished: state.Finished, PlayerCount: state.PlayerCount}, nil
	case <-time.After(timeout):
		return domain.GameState{}, fmt.Errorf("probing worker %s: no reply within %s", p.Addr(), timeout)
	case <-p.closed:
		return domain.GameState{}, ErrWorkerGone
	}
}

// run consumes the worker's control connection until it fails or closes,
// routing probe replies to waiters and winner reports to onWinner. It
// blocks, so callers run it on the connection's own goroutine.
func (p *WorkerProxy) run(onWinner func(*WorkerProxy, wire.GameWinner)) {
	defer p.close()

	for {
		msg, err := p.conn.Receive()
		if err != nil {
			log.Printf("worker %s control connection lost: %v", p.Addr(), err)
			return
		}

		switch m := msg.(type) {
		case *wire.GameState:
			select {
			case p.reply <- *m:
			default:
				// No probe is waiting; stale reply, drop it.
			}
		case *wire.GameWinner:
			onWinner(p, *m)
		default:
			log.Printf("worker %s sent unexpected %T on control connection", p.Addr(), msg)
			p.conn.Send(&wire.Error{Message: "An invalid request was received! Goodbye!"})
			return
		}
	}
}

func (p *WorkerProxy) close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
}
