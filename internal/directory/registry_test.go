package directory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mpratt/typerace/internal/domain"
)

type fakeWorker struct {
	addr string

	mu     sync.Mutex
	state  domain.GameState
	err    error
	probes int
}

func (f *fakeWorker) Addr() string { return f.addr }

func (f *fakeWorker) Probe(time.Duration) (domain.GameState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	if f.err != nil {
		return domain.GameState{}, f.err
	}
	return f.state, nil
}

func (f *fakeWorker) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

func idle() domain.GameState { return domain.GameState{Finished: true} }
func full() domain.GameState { return domain.GameState{Finished: true, PlayerCount: 5} }
func busy() domain.GameState { return domain.GameState{Finished: false, PlayerCount: 3} }

func newTestRegistry(workers ...*fakeWorker) *Registry {
	r := NewRegistry(time.Second, 5)
	for _, w := range workers {
		r.Add(w)
	}
	return r
}

func TestFindSessionEmptyRegistry(t *testing.T) {
	r := newTestRegistry()
	_, ok := r.FindSession()
	require.False(t, ok)
}

func TestFindSessionReturnsOnlyAvailableWorker(t *testing.T) {
	w1 := &fakeWorker{addr: "10.0.0.1:8040", state: full()}
	w2 := &fakeWorker{addr: "10.0.0.2:8040", state: busy()}
	w3 := &fakeWorker{addr: "10.0.0.3:8040", state: idle()}
	r := newTestRegistry(w1, w2, w3)

	addr, ok := r.FindSession()
	require.True(t, ok)
	require.Equal(t, "10.0.0.3:8040", addr)
}

func TestFindSessionAllBusyExaminesEachOnce(t *testing.T) {
	workers := []*fakeWorker{
		{addr: "10.0.0.1:8040", state: full()},
		{addr: "10.0.0.2:8040", state: busy()},
		{addr: "10.0.0.3:8040", state: full()},
	}
	r := newTestRegistry(workers...)

	_, ok := r.FindSession()
	require.False(t, ok)
	for _, w := range workers {
		require.Equal(t, 1, w.probeCount(), "worker %s", w.addr)
	}
	require.Equal(t, 3, r.Len())
}

func TestFindSessionEvictsDeadWorkers(t *testing.T) {
	dead := &fakeWorker{addr: "10.0.0.1:8040", err: errors.New("connection reset")}
	alive := &fakeWorker{addr: "10.0.0.2:8040", state: idle()}
	r := newTestRegistry(dead, alive)

	addr, ok := r.FindSession()
	require.True(t, ok)
	require.Equal(t, "10.0.0.2:8040", addr)
	require.Equal(t, 1, r.Len())
}

func TestFindSessionAllDeadEmptiesRegistry(t *testing.T) {
	r := newTestRegistry(
		&fakeWorker{addr: "10.0.0.1:8040", err: errors.New("gone")},
		&fakeWorker{addr: "10.0.0.2:8040", err: errors.New("gone")},
	)

	_, ok := r.FindSession()
	require.False(t, ok)
	require.Zero(t, r.Len())
}

func TestFindSessionRotatesBusyWorkerToTail(t *testing.T) {
	w1 := &fakeWorker{addr: "10.0.0.1:8040", state: busy()}
	w2 := &fakeWorker{addr: "10.0.0.2:8040", state: idle()}
	r := newTestRegistry(w1, w2)

	addr, ok := r.FindSession()
	require.True(t, ok)
	require.Equal(t, "10.0.0.2:8040", addr)

	// w1 was rotated to the tail, so the next walk starts at w2 and w1 is
	// tried last once w2 fills up.
	w2.mu.Lock()
	w2.state = full()
	w2.mu.Unlock()
	w1.mu.Lock()
	w1.state = idle()
	w1.mu.Unlock()

	addr, ok = r.FindSession()
	require.True(t, ok)
	require.Equal(t, "10.0.0.1:8040", addr)
	require.Equal(t, 2, w2.probeCount())
}
