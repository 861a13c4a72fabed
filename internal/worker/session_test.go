package worker

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mpratt/typerace/internal/config"
	"github.com/mpratt/typerace/internal/wire"
)

type fakePlayer struct {
	name    string
	failing bool

	mu        sync.Mutex
	delivered []wire.Message
}

func (f *fakePlayer) Username() string { return f.name }

func (f *fakePlayer) Deliver(msg wire.Message) error {
	if f.failing {
		return errors.New("connection reset")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, msg)
	return nil
}

func (f *fakePlayer) messages() []wire.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.Message(nil), f.delivered...)
}

func (f *fakePlayer) standings() *wire.Standings {
	for _, msg := range f.messages() {
		if st, ok := msg.(*wire.Standings); ok {
			return st
		}
	}
	return nil
}

type fakeReporter struct {
	mu      sync.Mutex
	winner  string
	players int
	calls   int
}

func (f *fakeReporter) ReportWinner(winner, contestID string, playerCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.winner = winner
	f.players = playerCount
	f.calls++
	return nil
}

func (f *fakeReporter) reported() (string, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.winner, f.players, f.calls
}

func fastGame() config.GameConfig {
	return config.GameConfig{
		Capacity:         5,
		LobbyCountdown:   20 * time.Millisecond,
		LobbyTick:        10 * time.Millisecond,
		ContestCountdown: 5 * time.Second,
		ContestTick:      5 * time.Second,
	}
}

func waitPhase(t *testing.T, s *Session, want Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Phase() == want },
		2*time.Second, 2*time.Millisecond, "session never reached phase %s", want)
}

func TestLobbyAdmitsUpToCapacityThenRejects(t *testing.T) {
	game := fastGame()
	game.LobbyCountdown = time.Hour
	game.LobbyTick = time.Hour
	s := NewSession(game, []string{"alpha"}, &fakeReporter{})
	defer s.Stop()

	for i := 0; i < game.Capacity; i++ {
		p := &fakePlayer{name: fmt.Sprintf("player%d", i+1)}
		require.NoError(t, s.Join(p))
	}
	require.Equal(t, game.Capacity, s.Snapshot().PlayerCount)

	err := s.Join(&fakePlayer{name: "straggler"})
	require.ErrorIs(t, err, ErrContestFull)
	require.Equal(t, game.Capacity, s.Snapshot().PlayerCount)
}

func TestJoinRejectedDuringContest(t *testing.T) {
	s := NewSession(fastGame(), []string{"alpha"}, &fakeReporter{})
	defer s.Stop()

	require.NoError(t, s.Join(&fakePlayer{name: "ada"}))
	waitPhase(t, s, PhaseContest)

	err := s.Join(&fakePlayer{name: "late"})
	require.ErrorIs(t, err, ErrContestRunning)
}

func TestSnapshotReportsAvailability(t *testing.T) {
	game := fastGame()
	game.LobbyCountdown = time.Hour
	game.LobbyTick = time.Hour
	s := NewSession(game, []string{"alpha"}, &fakeReporter{})
	defer s.Stop()

	state := s.Snapshot()
	require.True(t, state.Finished)
	require.Zero(t, state.PlayerCount)

	require.NoError(t, s.Join(&fakePlayer{name: "ada"}))
	state = s.Snapshot()
	require.True(t, state.Finished, "lobby still accepts joiners")
	require.Equal(t, 1, state.PlayerCount)
}

func TestConcurrentCorrectSubmissionsGetDistinctRanks(t *testing.T) {
	reporter := &fakeReporter{}
	s := NewSession(fastGame(), []string{"alpha"}, reporter)
	defer s.Stop()

	p1 := &fakePlayer{name: "ada"}
	p2 := &fakePlayer{name: "bob"}
	require.NoError(t, s.Join(p1))
	require.NoError(t, s.Join(p2))
	waitPhase(t, s, PhaseContest)

	type result struct {
		player  *fakePlayer
		correct bool
		message string
	}
	results := make(chan result, 2)
	for _, p := range []*fakePlayer{p1, p2} {
		go func(p *fakePlayer) {
			correct, message := s.Submit(p, "alpha")
			results <- result{p, correct, message}
		}(p)
	}

	var first, second *fakePlayer
	for i := 0; i < 2; i++ {
		res := <-results
		require.True(t, res.correct)
		switch {
		case strings.Contains(res.message, "#1"):
			first = res.player
		case strings.Contains(res.message, "#2"):
			second = res.player
		default:
			t.Fatalf("submission got no rank: %q", res.message)
		}
	}
	require.NotNil(t, first)
	require.NotNil(t, second)
	require.NotEqual(t, first.name, second.name)

	// All finished, so the contest ends early and the first finisher is the
	// reported winner.
	waitPhase(t, s, PhaseIdle)
	winner, players, calls := reporter.reported()
	require.Equal(t, 1, calls)
	require.Equal(t, first.name, winner)
	require.Equal(t, 2, players)

	st := first.standings()
	require.NotNil(t, st)
	require.Equal(t, first.name, st.Entries[0].Username)
	require.Equal(t, 1, st.Entries[0].Rank)
	require.True(t, st.Entries[1].Finished)
}

func TestRepeatedCorrectSubmissionKeepsSingleRank(t *testing.T) {
	reporter := &fakeReporter{}
	game := fastGame()
	s := NewSession(game, []string{"alpha"}, reporter)
	defer s.Stop()

	p1 := &fakePlayer{name: "ada"}
	p2 := &fakePlayer{name: "bob"}
	require.NoError(t, s.Join(p1))
	require.NoError(t, s.Join(p2))
	waitPhase(t, s, PhaseContest)

	correct, msg := s.Submit(p1, "alpha")
	require.True(t, correct)
	require.Contains(t, msg, "#1")

	correct, msg = s.Submit(p1, "alpha")
	require.True(t, correct)
	require.NotContains(t, msg, "#2")

	// bob has not finished, so the contest is still running.
	require.Equal(t, PhaseContest, s.Phase())
}

func TestIncorrectSubmissionRepeatsPrompt(t *testing.T) {
	s := NewSession(fastGame(), []string{"alpha"}, &fakeReporter{})
	defer s.Stop()

	p := &fakePlayer{name: "ada"}
	require.NoError(t, s.Join(p))
	waitPhase(t, s, PhaseContest)

	correct, msg := s.Submit(p, "wrong answer")
	require.False(t, correct)
	require.Contains(t, msg, "Please try again")
	require.Contains(t, msg, "alpha")
}

func TestSubmissionFromOutsideRosterRejected(t *testing.T) {
	reporter := &fakeReporter{}
	s := NewSession(fastGame(), []string{"alpha"}, reporter)
	defer s.Stop()

	// Run one full contest to completion.
	stale := &fakePlayer{name: "stale"}
	require.NoError(t, s.Join(stale))
	waitPhase(t, s, PhaseContest)
	_, msg := s.Submit(stale, "alpha")
	require.Contains(t, msg, "#1")
	waitPhase(t, s, PhaseIdle)

	// A new contest starts without the old player. Its still-open connection
	// must not be able to rank, end the contest, or win it.
	fresh := &fakePlayer{name: "fresh"}
	require.NoError(t, s.Join(fresh))
	waitPhase(t, s, PhaseContest)

	correct, msg := s.Submit(stale, "alpha")
	require.False(t, correct)
	require.Contains(t, msg, "not in this game")
	require.Equal(t, PhaseContest, s.Phase())

	correct, msg = s.Submit(fresh, "alpha")
	require.True(t, correct)
	require.Contains(t, msg, "#1")
	waitPhase(t, s, PhaseIdle)

	winner, players, calls := reporter.reported()
	require.Equal(t, 2, calls)
	require.Equal(t, "fresh", winner)
	require.Equal(t, 1, players)
}

func TestContestExpiresWithNoWinner(t *testing.T) {
	reporter := &fakeReporter{}
	game := fastGame()
	game.ContestCountdown = 40 * time.Millisecond
	game.ContestTick = 20 * time.Millisecond
	s := NewSession(game, []string{"alpha"}, reporter)
	defer s.Stop()

	p1 := &fakePlayer{name: "ada"}
	p2 := &fakePlayer{name: "bob"}
	require.NoError(t, s.Join(p1))
	require.NoError(t, s.Join(p2))

	waitPhase(t, s, PhaseContest)
	waitPhase(t, s, PhaseIdle)

	_, _, calls := reporter.reported()
	require.Zero(t, calls, "no winner must be reported")

	st := p1.standings()
	require.NotNil(t, st)
	require.Len(t, st.Entries, 2)
	for _, e := range st.Entries {
		require.False(t, e.Finished)
		require.Zero(t, e.Rank)
	}
	require.Contains(t, st.Message, "DNF - ada")
	require.Contains(t, st.Message, "DNF - bob")
}

func TestDisconnectedPlayerStaysInStandings(t *testing.T) {
	reporter := &fakeReporter{}
	game := fastGame()
	game.ContestCountdown = 40 * time.Millisecond
	game.ContestTick = 20 * time.Millisecond
	s := NewSession(game, []string{"alpha"}, reporter)
	defer s.Stop()

	ok := &fakePlayer{name: "ada"}
	gone := &fakePlayer{name: "bob", failing: true}
	require.NoError(t, s.Join(ok))
	require.NoError(t, s.Join(gone))

	waitPhase(t, s, PhaseContest)
	_, msg := s.Submit(ok, "alpha")
	require.Contains(t, msg, "#1")
	waitPhase(t, s, PhaseIdle)

	// The failed fan-out to bob must not abort delivery to ada, and bob is
	// still listed as incomplete.
	st := ok.standings()
	require.NotNil(t, st)
	require.Len(t, st.Entries, 2)
	require.Equal(t, "ada", st.Entries[0].Username)
	require.Equal(t, "bob", st.Entries[1].Username)
	require.False(t, st.Entries[1].Finished)

	winner, _, calls := reporter.reported()
	require.Equal(t, 1, calls)
	require.Equal(t, "ada", winner)
}

func TestLobbyBroadcastsCountdown(t *testing.T) {
	game := fastGame()
	game.LobbyCountdown = 60 * time.Millisecond
	game.LobbyTick = 20 * time.Millisecond
	s := NewSession(game, []string{"alpha"}, &fakeReporter{})
	defer s.Stop()

	p := &fakePlayer{name: "ada"}
	require.NoError(t, s.Join(p))
	waitPhase(t, s, PhaseContest)

	var sawCountdown, sawStart bool
	for _, msg := range p.messages() {
		b, ok := msg.(*wire.Broadcast)
		if !ok {
			continue
		}
		if strings.Contains(b.Message, "Game starts in") {
			sawCountdown = true
		}
		if strings.Contains(b.Message, "Game start!") {
			sawStart = true
		}
	}
	require.True(t, sawCountdown, "lobby ticks must announce remaining time")
	require.True(t, sawStart, "contest entry must announce the prompt")
}
