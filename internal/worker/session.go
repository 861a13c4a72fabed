package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpratt/typerace/internal/config"
	"github.com/mpratt/typerace/internal/domain"
	"github.com/mpratt/typerace/internal/wire"
)

var (
	// ErrContestFull rejects a joiner when the roster is at capacity.
	ErrContestFull = errors.New("contest is full")
	// ErrContestRunning rejects a joiner while a contest is in progress.
	ErrContestRunning = errors.New("contest already in progress")
)

// Phase is a session's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLobby
	PhaseContest
	PhaseReporting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLobby:
		return "lobby"
	case PhaseContest:
		return "contest"
	case PhaseReporting:
		return "reporting"
	default:
		return "unknown"
	}
}

// Player is a session participant reachable for broadcasts. Deliver must be
// bounded: a send either completes within the connection's write timeout or
// fails, so one unresponsive player cannot stall a countdown tick.
type Player interface {
	Username() string
	Deliver(msg wire.Message) error
}

// resultReporter receives a completed contest's winner, normally the
// worker's directory link.
type resultReporter interface {
	ReportWinner(winner, contestID string, playerCount int) error
}

// Session is one full lobby → contest → reporting cycle. A worker hosts
// exactly one; it resets to idle after reporting. The single mutex guards
// roster, finishers, prompt and phase; answer ranking happens inside it so
// two simultaneous correct submissions always receive distinct ranks.
type Session struct {
	game     config.GameConfig
	prompts  []string
	reporter resultReporter

	mu        sync.Mutex
	phase     Phase
	roster    []Player
	finishers []string
	prompt    string
	contestID string
	allDone   chan struct{} // closed exactly once when every roster member finished
	cancel    context.CancelFunc
}

// NewSession creates an idle session.
func NewSession(game config.GameConfig, prompts []string, reporter resultReporter) *Session {
	return &Session{game: game, prompts: prompts, reporter: reporter}
}

// Phase reports the current lifecycle state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot answers the directory's probe: a session counts as finished while
// no contest is actively running, which is exactly when joiners may still be
// routed here.
func (s *Session) Snapshot() domain.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.GameState{
		Finished:    s.phase == PhaseIdle || s.phase == PhaseLobby,
		PlayerCount: len(s.roster),
	}
}

// Join admits a player. The first join of an idle session opens the lobby
// and starts its countdown; later joins are admitted up to capacity while
// the lobby is open. This is the admission check that resolves the race
// between two players routed to the same worker.
func (s *Session) Join(p Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseIdle:
		s.roster = append(s.roster, p)
		s.phase = PhaseLobby
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.runLobby(ctx)
		log.Printf("session: %s opened the lobby", p.Username())
	case PhaseLobby:
		if len(s.roster) >= s.game.Capacity {
			return ErrContestFull
		}
		s.roster = append(s.roster, p)
		log.Printf("session: %s joined the lobby (%d/%d)", p.Username(), len(s.roster), s.game.Capacity)
	default:
		return ErrContestRunning
	}
	return nil
}

// Submit checks one answer. The first submission exactly equal to the prompt
// per player appends to the finisher list and yields its 1-based rank; the
// final finisher closes the completion channel, waking the contest loop
// exactly once.
func (s *Session) Submit(p Player, answer string) (correct bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseContest {
		return false, "\nIncorrect! Please try again.\nPrompt:\n" + s.prompt
	}

	// A connection left over from an earlier contest may still submit; only
	// current roster members may be ranked.
	if !s.inRoster(p) {
		return false, "\nYou are not in this game! Please matchmake through the directory."
	}

	if s.hasFinished(p.Username()) {
		return true, "\nYou already finished!\nWaiting for other players to finish..."
	}

	if answer != s.prompt {
		return false, "\nIncorrect! Please try again.\nPrompt:\n" + s.prompt
	}

	s.finishers = append(s.finishers, p.Username())
	rank := len(s.finishers)
	if rank == len(s.roster) {
		close(s.allDone)
	}
	return true, fmt.Sprintf("\nCorrect! You placed #%d!\nWaiting for other players to finish...", rank)
}

// Stop cancels any running countdown, e.g. on worker shutdown.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// inRoster reports whether this exact player joined the current contest.
// Callers hold s.mu.
func (s *Session) inRoster(p Player) bool {
	for _, member := range s.roster {
		if member == p {
			return true
		}
	}
	return false
}

// hasFinished reports whether a player is already ranked. Callers hold s.mu.
func (s *Session) hasFinished(username string) bool {
	for _, name := range s.finishers {
		if name == username {
			return true
		}
	}
	return false
}

// runLobby ticks down the lobby countdown, announcing the remaining time to
// everyone, then promotes the session to the contest phase.
func (s *Session) runLobby(ctx context.Context) {
	ticker := time.NewTicker(s.game.LobbyTick)
	defer ticker.Stop()

	remaining := s.game.LobbyCountdown
	for {
		s.broadcast(fmt.Sprintf("Game starts in %d seconds!", int(remaining/time.Second)), false)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining -= s.game.LobbyTick
			if remaining <= 0 {
				s.startContest(ctx)
				return
			}
		}
	}
}

// startContest picks a random prompt, closes admission and begins the timed
// phase.
func (s *Session) startContest(ctx context.Context) {
	s.mu.Lock()
	if s.phase != PhaseLobby {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseContest
	s.prompt = s.prompts[rand.Intn(len(s.prompts))]
	s.contestID = uuid.NewString()
	s.allDone = make(chan struct{})
	prompt := s.prompt
	contestID := s.contestID
	s.mu.Unlock()

	log.Printf("session: contest %s started", contestID)
	s.broadcast(fmt.Sprintf("\nGame start! You have %d seconds to type: \n%s",
		int(s.game.ContestCountdown/time.Second), prompt), false)
	s.runContest(ctx)
}

// runContest ticks down the contest countdown, announcing remaining time
// only to players still racing, until every roster member has finished or
// time runs out, whichever comes first. The ticker stops on early
// completion and never fires into a later phase.
func (s *Session) runContest(ctx context.Context) {
	s.mu.Lock()
	allDone := s.allDone
	s.mu.Unlock()

	ticker := time.NewTicker(s.game.ContestTick)
	defer ticker.Stop()

	remaining := s.game.ContestCountdown
loop:
	for {
		select {
		case <-ctx.Done():
			return
		case <-allDone:
			break loop
		case <-ticker.C:
			remaining -= s.game.ContestTick
			if remaining <= 0 {
				break loop
			}
			s.broadcast(fmt.Sprintf("Less than %d seconds remain!", int(remaining/time.Second)), true)
		}
	}

	s.report()
}

// report broadcasts the final standings, reports the winner upward if there
// is one, and resets the session to idle.
func (s *Session) report() {
	s.mu.Lock()
	s.phase = PhaseReporting

	entries := make([]wire.StandingEntry, 0, len(s.roster))
	for i, name := range s.finishers {
		entries = append(entries, wire.StandingEntry{Rank: i + 1, Username: name, Finished: true})
	}
	for _, p := range s.roster {
		if !s.hasFinished(p.Username()) {
			entries = append(entries, wire.StandingEntry{Username: p.Username()})
		}
	}

	players := make([]Player, len(s.roster))
	copy(players, s.roster)
	contestID := s.contestID
	playerCount := len(s.roster)
	var winner string
	if len(s.finishers) > 0 {
		winner = s.finishers[0]
	}
	s.mu.Unlock()

	s.deliverAll(players, &wire.Standings{
		Entries: entries,
		Message: "\nGame over!\n" + renderStandings(entries),
	})

	if winner != "" {
		if err := s.reporter.ReportWinner(winner, contestID, playerCount); err != nil {
			log.Printf("session: reporting winner of contest %s: %v", contestID, err)
		}
	} else {
		log.Printf("session: contest %s ended with no finishers", contestID)
	}

	s.mu.Lock()
	s.roster = nil
	s.finishers = nil
	s.prompt = ""
	s.contestID = ""
	s.allDone = nil
	s.cancel = nil
	s.phase = PhaseIdle
	s.mu.Unlock()
	log.Printf("session: contest %s reported, back to idle", contestID)
}

// broadcast fans a text event out to the roster, optionally skipping players
// that already finished.
func (s *Session) broadcast(text string, skipFinished bool) {
	s.mu.Lock()
	targets := make([]Player, 0, len(s.roster))
	for _, p := range s.roster {
		if skipFinished && s.hasFinished(p.Username()) {
			continue
		}
		targets = append(targets, p)
	}
	s.mu.Unlock()

	s.deliverAll(targets, &wire.Broadcast{Message: text})
}

// deliverAll sends one message to each target concurrently and waits for the
// whole fan-out. Each send is bounded by the player's write timeout, so the
// wait is bounded too; a failed send is logged and never aborts the rest.
func (s *Session) deliverAll(targets []Player, msg wire.Message) {
	var wg sync.WaitGroup
	for _, p := range targets {
		wg.Add(1)
		go func(p Player) {
			defer wg.Done()
			if err := p.Deliver(msg); err != nil {
				log.Printf("session: broadcast to %s failed: %v", p.Username(), err)
			}
		}(p)
	}
	wg.Wait()
}

// renderStandings formats standings the way they are shown to players.
func renderStandings(entries []wire.StandingEntry) string {
	var sb strings.Builder
	sb.WriteString("Results:\n")
	for _, e := range entries {
		if e.Finished {
			fmt.Fprintf(&sb, "#%d - %s\n", e.Rank, e.Username)
		} else {
			fmt.Fprintf(&sb, "DNF - %s\n", e.Username)
		}
	}
	return sb.String()
}
