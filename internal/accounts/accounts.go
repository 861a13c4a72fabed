// Package accounts persists player records as a newline-delimited flat file
// with tab-separated fields (username, bcrypt credential, win count). The
// file is loaded wholesale on first use and rewritten wholesale on every
// mutation; the store mutex enforces the single-writer discipline.
package accounts

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mpratt/typerace/internal/auth"
	"github.com/mpratt/typerace/internal/domain"
)

const fieldCount = 3

var (
	// ErrWrongPassword is returned when a login names an existing account
	// but the password does not match its credential.
	ErrWrongPassword = errors.New("incorrect password for the existing username")
	// ErrUnknownUser is returned when a mutation names an account that does
	// not exist.
	ErrUnknownUser = errors.New("unknown user")
)

// Store is the account-of-record for players.
type Store struct {
	path string

	mu    sync.Mutex
	users map[string]*domain.Account // nil until first load
}

// New creates a store backed by the given file. The file is read lazily on
// first use; a missing file is an empty store.
func New(path string) *Store {
	return &Store{path: path}
}

// Login authenticates a player, creating the account on first sight of the
// username. It reports whether a new account was created. An existing
// account with a non-matching password returns ErrWrongPassword and mutates
// nothing.
func (s *Store) Login(username, password string) (created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return false, err
	}

	if acct, ok := s.users[username]; ok {
		if !auth.CheckPassword(password, acct.Credential) {
			return false, ErrWrongPassword
		}
		return false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hashing credential: %w", err)
	}
	s.users[username] = &domain.Account{Username: username, Credential: hash}
	if err := s.save(); err != nil {
		return false, err
	}
	return true, nil
}

// AddWin increments a player's win count and rewrites the file.
func (s *Store) AddWin(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}

	acct, ok := s.users[username]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	acct.Wins++
	return s.save()
}

// Wins reports a player's current win count.
func (s *Store) Wins(username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return 0, err
	}
	acct, ok := s.users[username]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	return acct.Wins, nil
}

// Count reports the number of account records.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return 0, err
	}
	return len(s.users), nil
}

// Leaderboard renders the full leaderboard with the requesting user's own
// entry first, then every account by strictly descending win count.
func (s *Store) Leaderboard(username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return "", err
	}

	own, ok := s.users[username]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}

	ranked := make([]*domain.Account, 0, len(s.users))
	for _, acct := range s.users {
		ranked = append(ranked, acct)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Wins != ranked[j].Wins {
			return ranked[i].Wins > ranked[j].Wins
		}
		return ranked[i].Username < ranked[j].Username
	})

	var sb strings.Builder
	sb.WriteString("\nYour wins:\n")
	fmt.Fprintf(&sb, "%d - %s\n", own.Wins, own.Username)
	sb.WriteString("\nFull Leaderboard: (by # of wins)\n")
	for _, acct := range ranked {
		fmt.Fprintf(&sb, "%d - %s\n", acct.Wins, acct.Username)
	}
	return sb.String(), nil
}

// load reads the whole file into memory. Callers must hold s.mu. Malformed
// contents are an error; callers treat that as fatal at startup.
func (s *Store) load() error {
	if s.users != nil {
		return nil
	}
	s.users = make(map[string]*domain.Account)

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening accounts file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != fieldCount {
			return fmt.Errorf("accounts file line %d: expected %d fields, got %d", lineNo, fieldCount, len(fields))
		}
		wins, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("accounts file line %d: win count is not an integer: %w", lineNo, err)
		}
		s.users[fields[0]] = &domain.Account{
			Username:   fields[0],
			Credential: fields[1],
			Wins:       wins,
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading accounts file: %w", err)
	}
	return nil
}

// save rewrites the whole file. Callers must hold s.mu.
func (s *Store) save() error {
	usernames := make([]string, 0, len(s.users))
	for name := range s.users {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)

	var sb strings.Builder
	for _, name := range usernames {
		acct := s.users[name]
		fmt.Fprintf(&sb, "%s\t%s\t%d\n", acct.Username, acct.Credential, acct.Wins)
	}

	if err := os.WriteFile(s.path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing accounts file: %w", err)
	}
	return nil
}
