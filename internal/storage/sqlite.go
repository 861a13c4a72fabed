// Package storage keeps the directory's contest history in SQLite.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/mpratt/typerace/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// formatTimestamp converts time.Time to a SQLite-compatible UTC ISO8601
// string. The Z suffix ensures the Go sqlite driver parses it back as UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Store provides database access.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertContest records one completed contest.
func (s *Store) InsertContest(ctx context.Context, rec *domain.ContestRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contests (id, winner, worker_addr, player_count, finished_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Winner, rec.WorkerAddr, rec.PlayerCount, formatTimestamp(rec.FinishedAt))
	if err != nil {
		return fmt.Errorf("inserting contest: %w", err)
	}
	return nil
}

// RecentContests returns up to limit contests, newest first.
func (s *Store) RecentContests(ctx context.Context, limit int) ([]domain.ContestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, winner, worker_addr, player_count, finished_at
		FROM contests ORDER BY finished_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.ContestRecord
	for rows.Next() {
		var rec domain.ContestRecord
		if err := rows.Scan(&rec.ID, &rec.Winner, &rec.WorkerAddr, &rec.PlayerCount, &rec.FinishedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
