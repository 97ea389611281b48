// Package history persists answered queries in Postgres.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS query_history (
	id          TEXT PRIMARY KEY,
	query       TEXT NOT NULL,
	answer      TEXT NOT NULL,
	sources     TEXT[] NOT NULL DEFAULT '{}',
	tokens_used BIGINT NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Entry struct {
	ID         string        `json:"id"`
	Query      string        `json:"query"`
	Answer     string        `json:"answer"`
	Sources    []string      `json:"sources,omitempty"`
	TokensUsed int64         `json:"tokensUsed"`
	Duration   time.Duration `json:"-"`
	CreatedAt  time.Time     `json:"createdAt"`
}

type Store struct {
	db *sql.DB
}

// Open connects to Postgres and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history database unreachable: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle. Used in tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_history (id, query, answer, sources, tokens_used, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Query, e.Answer, pq.StringArray(e.Sources), e.TokensUsed, e.Duration.Milliseconds(), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving history entry: %w", err)
	}
	return nil
}

// Recent returns the most recently answered queries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, answer, sources, tokens_used, duration_ms, created_at
		 FROM query_history ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			sources    pq.StringArray
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.Query, &e.Answer, &sources, &e.TokensUsed, &durationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		e.Sources = []string(sources)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
