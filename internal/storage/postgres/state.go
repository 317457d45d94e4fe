package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// StateStore keeps small job state values (the sync watermark) in the job_state table.
type StateStore struct {
	db *DB
}

func NewStateStore(db *DB) *StateStore { return &StateStore{db: db} }

// Get returns the value for key and whether it exists.
func (s *StateStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.Pool.QueryRow(ctx, "SELECT value FROM job_state WHERE key = $1", key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return v, true, nil
}

func (s *StateStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Pool.Exec(ctx, `
INSERT INTO job_state (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, key, value)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

func (s *StateStore) Ready(ctx context.Context) error { return s.db.Ready(ctx) }
