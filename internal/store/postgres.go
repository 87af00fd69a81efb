package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore records relay play sessions in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the play_sessions table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS play_sessions (
			connection_id VARCHAR(64)  PRIMARY KEY,
			username      VARCHAR(255) NOT NULL,
			joined_at     TIMESTAMPTZ  NOT NULL,
			left_at       TIMESTAMPTZ
		)
	`)
	return err
}

// RecordJoin stores a join. A second join on the same connection replaces
// the username and reopens the session.
func (s *PostgresStore) RecordJoin(ctx context.Context, connectionID, username string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO play_sessions (connection_id, username, joined_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (connection_id)
		 DO UPDATE SET username = EXCLUDED.username, joined_at = EXCLUDED.joined_at, left_at = NULL`,
		connectionID, username, at,
	)
	if err != nil {
		return fmt.Errorf("record join: %w", err)
	}
	return nil
}

// RecordLeave closes the session opened by RecordJoin.
func (s *PostgresStore) RecordLeave(ctx context.Context, connectionID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE play_sessions SET left_at = $2 WHERE connection_id = $1 AND left_at IS NULL`,
		connectionID, at,
	)
	if err != nil {
		return fmt.Errorf("record leave: %w", err)
	}
	return nil
}
