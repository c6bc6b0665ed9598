// Package storage is the Postgres persistence adapter. It implements the
// ledger and transfer engine ports on pgx/v5; all serialization of
// concurrent operations happens here, through row locks inside database
// transactions. Monetary values travel to and from SQL as decimal strings.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect initializes the connection pool.
func Connect(databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return pool, nil
}

// Store bundles every query the application runs. One instance serves the
// ledger service, the transfer engine and the notification queue.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the schema. The unique index on account_number is the
// ultimate arbiter for number generation; the balance CHECK backs the
// no-overdraft invariant at the last line of defense.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			key_hash TEXT PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			key_prefix TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			account_number TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			balance NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			currency TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			from_account_id UUID NOT NULL REFERENCES accounts(id),
			to_account_id UUID NOT NULL REFERENCES accounts(id),
			source_amount NUMERIC(12,2) NOT NULL,
			source_currency TEXT NOT NULL,
			target_amount NUMERIC(12,2) NOT NULL,
			target_currency TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
			created_at TIMESTAMPTZ NOT NULL,
			executed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions (from_account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions (to_account_id)`,
		`CREATE TABLE IF NOT EXISTS notification_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			recipient TEXT NOT NULL,
			payload JSONB NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INT NOT NULL DEFAULT 0,
			next_run_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key_id TEXT NOT NULL,
			user_id UUID NOT NULL,
			request_path TEXT NOT NULL,
			response_status INT NOT NULL,
			response_body BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (key_id, user_id, request_path)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// EnqueueNotification persists a mail job for the background worker.
func (s *Store) EnqueueNotification(ctx context.Context, recipient string, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notification_jobs (recipient, payload) VALUES ($1, $2)`,
		recipient, payload)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
