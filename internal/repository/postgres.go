package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by the ledger_entries table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get retrieves the value stored under key.
// Returns ErrKeyNotFound if the key does not exist.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	const query = `
		SELECT value
		FROM ledger_entries
		WHERE key = $1
	`

	var value string
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return value, nil
}

// Set upserts the value stored under key in a single statement.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	const query = `
		INSERT INTO ledger_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set ledger entry: %w", err)
	}

	return nil
}

// Exists checks if a value is stored under key.
func (s *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE key = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ledger entry existence: %w", err)
	}

	return exists, nil
}
