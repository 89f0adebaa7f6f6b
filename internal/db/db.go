// Package db provides PostgreSQL persistence for Resonate.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

// maxOpsPerTx bounds how many rows a single transaction writes. Large syncs
// are split into multiple transactions; idempotent upsert keys keep re-runs
// safe if a later chunk fails.
const maxOpsPerTx = 50

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Users returns a UserRepository.
func (db *DB) Users() *UserRepository {
	return &UserRepository{pool: db.pool}
}

// Sessions returns a SessionRepository.
func (db *DB) Sessions() *SessionRepository {
	return &SessionRepository{pool: db.pool}
}

// Tokens returns a TokenRepository.
func (db *DB) Tokens() *TokenRepository {
	return &TokenRepository{pool: db.pool}
}

// Tracks returns a TrackRepository.
func (db *DB) Tracks() *TrackRepository {
	return &TrackRepository{pool: db.pool}
}

// Artists returns an ArtistRepository.
func (db *DB) Artists() *ArtistRepository {
	return &ArtistRepository{pool: db.pool}
}

// Features returns a FeatureRepository.
func (db *DB) Features() *FeatureRepository {
	return &FeatureRepository{pool: db.pool}
}

// Events returns an EventRepository.
func (db *DB) Events() *EventRepository {
	return &EventRepository{pool: db.pool}
}

// chunks splits items into slices of at most size elements.
func chunks[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
