package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenRepository handles OAuth token storage, one row per user.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves the stored tokens for a user.
func (r *TokenRepository) Get(ctx context.Context, userID string) (*Token, error) {
	query := `
		SELECT user_id, access_token, refresh_token, token_expiry, updated_at
		FROM spotify_tokens
		WHERE user_id = $1
	`
	var token Token
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&token.UserID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.TokenExpiry,
		&token.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	return &token, nil
}

// Upsert stores or replaces a user's tokens.
func (r *TokenRepository) Upsert(ctx context.Context, token *Token) error {
	query := `
		INSERT INTO spotify_tokens (user_id, access_token, refresh_token, token_expiry, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), spotify_tokens.refresh_token),
			token_expiry = EXCLUDED.token_expiry,
			updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query,
		token.UserID,
		token.AccessToken,
		token.RefreshToken,
		token.TokenExpiry,
	)
	if err != nil {
		return fmt.Errorf("upserting token: %w", err)
	}
	return nil
}

// UpdateExpiry marks a token as expired so the next use forces a refresh.
func (r *TokenRepository) UpdateExpiry(ctx context.Context, userID string, expiry time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE spotify_tokens SET token_expiry = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, expiry,
	)
	if err != nil {
		return fmt.Errorf("updating token expiry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user's stored tokens.
func (r *TokenRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM spotify_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
