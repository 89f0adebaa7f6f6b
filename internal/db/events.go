package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository handles listening-event database operations.
type EventRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts or updates listening events in chunked transactions,
// keyed by (user_id, played_at). Re-running a sync over an overlapping
// window updates rows in place instead of duplicating them.
//
// Returns the number of rows actually created, so callers can tell an
// idempotent re-run (created = 0) from fresh history.
func (r *EventRepository) UpsertBatch(ctx context.Context, events []ListeningEvent) (created int, err error) {
	// xmax = 0 only for freshly inserted rows.
	query := `
		INSERT INTO listening_events (
			user_id, track_id, played_at, duration_ms, context_type, context_uri
		)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::timestamptz[], $4::int[], $5::text[], $6::text[]
		)
		ON CONFLICT (user_id, played_at) DO UPDATE SET
			track_id = EXCLUDED.track_id,
			duration_ms = COALESCE(EXCLUDED.duration_ms, listening_events.duration_ms),
			context_type = COALESCE(EXCLUDED.context_type, listening_events.context_type),
			context_uri = COALESCE(EXCLUDED.context_uri, listening_events.context_uri)
		RETURNING (xmax = 0) AS inserted
	`

	for _, chunk := range chunks(events, maxOpsPerTx) {
		userIDs := make([]string, len(chunk))
		trackIDs := make([]string, len(chunk))
		playedAts := make([]time.Time, len(chunk))
		durations := make([]*int, len(chunk))
		ctxTypes := make([]*string, len(chunk))
		ctxURIs := make([]*string, len(chunk))

		for i, e := range chunk {
			userIDs[i] = e.UserID
			trackIDs[i] = e.TrackID
			playedAts[i] = e.PlayedAt
			durations[i] = e.DurationMs
			ctxTypes[i] = e.ContextType
			ctxURIs[i] = e.ContextURI
		}

		txErr := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, query,
				userIDs, trackIDs, playedAts, durations, ctxTypes, ctxURIs,
			)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				var inserted bool
				if err := rows.Scan(&inserted); err != nil {
					return err
				}
				if inserted {
					created++
				}
			}
			return rows.Err()
		})
		if txErr != nil {
			return created, fmt.Errorf("batch upserting listening events: %w", txErr)
		}
	}
	return created, nil
}

// ListenedTrackIDs returns the set of distinct track ids the user has
// listening events for.
func (r *EventRepository) ListenedTrackIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	query := `SELECT DISTINCT track_id FROM listening_events WHERE user_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying listened track ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning track id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ContextDistribution returns how the user's listening events distribute
// across playback context types, most common first. Events with no context
// are excluded.
func (r *EventRepository) ContextDistribution(ctx context.Context, userID string) ([]ContextCount, error) {
	query := `
		SELECT context_type, COUNT(*) AS n
		FROM listening_events
		WHERE user_id = $1 AND context_type IS NOT NULL
		GROUP BY context_type
		ORDER BY n DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying context distribution: %w", err)
	}
	defer rows.Close()

	var counts []ContextCount
	for rows.Next() {
		var c ContextCount
		if err := rows.Scan(&c.ContextType, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning context count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// CountForUser returns the total number of listening events for a user.
func (r *EventRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listening_events WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting listening events: %w", err)
	}
	return count, nil
}
