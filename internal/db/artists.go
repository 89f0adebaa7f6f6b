package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ArtistRepository handles artist database operations.
type ArtistRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts or updates artists in chunked transactions. A null
// incoming image never clears a stored one.
func (r *ArtistRepository) UpsertBatch(ctx context.Context, artists []Artist) (int, error) {
	query := `
		INSERT INTO artists (id, name, image_url, created_at)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::timestamptz[])
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), artists.name),
			image_url = COALESCE(EXCLUDED.image_url, artists.image_url)
	`

	total := 0
	now := time.Now()
	for _, chunk := range chunks(artists, maxOpsPerTx) {
		ids := make([]string, len(chunk))
		names := make([]string, len(chunk))
		images := make([]*string, len(chunk))
		createdAts := make([]time.Time, len(chunk))

		for i, a := range chunk {
			ids[i] = a.ID
			names[i] = a.Name
			images[i] = a.ImageURL
			createdAts[i] = now
		}

		err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, query, ids, names, images, createdAts)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("batch upserting artists: %w", err)
		}
		total += len(chunk)
	}
	return total, nil
}
