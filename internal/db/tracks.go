package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TrackRepository handles track and track-credit database operations.
type TrackRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts or updates tracks in chunked transactions. Mutable
// fields merge on conflict: COALESCE keeps the stored value when the new
// one is null, so a sparse page never erases catalog data.
func (r *TrackRepository) UpsertBatch(ctx context.Context, tracks []Track) (int, error) {
	query := `
		INSERT INTO tracks (
			id, name, artists, album_name, album_image_url, album_type,
			release_date, release_date_precision, duration_ms, explicit, created_at
		)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[],
			$7::text[], $8::text[], $9::int[], $10::boolean[], $11::timestamptz[]
		)
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), tracks.name),
			artists = COALESCE(NULLIF(EXCLUDED.artists, ''), tracks.artists),
			album_name = COALESCE(EXCLUDED.album_name, tracks.album_name),
			album_image_url = COALESCE(EXCLUDED.album_image_url, tracks.album_image_url),
			album_type = COALESCE(EXCLUDED.album_type, tracks.album_type),
			release_date = COALESCE(EXCLUDED.release_date, tracks.release_date),
			release_date_precision = COALESCE(EXCLUDED.release_date_precision, tracks.release_date_precision),
			duration_ms = COALESCE(EXCLUDED.duration_ms, tracks.duration_ms),
			explicit = EXCLUDED.explicit OR tracks.explicit
	`

	total := 0
	now := time.Now()
	for _, chunk := range chunks(tracks, maxOpsPerTx) {
		ids := make([]string, len(chunk))
		names := make([]string, len(chunk))
		artists := make([]string, len(chunk))
		albumNames := make([]*string, len(chunk))
		albumImages := make([]*string, len(chunk))
		albumTypes := make([]*string, len(chunk))
		releaseDates := make([]*string, len(chunk))
		releasePrecisions := make([]*string, len(chunk))
		durations := make([]*int, len(chunk))
		explicits := make([]bool, len(chunk))
		createdAts := make([]time.Time, len(chunk))

		for i, t := range chunk {
			ids[i] = t.ID
			names[i] = t.Name
			artists[i] = t.Artists
			albumNames[i] = t.AlbumName
			albumImages[i] = t.AlbumImageURL
			albumTypes[i] = t.AlbumType
			releaseDates[i] = t.ReleaseDate
			releasePrecisions[i] = t.ReleaseDatePrecision
			durations[i] = t.DurationMs
			explicits[i] = t.Explicit
			createdAts[i] = now
		}

		err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, query,
				ids, names, artists, albumNames, albumImages, albumTypes,
				releaseDates, releasePrecisions, durations, explicits, createdAts,
			)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("batch upserting tracks: %w", err)
		}
		total += len(chunk)
	}
	return total, nil
}

// ReplaceCredits replaces the ordered artist credits for each track in
// credits: existing rows for a track are deleted and recreated from the
// latest credit order. Tracks are processed in chunked transactions.
func (r *TrackRepository) ReplaceCredits(ctx context.Context, credits []TrackArtist) error {
	// Group by track, preserving first-seen track order.
	byTrack := make(map[string][]TrackArtist)
	var trackIDs []string
	for _, c := range credits {
		if _, ok := byTrack[c.TrackID]; !ok {
			trackIDs = append(trackIDs, c.TrackID)
		}
		byTrack[c.TrackID] = append(byTrack[c.TrackID], c)
	}

	for _, chunk := range chunks(trackIDs, maxOpsPerTx) {
		err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, trackID := range chunk {
				batch.Queue(`DELETE FROM track_artists WHERE track_id = $1`, trackID)
				for _, c := range byTrack[trackID] {
					batch.Queue(
						`INSERT INTO track_artists (track_id, artist_id, position) VALUES ($1, $2, $3)`,
						c.TrackID, c.ArtistID, c.Position,
					)
				}
			}
			return tx.SendBatch(ctx, batch).Close()
		})
		if err != nil {
			return fmt.Errorf("replacing track credits: %w", err)
		}
	}
	return nil
}

// Get retrieves a track by ID.
func (r *TrackRepository) Get(ctx context.Context, id string) (*Track, error) {
	query := `
		SELECT id, name, artists, album_name, album_image_url, album_type,
		       release_date, release_date_precision, duration_ms, explicit, created_at
		FROM tracks
		WHERE id = $1
	`
	var track Track
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&track.ID,
		&track.Name,
		&track.Artists,
		&track.AlbumName,
		&track.AlbumImageURL,
		&track.AlbumType,
		&track.ReleaseDate,
		&track.ReleaseDatePrecision,
		&track.DurationMs,
		&track.Explicit,
		&track.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}
	return &track, nil
}
