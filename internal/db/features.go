package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FeatureRepository handles audio-feature database operations.
type FeatureRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts or updates audio features (one row per track) in
// chunked transactions.
func (r *FeatureRepository) UpsertBatch(ctx context.Context, features []AudioFeatures) (int, error) {
	query := `
		INSERT INTO audio_features (
			track_id, danceability, energy, valence, tempo,
			acousticness, instrumentalness, liveness, speechiness
		)
		SELECT * FROM unnest(
			$1::text[], $2::float8[], $3::float8[], $4::float8[], $5::float8[],
			$6::float8[], $7::float8[], $8::float8[], $9::float8[]
		)
		ON CONFLICT (track_id) DO UPDATE SET
			danceability = COALESCE(EXCLUDED.danceability, audio_features.danceability),
			energy = COALESCE(EXCLUDED.energy, audio_features.energy),
			valence = COALESCE(EXCLUDED.valence, audio_features.valence),
			tempo = COALESCE(EXCLUDED.tempo, audio_features.tempo),
			acousticness = COALESCE(EXCLUDED.acousticness, audio_features.acousticness),
			instrumentalness = COALESCE(EXCLUDED.instrumentalness, audio_features.instrumentalness),
			liveness = COALESCE(EXCLUDED.liveness, audio_features.liveness),
			speechiness = COALESCE(EXCLUDED.speechiness, audio_features.speechiness)
	`

	total := 0
	for _, chunk := range chunks(features, maxOpsPerTx) {
		trackIDs := make([]string, len(chunk))
		dance := make([]*float64, len(chunk))
		energy := make([]*float64, len(chunk))
		valence := make([]*float64, len(chunk))
		tempo := make([]*float64, len(chunk))
		acoustic := make([]*float64, len(chunk))
		instrumental := make([]*float64, len(chunk))
		liveness := make([]*float64, len(chunk))
		speech := make([]*float64, len(chunk))

		for i, f := range chunk {
			trackIDs[i] = f.TrackID
			dance[i] = f.Danceability
			energy[i] = f.Energy
			valence[i] = f.Valence
			tempo[i] = f.Tempo
			acoustic[i] = f.Acousticness
			instrumental[i] = f.Instrumentalness
			liveness[i] = f.Liveness
			speech[i] = f.Speechiness
		}

		err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, query,
				trackIDs, dance, energy, valence, tempo,
				acoustic, instrumental, liveness, speech,
			)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("batch upserting audio features: %w", err)
		}
		total += len(chunk)
	}
	return total, nil
}
