package sync

import (
	"context"
	"time"

	"github.com/nratajik/resonate/internal/db"
)

// DBStore adapts *db.DB to the Store interface.
type DBStore struct {
	db *db.DB
}

// NewDBStore wraps a database handle for use by the sync service.
func NewDBStore(database *db.DB) *DBStore {
	return &DBStore{db: database}
}

func (s *DBStore) UpsertArtists(ctx context.Context, artists []db.Artist) (int, error) {
	return s.db.Artists().UpsertBatch(ctx, artists)
}

func (s *DBStore) UpsertTracks(ctx context.Context, tracks []db.Track) (int, error) {
	return s.db.Tracks().UpsertBatch(ctx, tracks)
}

func (s *DBStore) ReplaceCredits(ctx context.Context, credits []db.TrackArtist) error {
	return s.db.Tracks().ReplaceCredits(ctx, credits)
}

func (s *DBStore) UpsertAudioFeatures(ctx context.Context, features []db.AudioFeatures) (int, error) {
	return s.db.Features().UpsertBatch(ctx, features)
}

func (s *DBStore) UpsertEvents(ctx context.Context, events []db.ListeningEvent) (int, error) {
	return s.db.Events().UpsertBatch(ctx, events)
}

func (s *DBStore) UpdateUserProduct(ctx context.Context, userID, product string) error {
	return s.db.Users().UpdateProduct(ctx, userID, product)
}

func (s *DBStore) UpdateLastSync(ctx context.Context, userID string, syncTime time.Time) error {
	return s.db.Users().UpdateLastSync(ctx, userID, syncTime)
}
