// Package sync pulls a user's recent Spotify listening history, normalizes
// it, enriches it best-effort, and persists it idempotently.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nratajik/resonate/internal/auth"
	"github.com/nratajik/resonate/internal/db"
	"github.com/nratajik/resonate/internal/mapper"
	"github.com/nratajik/resonate/internal/spotify"
)

// ErrPermissionsMissing is returned when the history fetch is rejected with
// 401/403: the token lacks the required scope and the user must
// re-authenticate. Not a transient condition, never retried.
var ErrPermissionsMissing = errors.New("spotify permissions missing, re-authenticate")

// Audio-feature enrichment outcomes.
const (
	FeaturesOK     = "ok"
	FeaturesDenied = "denied"
	FeaturesError  = "error"
)

// historyPageSize is the single page of recent plays fetched per sync.
const historyPageSize = 50

// Store is the persistence surface the orchestrator writes through.
type Store interface {
	UpsertArtists(ctx context.Context, artists []db.Artist) (int, error)
	UpsertTracks(ctx context.Context, tracks []db.Track) (int, error)
	ReplaceCredits(ctx context.Context, credits []db.TrackArtist) error
	UpsertAudioFeatures(ctx context.Context, features []db.AudioFeatures) (int, error)
	UpsertEvents(ctx context.Context, events []db.ListeningEvent) (created int, err error)
	UpdateUserProduct(ctx context.Context, userID, product string) error
	UpdateLastSync(ctx context.Context, userID string, syncTime time.Time) error
}

// Service orchestrates one sync run per call. It holds no state across
// runs.
type Service struct {
	api    *spotify.Client
	tokens auth.TokenProvider
	store  Store
	logger *log.Logger
	now    func() time.Time
}

// New creates a sync service.
func New(api *spotify.Client, tokens auth.TokenProvider, store Store, logger *log.Logger) *Service {
	return &Service{
		api:    api,
		tokens: tokens,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Result reports what one sync run persisted. AudioFeaturesStatus lets a
// caller report a partial sync ("denied": the account cannot read audio
// features; "error": enrichment failed for other reasons). Created counts
// listening events that did not exist before this run.
type Result struct {
	Created             int       `json:"created"`
	Tracks              int       `json:"tracks"`
	Artists             int       `json:"artists"`
	AudioFeatures       int       `json:"audioFeatures"`
	AudioFeaturesStatus string    `json:"audioFeaturesStatus"`
	Events              int       `json:"events"`
	SyncedAt            time.Time `json:"syncedAt"`
}

// SyncForUser runs one sync for userID: fetch a page of recent plays,
// normalize, enrich, persist.
//
// A failed token exchange or history fetch fails the sync. Enrichment
// failures never do: audio features degrade to a status flag, artist
// images are simply left absent. Persistence errors propagate to the
// caller.
func (s *Service) SyncForUser(ctx context.Context, userID string) (*Result, error) {
	token, err := s.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}

	s.refreshProductFlag(ctx, userID, token)

	page, err := s.api.RecentlyPlayed(ctx, token, historyPageSize)
	if err != nil {
		if spotify.IsPermissionDenied(err) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionsMissing, err)
		}
		return nil, fmt.Errorf("fetching recent history: %w", err)
	}

	payload := mapper.BuildSyncPayload(page.Items)

	trackIDs := make([]string, len(payload.Tracks))
	for i, t := range payload.Tracks {
		trackIDs[i] = t.ID
	}
	artistIDs := make([]string, len(payload.Artists))
	for i, a := range payload.Artists {
		artistIDs[i] = a.ID
	}

	// Enrichment runs concurrently; both lookups finish before persistence
	// begins.
	var (
		wg             sync.WaitGroup
		features       map[string]db.AudioFeatures
		featuresStatus string
		artistImages   map[string]string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		features, featuresStatus = s.fetchAudioFeatures(ctx, token, trackIDs)
	}()
	go func() {
		defer wg.Done()
		artistImages = s.fetchArtistImages(ctx, token, artistIDs)
	}()
	wg.Wait()

	result, err := s.persist(ctx, userID, payload, features, artistImages)
	if err != nil {
		return nil, err
	}
	result.AudioFeaturesStatus = featuresStatus

	syncedAt := s.now()
	if err := s.store.UpdateLastSync(ctx, userID, syncedAt); err != nil {
		return nil, fmt.Errorf("recording sync time: %w", err)
	}
	result.SyncedAt = syncedAt

	s.logger.Info("sync complete",
		"user", userID,
		"events", result.Events,
		"created", result.Created,
		"tracks", result.Tracks,
		"features", result.AudioFeaturesStatus,
	)
	return result, nil
}

// refreshProductFlag updates the user's subscription tier best-effort.
func (s *Service) refreshProductFlag(ctx context.Context, userID, token string) {
	user, err := s.api.Me(ctx, token)
	if err != nil {
		s.logger.Warn("refreshing product flag failed", "user", userID, "err", err)
		return
	}
	if user.Product == "" {
		return
	}
	if err := s.store.UpdateUserProduct(ctx, userID, user.Product); err != nil {
		s.logger.Warn("storing product flag failed", "user", userID, "err", err)
	}
}

// fetchAudioFeatures fetches audio features for trackIDs in batches.
//
// A 403 on a batch means the account cannot read audio features at all:
// classified "denied", no fallback. Any other batch failure falls back to
// one request per track so a partial outage does not zero out all
// enrichment; remaining failures classify the run "error" but successful
// lookups are still returned.
func (s *Service) fetchAudioFeatures(ctx context.Context, token string, trackIDs []string) (map[string]db.AudioFeatures, string) {
	features := make(map[string]db.AudioFeatures, len(trackIDs))
	status := FeaturesOK

	for _, batch := range batches(trackIDs, spotify.MaxAudioFeaturesPerRequest) {
		fetched, err := s.api.AudioFeaturesBatch(ctx, token, batch)
		if err == nil {
			for _, f := range fetched {
				if f == nil {
					continue
				}
				features[f.ID] = featuresFromWire(f)
			}
			continue
		}

		if spotify.IsPermissionDenied(err) {
			s.logger.Warn("audio features denied", "err", err)
			return nil, FeaturesDenied
		}

		s.logger.Warn("audio features batch failed, falling back per track", "err", err)
		for _, id := range batch {
			f, err := s.api.AudioFeaturesForTrack(ctx, token, id)
			if err != nil {
				if spotify.IsPermissionDenied(err) {
					return nil, FeaturesDenied
				}
				status = FeaturesError
				continue
			}
			if f.ID != "" {
				features[f.ID] = featuresFromWire(f)
			}
		}
	}

	return features, status
}

// fetchArtistImages fetches artist images in batches, best-effort. A failed
// batch just leaves those images absent.
func (s *Service) fetchArtistImages(ctx context.Context, token string, artistIDs []string) map[string]string {
	images := make(map[string]string, len(artistIDs))

	for _, batch := range batches(artistIDs, spotify.MaxArtistsPerRequest) {
		artists, err := s.api.ArtistsBatch(ctx, token, batch)
		if err != nil {
			s.logger.Warn("artist image batch failed", "err", err)
			continue
		}
		for _, a := range artists {
			if a == nil || len(a.Images) == 0 || a.Images[0].URL == "" {
				continue
			}
			images[a.ID] = a.Images[0].URL
		}
	}

	return images
}

// persist writes the payload in dependency order: artists before tracks
// before credits, features and events. Each repository call is internally
// chunked into bounded transactions.
func (s *Service) persist(
	ctx context.Context,
	userID string,
	payload mapper.Payload,
	features map[string]db.AudioFeatures,
	artistImages map[string]string,
) (*Result, error) {
	artists := make([]db.Artist, len(payload.Artists))
	for i, a := range payload.Artists {
		artists[i] = db.Artist{ID: a.ID, Name: a.Name}
		if url, ok := artistImages[a.ID]; ok {
			imageURL := url
			artists[i].ImageURL = &imageURL
		}
	}
	artistCount, err := s.store.UpsertArtists(ctx, artists)
	if err != nil {
		return nil, fmt.Errorf("persisting artists: %w", err)
	}

	tracks := make([]db.Track, len(payload.Tracks))
	var credits []db.TrackArtist
	for i, t := range payload.Tracks {
		tracks[i] = db.Track{
			ID:                   t.ID,
			Name:                 t.Name,
			Artists:              t.Artists,
			AlbumName:            t.AlbumName,
			AlbumImageURL:        t.AlbumImageURL,
			AlbumType:            t.AlbumType,
			ReleaseDate:          t.ReleaseDate,
			ReleaseDatePrecision: t.ReleaseDatePrecision,
			DurationMs:           t.DurationMs,
			Explicit:             t.Explicit,
		}
		for pos, artistID := range t.Credits {
			credits = append(credits, db.TrackArtist{
				TrackID:  t.ID,
				ArtistID: artistID,
				Position: pos,
			})
		}
	}
	trackCount, err := s.store.UpsertTracks(ctx, tracks)
	if err != nil {
		return nil, fmt.Errorf("persisting tracks: %w", err)
	}

	if err := s.store.ReplaceCredits(ctx, credits); err != nil {
		return nil, fmt.Errorf("persisting track credits: %w", err)
	}

	featureRows := make([]db.AudioFeatures, 0, len(features))
	for _, f := range features {
		featureRows = append(featureRows, f)
	}
	featureCount, err := s.store.UpsertAudioFeatures(ctx, featureRows)
	if err != nil {
		return nil, fmt.Errorf("persisting audio features: %w", err)
	}

	events := make([]db.ListeningEvent, len(payload.Events))
	for i, e := range payload.Events {
		events[i] = db.ListeningEvent{
			UserID:      userID,
			TrackID:     e.TrackID,
			PlayedAt:    e.PlayedAt,
			DurationMs:  e.DurationMs,
			ContextType: e.ContextType,
			ContextURI:  e.ContextURI,
		}
	}
	created, err := s.store.UpsertEvents(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("persisting listening events: %w", err)
	}

	return &Result{
		Created:       created,
		Tracks:        trackCount,
		Artists:       artistCount,
		AudioFeatures: featureCount,
		Events:        len(events),
	}, nil
}

func featuresFromWire(f *spotify.AudioFeatures) db.AudioFeatures {
	return db.AudioFeatures{
		TrackID:          f.ID,
		Danceability:     f.Danceability,
		Energy:           f.Energy,
		Valence:          f.Valence,
		Tempo:            f.Tempo,
		Acousticness:     f.Acousticness,
		Instrumentalness: f.Instrumentalness,
		Liveness:         f.Liveness,
		Speechiness:      f.Speechiness,
	}
}

// batches splits ids into slices of at most size elements.
func batches(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
