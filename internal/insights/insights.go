// Package insights assembles a multi-section snapshot of a user's live
// listening data. Sections are fetched concurrently and fail independently:
// an authorization problem or outage in one source degrades that section's
// status without touching the others.
package insights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nratajik/resonate/internal/auth"
	"github.com/nratajik/resonate/internal/db"
	"github.com/nratajik/resonate/internal/spotify"
)

// Status tags a section's outcome.
type Status string

const (
	// StatusOK means the section's data was fetched in full.
	StatusOK Status = "ok"

	// StatusLimited means the account lacks authorization for this data
	// source (401/403 from the API).
	StatusLimited Status = "limited"

	// StatusError covers all other failures.
	StatusError Status = "error"
)

// Section is one independently-fetched slice of the snapshot. Data is nil
// unless Status is "ok", so consumers only need to check the tag.
type Section[T any] struct {
	Status  Status `json:"status"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Snapshot is the full live-insights result. Failed sections are visible
// through their status, never as missing fields. ReconnectRequired is true
// iff at least one section was permission-limited.
type Snapshot struct {
	TopRanks          Section[TopRanksData]       `json:"topRanks"`
	Library           Section[LibraryData]        `json:"library"`
	Playlists         Section[PlaylistsData]      `json:"playlists"`
	ReleaseRadar      Section[ReleaseRadarData]   `json:"releaseRadar"`
	PlaybackHealth    Section[PlaybackHealthData] `json:"playbackHealth"`
	ContextMix        Section[ContextMixData]     `json:"contextMix"`
	ReconnectRequired bool                        `json:"reconnectRequired"`
	GeneratedAt       time.Time                   `json:"generatedAt"`
}

// HistoryStore is the read-only persistence surface the aggregator needs.
// *db.EventRepository satisfies it.
type HistoryStore interface {
	ListenedTrackIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	ContextDistribution(ctx context.Context, userID string) ([]db.ContextCount, error)
}

// Service builds live-insights snapshots. Stateless across calls.
type Service struct {
	api    *spotify.Client
	tokens auth.TokenProvider
	store  HistoryStore
	logger *log.Logger
	now    func() time.Time
}

// New creates an insights service.
func New(api *spotify.Client, tokens auth.TokenProvider, store HistoryStore, logger *log.Logger) *Service {
	return &Service{
		api:    api,
		tokens: tokens,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// GetLiveInsights assembles a snapshot for userID. All six sections run
// concurrently; one section's failure never cancels or delays another.
// Only a token failure makes the whole call fail.
func (s *Service) GetLiveInsights(ctx context.Context, userID string) (*Snapshot, error) {
	token, err := s.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}

	snapshot := &Snapshot{GeneratedAt: s.now()}

	var wg sync.WaitGroup
	wg.Add(6)
	go func() {
		defer wg.Done()
		snapshot.TopRanks = runSection(s.logger, "top_ranks", func() (*TopRanksData, error) {
			return s.fetchTopRanks(ctx, token)
		})
	}()
	go func() {
		defer wg.Done()
		snapshot.Library = runSection(s.logger, "library", func() (*LibraryData, error) {
			return s.fetchLibrary(ctx, token, userID)
		})
	}()
	go func() {
		defer wg.Done()
		snapshot.Playlists = runSection(s.logger, "playlists", func() (*PlaylistsData, error) {
			return s.fetchPlaylists(ctx, token, userID)
		})
	}()
	go func() {
		defer wg.Done()
		snapshot.ReleaseRadar = runSection(s.logger, "release_radar", func() (*ReleaseRadarData, error) {
			return s.fetchReleaseRadar(ctx, token)
		})
	}()
	go func() {
		defer wg.Done()
		snapshot.PlaybackHealth = runSection(s.logger, "playback_health", func() (*PlaybackHealthData, error) {
			return s.fetchPlaybackHealth(ctx, token)
		})
	}()
	go func() {
		defer wg.Done()
		snapshot.ContextMix = runSection(s.logger, "context_mix", func() (*ContextMixData, error) {
			return s.fetchContextMix(ctx, token, userID)
		})
	}()
	wg.Wait()

	snapshot.ReconnectRequired = snapshot.TopRanks.Status == StatusLimited ||
		snapshot.Library.Status == StatusLimited ||
		snapshot.Playlists.Status == StatusLimited ||
		snapshot.ReleaseRadar.Status == StatusLimited ||
		snapshot.PlaybackHealth.Status == StatusLimited ||
		snapshot.ContextMix.Status == StatusLimited

	return snapshot, nil
}

// runSection wraps a section fetcher with uniform status classification.
// Authorization failures downgrade to "limited", everything else to
// "error"; the snapshot always keeps its full shape.
func runSection[T any](logger *log.Logger, name string, fn func() (*T, error)) Section[T] {
	data, err := fn()
	if err == nil {
		return Section[T]{Status: StatusOK, Data: data}
	}

	if spotify.IsPermissionDenied(err) {
		logger.Warn("insight section permission-limited", "section", name, "err", err)
		return Section[T]{
			Status:  StatusLimited,
			Message: "account not authorized for this data source",
		}
	}

	logger.Warn("insight section failed", "section", name, "err", err)
	return Section[T]{
		Status:  StatusError,
		Message: err.Error(),
	}
}
