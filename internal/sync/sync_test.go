package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nratajik/resonate/internal/db"
	"github.com/nratajik/resonate/internal/logging"
	"github.com/nratajik/resonate/internal/spotify"
)

// fakeTokens is a TokenProvider returning a fixed token or error.
type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	return f.token, f.err
}

// memStore is an in-memory Store keyed like the real schema.
type memStore struct {
	artists  map[string]db.Artist
	tracks   map[string]db.Track
	credits  map[string][]db.TrackArtist
	features map[string]db.AudioFeatures
	events   map[string]db.ListeningEvent // key: userID|playedAt
	lastSync map[string]time.Time
	product  map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		artists:  make(map[string]db.Artist),
		tracks:   make(map[string]db.Track),
		credits:  make(map[string][]db.TrackArtist),
		features: make(map[string]db.AudioFeatures),
		events:   make(map[string]db.ListeningEvent),
		lastSync: make(map[string]time.Time),
		product:  make(map[string]string),
	}
}

func (m *memStore) UpsertArtists(ctx context.Context, artists []db.Artist) (int, error) {
	for _, a := range artists {
		m.artists[a.ID] = a
	}
	return len(artists), nil
}

func (m *memStore) UpsertTracks(ctx context.Context, tracks []db.Track) (int, error) {
	for _, t := range tracks {
		m.tracks[t.ID] = t
	}
	return len(tracks), nil
}

func (m *memStore) ReplaceCredits(ctx context.Context, credits []db.TrackArtist) error {
	byTrack := make(map[string][]db.TrackArtist)
	for _, c := range credits {
		byTrack[c.TrackID] = append(byTrack[c.TrackID], c)
	}
	for trackID, rows := range byTrack {
		m.credits[trackID] = rows
	}
	return nil
}

func (m *memStore) UpsertAudioFeatures(ctx context.Context, features []db.AudioFeatures) (int, error) {
	for _, f := range features {
		m.features[f.TrackID] = f
	}
	return len(features), nil
}

func (m *memStore) UpsertEvents(ctx context.Context, events []db.ListeningEvent) (int, error) {
	created := 0
	for _, e := range events {
		key := e.UserID + "|" + e.PlayedAt.UTC().Format(time.RFC3339Nano)
		if _, exists := m.events[key]; !exists {
			created++
		}
		m.events[key] = e
	}
	return created, nil
}

func (m *memStore) UpdateUserProduct(ctx context.Context, userID, product string) error {
	m.product[userID] = product
	return nil
}

func (m *memStore) UpdateLastSync(ctx context.Context, userID string, syncTime time.Time) error {
	m.lastSync[userID] = syncTime
	return nil
}

// apiFixture serves the endpoints a sync touches. Individual handlers can
// be overridden per test.
type apiFixture struct {
	mux    *http.ServeMux
	server *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{mux: http.NewServeMux()}

	f.mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"u1","display_name":"Nora","product":"premium"}`)
	})
	f.mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, recentlyPlayedJSON)
	})
	f.mux.HandleFunc("/audio-features", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		var entries []string
		for _, id := range ids {
			entries = append(entries, fmt.Sprintf(`{"id":%q,"energy":0.7,"valence":0.5}`, id))
		}
		fmt.Fprintf(w, `{"audio_features":[%s]}`, strings.Join(entries, ","))
	})
	f.mux.HandleFunc("/artists", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		var entries []string
		for _, id := range ids {
			entries = append(entries, fmt.Sprintf(`{"id":%q,"name":"Artist","images":[{"url":"https://img/%s.jpg"}]}`, id, id))
		}
		fmt.Fprintf(w, `{"artists":[%s]}`, strings.Join(entries, ","))
	})

	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

// Two plays of t1 and one of t2, newest first, 3 minutes apart.
const recentlyPlayedJSON = `{
	"items": [
		{
			"track": {"id": "t1", "name": "Alpha", "duration_ms": 300000,
				"artists": [{"id": "a1", "name": "Lead"}],
				"album": {"name": "LP", "images": [{"url": "https://img/lp.jpg"}]}},
			"played_at": "2026-03-01T12:06:00Z",
			"context": {"type": "playlist", "uri": "spotify:playlist:p"}
		},
		{
			"track": {"id": "t2", "name": "Beta", "duration_ms": 200000,
				"artists": [{"id": "a2", "name": "Other"}]},
			"played_at": "2026-03-01T12:03:00Z"
		},
		{
			"track": {"id": "t1", "name": "Alpha", "duration_ms": 300000,
				"artists": [{"id": "a1", "name": "Lead"}]},
			"played_at": "2026-03-01T12:00:00Z"
		}
	]
}`

func newService(f *apiFixture, store Store) *Service {
	api := spotify.NewClient(
		spotify.WithBaseURL(f.server.URL),
		spotify.WithBaseDelay(time.Millisecond),
	)
	return New(api, &fakeTokens{token: "tok"}, store, logging.Discard())
}

func TestSyncForUser(t *testing.T) {
	f := newAPIFixture(t)
	store := newMemStore()
	svc := newService(f, store)

	result, err := svc.SyncForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("SyncForUser() error = %v", err)
	}

	if result.Events != 3 || result.Created != 3 {
		t.Errorf("Events = %d, Created = %d, want 3, 3", result.Events, result.Created)
	}
	if result.Tracks != 2 {
		t.Errorf("Tracks = %d, want 2", result.Tracks)
	}
	if result.Artists != 2 {
		t.Errorf("Artists = %d, want 2", result.Artists)
	}
	if result.AudioFeaturesStatus != FeaturesOK || result.AudioFeatures != 2 {
		t.Errorf("features = %d/%s, want 2/ok", result.AudioFeatures, result.AudioFeaturesStatus)
	}
	if result.SyncedAt.IsZero() {
		t.Error("SyncedAt is zero")
	}

	if store.product["u1"] != "premium" {
		t.Errorf("product = %q, want premium", store.product["u1"])
	}
	if a := store.artists["a1"]; a.ImageURL == nil || *a.ImageURL != "https://img/a1.jpg" {
		t.Errorf("artist a1 image = %v", a.ImageURL)
	}
	if len(store.credits["t1"]) != 1 || store.credits["t1"][0].ArtistID != "a1" {
		t.Errorf("t1 credits = %v", store.credits["t1"])
	}
}

func TestSyncForUser_Idempotent(t *testing.T) {
	f := newAPIFixture(t)
	store := newMemStore()
	svc := newService(f, store)

	first, err := svc.SyncForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("first sync error = %v", err)
	}
	second, err := svc.SyncForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second sync error = %v", err)
	}

	if first.Created != 3 {
		t.Errorf("first Created = %d, want 3", first.Created)
	}
	if second.Created != 0 {
		t.Errorf("second Created = %d, want 0 (idempotent re-run)", second.Created)
	}
	if len(store.events) != 3 {
		t.Errorf("stored events = %d, want 3", len(store.events))
	}
}

func TestSyncForUser_FeaturesDenied(t *testing.T) {
	denied := &apiFixture{mux: http.NewServeMux()}
	denied.mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"u1","product":"premium"}`)
	})
	denied.mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, recentlyPlayedJSON)
	})
	denied.mux.HandleFunc("/audio-features", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	denied.mux.HandleFunc("/artists", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"artists":[]}`)
	})
	denied.server = httptest.NewServer(denied.mux)
	defer denied.server.Close()

	store := newMemStore()
	svc := newService(denied, store)

	result, err := svc.SyncForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("SyncForUser() error = %v", err)
	}

	if result.AudioFeaturesStatus != FeaturesDenied {
		t.Errorf("AudioFeaturesStatus = %q, want denied", result.AudioFeaturesStatus)
	}
	if result.AudioFeatures != 0 {
		t.Errorf("AudioFeatures = %d, want 0", result.AudioFeatures)
	}
	// Core history still lands.
	if result.Events != 3 {
		t.Errorf("Events = %d, want 3 (sync must not block on enrichment)", result.Events)
	}
}

func TestSyncForUser_FeatureBatchFallsBackPerTrack(t *testing.T) {
	fallback := &apiFixture{mux: http.NewServeMux()}
	fallback.mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"u1"}`)
	})
	fallback.mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, recentlyPlayedJSON)
	})
	// Batch endpoint broken, per-track endpoint works for t1 only.
	fallback.mux.HandleFunc("/audio-features", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	fallback.mux.HandleFunc("/audio-features/t1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"t1","energy":0.9}`)
	})
	fallback.mux.HandleFunc("/audio-features/t2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	fallback.mux.HandleFunc("/artists", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"artists":[]}`)
	})
	fallback.server = httptest.NewServer(fallback.mux)
	defer fallback.server.Close()

	store := newMemStore()
	svc := newService(fallback, store)

	result, err := svc.SyncForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("SyncForUser() error = %v", err)
	}

	// Partial outage: one feature recovered, residual failure marks error.
	if result.AudioFeatures != 1 {
		t.Errorf("AudioFeatures = %d, want 1", result.AudioFeatures)
	}
	if result.AudioFeaturesStatus != FeaturesError {
		t.Errorf("AudioFeaturesStatus = %q, want error", result.AudioFeaturesStatus)
	}
	if result.Events != 3 {
		t.Errorf("Events = %d, want 3", result.Events)
	}
}

func TestSyncForUser_HistoryPermissionDenied(t *testing.T) {
	denied := &apiFixture{mux: http.NewServeMux()}
	denied.mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"u1"}`)
	})
	denied.mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	denied.server = httptest.NewServer(denied.mux)
	defer denied.server.Close()

	svc := newService(denied, newMemStore())

	_, err := svc.SyncForUser(context.Background(), "u1")
	if !errors.Is(err, ErrPermissionsMissing) {
		t.Errorf("error = %v, want ErrPermissionsMissing", err)
	}
}

func TestSyncForUser_TokenFailureFatal(t *testing.T) {
	f := newAPIFixture(t)
	api := spotify.NewClient(spotify.WithBaseURL(f.server.URL))
	tokenErr := errors.New("no token")
	svc := New(api, &fakeTokens{err: tokenErr}, newMemStore(), logging.Discard())

	_, err := svc.SyncForUser(context.Background(), "u1")
	if !errors.Is(err, tokenErr) {
		t.Errorf("error = %v, want wrapped token error", err)
	}
}

func TestSyncForUser_ProductRefreshFailureNotFatal(t *testing.T) {
	flaky := &apiFixture{mux: http.NewServeMux()}
	flaky.mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	flaky.mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, recentlyPlayedJSON)
	})
	flaky.mux.HandleFunc("/audio-features", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"audio_features":[]}`)
	})
	flaky.mux.HandleFunc("/artists", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"artists":[]}`)
	})
	flaky.server = httptest.NewServer(flaky.mux)
	defer flaky.server.Close()

	store := newMemStore()
	svc := newService(flaky, store)

	result, err := svc.SyncForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("SyncForUser() error = %v", err)
	}
	if result.Events != 3 {
		t.Errorf("Events = %d, want 3", result.Events)
	}
	if _, ok := store.product["u1"]; ok {
		t.Error("product flag stored despite failed profile fetch")
	}
}

func TestSyncForUser_DurationDerivedFromGaps(t *testing.T) {
	f := newAPIFixture(t)
	store := newMemStore()
	svc := newService(f, store)

	if _, err := svc.SyncForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("SyncForUser() error = %v", err)
	}

	// Newest event: 3 minute gap to the next, nominal 5 minutes → 3 minutes.
	newest := store.events["u1|2026-03-01T12:06:00Z"]
	if newest.DurationMs == nil || *newest.DurationMs != 180000 {
		t.Errorf("newest DurationMs = %v, want 180000", newest.DurationMs)
	}
	// Oldest event has no next reference → nominal duration.
	oldest := store.events["u1|2026-03-01T12:00:00Z"]
	if oldest.DurationMs == nil || *oldest.DurationMs != 300000 {
		t.Errorf("oldest DurationMs = %v, want 300000", oldest.DurationMs)
	}
}
