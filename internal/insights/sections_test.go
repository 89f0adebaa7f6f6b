package insights

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/nratajik/resonate/internal/db"
)

func TestFetchTopRanks_Deltas(t *testing.T) {
	f := newAPIFixture()
	f.start(t)
	svc := newService(f, &fakeHistory{})

	data, err := svc.fetchTopRanks(context.Background(), "tok")
	if err != nil {
		t.Fatalf("fetchTopRanks() error = %v", err)
	}

	if len(data.Tracks.Short) != 2 {
		t.Fatalf("short tracks = %d, want 2", len(data.Tracks.Short))
	}

	// t1 is #1 now, #3 in the medium window: climbed 2 places.
	t1 := data.Tracks.Short[0]
	if t1.ID != "t1" || t1.Rank != 1 {
		t.Fatalf("short #1 = %s rank %d, want t1 rank 1", t1.ID, t1.Rank)
	}
	if t1.DeltaVsMedium == nil || *t1.DeltaVsMedium != 2 {
		t.Errorf("t1 DeltaVsMedium = %v, want 2", t1.DeltaVsMedium)
	}
	if t1.DeltaVsLong == nil || *t1.DeltaVsLong != 0 {
		t.Errorf("t1 DeltaVsLong = %v, want 0", t1.DeltaVsLong)
	}

	// t2 is #2 now, #1 in the medium window: slipped one place.
	t2 := data.Tracks.Short[1]
	if t2.DeltaVsMedium == nil || *t2.DeltaVsMedium != -1 {
		t.Errorf("t2 DeltaVsMedium = %v, want -1", t2.DeltaVsMedium)
	}
	// Absent from the long window.
	if t2.DeltaVsLong != nil {
		t.Errorf("t2 DeltaVsLong = %v, want nil", t2.DeltaVsLong)
	}

	if len(data.BiggestMovers) == 0 || data.BiggestMovers[0].ID != "t1" {
		t.Errorf("biggest mover = %v, want t1 first", data.BiggestMovers)
	}
	for _, m := range data.BiggestMovers {
		if m.DeltaVsMedium == nil {
			t.Errorf("mover %s has nil DeltaVsMedium", m.ID)
		}
	}
}

func TestFetchLibrary(t *testing.T) {
	f := newAPIFixture()
	f.start(t)
	store := &fakeHistory{listened: map[string]struct{}{"t1": {}}}
	svc := newService(f, store)

	data, err := svc.fetchLibrary(context.Background(), "tok", "u1")
	if err != nil {
		t.Fatalf("fetchLibrary() error = %v", err)
	}

	if data.TotalSaved != 3 || data.Scanned != 3 {
		t.Errorf("TotalSaved = %d, Scanned = %d, want 3, 3", data.TotalSaved, data.Scanned)
	}
	if data.UnplayedCount != 2 {
		t.Errorf("UnplayedCount = %d, want 2", data.UnplayedCount)
	}
	if want := 1.0 / 3.0; data.ListenedShare != want {
		t.Errorf("ListenedShare = %v, want %v", data.ListenedShare, want)
	}

	if len(data.AddedByMonth) != trailingMonths {
		t.Fatalf("AddedByMonth buckets = %d, want %d", len(data.AddedByMonth), trailingMonths)
	}
	byMonth := make(map[string]int)
	for _, m := range data.AddedByMonth {
		byMonth[m.Month] = m.Count
	}
	// Two saves fall inside the trailing year, the 2020 one is out of range.
	if byMonth["2026-03"] != 1 || byMonth["2026-02"] != 1 {
		t.Errorf("month counts = %v, want 2026-03:1 2026-02:1", byMonth)
	}
	if byMonth["2025-04"] != 0 {
		t.Errorf("2025-04 count = %d, want 0", byMonth["2025-04"])
	}
}

func TestMonthBuckets(t *testing.T) {
	now := time.Date(2026, time.March, 25, 12, 0, 0, 0, time.UTC)
	months, index := monthBuckets(now)

	if len(months) != trailingMonths {
		t.Fatalf("buckets = %d, want %d", len(months), trailingMonths)
	}
	if months[0].Month != "2025-04" {
		t.Errorf("oldest bucket = %s, want 2025-04", months[0].Month)
	}
	if months[len(months)-1].Month != "2026-03" {
		t.Errorf("newest bucket = %s, want 2026-03", months[len(months)-1].Month)
	}
	if idx, ok := index["2025-12"]; !ok || months[idx].Month != "2025-12" {
		t.Errorf("index lookup for 2025-12 broken: idx=%d ok=%v", idx, ok)
	}
}

func TestFetchPlaylists(t *testing.T) {
	f := newAPIFixture()
	f.start(t)
	svc := newService(f, &fakeHistory{})

	data, err := svc.fetchPlaylists(context.Background(), "tok", "u1")
	if err != nil {
		t.Fatalf("fetchPlaylists() error = %v", err)
	}

	if data.Total != 2 || data.Scanned != 2 {
		t.Errorf("Total = %d, Scanned = %d, want 2, 2", data.Total, data.Scanned)
	}
	if data.Owned != 1 || data.Collaborative != 1 || data.Public != 1 {
		t.Errorf("owned/collab/public = %d/%d/%d, want 1/1/1",
			data.Owned, data.Collaborative, data.Public)
	}

	if len(data.Largest) != 2 {
		t.Fatalf("Largest = %d playlists, want 2", len(data.Largest))
	}
	// Sorted by track count, largest first.
	big := data.Largest[0]
	if big.ID != "p1" || big.TrackCount != 40 {
		t.Fatalf("largest = %s (%d tracks), want p1 (40)", big.ID, big.TrackCount)
	}
	// One add inside the 30-day window (2026-03-20 vs now 2026-03-25).
	if big.AddsLast30Days != 1 {
		t.Errorf("AddsLast30Days = %d, want 1", big.AddsLast30Days)
	}
	if big.Contributors != 2 {
		t.Errorf("Contributors = %d, want 2", big.Contributors)
	}
	wantLast := time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC)
	if big.LastAddAt == nil || !big.LastAddAt.Equal(wantLast) {
		t.Errorf("LastAddAt = %v, want %v", big.LastAddAt, wantLast)
	}
}

func TestFetchReleaseRadar(t *testing.T) {
	f := newAPIFixture()
	f.start(t)
	svc := newService(f, &fakeHistory{})

	data, err := svc.fetchReleaseRadar(context.Background(), "tok")
	if err != nil {
		t.Fatalf("fetchReleaseRadar() error = %v", err)
	}

	if data.FollowedArtists != 1 || data.Scanned != 1 {
		t.Errorf("followed/scanned = %d/%d, want 1/1", data.FollowedArtists, data.Scanned)
	}
	if len(data.Releases) != 2 {
		t.Fatalf("releases = %d, want 2", len(data.Releases))
	}

	// Newest first: the day-precision single beats the month-precision LP.
	single := data.Releases[0]
	if single.AlbumID != "al1" {
		t.Fatalf("newest release = %s, want al1", single.AlbumID)
	}
	if single.PrimaryTrackID != "t7" {
		t.Errorf("single primary track = %q, want t7", single.PrimaryTrackID)
	}
	if data.Releases[1].PrimaryTrackID != "" {
		t.Errorf("album primary track = %q, want empty", data.Releases[1].PrimaryTrackID)
	}
}

func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		date      string
		precision string
		want      time.Time
		ok        bool
	}{
		{"2026-03-15", "day", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"2025-11", "month", time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), true},
		{"1994", "year", time.Date(1994, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"not-a-date", "day", time.Time{}, false},
		{"2025-11", "day", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parseReleaseDate(tt.date, tt.precision)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("parseReleaseDate(%q, %q) = %v, %v; want %v, %v",
				tt.date, tt.precision, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFetchPlaybackHealth(t *testing.T) {
	f := newAPIFixture()
	f.start(t)
	svc := newService(f, &fakeHistory{})

	data, err := svc.fetchPlaybackHealth(context.Background(), "tok")
	if err != nil {
		t.Fatalf("fetchPlaybackHealth() error = %v", err)
	}

	if !data.Active {
		t.Fatal("Active = false with a playing device")
	}
	if data.NowPlaying == nil || data.NowPlaying.TrackID != "t1" || !data.NowPlaying.IsPlaying {
		t.Errorf("NowPlaying = %+v, want playing t1", data.NowPlaying)
	}
	if len(data.Devices) != 1 || data.Devices[0].Name != "Desk" {
		t.Errorf("Devices = %+v, want one Desk device", data.Devices)
	}
	if data.QueueLength != 2 {
		t.Errorf("QueueLength = %d, want 2", data.QueueLength)
	}
	// Seeking disallowed, everything else allowed.
	if data.CanSeek {
		t.Error("CanSeek = true despite a seeking disallow")
	}
	if !data.CanSkip || !data.CanShuffle || !data.CanRepeat {
		t.Errorf("capabilities = skip:%v shuffle:%v repeat:%v, want all true",
			data.CanSkip, data.CanShuffle, data.CanRepeat)
	}
}

func TestFetchPlaybackHealth_Idle(t *testing.T) {
	idle := &apiFixture{mux: http.NewServeMux()}
	idle.mux.HandleFunc("/me/player", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	idle.mux.HandleFunc("/me/player/devices", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"devices":[]}`)
	})
	idle.mux.HandleFunc("/me/player/queue", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	idle.start(t)
	svc := newService(idle, &fakeHistory{})

	data, err := svc.fetchPlaybackHealth(context.Background(), "tok")
	if err != nil {
		t.Fatalf("fetchPlaybackHealth() error = %v (idle player is not a failure)", err)
	}

	if data.Active {
		t.Error("Active = true with a 204 player")
	}
	if data.NowPlaying != nil {
		t.Errorf("NowPlaying = %+v, want nil", data.NowPlaying)
	}
	if data.CanSkip || data.CanSeek || data.CanShuffle || data.CanRepeat {
		t.Error("capability flags set without an active player")
	}
}

func TestFetchContextMix_FromHistory(t *testing.T) {
	f := newAPIFixture()
	f.start(t)
	store := &fakeHistory{dist: []db.ContextCount{
		{ContextType: "playlist", Count: 30},
		{ContextType: "album", Count: 10},
	}}
	svc := newService(f, store)

	data, err := svc.fetchContextMix(context.Background(), "tok", "u1")
	if err != nil {
		t.Fatalf("fetchContextMix() error = %v", err)
	}

	if data.Source != "history" {
		t.Errorf("Source = %q, want history", data.Source)
	}
	if data.Total != 40 {
		t.Errorf("Total = %d, want 40", data.Total)
	}
	if data.Mix[0].ContextType != "playlist" || data.Mix[0].Share != 0.75 {
		t.Errorf("top mix = %+v, want playlist at 0.75", data.Mix[0])
	}
}

func TestFetchContextMix_LiveFallback(t *testing.T) {
	f := newAPIFixture()
	f.start(t)
	svc := newService(f, &fakeHistory{}) // no persisted history

	data, err := svc.fetchContextMix(context.Background(), "tok", "u1")
	if err != nil {
		t.Fatalf("fetchContextMix() error = %v", err)
	}

	if data.Source != "live" {
		t.Errorf("Source = %q, want live", data.Source)
	}
	if data.Total != 2 {
		t.Errorf("Total = %d, want 2", data.Total)
	}
	byType := make(map[string]int)
	for _, m := range data.Mix {
		byType[m.ContextType] = m.Count
	}
	if byType["playlist"] != 1 || byType["unknown"] != 1 {
		t.Errorf("mix = %v, want playlist:1 unknown:1", byType)
	}
}
