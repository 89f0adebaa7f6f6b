package insights

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/nratajik/resonate/internal/spotify"
)

// Time ranges supported by the top-items endpoints.
const (
	windowShort  = "short_term"
	windowMedium = "medium_term"
	windowLong   = "long_term"
)

const (
	topItemsLimit    = 20
	biggestMoversCap = 3
)

// TopRankItem is one ranked entry. Ranks are 1-based by source order.
// Delta fields compare the short window against the medium/long windows:
// positive means the item climbed, nil means it is absent from the
// comparison window.
type TopRankItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Subtitle      string `json:"subtitle,omitempty"`
	Image         string `json:"image,omitempty"`
	Rank          int    `json:"rank"`
	DeltaVsMedium *int   `json:"deltaVsMedium"`
	DeltaVsLong   *int   `json:"deltaVsLong"`
}

// RankWindows holds one item kind's rankings across the three windows.
type RankWindows struct {
	Short  []TopRankItem `json:"short"`
	Medium []TopRankItem `json:"medium"`
	Long   []TopRankItem `json:"long"`
}

// TopRanksData is the top-ranked-items section payload.
type TopRanksData struct {
	Tracks        RankWindows   `json:"tracks"`
	Artists       RankWindows   `json:"artists"`
	BiggestMovers []TopRankItem `json:"biggestMovers"`
}

// fetchTopRanks fetches top tracks and artists across all three windows in
// parallel, then computes rank deltas for the short window.
func (s *Service) fetchTopRanks(ctx context.Context, token string) (*TopRanksData, error) {
	windows := []string{windowShort, windowMedium, windowLong}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tracks  = make(map[string][]TopRankItem, len(windows))
		artists = make(map[string][]TopRankItem, len(windows))
		errs    []error
	)

	for _, window := range windows {
		wg.Add(2)
		go func(window string) {
			defer wg.Done()
			page, err := s.api.TopTracks(ctx, token, window, topItemsLimit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			tracks[window] = rankTracks(page.Items)
		}(window)
		go func(window string) {
			defer wg.Done()
			page, err := s.api.TopArtists(ctx, token, window, topItemsLimit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			artists[window] = rankArtists(page.Items)
		}(window)
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, errs[0]
	}

	data := &TopRanksData{
		Tracks: RankWindows{
			Short:  tracks[windowShort],
			Medium: tracks[windowMedium],
			Long:   tracks[windowLong],
		},
		Artists: RankWindows{
			Short:  artists[windowShort],
			Medium: artists[windowMedium],
			Long:   artists[windowLong],
		},
	}

	applyDeltas(data.Tracks.Short, data.Tracks.Medium, data.Tracks.Long)
	applyDeltas(data.Artists.Short, data.Artists.Medium, data.Artists.Long)
	data.BiggestMovers = biggestMovers(data.Tracks.Short, data.Artists.Short)

	return data, nil
}

func rankTracks(items []spotify.Track) []TopRankItem {
	ranked := make([]TopRankItem, len(items))
	for i, t := range items {
		names := make([]string, len(t.Artists))
		for j, a := range t.Artists {
			names[j] = a.Name
		}
		var image string
		if len(t.Album.Images) > 0 {
			image = t.Album.Images[0].URL
		}
		ranked[i] = TopRankItem{
			ID:       t.ID,
			Name:     t.Name,
			Subtitle: strings.Join(names, ", "),
			Image:    image,
			Rank:     i + 1,
		}
	}
	return ranked
}

func rankArtists(items []spotify.Artist) []TopRankItem {
	ranked := make([]TopRankItem, len(items))
	for i, a := range items {
		var image string
		if len(a.Images) > 0 {
			image = a.Images[0].URL
		}
		ranked[i] = TopRankItem{
			ID:    a.ID,
			Name:  a.Name,
			Image: image,
			Rank:  i + 1,
		}
	}
	return ranked
}

// applyDeltas fills DeltaVsMedium/DeltaVsLong on the short-window items.
// Delta = rank in the comparison window minus rank in the short window, so
// positive means the item is rising.
func applyDeltas(short, medium, long []TopRankItem) {
	mediumRanks := ranksByID(medium)
	longRanks := ranksByID(long)

	for i := range short {
		if rank, ok := mediumRanks[short[i].ID]; ok {
			delta := rank - short[i].Rank
			short[i].DeltaVsMedium = &delta
		}
		if rank, ok := longRanks[short[i].ID]; ok {
			delta := rank - short[i].Rank
			short[i].DeltaVsLong = &delta
		}
	}
}

func ranksByID(items []TopRankItem) map[string]int {
	ranks := make(map[string]int, len(items))
	for _, item := range items {
		ranks[item.ID] = item.Rank
	}
	return ranks
}

// biggestMovers returns the short-window items with the largest positive
// medium-window climb, at most biggestMoversCap of them. Items absent from
// the medium window don't qualify.
func biggestMovers(lists ...[]TopRankItem) []TopRankItem {
	var movers []TopRankItem
	for _, list := range lists {
		for _, item := range list {
			if item.DeltaVsMedium != nil {
				movers = append(movers, item)
			}
		}
	}
	sort.SliceStable(movers, func(i, j int) bool {
		return *movers[i].DeltaVsMedium > *movers[j].DeltaVsMedium
	})
	if len(movers) > biggestMoversCap {
		movers = movers[:biggestMoversCap]
	}
	return movers
}
