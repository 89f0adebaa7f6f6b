package insights

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	playlistPageSize  = 50
	playlistCap       = 200
	playlistDetailCap = 6
	playlistItemCap   = 300
	recentAddWindow   = 30 * 24 * time.Hour
)

// PlaylistActivity summarizes recent activity on one playlist.
type PlaylistActivity struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	TrackCount     int        `json:"trackCount"`
	AddsLast30Days int        `json:"addsLast30Days"`
	Contributors   int        `json:"contributors"`
	LastAddAt      *time.Time `json:"lastAddAt,omitempty"`
}

// PlaylistsData is the playlist-intelligence section payload.
type PlaylistsData struct {
	Total         int                `json:"total"`
	Scanned       int                `json:"scanned"`
	Owned         int                `json:"owned"`
	Collaborative int                `json:"collaborative"`
	Public        int                `json:"public"`
	Largest       []PlaylistActivity `json:"largest"`
}

// fetchPlaylists scans the user's playlists (capped), then drills into the
// largest few for recent-activity detail. Detail fetches run in parallel and
// fail the section together: partial playlist intelligence is misleading.
func (s *Service) fetchPlaylists(ctx context.Context, token, userID string) (*PlaylistsData, error) {
	data := &PlaylistsData{}
	var all []SimplePlaylistRef

	offset := 0
	for offset < playlistCap {
		page, err := s.api.Playlists(ctx, token, playlistPageSize, offset)
		if err != nil {
			return nil, err
		}

		data.Total = page.Total
		for _, p := range page.Items {
			data.Scanned++
			if p.Owner.ID == userID {
				data.Owned++
			}
			if p.Collaborative {
				data.Collaborative++
			}
			if p.Public {
				data.Public++
			}
			all = append(all, SimplePlaylistRef{ID: p.ID, Name: p.Name, TrackCount: p.Tracks.Total})
		}

		if page.Next == "" || len(page.Items) == 0 {
			break
		}
		offset += playlistPageSize
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].TrackCount > all[j].TrackCount })
	if len(all) > playlistDetailCap {
		all = all[:playlistDetailCap]
	}

	cutoff := s.now().Add(-recentAddWindow)
	activities := make([]PlaylistActivity, len(all))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i, ref := range all {
		wg.Add(1)
		go func(i int, ref SimplePlaylistRef) {
			defer wg.Done()
			activity, err := s.playlistActivity(ctx, token, ref, cutoff)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			activities[i] = activity
		}(i, ref)
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, errs[0]
	}

	data.Largest = activities
	return data, nil
}

// SimplePlaylistRef is the slim playlist handle carried between the list
// scan and the detail fetch.
type SimplePlaylistRef struct {
	ID         string
	Name       string
	TrackCount int
}

func (s *Service) playlistActivity(ctx context.Context, token string, ref SimplePlaylistRef, cutoff time.Time) (PlaylistActivity, error) {
	activity := PlaylistActivity{ID: ref.ID, Name: ref.Name, TrackCount: ref.TrackCount}
	contributors := make(map[string]struct{})

	offset := 0
	for offset < playlistItemCap {
		page, err := s.api.PlaylistItems(ctx, token, ref.ID, playlistPageSize, offset)
		if err != nil {
			return PlaylistActivity{}, err
		}

		for _, item := range page.Items {
			if item.AddedBy.ID != "" {
				contributors[item.AddedBy.ID] = struct{}{}
			}
			addedAt, err := time.Parse(time.RFC3339, item.AddedAt)
			if err != nil {
				continue
			}
			if addedAt.After(cutoff) {
				activity.AddsLast30Days++
			}
			if activity.LastAddAt == nil || addedAt.After(*activity.LastAddAt) {
				at := addedAt
				activity.LastAddAt = &at
			}
		}

		if page.Next == "" || len(page.Items) == 0 {
			break
		}
		offset += playlistPageSize
	}

	activity.Contributors = len(contributors)
	return activity, nil
}
