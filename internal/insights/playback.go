package insights

import (
	"context"
	"sync"

	"github.com/nratajik/resonate/internal/spotify"
)

// NowPlaying describes the active track, if any.
type NowPlaying struct {
	TrackID    string `json:"trackId"`
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName"`
	ProgressMs int    `json:"progressMs"`
	IsPlaying  bool   `json:"isPlaying"`
}

// PlaybackDevice is one available playback target.
type PlaybackDevice struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"isActive"`
	VolumePercent int    `json:"volumePercent"`
}

// PlaybackHealthData is the playback-health section payload. Capability
// flags are the negation of the player's disallow set; with an idle player
// they are all false.
type PlaybackHealthData struct {
	Active      bool             `json:"active"`
	NowPlaying  *NowPlaying      `json:"nowPlaying,omitempty"`
	Devices     []PlaybackDevice `json:"devices"`
	QueueLength int              `json:"queueLength"`
	CanSkip     bool             `json:"canSkip"`
	CanSeek     bool             `json:"canSeek"`
	CanShuffle  bool             `json:"canShuffle"`
	CanRepeat   bool             `json:"canRepeat"`
}

// fetchPlaybackHealth polls the player state, device list, and queue in
// parallel. An idle player is a valid empty result, not a failure.
func (s *Service) fetchPlaybackHealth(ctx context.Context, token string) (*PlaybackHealthData, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		state    *spotify.PlaybackState
		devices  []spotify.Device
		queueLen int
		errs     []error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		got, err := s.api.CurrentPlayback(ctx, token)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		state = got
	}()
	go func() {
		defer wg.Done()
		got, err := s.api.Devices(ctx, token)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		devices = got
	}()
	go func() {
		defer wg.Done()
		got, err := s.api.Queue(ctx, token)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		queueLen = len(got.Queue)
	}()
	wg.Wait()

	if len(errs) > 0 {
		return nil, errs[0]
	}

	data := &PlaybackHealthData{QueueLength: queueLen}
	for _, d := range devices {
		data.Devices = append(data.Devices, PlaybackDevice{
			ID:            d.ID,
			Name:          d.Name,
			Type:          d.Type,
			IsActive:      d.IsActive,
			VolumePercent: d.VolumePercent,
		})
	}

	if state == nil {
		return data, nil
	}

	data.Active = true
	disallows := state.Actions.Disallows
	data.CanSkip = !disallows["skipping_next"]
	data.CanSeek = !disallows["seeking"]
	data.CanShuffle = !disallows["toggling_shuffle"]
	data.CanRepeat = !disallows["toggling_repeat_context"]

	if state.Item != nil {
		var artistName string
		if len(state.Item.Artists) > 0 {
			artistName = state.Item.Artists[0].Name
		}
		data.NowPlaying = &NowPlaying{
			TrackID:    state.Item.ID,
			TrackName:  state.Item.Name,
			ArtistName: artistName,
			ProgressMs: state.ProgressMs,
			IsPlaying:  state.IsPlaying,
		}
	}

	return data, nil
}
