package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Batch size limits imposed by the Web API.
const (
	MaxAudioFeaturesPerRequest = 100
	MaxArtistsPerRequest       = 50
	MaxRecentlyPlayed          = 50
)

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.FetchJSON(ctx, "/me", token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RecentlyPlayed fetches up to limit recent play events, newest first.
func (c *Client) RecentlyPlayed(ctx context.Context, token string, limit int) (*RecentlyPlayedPage, error) {
	if limit <= 0 || limit > MaxRecentlyPlayed {
		limit = MaxRecentlyPlayed
	}
	var page RecentlyPlayedPage
	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", limit)
	if err := c.FetchJSON(ctx, endpoint, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AudioFeaturesBatch fetches audio features for up to 100 track ids. The
// response preserves input order; ids without features yield nil entries.
func (c *Client) AudioFeaturesBatch(ctx context.Context, token string, ids []string) ([]*AudioFeatures, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxAudioFeaturesPerRequest {
		return nil, fmt.Errorf("audio features batch too large: %d ids", len(ids))
	}
	var resp struct {
		AudioFeatures []*AudioFeatures `json:"audio_features"`
	}
	endpoint := "/audio-features?ids=" + url.QueryEscape(strings.Join(ids, ","))
	if err := c.FetchJSON(ctx, endpoint, token, &resp); err != nil {
		return nil, err
	}
	return resp.AudioFeatures, nil
}

// AudioFeaturesForTrack fetches audio features for a single track id.
func (c *Client) AudioFeaturesForTrack(ctx context.Context, token, id string) (*AudioFeatures, error) {
	var features AudioFeatures
	if err := c.FetchJSON(ctx, "/audio-features/"+id, token, &features); err != nil {
		return nil, err
	}
	return &features, nil
}

// ArtistsBatch fetches full artist objects for up to 50 artist ids.
func (c *Client) ArtistsBatch(ctx context.Context, token string, ids []string) ([]*Artist, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxArtistsPerRequest {
		return nil, fmt.Errorf("artists batch too large: %d ids", len(ids))
	}
	var resp struct {
		Artists []*Artist `json:"artists"`
	}
	endpoint := "/artists?ids=" + url.QueryEscape(strings.Join(ids, ","))
	if err := c.FetchJSON(ctx, endpoint, token, &resp); err != nil {
		return nil, err
	}
	return resp.Artists, nil
}

// TopTracks fetches the user's top tracks for a time range
// ("short_term", "medium_term", "long_term"), in rank order.
func (c *Client) TopTracks(ctx context.Context, token, timeRange string, limit int) (*TopTracksPage, error) {
	var page TopTracksPage
	endpoint := fmt.Sprintf("/me/top/tracks?time_range=%s&limit=%d", timeRange, limit)
	if err := c.FetchJSON(ctx, endpoint, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// TopArtists fetches the user's top artists for a time range, in rank order.
func (c *Client) TopArtists(ctx context.Context, token, timeRange string, limit int) (*TopArtistsPage, error) {
	var page TopArtistsPage
	endpoint := fmt.Sprintf("/me/top/artists?time_range=%s&limit=%d", timeRange, limit)
	if err := c.FetchJSON(ctx, endpoint, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SavedTracks fetches one page of the user's saved tracks.
func (c *Client) SavedTracks(ctx context.Context, token string, limit, offset int) (*SavedTracksPage, error) {
	var page SavedTracksPage
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)
	if err := c.FetchJSON(ctx, endpoint, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Playlists fetches one page of the user's owned and followed playlists.
func (c *Client) Playlists(ctx context.Context, token string, limit, offset int) (*PlaylistsPage, error) {
	var page PlaylistsPage
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)
	if err := c.FetchJSON(ctx, endpoint, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PlaylistItems fetches one page of a playlist's track-add records.
func (c *Client) PlaylistItems(ctx context.Context, token, playlistID string, limit, offset int) (*PlaylistItemsPage, error) {
	var page PlaylistItemsPage
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, limit, offset)
	if err := c.FetchJSON(ctx, endpoint, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FollowedArtists fetches up to limit artists the user follows.
func (c *Client) FollowedArtists(ctx context.Context, token string, limit int) (*FollowedArtistsPage, error) {
	var page FollowedArtistsPage
	endpoint := fmt.Sprintf("/me/following?type=artist&limit=%d", limit)
	if err := c.FetchJSON(ctx, endpoint, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ArtistAlbums fetches an artist's recent albums and singles.
func (c *Client) ArtistAlbums(ctx context.Context, token, artistID string, limit int) (*AlbumsPage, error) {
	var page AlbumsPage
	endpoint := fmt.Sprintf("/artists/%s/albums?include_groups=album,single&limit=%d", artistID, limit)
	if err := c.FetchJSON(ctx, endpoint, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AlbumTracks fetches one page of an album's tracks.
func (c *Client) AlbumTracks(ctx context.Context, token, albumID string, limit int) (*AlbumTracksPage, error) {
	var page AlbumTracksPage
	endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d", albumID, limit)
	if err := c.FetchJSON(ctx, endpoint, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CurrentPlayback fetches the current playback state. Returns nil (no
// error) when nothing is playing: the API answers 204, and some clients
// 404, for an idle player.
func (c *Client) CurrentPlayback(ctx context.Context, token string) (*PlaybackState, error) {
	var state PlaybackState
	err := c.FetchJSON(ctx, "/me/player", token, &state)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if state.Device == nil && state.Item == nil {
		// 204 leaves the struct zero-valued
		return nil, nil
	}
	return &state, nil
}

// Devices fetches the user's available playback devices.
func (c *Client) Devices(ctx context.Context, token string) ([]Device, error) {
	var resp DevicesResponse
	if err := c.FetchJSON(ctx, "/me/player/devices", token, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// Queue fetches the player queue. An idle player yields an empty queue.
func (c *Client) Queue(ctx context.Context, token string) (*QueueResponse, error) {
	var resp QueueResponse
	err := c.FetchJSON(ctx, "/me/player/queue", token, &resp)
	if IsNotFound(err) {
		return &QueueResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
