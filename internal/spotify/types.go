package spotify

// Image is an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist is a full or simplified artist object.
type Artist struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Album is a simplified album object.
type Album struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	AlbumType            string  `json:"album_type"`
	AlbumGroup           string  `json:"album_group"`
	ReleaseDate          string  `json:"release_date"`
	ReleaseDatePrecision string  `json:"release_date_precision"`
	TotalTracks          int     `json:"total_tracks"`
	Images               []Image `json:"images"`
	Artists              []Artist `json:"artists"`
}

// Track is a full track object.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMs int      `json:"duration_ms"`
	Explicit   bool     `json:"explicit"`
	Popularity int      `json:"popularity"`
	URI        string   `json:"uri"`
}

// PlayContext describes where a play originated (playlist, album, ...).
type PlayContext struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// PlayHistoryItem is one entry of the recently-played feed.
type PlayHistoryItem struct {
	Track    Track        `json:"track"`
	PlayedAt string       `json:"played_at"`
	Context  *PlayContext `json:"context"`
}

// RecentlyPlayedPage is the recently-played response.
type RecentlyPlayedPage struct {
	Items []PlayHistoryItem `json:"items"`
	Next  string            `json:"next"`
}

// AudioFeatures holds the numeric descriptors for one track.
type AudioFeatures struct {
	ID               string   `json:"id"`
	Danceability     *float64 `json:"danceability"`
	Energy           *float64 `json:"energy"`
	Valence          *float64 `json:"valence"`
	Tempo            *float64 `json:"tempo"`
	Acousticness     *float64 `json:"acousticness"`
	Instrumentalness *float64 `json:"instrumentalness"`
	Liveness         *float64 `json:"liveness"`
	Speechiness      *float64 `json:"speechiness"`
}

// User is the current user's profile.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Product     string `json:"product"`
}

// SavedTrack is a library entry with its save timestamp.
type SavedTrack struct {
	AddedAt string `json:"added_at"`
	Track   Track  `json:"track"`
}

// SavedTracksPage is a page of the user's saved tracks.
type SavedTracksPage struct {
	Items  []SavedTrack `json:"items"`
	Total  int          `json:"total"`
	Next   string       `json:"next"`
	Offset int          `json:"offset"`
}

// PlaylistOwner identifies a playlist's owner.
type PlaylistOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SimplePlaylist is a playlist as returned in list responses.
type SimplePlaylist struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Owner         PlaylistOwner `json:"owner"`
	Public        bool          `json:"public"`
	Collaborative bool          `json:"collaborative"`
	Tracks        struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// PlaylistsPage is a page of the user's playlists.
type PlaylistsPage struct {
	Items []SimplePlaylist `json:"items"`
	Total int              `json:"total"`
	Next  string           `json:"next"`
}

// PlaylistItem is one track-add record inside a playlist.
type PlaylistItem struct {
	AddedAt string `json:"added_at"`
	AddedBy struct {
		ID string `json:"id"`
	} `json:"added_by"`
	Track *Track `json:"track"`
}

// PlaylistItemsPage is a page of a playlist's track-add records.
type PlaylistItemsPage struct {
	Items []PlaylistItem `json:"items"`
	Total int            `json:"total"`
	Next  string         `json:"next"`
}

// TopTracksPage holds top tracks for one time range, in rank order.
type TopTracksPage struct {
	Items []Track `json:"items"`
}

// TopArtistsPage holds top artists for one time range, in rank order.
type TopArtistsPage struct {
	Items []Artist `json:"items"`
}

// FollowedArtistsPage is the cursor-paginated followed-artists response.
type FollowedArtistsPage struct {
	Artists struct {
		Items   []Artist `json:"items"`
		Total   int      `json:"total"`
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	} `json:"artists"`
}

// AlbumsPage is a page of an artist's albums.
type AlbumsPage struct {
	Items []Album `json:"items"`
}

// AlbumTracksPage is a page of an album's tracks.
type AlbumTracksPage struct {
	Items []Track `json:"items"`
}

// Device is a playback device.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	VolumePercent int    `json:"volume_percent"`
}

// DevicesResponse lists the user's available devices.
type DevicesResponse struct {
	Devices []Device `json:"devices"`
}

// PlaybackState is the current-playback response. Actions.Disallows carries
// the operations the current context forbids.
type PlaybackState struct {
	IsPlaying    bool         `json:"is_playing"`
	ProgressMs   int          `json:"progress_ms"`
	ShuffleState bool         `json:"shuffle_state"`
	RepeatState  string       `json:"repeat_state"`
	Device       *Device      `json:"device"`
	Item         *Track       `json:"item"`
	Context      *PlayContext `json:"context"`
	Actions      struct {
		Disallows map[string]bool `json:"disallows"`
	} `json:"actions"`
}

// QueueResponse is the player queue.
type QueueResponse struct {
	CurrentlyPlaying *Track  `json:"currently_playing"`
	Queue            []Track `json:"queue"`
}
