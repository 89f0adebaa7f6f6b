package db

import "time"

// User represents a Spotify user profile.
type User struct {
	ID          string
	DisplayName string
	Email       string
	Product     *string // nullable subscription tier ("premium", "free")
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastSyncAt  *time.Time // nullable
}

// Session represents an authenticated web session.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Token holds a user's OAuth tokens.
type Token struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	UpdatedAt    time.Time
}

// Track is a catalog track. Nullable fields merge on conflict: a new null
// never overwrites a stored value.
type Track struct {
	ID                   string
	Name                 string
	Artists              string // concatenated artist names
	AlbumName            *string
	AlbumImageURL        *string
	AlbumType            *string
	ReleaseDate          *string
	ReleaseDatePrecision *string
	DurationMs           *int
	Explicit             bool
	CreatedAt            time.Time
}

// Artist is a catalog artist. The image URL is filled best-effort.
type Artist struct {
	ID        string
	Name      string
	ImageURL  *string
	CreatedAt time.Time
}

// TrackArtist is an ordered artist credit on a track.
type TrackArtist struct {
	TrackID  string
	ArtistID string
	Position int
}

// AudioFeatures holds one track's numeric descriptors, each independently
// nullable.
type AudioFeatures struct {
	TrackID          string
	Danceability     *float64
	Energy           *float64
	Valence          *float64
	Tempo            *float64
	Acousticness     *float64
	Instrumentalness *float64
	Liveness         *float64
	Speechiness      *float64
}

// ListeningEvent is one play, keyed by (user_id, played_at).
type ListeningEvent struct {
	UserID      string
	TrackID     string
	PlayedAt    time.Time
	DurationMs  *int
	ContextType *string
	ContextURI  *string
}

// ContextCount is one slice of a user's playback-context distribution.
type ContextCount struct {
	ContextType string
	Count       int
}
