// Package mapper normalizes raw play-history pages into deduplicated,
// not-yet-persisted drafts. It is pure: no I/O, no clock.
package mapper

import (
	"strings"
	"time"

	"github.com/nratajik/resonate/internal/spotify"
)

// TrackDraft is a normalized track pending persistence. Pointer fields are
// nullable; merging never replaces a non-nil value with nil.
type TrackDraft struct {
	ID                   string
	Name                 string
	Artists              string // artist names joined by ", "
	AlbumName            *string
	AlbumImageURL        *string
	AlbumType            *string
	ReleaseDate          *string
	ReleaseDatePrecision *string
	DurationMs           *int
	Explicit             bool
	Credits              []string // artist ids in credit order
}

// ArtistDraft is a normalized artist pending persistence.
type ArtistDraft struct {
	ID       string
	Name     string
	ImageURL *string
}

// EventDraft is a normalized listening event pending persistence.
type EventDraft struct {
	TrackID     string
	PlayedAt    time.Time
	DurationMs  *int
	ContextType *string
	ContextURI  *string
}

// Payload holds the drafts produced from one history page.
type Payload struct {
	Tracks  []TrackDraft
	Artists []ArtistDraft
	Events  []EventDraft
}

// BuildSyncPayload turns a newest-first page of play events into
// deduplicated drafts.
//
// Play duration is derived from timestamp deltas: when the gap to the next
// (older) event is positive and shorter than the track's nominal length the
// user skipped early and the gap is the observed duration; otherwise the
// nominal length is used. Rows with an unparsable played_at or no track id
// are dropped.
func BuildSyncPayload(items []spotify.PlayHistoryItem) Payload {
	// First pass: keep only well-formed rows, with parsed timestamps.
	valid := make([]spotify.PlayHistoryItem, 0, len(items))
	playedAts := make([]time.Time, 0, len(items))
	for _, item := range items {
		if item.Track.ID == "" {
			continue
		}
		playedAt, err := time.Parse(time.RFC3339, item.PlayedAt)
		if err != nil {
			continue
		}
		valid = append(valid, item)
		playedAts = append(playedAts, playedAt)
	}

	var payload Payload
	trackIndex := make(map[string]int)
	artistIndex := make(map[string]struct{})

	for i, item := range valid {
		draft := trackDraftFrom(item.Track)
		if idx, ok := trackIndex[draft.ID]; ok {
			mergeTrackDraft(&payload.Tracks[idx], draft)
		} else {
			trackIndex[draft.ID] = len(payload.Tracks)
			payload.Tracks = append(payload.Tracks, draft)
		}

		for _, artist := range item.Track.Artists {
			if artist.ID == "" {
				continue
			}
			if _, seen := artistIndex[artist.ID]; seen {
				continue
			}
			artistIndex[artist.ID] = struct{}{}
			payload.Artists = append(payload.Artists, ArtistDraft{
				ID:   artist.ID,
				Name: artist.Name,
			})
		}

		var next *time.Time
		if i+1 < len(playedAts) {
			next = &playedAts[i+1]
		}

		event := EventDraft{
			TrackID:    item.Track.ID,
			PlayedAt:   playedAts[i],
			DurationMs: deriveDuration(playedAts[i], next, item.Track.DurationMs),
		}
		if item.Context != nil {
			if item.Context.Type != "" {
				ctxType := item.Context.Type
				event.ContextType = &ctxType
			}
			if item.Context.URI != "" {
				ctxURI := item.Context.URI
				event.ContextURI = &ctxURI
			}
		}
		payload.Events = append(payload.Events, event)
	}

	return payload
}

// deriveDuration estimates how long an event was actually listened to.
// next is the timestamp of the following (older) event, nil for the oldest
// event of the page.
func deriveDuration(playedAt time.Time, next *time.Time, nominalMs int) *int {
	if next != nil {
		delta := playedAt.Sub(*next)
		deltaMs := int(delta / time.Millisecond)
		if deltaMs > 0 && deltaMs < nominalMs {
			return &deltaMs
		}
	}
	if nominalMs <= 0 {
		return nil
	}
	nominal := nominalMs
	return &nominal
}

// trackDraftFrom builds a draft from one wire track.
func trackDraftFrom(t spotify.Track) TrackDraft {
	names := make([]string, 0, len(t.Artists))
	credits := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
		if a.ID != "" {
			credits = append(credits, a.ID)
		}
	}

	draft := TrackDraft{
		ID:       t.ID,
		Name:     t.Name,
		Artists:  strings.Join(names, ", "),
		Explicit: t.Explicit,
		Credits:  credits,
	}
	if t.DurationMs > 0 {
		d := t.DurationMs
		draft.DurationMs = &d
	}
	if t.Album.Name != "" {
		name := t.Album.Name
		draft.AlbumName = &name
	}
	if len(t.Album.Images) > 0 && t.Album.Images[0].URL != "" {
		img := t.Album.Images[0].URL
		draft.AlbumImageURL = &img
	}
	if t.Album.AlbumType != "" {
		at := t.Album.AlbumType
		draft.AlbumType = &at
	}
	if t.Album.ReleaseDate != "" {
		rd := t.Album.ReleaseDate
		draft.ReleaseDate = &rd
		if t.Album.ReleaseDatePrecision != "" {
			prec := t.Album.ReleaseDatePrecision
			draft.ReleaseDatePrecision = &prec
		}
	}
	return draft
}

// mergeTrackDraft folds incoming into dst field by field, preferring
// non-null/non-empty values already present in dst. Credit order from the
// first populated draft wins.
func mergeTrackDraft(dst *TrackDraft, incoming TrackDraft) {
	if dst.Name == "" {
		dst.Name = incoming.Name
	}
	if dst.Artists == "" {
		dst.Artists = incoming.Artists
	}
	if dst.AlbumName == nil {
		dst.AlbumName = incoming.AlbumName
	}
	if dst.AlbumImageURL == nil {
		dst.AlbumImageURL = incoming.AlbumImageURL
	}
	if dst.AlbumType == nil {
		dst.AlbumType = incoming.AlbumType
	}
	if dst.ReleaseDate == nil {
		dst.ReleaseDate = incoming.ReleaseDate
		dst.ReleaseDatePrecision = incoming.ReleaseDatePrecision
	}
	if dst.DurationMs == nil {
		dst.DurationMs = incoming.DurationMs
	}
	dst.Explicit = dst.Explicit || incoming.Explicit
	if len(dst.Credits) == 0 {
		dst.Credits = incoming.Credits
	}
}
