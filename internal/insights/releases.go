package insights

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nratajik/resonate/internal/spotify"
)

const (
	followedArtistsCap = 24
	albumsPerArtist    = 5
	releaseRadarSize   = 12
)

// Release is one recent release from a followed artist. PrimaryTrackID is
// filled for singles when the album's track listing could be fetched.
type Release struct {
	AlbumID        string    `json:"albumId"`
	Name           string    `json:"name"`
	ArtistName     string    `json:"artistName"`
	AlbumType      string    `json:"albumType"`
	ReleaseDate    string    `json:"releaseDate"`
	ReleasedAt     time.Time `json:"releasedAt"`
	TotalTracks    int       `json:"totalTracks"`
	Image          string    `json:"image,omitempty"`
	PrimaryTrackID string    `json:"primaryTrackId,omitempty"`
}

// ReleaseRadarData is the release-radar section payload.
type ReleaseRadarData struct {
	FollowedArtists int       `json:"followedArtists"`
	Scanned         int       `json:"scanned"`
	Releases        []Release `json:"releases"`
}

// fetchReleaseRadar collects recent releases from followed artists (a
// bounded subset), dedupes albums shared by collaborators, and keeps the
// newest few. Primary-track lookups for singles are best effort.
func (s *Service) fetchReleaseRadar(ctx context.Context, token string) (*ReleaseRadarData, error) {
	followed, err := s.api.FollowedArtists(ctx, token, followedArtistsCap)
	if err != nil {
		return nil, err
	}

	artists := followed.Artists.Items
	data := &ReleaseRadarData{
		FollowedArtists: followed.Artists.Total,
		Scanned:         len(artists),
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		seen   = make(map[string]struct{})
		albums []Release
		errs   []error
	)
	for _, artist := range artists {
		wg.Add(1)
		go func(artist spotify.Artist) {
			defer wg.Done()
			page, err := s.api.ArtistAlbums(ctx, token, artist.ID, albumsPerArtist)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			for _, album := range page.Items {
				if _, dup := seen[album.ID]; dup {
					continue
				}
				seen[album.ID] = struct{}{}
				releasedAt, ok := parseReleaseDate(album.ReleaseDate, album.ReleaseDatePrecision)
				if !ok {
					continue
				}
				var image string
				if len(album.Images) > 0 {
					image = album.Images[0].URL
				}
				albums = append(albums, Release{
					AlbumID:     album.ID,
					Name:        album.Name,
					ArtistName:  artist.Name,
					AlbumType:   album.AlbumType,
					ReleaseDate: album.ReleaseDate,
					ReleasedAt:  releasedAt,
					TotalTracks: album.TotalTracks,
					Image:       image,
				})
			}
		}(artist)
	}
	wg.Wait()

	if len(errs) > 0 && len(albums) == 0 {
		return nil, errs[0]
	}

	sort.SliceStable(albums, func(i, j int) bool {
		return albums[i].ReleasedAt.After(albums[j].ReleasedAt)
	})
	if len(albums) > releaseRadarSize {
		albums = albums[:releaseRadarSize]
	}

	for i := range albums {
		if albums[i].AlbumType != "single" {
			continue
		}
		tracks, err := s.api.AlbumTracks(ctx, token, albums[i].AlbumID, 1)
		if err != nil {
			s.logger.Warn("primary track lookup failed", "album", albums[i].AlbumID, "err", err)
			continue
		}
		if len(tracks.Items) > 0 {
			albums[i].PrimaryTrackID = tracks.Items[0].ID
		}
	}

	data.Releases = albums
	return data, nil
}

// parseReleaseDate interprets a release date at its declared precision.
// Month and year precision resolve to the first day of the period.
func parseReleaseDate(date, precision string) (time.Time, bool) {
	var layout string
	switch precision {
	case "day":
		layout = "2006-01-02"
	case "month":
		layout = "2006-01"
	case "year":
		layout = "2006"
	default:
		layout = "2006-01-02"
	}
	t, err := time.Parse(layout, date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
