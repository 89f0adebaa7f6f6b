package insights

import (
	"context"
	"fmt"
	"time"
)

const (
	libraryPageSize = 50
	libraryCap      = 1000
	trailingMonths  = 12
)

// MonthCount buckets saved-track additions by calendar month
// ("2026-03" style keys), oldest first.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// LibraryData is the saved-library section payload. ListenedShare is the
// fraction of saved tracks that appear in the user's listening history.
type LibraryData struct {
	TotalSaved    int          `json:"totalSaved"`
	Scanned       int          `json:"scanned"`
	UnplayedCount int          `json:"unplayedCount"`
	ListenedShare float64      `json:"listenedShare"`
	AddedByMonth  []MonthCount `json:"addedByMonth"`
}

// fetchLibrary paginates the saved-tracks collection (capped) and
// cross-references it against previously listened track ids.
func (s *Service) fetchLibrary(ctx context.Context, token, userID string) (*LibraryData, error) {
	listened, err := s.store.ListenedTrackIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading listened track ids: %w", err)
	}

	months, index := monthBuckets(s.now())
	data := &LibraryData{AddedByMonth: months}
	listenedCount := 0

	offset := 0
	for offset < libraryCap {
		page, err := s.api.SavedTracks(ctx, token, libraryPageSize, offset)
		if err != nil {
			return nil, err
		}

		data.TotalSaved = page.Total
		for _, saved := range page.Items {
			data.Scanned++
			if _, ok := listened[saved.Track.ID]; ok {
				listenedCount++
			} else {
				data.UnplayedCount++
			}
			if addedAt, err := time.Parse(time.RFC3339, saved.AddedAt); err == nil {
				key := addedAt.UTC().Format("2006-01")
				if idx, ok := index[key]; ok {
					data.AddedByMonth[idx].Count++
				}
			}
		}

		if page.Next == "" || len(page.Items) == 0 {
			break
		}
		offset += libraryPageSize
	}

	if data.Scanned > 0 {
		data.ListenedShare = float64(listenedCount) / float64(data.Scanned)
	}
	return data, nil
}

// monthBuckets pre-fills the trailing 12 calendar months, oldest first,
// and returns an index from month key to slice position.
func monthBuckets(now time.Time) ([]MonthCount, map[string]int) {
	months := make([]MonthCount, 0, trailingMonths)
	index := make(map[string]int, trailingMonths)

	start := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := trailingMonths - 1; i >= 0; i-- {
		key := start.AddDate(0, -i, 0).Format("2006-01")
		index[key] = len(months)
		months = append(months, MonthCount{Month: key})
	}
	return months, index
}
