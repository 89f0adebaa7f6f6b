package insights

import (
	"context"
	"fmt"
	"sort"
)

// ContextShare is one play-context type's share of recent listening.
type ContextShare struct {
	ContextType string  `json:"contextType"`
	Count       int     `json:"count"`
	Share       float64 `json:"share"`
}

// ContextMixData is the context-mix section payload. Source reports where
// the distribution came from: "history" for persisted events, "live" for an
// on-the-fly inference from the recently-played feed.
type ContextMixData struct {
	Source string         `json:"source"`
	Total  int            `json:"total"`
	Mix    []ContextShare `json:"mix"`
}

// fetchContextMix computes the play-context distribution from persisted
// listening events, falling back to the live recently-played feed for users
// with no history yet.
func (s *Service) fetchContextMix(ctx context.Context, token, userID string) (*ContextMixData, error) {
	counts, err := s.store.ContextDistribution(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading context distribution: %w", err)
	}

	data := &ContextMixData{Source: "history"}
	for _, c := range counts {
		data.Total += c.Count
		data.Mix = append(data.Mix, ContextShare{ContextType: c.ContextType, Count: c.Count})
	}

	if data.Total == 0 {
		live, err := s.liveContextMix(ctx, token)
		if err != nil {
			return nil, err
		}
		data = live
	}

	finishShares(data)
	return data, nil
}

func (s *Service) liveContextMix(ctx context.Context, token string) (*ContextMixData, error) {
	page, err := s.api.RecentlyPlayed(ctx, token, 50)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, item := range page.Items {
		contextType := "unknown"
		if item.Context != nil && item.Context.Type != "" {
			contextType = item.Context.Type
		}
		counts[contextType]++
	}

	data := &ContextMixData{Source: "live"}
	for contextType, count := range counts {
		data.Total += count
		data.Mix = append(data.Mix, ContextShare{ContextType: contextType, Count: count})
	}
	return data, nil
}

// finishShares computes per-type shares and orders the mix largest first,
// breaking count ties by name for stable output.
func finishShares(data *ContextMixData) {
	if data.Total > 0 {
		for i := range data.Mix {
			data.Mix[i].Share = float64(data.Mix[i].Count) / float64(data.Total)
		}
	}
	sort.SliceStable(data.Mix, func(i, j int) bool {
		if data.Mix[i].Count != data.Mix[j].Count {
			return data.Mix[i].Count > data.Mix[j].Count
		}
		return data.Mix[i].ContextType < data.Mix[j].ContextType
	})
}
