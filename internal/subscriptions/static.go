package subscriptions

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// StaticProfile is a profile declared in configuration.
type StaticProfile struct {
	Sources         []string           `mapstructure:"sources"`
	CategoryRanking map[string]float64 `mapstructure:"category_ranking"`
}

// Static serves profiles from configuration.
type Static struct {
	profiles map[string]StaticProfile
}

// NewStatic creates a Static store.
func NewStatic(profiles map[string]StaticProfile) *Static {
	return &Static{profiles: maps.Clone(profiles)}
}

// Profile implements Store.
func (s *Static) Profile(_ context.Context, userID string) (Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	ranking := maps.Clone(p.CategoryRanking)
	if ranking == nil {
		ranking = map[string]float64{}
	}
	return Profile{UserID: userID, Sources: slices.Clone(p.Sources), CategoryRanking: ranking}, nil
}
