// Package location abstracts the external venue-availability service.
package location

import (
	"context"
	"time"
)

type Service interface {
	IsAvailable(ctx context.Context, locationID string, start, end time.Time) (bool, error)
}

// StaticService answers availability from a fixed set of known venues and
// their blackout windows. Venues it has never heard of are available.
type StaticService struct {
	blackouts map[string][]Window
}

type Window struct {
	Start time.Time
	End   time.Time
}

func NewStaticService(blackouts map[string][]Window) *StaticService {
	if blackouts == nil {
		blackouts = make(map[string][]Window)
	}
	return &StaticService{blackouts: blackouts}
}

func (s *StaticService) IsAvailable(ctx context.Context, locationID string, start, end time.Time) (bool, error) {
	for _, w := range s.blackouts[locationID] {
		if start.Before(w.End) && end.After(w.Start) {
			return false, nil
		}
	}
	return true, nil
}
