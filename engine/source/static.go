package source

import (
	"context"
	"sync"

	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/interval"
)

// StaticSource serves events from memory. It backs demo mode and tests,
// and doubles as the hand-off point for the external sync collaborator:
// sync pushes normalized events in, the engine reads them back out.
type StaticSource struct {
	provider calendar.Provider

	mu     sync.RWMutex
	events map[string][]*calendar.Event // accountID -> events
}

// NewStaticSource returns an empty in-memory source for the provider.
func NewStaticSource(provider calendar.Provider) *StaticSource {
	return &StaticSource{
		provider: provider,
		events:   make(map[string][]*calendar.Event),
	}
}

func (s *StaticSource) Provider() calendar.Provider {
	return s.provider
}

// SetEvents replaces the event list for an account.
func (s *StaticSource) SetEvents(accountID string, events []*calendar.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[accountID] = events
}

// FetchEvents returns the stored events overlapping the window.
func (s *StaticSource) FetchEvents(_ context.Context, accountID string, window interval.Interval) ([]*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*calendar.Event
	for _, ev := range s.events[accountID] {
		iv, err := interval.New(ev.Start, ev.End)
		if err != nil {
			continue
		}
		if iv.Overlaps(window) {
			out = append(out, ev)
		}
	}
	return out, nil
}
