// Package source abstracts the calendar providers the engine reads busy
// data from. Real provider API clients (Google, Microsoft) live with the
// calendar sync collaborator; this package defines the contract they must
// satisfy, a registry, and the parallel fetch fan-out with retry.
package source

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/interval"
)

// ErrProviderFetch marks a transient provider failure. Callers retry with
// backoff and then degrade rather than fail the whole request.
var ErrProviderFetch = errors.New("provider fetch failed")

// ErrUnknownProvider indicates an account referencing a provider with no
// registered source.
var ErrUnknownProvider = errors.New("unknown calendar provider")

// Account identifies one connected calendar account.
type Account struct {
	ID       string            `json:"id"`
	Provider calendar.Provider `json:"provider"`
}

// Source fetches events for one provider. Implementations must return
// events normalized to UTC with stable ProviderEventIDs, deduplicated by
// (provider, providerEventId).
type Source interface {
	Provider() calendar.Provider
	FetchEvents(ctx context.Context, accountID string, window interval.Interval) ([]*calendar.Event, error)
}

// Registry holds the configured sources keyed by provider.
type Registry struct {
	mu      sync.RWMutex
	sources map[calendar.Provider]Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[calendar.Provider]Source)}
}

// Register adds or replaces the source for its provider.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Provider()] = s
}

// Lookup returns the source for a provider.
func (r *Registry) Lookup(p calendar.Provider) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[p]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProvider, "provider %q", p)
	}
	return s, nil
}

// Providers lists registered providers in stable order.
func (r *Registry) Providers() []calendar.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]calendar.Provider, 0, len(r.sources))
	for p := range r.sources {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
