package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/interval"
)

// FetchOptions bounds the fan-out to providers.
type FetchOptions struct {
	// Timeout caps each individual fetch attempt.
	Timeout time.Duration
	// MaxAttempts is the total number of tries per account (initial + retries).
	MaxAttempts int
	// InitialBackoff is doubled after each failed attempt.
	InitialBackoff time.Duration
	// MaxConcurrency caps in-flight provider fetches. Zero means unbounded.
	MaxConcurrency int
}

// DefaultFetchOptions matches the engine's recommended bounds: 10s per
// attempt, 3 attempts, 500ms initial backoff.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		Timeout:        10 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxConcurrency: 4,
	}
}

func (o FetchOptions) normalized() FetchOptions {
	d := DefaultFetchOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = d.InitialBackoff
	}
	return o
}

// Result is the outcome of fetching one account. Err is set when the
// account's provider exhausted its retries; the overall fetch still
// succeeds with the remaining accounts (degraded mode).
type Result struct {
	Account Account
	Events  []*calendar.Event
	Err     error
	// Elapsed is the wall time this account's fetch took, retries and
	// backoff included.
	Elapsed time.Duration
}

// Degraded reports whether any account in the batch failed.
func Degraded(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// FetchAll fetches all accounts in parallel, retrying each with bounded
// exponential backoff. Provider failures are isolated per account: a dead
// provider yields a Result with Err set, never a failed batch. Cancelling
// ctx stops waiting on remaining fetches.
func FetchAll(ctx context.Context, reg *Registry, accounts []Account, window interval.Interval, opts FetchOptions) []Result {
	opts = opts.normalized()
	results := make([]Result, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	if opts.MaxConcurrency > 0 {
		g.SetLimit(opts.MaxConcurrency)
	}
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			results[i] = fetchOne(gctx, reg, account, window, opts)
			return nil // per-account errors are carried in the result, not the group
		})
	}
	_ = g.Wait()
	return results
}

func fetchOne(ctx context.Context, reg *Registry, account Account, window interval.Interval, opts FetchOptions) (result Result) {
	started := time.Now()
	defer func() { result.Elapsed = time.Since(started) }()
	result = Result{Account: account}

	src, err := reg.Lookup(account.Provider)
	if err != nil {
		result.Err = err
		return result
	}

	backoff := opts.InitialBackoff
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		events, err := src.FetchEvents(attemptCtx, account.ID, window)
		cancel()
		if err == nil {
			result.Events = events
			result.Err = nil
			return result
		}
		result.Err = errors.Wrapf(ErrProviderFetch, "provider=%s account=%s attempt=%d: %v",
			account.Provider, account.ID, attempt, err)

		if ctx.Err() != nil || attempt == opts.MaxAttempts {
			break
		}
		slog.Warn("provider fetch failed, retrying",
			"provider", account.Provider,
			"accountID", account.ID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err)
		select {
		case <-ctx.Done():
			result.Err = errors.Wrap(ErrProviderFetch, ctx.Err().Error())
			return result
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	slog.Error("provider fetch exhausted retries, degrading",
		"provider", account.Provider,
		"accountID", account.ID,
		"attempts", opts.MaxAttempts,
		"error", result.Err)
	return result
}
