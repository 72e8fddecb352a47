package source

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/interval"
)

// failingSource fails the first failures attempts, then succeeds.
type failingSource struct {
	provider calendar.Provider
	failures int32
	calls    int32
	events   []*calendar.Event
}

func (f *failingSource) Provider() calendar.Provider { return f.provider }

func (f *failingSource) FetchEvents(_ context.Context, _ string, _ interval.Interval) ([]*calendar.Event, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		return nil, errors.New("transient upstream error")
	}
	return f.events, nil
}

func testWindow(t *testing.T) interval.Interval {
	t.Helper()
	return interval.MustNew(
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	)
}

func fastOptions() FetchOptions {
	return FetchOptions{
		Timeout:        time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}
}

func TestFetchAll_RetriesTransientFailure(t *testing.T) {
	reg := NewRegistry()
	src := &failingSource{
		provider: calendar.ProviderGoogle,
		failures: 2,
		events:   []*calendar.Event{{ID: "evt-1"}},
	}
	reg.Register(src)

	results := FetchAll(context.Background(), reg,
		[]Account{{ID: "acc-1", Provider: calendar.ProviderGoogle}},
		testWindow(t), fastOptions())

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Events, 1)
	assert.EqualValues(t, 3, src.calls)
	assert.False(t, Degraded(results))
	// Latency is measured per account, not per batch.
	assert.Positive(t, results[0].Elapsed)
}

func TestFetchAll_DegradesAfterExhaustedRetries(t *testing.T) {
	reg := NewRegistry()
	google := NewStaticSource(calendar.ProviderGoogle)
	google.SetEvents("g-1", []*calendar.Event{{
		ID:     "evt-g",
		Start:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		Status: calendar.StatusConfirmed,
	}})
	reg.Register(google)
	reg.Register(&failingSource{provider: calendar.ProviderMicrosoft, failures: 99})

	results := FetchAll(context.Background(), reg, []Account{
		{ID: "g-1", Provider: calendar.ProviderGoogle},
		{ID: "m-1", Provider: calendar.ProviderMicrosoft},
	}, testWindow(t), fastOptions())

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Events, 1)
	require.Error(t, results[1].Err)
	assert.True(t, errors.Is(results[1].Err, ErrProviderFetch))
	assert.True(t, Degraded(results))
}

// slowSource delays every fetch by a fixed amount.
type slowSource struct {
	provider calendar.Provider
	delay    time.Duration
}

func (s *slowSource) Provider() calendar.Provider { return s.provider }

func (s *slowSource) FetchEvents(ctx context.Context, _ string, _ interval.Interval) ([]*calendar.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
		return nil, nil
	}
}

func TestFetchAll_ElapsedIsPerAccount(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewStaticSource(calendar.ProviderGoogle))
	reg.Register(&slowSource{provider: calendar.ProviderMicrosoft, delay: 80 * time.Millisecond})

	results := FetchAll(context.Background(), reg, []Account{
		{ID: "g-1", Provider: calendar.ProviderGoogle},
		{ID: "m-1", Provider: calendar.ProviderMicrosoft},
	}, testWindow(t), fastOptions())

	require.Len(t, results, 2)
	var fast, slow time.Duration
	for _, r := range results {
		if r.Account.Provider == calendar.ProviderGoogle {
			fast = r.Elapsed
		} else {
			slow = r.Elapsed
		}
	}
	// The fast account must not inherit the batch's wall time.
	assert.GreaterOrEqual(t, slow, 80*time.Millisecond)
	assert.Less(t, fast, slow)
}

func TestFetchAll_UnknownProvider(t *testing.T) {
	reg := NewRegistry()
	results := FetchAll(context.Background(), reg,
		[]Account{{ID: "x", Provider: calendar.Provider("caldav")}},
		testWindow(t), fastOptions())
	require.Len(t, results, 1)
	assert.True(t, errors.Is(results[0].Err, ErrUnknownProvider))
}

func TestFetchAll_ContextCancellationStopsRetrying(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&failingSource{provider: calendar.ProviderGoogle, failures: 99})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := FetchAll(ctx, reg,
		[]Account{{ID: "acc-1", Provider: calendar.ProviderGoogle}},
		testWindow(t), fastOptions())
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestParseICSEvents(t *testing.T) {
	body := []byte("BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:feed-evt-1\r\n" +
		"SUMMARY:Team sync\r\n" +
		"DTSTART:20260302T100000Z\r\n" +
		"DTEND:20260302T110000Z\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:feed-evt-2\r\n" +
		"SUMMARY:Cancelled thing\r\n" +
		"STATUS:CANCELLED\r\n" +
		"DTSTART:20260302T120000Z\r\n" +
		"DTEND:20260302T130000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n")

	events, err := parseICSEvents("acc-1", body, testWindow(t))
	require.NoError(t, err)
	require.Len(t, events, 1) // cancelled event is not busy
	assert.Equal(t, "Team sync", events[0].Title)
	assert.Equal(t, calendar.ProviderICS, events[0].Provider)
	assert.Equal(t, "feed-evt-1", events[0].ProviderEventID)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), events[0].Start)
}
