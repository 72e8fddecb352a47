package resolution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/conflict"
	"github.com/clearday/clearday/engine/interval"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func mondayAt(hhmm string) time.Time {
	h, m, err := calendar.ParseClock(hhmm)
	if err != nil {
		panic(err)
	}
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func event(id, title, from, to string, priority float64, created time.Time) *calendar.Event {
	return &calendar.Event{
		ID:            id,
		Title:         title,
		Start:         mondayAt(from),
		End:           mondayAt(to),
		Status:        calendar.StatusConfirmed,
		PriorityScore: priority,
		CreatedAt:     created,
	}
}

func overlapConflict(a, b *calendar.Event) *conflict.Conflict {
	return &conflict.Conflict{
		ID:       conflict.StableID(conflict.TypeOverlap, []string{a.ID, b.ID}, ""),
		Type:     conflict.TypeOverlap,
		Severity: conflict.SeverityHigh,
		Events:   []*calendar.Event{a, b},
		Window:   interval.MustNew(a.Start, b.End),
	}
}

func freeDay(slots ...calendar.TimeSlot) []*calendar.AvailabilityDay {
	return []*calendar.AvailabilityDay{{
		Date:      "2026-03-02",
		TimeSlots: slots,
	}}
}

func freeSlot(from, to string) calendar.TimeSlot {
	return calendar.TimeSlot{Start: mondayAt(from), End: mondayAt(to), Available: true}
}

func TestPlan_RescheduleMovesLowerPriorityEvent(t *testing.T) {
	p := NewPlanner(DefaultParams())
	a := event("a", "Design review", "10:00", "11:00", 0.7, monday)
	b := event("b", "Board prep", "10:30", "11:30", 0.9, monday)

	candidates := p.Plan(overlapConflict(a, b), freeDay(
		freeSlot("13:00", "15:00"),
		freeSlot("15:30", "17:00"),
	))

	require.NotEmpty(t, candidates)
	top := candidates[0]
	assert.Equal(t, TypeReschedule, top.Type)
	assert.Equal(t, []string{"a"}, top.AffectedEvents)
	assert.NotEmpty(t, top.ProposedTimes)
	assert.Contains(t, top.Reasoning, `"Board prep" priority 0.90`)
	assert.Contains(t, top.Reasoning, "alternative slot")
}

func TestPlan_SortedByConfidenceWithAcceptAlways(t *testing.T) {
	p := NewPlanner(DefaultParams())
	a := event("a", "Design review", "10:00", "11:00", 0.7, monday)
	b := event("b", "Board prep", "10:30", "11:30", 0.9, monday)

	candidates := p.Plan(overlapConflict(a, b), freeDay(freeSlot("13:00", "15:00")))

	require.True(t, len(candidates) >= 2 && len(candidates) <= 3)
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Confidence, candidates[i].Confidence)
	}
	var hasAccept bool
	for _, c := range candidates {
		if c.Type == TypeAccept {
			hasAccept = true
			assert.Less(t, c.Confidence, candidates[0].Confidence)
		}
	}
	assert.True(t, hasAccept, "accept candidate must always be present")
}

func TestPlan_ShortenOutranksRescheduleWhenNoSlots(t *testing.T) {
	p := NewPlanner(DefaultParams())
	a := event("a", "Design review", "10:00", "11:00", 0.7, monday)
	b := event("b", "Board prep", "10:45", "11:45", 0.9, monday)

	// No free slots at all: shorten (45 min remainder >= 30) carries the plan.
	candidates := p.Plan(overlapConflict(a, b), freeDay())
	require.NotEmpty(t, candidates)
	assert.Equal(t, TypeShorten, candidates[0].Type)
	assert.Contains(t, candidates[0].Reasoning, "no reschedule slot available")
	require.Len(t, candidates[0].ProposedTimes, 1)
	assert.Equal(t, mondayAt("10:45"), candidates[0].ProposedTimes[0].End)
}

func TestPlan_NoShortenBelowViableDuration(t *testing.T) {
	p := NewPlanner(DefaultParams())
	// Remainder before the winner starts is only 15 min.
	a := event("a", "Quick sync", "10:00", "10:45", 0.5, monday)
	b := event("b", "Board prep", "10:15", "11:15", 0.9, monday)

	candidates := p.Plan(overlapConflict(a, b), freeDay())
	for _, c := range candidates {
		assert.NotEqual(t, TypeShorten, c.Type)
	}
}

func TestPlan_CancelOnlyAsFallbackWithMaterialDelta(t *testing.T) {
	p := NewPlanner(DefaultParams())

	t.Run("material delta, nothing else works", func(t *testing.T) {
		a := event("a", "Optional chat", "10:00", "10:25", 0.3, monday)
		b := event("b", "Board prep", "10:10", "11:10", 0.9, monday)
		candidates := p.Plan(overlapConflict(a, b), freeDay())
		require.Len(t, candidates, 2)
		assert.Equal(t, TypeCancel, candidates[0].Type)
		assert.Contains(t, candidates[0].Reasoning, "trails")
	})

	t.Run("small delta yields accept only", func(t *testing.T) {
		a := event("a", "Chat A", "10:00", "10:25", 0.5, monday)
		b := event("b", "Chat B", "10:10", "10:35", 0.6, monday)
		candidates := p.Plan(overlapConflict(a, b), freeDay())
		require.Len(t, candidates, 1)
		assert.Equal(t, TypeAccept, candidates[0].Type)
	})
}

func TestPlan_TieBreakLaterCreatedLoses(t *testing.T) {
	p := NewPlanner(DefaultParams())
	earlier := event("a", "First booked", "10:00", "11:00", 0.6, monday.Add(-48*time.Hour))
	later := event("b", "Second booked", "10:30", "11:30", 0.6, monday.Add(-time.Hour))

	candidates := p.Plan(overlapConflict(earlier, later), freeDay(freeSlot("13:00", "15:00")))
	require.NotEmpty(t, candidates)
	assert.Equal(t, TypeReschedule, candidates[0].Type)
	assert.Equal(t, []string{"b"}, candidates[0].AffectedEvents)
}

func TestPlan_FocusBlockConflictNeverShortens(t *testing.T) {
	p := NewPlanner(DefaultParams())
	ev := event("a", "Intro call", "09:30", "10:00", 0.4, monday)
	c := &conflict.Conflict{
		ID:           conflict.StableID(conflict.TypeFocusBlock, []string{"a"}, "fb-1"),
		Type:         conflict.TypeFocusBlock,
		Severity:     conflict.SeverityHigh,
		Events:       []*calendar.Event{ev},
		Window:       interval.MustNew(mondayAt("09:00"), mondayAt("11:00")),
		FocusBlockID: "fb-1",
	}

	candidates := p.Plan(c, freeDay(freeSlot("13:00", "15:00")))
	require.NotEmpty(t, candidates)
	assert.Equal(t, TypeReschedule, candidates[0].Type)
	for _, cand := range candidates {
		assert.NotEqual(t, TypeShorten, cand.Type)
	}
}

func TestPlan_RescheduleSkipsSlotsInsideConflictWindow(t *testing.T) {
	p := NewPlanner(DefaultParams())
	a := event("a", "Design review", "10:00", "11:00", 0.7, monday)
	b := event("b", "Board prep", "10:30", "11:30", 0.9, monday)

	candidates := p.Plan(overlapConflict(a, b), freeDay(freeSlot("10:00", "11:30")))
	for _, cand := range candidates {
		assert.NotEqual(t, TypeReschedule, cand.Type)
	}
}
