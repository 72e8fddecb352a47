package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/interval"
)

// Monday 2026-03-02.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func mondayAt(hhmm string) time.Time {
	h, m, err := calendar.ParseClock(hhmm)
	if err != nil {
		panic(err)
	}
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func workWeek() calendar.WeeklyHours {
	return calendar.WeeklyHours{
		time.Monday: {Start: "09:00", End: "17:00"},
	}
}

func busyEvent(id, from, to string) *calendar.Event {
	return &calendar.Event{
		ID:     id,
		Start:  mondayAt(from),
		End:    mondayAt(to),
		Status: calendar.StatusConfirmed,
	}
}

func dayWindow() interval.Interval {
	return interval.MustNew(monday, monday.AddDate(0, 0, 1))
}

func TestAggregate_EmptyCalendarIsFullyFree(t *testing.T) {
	days, err := Aggregate(Input{Window: dayWindow(), Hours: workWeek()}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, days, 1)

	day := days[0]
	assert.Equal(t, "2026-03-02", day.Date)
	assert.False(t, day.Degraded)
	require.Len(t, day.TimeSlots, 1)
	assert.True(t, day.TimeSlots[0].Available)
	assert.Equal(t, mondayAt("09:00"), day.TimeSlots[0].Start)
	assert.Equal(t, mondayAt("17:00"), day.TimeSlots[0].End)
}

func TestAggregate_NonWorkingDayHasNoSlots(t *testing.T) {
	sunday := monday.AddDate(0, 0, -1)
	days, err := Aggregate(Input{
		Window: interval.MustNew(sunday, monday),
		Hours:  workWeek(),
	}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Empty(t, days[0].TimeSlots)
	assert.Nil(t, days[0].WorkingHours)
}

func TestAggregate_BusyEventsSplitFreeTime(t *testing.T) {
	days, err := Aggregate(Input{
		Window: dayWindow(),
		Hours:  workWeek(),
		Events: []*calendar.Event{
			busyEvent("a", "10:00", "11:00"),
			busyEvent("b", "10:30", "11:30"), // overlapping: must union, not double-count
		},
	}, DefaultOptions())
	require.NoError(t, err)
	day := days[0]

	var free, busy []calendar.TimeSlot
	for _, s := range day.TimeSlots {
		if s.Available {
			free = append(free, s)
		} else {
			busy = append(busy, s)
		}
	}
	require.Len(t, free, 2)
	assert.Equal(t, mondayAt("09:00"), free[0].Start)
	assert.Equal(t, mondayAt("10:00"), free[0].End)
	assert.Equal(t, mondayAt("11:30"), free[1].Start)
	assert.Equal(t, mondayAt("17:00"), free[1].End)
	require.Len(t, busy, 1)
	assert.Equal(t, mondayAt("10:00"), busy[0].Start)
	assert.Equal(t, mondayAt("11:30"), busy[0].End)
}

func TestAggregate_CancelledEventsDoNotBlock(t *testing.T) {
	ev := busyEvent("a", "10:00", "11:00")
	ev.Status = calendar.StatusCancelled
	days, err := Aggregate(Input{
		Window: dayWindow(),
		Hours:  workWeek(),
		Events: []*calendar.Event{ev},
	}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, days[0].TimeSlots, 1)
	assert.True(t, days[0].TimeSlots[0].Available)
}

func TestAggregate_ProtectedFocusBlockIsNotBookable(t *testing.T) {
	days, err := Aggregate(Input{
		Window: dayWindow(),
		Hours:  workWeek(),
		FocusBlocks: []calendar.FocusBlock{{
			ID: "fb-1", Title: "Deep work", Day: time.Monday,
			Start: "09:00", End: "11:00", Protected: true, Recurring: true,
		}},
	}, DefaultOptions())
	require.NoError(t, err)
	day := days[0]
	require.NotEmpty(t, day.TimeSlots)
	first := day.TimeSlots[0]
	assert.False(t, first.Available)
	assert.Equal(t, mondayAt("09:00"), first.Start)
	assert.Equal(t, mondayAt("11:00"), first.End)
}

func TestAggregate_UnprotectedFocusBlockAnnotatesSlot(t *testing.T) {
	days, err := Aggregate(Input{
		Window: dayWindow(),
		Hours:  workWeek(),
		FocusBlocks: []calendar.FocusBlock{{
			ID: "fb-2", Title: "Reading", Day: time.Monday,
			Start: "13:00", End: "14:00", Protected: false, Recurring: true,
		}},
	}, DefaultOptions())
	require.NoError(t, err)
	day := days[0]
	require.Len(t, day.TimeSlots, 1)
	assert.True(t, day.TimeSlots[0].Available)
	require.Len(t, day.TimeSlots[0].Conflicts, 1)
	assert.Equal(t, "focus_block", day.TimeSlots[0].Conflicts[0].Type)
}

func TestAggregate_QuantizationDropsShortFragments(t *testing.T) {
	// 09:00-09:10 fragment before the event is under the 15 min grid and
	// must be reported busy, not lost.
	days, err := Aggregate(Input{
		Window: dayWindow(),
		Hours:  workWeek(),
		Events: []*calendar.Event{busyEvent("a", "09:10", "10:05")},
	}, DefaultOptions())
	require.NoError(t, err)
	day := days[0]

	// Completeness: slots must tile the whole working window.
	require.NotEmpty(t, day.TimeSlots)
	assert.Equal(t, mondayAt("09:00"), day.TimeSlots[0].Start)
	assert.Equal(t, mondayAt("17:00"), day.TimeSlots[len(day.TimeSlots)-1].End)
	for i := 1; i < len(day.TimeSlots); i++ {
		assert.Equal(t, day.TimeSlots[i-1].End, day.TimeSlots[i].Start, "gap in timeline")
	}

	// Free time resumes on the next grid line after the event.
	var firstFree *calendar.TimeSlot
	for i := range day.TimeSlots {
		if day.TimeSlots[i].Available {
			firstFree = &day.TimeSlots[i]
			break
		}
	}
	require.NotNil(t, firstFree)
	assert.Equal(t, mondayAt("10:15"), firstFree.Start)
}

func TestAggregate_DegradedFlagPropagates(t *testing.T) {
	days, err := Aggregate(Input{Window: dayWindow(), Hours: workWeek(), Degraded: true}, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, days[0].Degraded)
}

func TestOpenSlots(t *testing.T) {
	days, err := Aggregate(Input{
		Window: dayWindow(),
		Hours:  workWeek(),
		Events: []*calendar.Event{busyEvent("a", "09:00", "16:30")},
	}, DefaultOptions())
	require.NoError(t, err)

	slots := OpenSlots(days, 30)
	require.Len(t, slots, 1)
	assert.Equal(t, mondayAt("16:30"), slots[0].Start)

	assert.Empty(t, OpenSlots(days, 45))
}
