package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFocusBlockWeeklyOccursEveryMatchingDay(t *testing.T) {
	fb := FocusBlock{
		ID: "fb-weekly", Day: time.Monday,
		Start: "09:00", End: "11:00",
		Protected: true, Recurring: true,
	}

	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	iv, ok, err := fb.IntervalOn(monday)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC), iv.Start)

	tuesday := monday.AddDate(0, 0, 1)
	_, ok, err = fb.IntervalOn(tuesday)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFocusBlockBiweeklyRRule(t *testing.T) {
	fb := FocusBlock{
		ID: "fb-biweekly", Day: time.Monday,
		Start: "09:00", End: "11:00",
		Protected: true, Recurring: true,
		RRule: "FREQ=WEEKLY;INTERVAL=2",
	}

	// Four consecutive Mondays: a biweekly rule must fire on exactly
	// two of them, alternating.
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	got := make([]bool, 4)
	for i := range got {
		_, ok, err := fb.IntervalOn(monday.AddDate(0, 0, 7*i))
		require.NoError(t, err)
		got[i] = ok
	}

	occurrences := 0
	for _, ok := range got {
		if ok {
			occurrences++
		}
	}
	require.Equal(t, 2, occurrences, "biweekly block occurred on %v", got)
	assert.NotEqual(t, got[0], got[1])
	assert.Equal(t, got[0], got[2])
	assert.Equal(t, got[1], got[3])
}

func TestFocusBlockRRulePhaseIndependentOfQueryDate(t *testing.T) {
	fb := FocusBlock{
		ID: "fb-phase", Day: time.Wednesday,
		Start: "14:00", End: "16:00",
		Protected: true, Recurring: true,
		RRule: "FREQ=WEEKLY;INTERVAL=2",
	}

	// The same date must answer the same regardless of what was queried
	// before it and of evaluation order.
	wednesday := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	_, first, err := fb.IntervalOn(wednesday)
	require.NoError(t, err)
	_, _, err = fb.IntervalOn(wednesday.AddDate(0, 0, 7))
	require.NoError(t, err)
	_, again, err := fb.IntervalOn(wednesday)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestFocusBlockInvalidRRuleFallsBackToWeekly(t *testing.T) {
	fb := FocusBlock{
		ID: "fb-bad", Day: time.Friday,
		Start: "10:00", End: "12:00",
		Protected: true, Recurring: true,
		RRule: "FREQ=NOPE",
	}

	friday := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	_, ok, err := fb.IntervalOn(friday)
	require.NoError(t, err)
	assert.True(t, ok, "invalid rrule must not drop protection")
}

func TestFocusBlockOneOffOccursOnlyOnItsDate(t *testing.T) {
	fb := FocusBlock{
		ID: "fb-oneoff", Day: time.Thursday,
		Start: "13:00", End: "15:00",
		Protected: true, Recurring: false,
		Date: "2026-08-27",
	}

	thursday := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	_, ok, err := fb.IntervalOn(thursday)
	require.NoError(t, err)
	assert.True(t, ok)

	nextThursday := thursday.AddDate(0, 0, 7)
	_, ok, err = fb.IntervalOn(nextThursday)
	require.NoError(t, err)
	assert.False(t, ok, "one-off block must not recur")
}

func TestFocusBlockOneOffWithoutDateNeverOccurs(t *testing.T) {
	fb := FocusBlock{
		ID: "fb-dateless", Day: time.Thursday,
		Start: "13:00", End: "15:00",
		Recurring: false,
	}

	_, ok, err := fb.IntervalOn(time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
}
