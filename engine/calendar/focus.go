package calendar

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"

	"github.com/clearday/clearday/engine/interval"
)

// FocusBlock is a user-declared stretch of time reserved for uninterrupted
// work. Protected blocks are treated as busy by the aggregator and guarded
// by the conflict detector; unprotected blocks only annotate slots.
type FocusBlock struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Day       time.Weekday `json:"day"`
	Start     string       `json:"start"` // "HH:MM"
	End       string       `json:"end"`   // "HH:MM"
	Protected bool         `json:"protected"`
	Recurring bool         `json:"recurring"`
	// Date pins a one-off block (Recurring=false) to a concrete
	// "YYYY-MM-DD" date. Ignored for recurring blocks.
	Date string `json:"date,omitempty"`
	// RRule optionally narrows recurrence beyond plain weekly (e.g.
	// "FREQ=WEEKLY;INTERVAL=2"). Evaluated with the block's weekday.
	RRule string `json:"rrule,omitempty"`
}

// ParseClock parses a "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("invalid clock value %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.Errorf("invalid hour in clock value %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.Errorf("invalid minute in clock value %q", s)
	}
	return hour, minute, nil
}

// clockOn anchors a "HH:MM" value on the given date (UTC).
func clockOn(date time.Time, clock string) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := date.UTC().Date()
	return time.Date(y, mo, d, h, m, 0, 0, time.UTC), nil
}

// Window anchors the working-hours pair on a concrete date.
func (h DayHours) Window(date time.Time) (interval.Interval, error) {
	start, err := clockOn(date, h.Start)
	if err != nil {
		return interval.Interval{}, err
	}
	end, err := clockOn(date, h.End)
	if err != nil {
		return interval.Interval{}, err
	}
	return interval.New(start, end)
}

// WindowOn returns the working-hours interval for the date's weekday, or
// false when the user does not work that day.
func (w WeeklyHours) WindowOn(date time.Time) (interval.Interval, bool, error) {
	hours, ok := w[date.UTC().Weekday()]
	if !ok {
		return interval.Interval{}, false, nil
	}
	iv, err := hours.Window(date)
	if err != nil {
		return interval.Interval{}, false, err
	}
	return iv, true, nil
}

// focusEpoch is a fixed Monday well before any real data. Anchoring the
// recurrence here keeps the phase of INTERVAL>1 rules stable: which weeks
// a biweekly block falls on never depends on the date being queried.
var focusEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// dtstart returns the first on-weekday instant at the block's start time
// on or after focusEpoch.
func (f FocusBlock) dtstart() time.Time {
	h, m, err := ParseClock(f.Start)
	if err != nil {
		h, m = 0, 0
	}
	days := (int(f.Day) - int(focusEpoch.Weekday()) + 7) % 7
	d := focusEpoch.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, time.UTC)
}

// occursOn reports whether the block applies to the given date.
func (f FocusBlock) occursOn(date time.Time) bool {
	if !f.Recurring {
		return f.Date != "" && DateKey(date) == f.Date
	}
	if date.UTC().Weekday() != f.Day {
		return false
	}
	if f.RRule == "" {
		return true
	}
	opts, err := rrule.StrToROption(f.RRule)
	if err != nil {
		// Malformed recurrence never drops protection silently; fall back
		// to plain weekly and log once per evaluation.
		slog.Warn("focus block has invalid rrule, treating as weekly",
			"focusBlockID", f.ID, "rrule", f.RRule, "error", err)
		return true
	}
	opts.Dtstart = f.dtstart()
	rule, err := rrule.NewRRule(*opts)
	if err != nil {
		slog.Warn("focus block rrule rejected, treating as weekly",
			"focusBlockID", f.ID, "rrule", f.RRule, "error", err)
		return true
	}
	dayStart := date.UTC().Truncate(24 * time.Hour)
	occurrences := rule.Between(dayStart, dayStart.Add(24*time.Hour-time.Nanosecond), true)
	return len(occurrences) > 0
}

// IntervalOn resolves the block to a concrete interval on the given date.
// Returns false when the block does not occur that day.
func (f FocusBlock) IntervalOn(date time.Time) (interval.Interval, bool, error) {
	if !f.occursOn(date) {
		return interval.Interval{}, false, nil
	}
	start, err := clockOn(date, f.Start)
	if err != nil {
		return interval.Interval{}, false, errors.Wrapf(err, "focus block %s", f.ID)
	}
	end, err := clockOn(date, f.End)
	if err != nil {
		return interval.Interval{}, false, errors.Wrapf(err, "focus block %s", f.ID)
	}
	iv, err := interval.New(start, end)
	if err != nil {
		return interval.Interval{}, false, errors.Wrapf(err, "focus block %s", f.ID)
	}
	return iv, true, nil
}

// FocusIntervalsOn resolves all blocks occurring on date, separated by
// protection. Overlapping blocks are unioned even though the preference
// writer rejects overlaps.
func FocusIntervalsOn(blocks []FocusBlock, date time.Time) (protected, unprotected []interval.Interval, err error) {
	for _, fb := range blocks {
		iv, ok, ivErr := fb.IntervalOn(date)
		if ivErr != nil {
			return nil, nil, ivErr
		}
		if !ok {
			continue
		}
		if fb.Protected {
			protected = append(protected, iv)
		} else {
			unprotected = append(unprotected, iv)
		}
	}
	return interval.Merge(protected), interval.Merge(unprotected), nil
}

// DateKey formats a date the way AvailabilityDay carries it.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Weekday's fmt.Stringer is verbose in logs; short helper for descriptions.
func ShortDay(d time.Weekday) string {
	return fmt.Sprintf("%.3s", d.String())
}
