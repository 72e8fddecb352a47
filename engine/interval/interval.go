// Package interval provides half-open time interval arithmetic.
// All operations are pure; a malformed interval is rejected at
// construction, never at use.
package interval

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidInterval indicates a zero-length or inverted interval.
var ErrInvalidInterval = errors.New("invalid interval: start must be before end")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// New constructs an interval, validating start < end.
func New(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, errors.Wrapf(ErrInvalidInterval, "start=%s end=%s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// MustNew constructs an interval and panics on invalid input. Intended for
// tests and compile-time-known constants only.
func MustNew(start, end time.Time) Interval {
	iv, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Minutes returns the interval length in whole minutes.
func (iv Interval) Minutes() int {
	return int(iv.End.Sub(iv.Start) / time.Minute)
}

// Contains reports whether t lies within [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Covers reports whether iv fully contains other.
func (iv Interval) Covers(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Overlaps reports whether two half-open intervals intersect.
// Touching endpoints (a.End == b.Start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Intersect returns the overlapping portion of two intervals and whether
// any overlap exists.
func (iv Interval) Intersect(other Interval) (Interval, bool) {
	if !iv.Overlaps(other) {
		return Interval{}, false
	}
	out := iv
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

// Gap returns the distance between two non-overlapping intervals. A zero
// or negative duration means the intervals touch or overlap.
func (iv Interval) Gap(other Interval) time.Duration {
	if iv.Overlaps(other) {
		return 0
	}
	if iv.End.After(other.End) {
		return iv.Start.Sub(other.End)
	}
	return other.Start.Sub(iv.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// Merge sorts intervals by start and unions touching or overlapping ranges.
// The input slice is not modified.
func Merge(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]Interval, 0, len(sorted))
	current := sorted[0]
	for _, iv := range sorted[1:] {
		// Touching ranges (current.End == iv.Start) merge as well.
		if !iv.Start.After(current.End) {
			if iv.End.After(current.End) {
				current.End = iv.End
			}
			continue
		}
		merged = append(merged, current)
		current = iv
	}
	return append(merged, current)
}

// Subtract removes every busy interval from base and returns the remaining
// free fragments in chronological order. Yields zero fragments when busy
// fully covers base.
func Subtract(base Interval, busy []Interval) []Interval {
	free := []Interval{base}
	for _, b := range Merge(busy) {
		next := make([]Interval, 0, len(free)+1)
		for _, f := range free {
			if !f.Overlaps(b) {
				next = append(next, f)
				continue
			}
			if b.Start.After(f.Start) {
				next = append(next, Interval{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, Interval{Start: b.End, End: f.End})
			}
		}
		free = next
	}
	return free
}
