// Package conflict scans scored calendar events against working hours and
// focus blocks and reports scheduling conflicts. Detection is pure and
// idempotent: identical inputs produce identical conflict ids and content.
package conflict

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/interval"
)

// Type classifies a detected conflict.
type Type string

const (
	TypeOverlap      Type = "overlap"
	TypeBackToBack   Type = "back_to_back"
	TypeFocusBlock   Type = "focus_block"
	TypeOutsideHours Type = "outside_hours"
)

// Severity ranks how disruptive a conflict is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Conflict is one detected scheduling problem. Events carries the involved
// events: two or more for overlap and back_to_back, exactly one for
// focus_block and outside_hours.
type Conflict struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	Severity    Severity          `json:"severity"`
	Description string            `json:"description"`
	Events      []*calendar.Event `json:"conflictingEvents"`
	// Window spans the involved events; the planner re-queries
	// availability around it.
	Window interval.Interval `json:"window"`
	// FocusBlockID is set for focus_block conflicts.
	FocusBlockID string `json:"focusBlockId,omitempty"`
}

// conflictNamespace seeds the deterministic UUIDv5 conflict ids.
var conflictNamespace = uuid.MustParse("8f1c6c52-6b2e-4f1d-9c5a-2d2c3b7a9e01")

// StableID derives the conflict id from the type and the sorted involved
// event ids, so re-detection over unchanged data reproduces the same id.
func StableID(t Type, eventIDs []string, extra string) string {
	ids := make([]string, len(eventIDs))
	copy(ids, eventIDs)
	sort.Strings(ids)
	payload := string(t) + "|" + strings.Join(ids, ",")
	if extra != "" {
		payload += "|" + extra
	}
	return uuid.NewSHA1(conflictNamespace, []byte(payload)).String()
}

// Detector holds the user-level detection settings.
type Detector struct {
	// BufferMinutes is the minimum breathing room between meetings.
	// Applied symmetrically before and after each event.
	BufferMinutes int
}

// NewDetector returns a detector with the given buffer preference.
func NewDetector(bufferMinutes int) *Detector {
	return &Detector{BufferMinutes: bufferMinutes}
}

// Detect runs all four detections over the event set. Events are expected
// to carry their PriorityScore already. Cancelled events are ignored.
func (d *Detector) Detect(events []*calendar.Event, hours calendar.WeeklyHours, blocks []calendar.FocusBlock) ([]*Conflict, error) {
	busy := make([]*calendar.Event, 0, len(events))
	for _, ev := range events {
		if ev.Busy() && ev.End.After(ev.Start) {
			busy = append(busy, ev)
		}
	}
	sort.Slice(busy, func(i, j int) bool {
		if busy[i].Start.Equal(busy[j].Start) {
			return busy[i].ID < busy[j].ID
		}
		return busy[i].Start.Before(busy[j].Start)
	})

	var conflicts []*Conflict
	conflicts = append(conflicts, d.detectPairwise(busy)...)
	fb, err := d.detectFocusBlocks(busy, blocks)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, fb...)
	oh, err := d.detectOutsideHours(busy, hours)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, oh...)

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Window.Start.Equal(conflicts[j].Window.Start) {
			return conflicts[i].ID < conflicts[j].ID
		}
		return conflicts[i].Window.Start.Before(conflicts[j].Window.Start)
	})
	return conflicts, nil
}

// detectPairwise finds overlap and back_to_back conflicts between event
// pairs. Events are pre-sorted by start.
func (d *Detector) detectPairwise(events []*calendar.Event) []*Conflict {
	buffer := time.Duration(d.BufferMinutes) * time.Minute
	var out []*Conflict
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			a, b := events[i], events[j]
			ivA := interval.Interval{Start: a.Start, End: a.End}
			ivB := interval.Interval{Start: b.Start, End: b.End}

			if ivA.Overlaps(ivB) {
				out = append(out, &Conflict{
					ID:       StableID(TypeOverlap, []string{a.ID, b.ID}, ""),
					Type:     TypeOverlap,
					Severity: severityFor(TypeOverlap, maxPriority(a, b), false),
					Description: fmt.Sprintf("%q overlaps %q between %s and %s",
						a.Title, b.Title,
						laterOf(a.Start, b.Start).Format("15:04"),
						earlierOf(a.End, b.End).Format("15:04")),
					Events: []*calendar.Event{a, b},
					Window: span(ivA, ivB),
				})
				continue
			}
			if buffer <= 0 {
				continue
			}
			if gap := ivA.Gap(ivB); gap >= 0 && gap < buffer {
				out = append(out, &Conflict{
					ID:       StableID(TypeBackToBack, []string{a.ID, b.ID}, ""),
					Type:     TypeBackToBack,
					Severity: severityFor(TypeBackToBack, maxPriority(a, b), false),
					Description: fmt.Sprintf("only %d min between %q and %q (minimum buffer %d min)",
						int(gap/time.Minute), a.Title, b.Title, d.BufferMinutes),
					Events: []*calendar.Event{a, b},
					Window: span(ivA, ivB),
				})
			}
		}
	}
	return out
}

func (d *Detector) detectFocusBlocks(events []*calendar.Event, blocks []calendar.FocusBlock) ([]*Conflict, error) {
	var out []*Conflict
	for _, ev := range events {
		ivEv := interval.Interval{Start: ev.Start, End: ev.End}
		for _, fb := range blocks {
			if !fb.Protected {
				continue
			}
			iv, ok, err := fb.IntervalOn(ev.Start)
			if err != nil {
				return nil, err
			}
			if !ok || !ivEv.Overlaps(iv) {
				continue
			}
			out = append(out, &Conflict{
				ID:       StableID(TypeFocusBlock, []string{ev.ID}, fb.ID),
				Type:     TypeFocusBlock,
				Severity: severityFor(TypeFocusBlock, ev.PriorityScore, true),
				Description: fmt.Sprintf("%q intrudes on protected focus block %q (%s %s-%s)",
					ev.Title, fb.Title, calendar.ShortDay(fb.Day), fb.Start, fb.End),
				Events:       []*calendar.Event{ev},
				Window:       span(ivEv, iv),
				FocusBlockID: fb.ID,
			})
		}
	}
	return out, nil
}

func (d *Detector) detectOutsideHours(events []*calendar.Event, hours calendar.WeeklyHours) ([]*Conflict, error) {
	var out []*Conflict
	for _, ev := range events {
		ivEv := interval.Interval{Start: ev.Start, End: ev.End}
		working, ok, err := hours.WindowOn(ev.Start)
		if err != nil {
			return nil, err
		}
		if ok && working.Covers(ivEv) {
			continue
		}
		what := "outside working hours"
		if !ok {
			what = "on a non-working day"
		} else if working.Overlaps(ivEv) {
			what = "partially outside working hours"
		}
		out = append(out, &Conflict{
			ID:          StableID(TypeOutsideHours, []string{ev.ID}, ""),
			Type:        TypeOutsideHours,
			Severity:    severityFor(TypeOutsideHours, ev.PriorityScore, false),
			Description: fmt.Sprintf("%q is %s (%s)", ev.Title, what, calendar.ShortDay(ev.Start.UTC().Weekday())),
			Events:      []*calendar.Event{ev},
			Window:      ivEv,
		})
	}
	return out, nil
}

// severityFor is the deterministic severity function of (type, max
// priority, protection). High priority or protected focus time always
// dominates; back_to_back and outside_hours never drop below medium.
func severityFor(t Type, maxPriority float64, protected bool) Severity {
	if maxPriority >= 0.8 {
		return SeverityHigh
	}
	if t == TypeFocusBlock && protected {
		return SeverityHigh
	}
	if t == TypeBackToBack || t == TypeOutsideHours {
		return SeverityMedium
	}
	return SeverityLow
}

func maxPriority(events ...*calendar.Event) float64 {
	max := 0.0
	for _, ev := range events {
		if ev.PriorityScore > max {
			max = ev.PriorityScore
		}
	}
	return max
}

func span(a, b interval.Interval) interval.Interval {
	out := a
	if b.Start.Before(out.Start) {
		out.Start = b.Start
	}
	if b.End.After(out.End) {
		out.End = b.End
	}
	return out
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
