// Package availability merges busy data from every connected calendar into
// a unified per-day timeline, masked by working hours and focus blocks.
package availability

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/interval"
)

// Options tunes slot construction.
type Options struct {
	// GranularityMinutes is the grid free slots snap to.
	GranularityMinutes int
	// MinSlotMinutes drops free fragments shorter than a bookable meeting.
	MinSlotMinutes int
}

// DefaultOptions returns the stock 15-minute grid.
func DefaultOptions() Options {
	return Options{GranularityMinutes: 15, MinSlotMinutes: 15}
}

func (o Options) normalized() Options {
	if o.GranularityMinutes <= 0 {
		o.GranularityMinutes = 15
	}
	if o.MinSlotMinutes <= 0 {
		o.MinSlotMinutes = o.GranularityMinutes
	}
	return o
}

// Input is everything aggregation needs for one query. Events must already
// be deduplicated by (provider, providerEventId); the sync collaborator
// guarantees that precondition.
type Input struct {
	Window      interval.Interval
	Events      []*calendar.Event
	Hours       calendar.WeeklyHours
	FocusBlocks []calendar.FocusBlock
	// Degraded marks the batch as computed from incomplete provider data.
	Degraded bool
}

// Aggregate produces one AvailabilityDay per calendar day in the window.
func Aggregate(in Input, opts Options) ([]*calendar.AvailabilityDay, error) {
	opts = opts.normalized()

	days := make([]*calendar.AvailabilityDay, 0, 8)
	for cursor := in.Window.Start.UTC().Truncate(24 * time.Hour); cursor.Before(in.Window.End); cursor = cursor.AddDate(0, 0, 1) {
		day, err := aggregateDay(cursor, in, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "aggregate %s", calendar.DateKey(cursor))
		}
		days = append(days, day)
	}
	return days, nil
}

func aggregateDay(date time.Time, in Input, opts Options) (*calendar.AvailabilityDay, error) {
	day := &calendar.AvailabilityDay{
		Date:     calendar.DateKey(date),
		Degraded: in.Degraded,
	}

	working, ok, err := in.Hours.WindowOn(date)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Non-working day: no bookable time, nothing to mask.
		return day, nil
	}
	hours := in.Hours[date.UTC().Weekday()]
	day.WorkingHours = &hours

	protected, unprotected, err := calendar.FocusIntervalsOn(in.FocusBlocks, date)
	if err != nil {
		return nil, err
	}
	day.FocusBlocks = blocksOn(in.FocusBlocks, date)

	// Busy time is the union of confirmed and tentative events across all
	// providers, clipped to the working window.
	busy := make([]interval.Interval, 0, len(in.Events))
	for _, ev := range in.Events {
		if !ev.Busy() {
			continue
		}
		iv, err := interval.New(ev.Start, ev.End)
		if err != nil {
			return nil, errors.Wrapf(err, "event %s", ev.ID)
		}
		if clipped, ok := iv.Intersect(working); ok {
			busy = append(busy, clipped)
		}
	}

	free := interval.Subtract(working, busy)
	// Protected focus blocks are not bookable either.
	blocked := make([]interval.Interval, 0, len(free))
	for _, f := range free {
		blocked = append(blocked, interval.Subtract(f, protected)...)
	}

	quantized := quantize(blocked, working.Start, opts)

	// The timeline covers the working window exactly: whatever is not a
	// surviving free slot is reported busy (including sub-granularity
	// fragments, which are too short to book).
	freeIvs := make([]interval.Interval, len(quantized))
	copy(freeIvs, quantized)
	busySlots := interval.Subtract(working, freeIvs)

	slots := make([]calendar.TimeSlot, 0, len(quantized)+len(busySlots))
	for _, iv := range quantized {
		slots = append(slots, calendar.TimeSlot{Start: iv.Start, End: iv.End, Available: true})
	}
	for _, iv := range busySlots {
		slots = append(slots, calendar.TimeSlot{Start: iv.Start, End: iv.End, Available: false})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })

	// Unprotected focus blocks only annotate overlapping slots; detector
	// findings are attached by the engine through AttachConflict.
	for i := range slots {
		slotIv := interval.Interval{Start: slots[i].Start, End: slots[i].End}
		for _, u := range unprotected {
			if slotIv.Overlaps(u) {
				slots[i].Conflicts = append(slots[i].Conflicts, calendar.ConflictRef{Type: "focus_block"})
				break
			}
		}
	}

	day.TimeSlots = slots
	return day, nil
}

func blocksOn(blocks []calendar.FocusBlock, date time.Time) []calendar.FocusBlock {
	var out []calendar.FocusBlock
	for _, fb := range blocks {
		if _, ok, err := fb.IntervalOn(date); err == nil && ok {
			out = append(out, fb)
		}
	}
	return out
}

// quantize snaps free fragments to the granularity grid anchored at the
// working-hours start and drops fragments shorter than the bookable
// minimum.
func quantize(free []interval.Interval, anchor time.Time, opts Options) []interval.Interval {
	grid := time.Duration(opts.GranularityMinutes) * time.Minute
	minLen := time.Duration(opts.MinSlotMinutes) * time.Minute

	out := make([]interval.Interval, 0, len(free))
	for _, f := range free {
		start := snapUp(f.Start, anchor, grid)
		end := snapDown(f.End, anchor, grid)
		if !start.Before(end) || end.Sub(start) < minLen {
			continue
		}
		out = append(out, interval.Interval{Start: start, End: end})
	}
	return out
}

func snapUp(t, anchor time.Time, grid time.Duration) time.Time {
	offset := t.Sub(anchor)
	if offset%grid == 0 {
		return t
	}
	return anchor.Add((offset/grid + 1) * grid)
}

func snapDown(t, anchor time.Time, grid time.Duration) time.Time {
	offset := t.Sub(anchor)
	return anchor.Add((offset / grid) * grid)
}

// AttachConflict annotates every slot overlapping iv with the reference.
// Called while the day is still being assembled, before it is handed out.
func AttachConflict(day *calendar.AvailabilityDay, iv interval.Interval, ref calendar.ConflictRef) {
	for i := range day.TimeSlots {
		slotIv := interval.Interval{Start: day.TimeSlots[i].Start, End: day.TimeSlots[i].End}
		if slotIv.Overlaps(iv) {
			day.TimeSlots[i].Conflicts = append(day.TimeSlots[i].Conflicts, ref)
		}
	}
}

// OpenSlots returns available slots of at least minMinutes across days,
// in chronological order. Used by the resolution planner to find
// reschedule targets.
func OpenSlots(days []*calendar.AvailabilityDay, minMinutes int) []calendar.TimeSlot {
	var out []calendar.TimeSlot
	for _, day := range days {
		for _, slot := range day.TimeSlots {
			if !slot.Available {
				continue
			}
			if slot.End.Sub(slot.Start) >= time.Duration(minMinutes)*time.Minute {
				out = append(out, slot)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
