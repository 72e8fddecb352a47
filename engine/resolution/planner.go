// Package resolution turns detected conflicts into ranked, explainable
// resolution proposals. The planner never applies anything itself: every
// candidate is handed to the agent action workflow for approval.
package resolution

import (
	"fmt"
	"sort"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/clearday/clearday/engine/availability"
	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/conflict"
)

// Type classifies a resolution candidate.
type Type string

const (
	TypeReschedule Type = "reschedule"
	TypeShorten    Type = "shorten"
	TypeCancel     Type = "cancel"
	TypeAccept     Type = "accept"
)

// Resolution is one immutable proposal. Regeneration supersedes, never
// mutates, earlier proposals.
type Resolution struct {
	ID             string              `json:"id"`
	ConflictID     string              `json:"conflictId"`
	Type           Type                `json:"type"`
	Description    string              `json:"description"`
	AffectedEvents []string            `json:"affectedEvents"`
	ProposedTimes  []calendar.TimeSlot `json:"proposedTimes,omitempty"`
	Confidence     float64             `json:"confidence"`
	Reasoning      string              `json:"reasoning"`
}

// Params is the tunable confidence table. The hard contract is ordering,
// not the exact constants: candidates come back sorted by confidence
// descending and accept is always present.
type Params struct {
	// MinViableMinutes is the shortest meeting worth keeping after a shorten.
	MinViableMinutes int
	// CancelPriorityDelta is the minimum priority gap before cancelling is
	// ever proposed.
	CancelPriorityDelta float64
	// MaxAlternatives caps how many reschedule slots are proposed.
	MaxAlternatives int

	RescheduleBase      float64 // starting confidence with at least one slot
	PerAlternative      float64 // added per alternative, capped at 3
	ProximityBonusNear  float64 // best slot within 24h of the original time
	ProximityBonusFar   float64 // best slot within 48h
	ShortenWithFallback float64 // shorten when reschedule slots also exist
	ShortenAlone        float64 // shorten when no reschedule slot exists
	CancelConfidence    float64
	AcceptConfidence    float64
}

// DefaultParams keeps reschedule > shorten > cancel > accept whenever a
// clean reschedule exists, and promotes shorten above an alternative-less
// reschedule.
func DefaultParams() Params {
	return Params{
		MinViableMinutes:    30,
		CancelPriorityDelta: 0.3,
		MaxAlternatives:     3,
		RescheduleBase:      0.5,
		PerAlternative:      0.08,
		ProximityBonusNear:  0.15,
		ProximityBonusFar:   0.05,
		ShortenWithFallback: 0.45,
		ShortenAlone:        0.6,
		CancelConfidence:    0.35,
		AcceptConfidence:    0.2,
	}
}

// Planner generates resolution candidates.
type Planner struct {
	params Params
}

// NewPlanner returns a planner over the given parameter table.
func NewPlanner(params Params) *Planner {
	if params.MinViableMinutes <= 0 {
		params = DefaultParams()
	}
	return &Planner{params: params}
}

// Plan generates ranked candidates for one conflict. days is the current
// availability picture around the conflict window, used to find reschedule
// targets. At most three candidates are returned, sorted by confidence
// descending; an accept candidate is always among them.
func (p *Planner) Plan(c *conflict.Conflict, days []*calendar.AvailabilityDay) []*Resolution {
	loser, winner := pickLoser(c.Events)

	var candidates []*Resolution
	reschedule := p.planReschedule(c, loser, winner, days)
	if reschedule != nil {
		candidates = append(candidates, reschedule)
	}
	if c.Type == conflict.TypeOverlap {
		if shorten := p.planShorten(c, loser, winner, reschedule != nil); shorten != nil {
			candidates = append(candidates, shorten)
		}
	}
	if len(candidates) == 0 {
		if cancel := p.planCancel(c, loser, winner); cancel != nil {
			candidates = append(candidates, cancel)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > 2 {
		candidates = candidates[:2]
	}
	candidates = append(candidates, p.planAccept(c))

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}

// pickLoser chooses the event to move: lower priority loses, and on a tie
// the later-created event loses. Single-event conflicts (focus_block,
// outside_hours) move that event.
func pickLoser(events []*calendar.Event) (loser, winner *calendar.Event) {
	if len(events) == 0 {
		return nil, nil
	}
	if len(events) == 1 {
		return events[0], nil
	}
	a, b := events[0], events[1]
	switch {
	case a.PriorityScore < b.PriorityScore:
		return a, b
	case b.PriorityScore < a.PriorityScore:
		return b, a
	case a.CreatedAt.After(b.CreatedAt):
		return a, b
	default:
		return b, a
	}
}

func (p *Planner) planReschedule(c *conflict.Conflict, loser, winner *calendar.Event, days []*calendar.AvailabilityDay) *Resolution {
	if loser == nil {
		return nil
	}
	duration := loser.End.Sub(loser.Start)
	slots := availability.OpenSlots(days, int(duration/time.Minute))

	// Skip slots that would just recreate the conflict window.
	viable := make([]calendar.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Start.Before(c.Window.End) && c.Window.Start.Before(s.End) {
			continue
		}
		viable = append(viable, s)
		if len(viable) == p.params.MaxAlternatives {
			break
		}
	}
	if len(viable) == 0 {
		return nil
	}

	confidence := p.params.RescheduleBase
	n := len(viable)
	if n > 3 {
		n = 3
	}
	confidence += float64(n) * p.params.PerAlternative
	distance := absDuration(viable[0].Start.Sub(loser.Start))
	switch {
	case distance <= 24*time.Hour:
		confidence += p.params.ProximityBonusNear
	case distance <= 48*time.Hour:
		confidence += p.params.ProximityBonusFar
	}

	reasoning := fmt.Sprintf("%d alternative slot(s) found, nearest %s from the original time",
		len(viable), distance.Round(time.Minute))
	if winner != nil {
		reasoning = fmt.Sprintf("%q priority %.2f > %q priority %.2f; %s",
			winner.Title, winner.PriorityScore, loser.Title, loser.PriorityScore, reasoning)
	}

	return &Resolution{
		ID:             shortuuid.New(),
		ConflictID:     c.ID,
		Type:           TypeReschedule,
		Description:    fmt.Sprintf("Move %q to %s", loser.Title, viable[0].Start.Format("Mon 15:04")),
		AffectedEvents: []string{loser.ID},
		ProposedTimes:  viable,
		Confidence:     clamp(confidence),
		Reasoning:      reasoning,
	}
}

// planShorten proposes trimming the lower-priority event so the overlap
// disappears. Only sensible when both events stay viable meetings.
func (p *Planner) planShorten(c *conflict.Conflict, loser, winner *calendar.Event, hasReschedule bool) *Resolution {
	if loser == nil || winner == nil {
		return nil
	}
	minViable := time.Duration(p.params.MinViableMinutes) * time.Minute
	if loser.End.Sub(loser.Start) < minViable || winner.End.Sub(winner.Start) < minViable {
		return nil
	}
	// Truncating only works when the loser starts first and the remainder
	// stays a viable meeting.
	if !loser.Start.Before(winner.Start) {
		return nil
	}
	remainder := winner.Start.Sub(loser.Start)
	if remainder < minViable {
		return nil
	}

	confidence := p.params.ShortenAlone
	note := "no reschedule slot available"
	if hasReschedule {
		confidence = p.params.ShortenWithFallback
		note = "reschedule alternatives also exist"
	}
	return &Resolution{
		ID:         shortuuid.New(),
		ConflictID: c.ID,
		Type:       TypeShorten,
		Description: fmt.Sprintf("Shorten %q to end at %s", loser.Title,
			winner.Start.Format("15:04")),
		AffectedEvents: []string{loser.ID},
		ProposedTimes: []calendar.TimeSlot{{
			Start: loser.Start, End: winner.Start, Available: true,
		}},
		Confidence: clamp(confidence),
		Reasoning: fmt.Sprintf("%q priority %.2f > %q priority %.2f; trimming %d min removes the overlap; %s",
			winner.Title, winner.PriorityScore, loser.Title, loser.PriorityScore,
			int(loser.End.Sub(winner.Start)/time.Minute), note),
	}
}

// planCancel is the fallback when nothing else eliminates the conflict and
// one side is materially less important.
func (p *Planner) planCancel(c *conflict.Conflict, loser, winner *calendar.Event) *Resolution {
	if loser == nil || winner == nil {
		return nil
	}
	delta := winner.PriorityScore - loser.PriorityScore
	if delta < p.params.CancelPriorityDelta {
		return nil
	}
	return &Resolution{
		ID:             shortuuid.New(),
		ConflictID:     c.ID,
		Type:           TypeCancel,
		Description:    fmt.Sprintf("Cancel %q", loser.Title),
		AffectedEvents: []string{loser.ID},
		Confidence:     clamp(p.params.CancelConfidence),
		Reasoning: fmt.Sprintf("no reschedule or shorten option removes the conflict; %q priority %.2f trails %q priority %.2f by %.2f",
			loser.Title, loser.PriorityScore, winner.Title, winner.PriorityScore, delta),
	}
}

func (p *Planner) planAccept(c *conflict.Conflict) *Resolution {
	ids := make([]string, 0, len(c.Events))
	for _, ev := range c.Events {
		ids = append(ids, ev.ID)
	}
	return &Resolution{
		ID:             shortuuid.New(),
		ConflictID:     c.ID,
		Type:           TypeAccept,
		Description:    "Acknowledge the conflict and keep the calendar as is",
		AffectedEvents: ids,
		Confidence:     clamp(p.params.AcceptConfidence),
		Reasoning:      "no-op fallback: every conflict can be acknowledged without changes",
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
