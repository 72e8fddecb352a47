// Package engine composes the scheduling pipeline: fetch events from
// every connected calendar, score them, aggregate availability, detect
// conflicts, plan resolutions and route proposed changes through the
// approval workflow. The engine never mutates calendars itself.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/engine/action"
	"github.com/clearday/clearday/engine/audit"
	"github.com/clearday/clearday/engine/availability"
	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/conflict"
	"github.com/clearday/clearday/engine/interval"
	"github.com/clearday/clearday/engine/metrics"
	"github.com/clearday/clearday/engine/priority"
	"github.com/clearday/clearday/engine/resolution"
	"github.com/clearday/clearday/engine/source"
	"github.com/clearday/clearday/store"
)

// ErrConflictGone means a stored conflict is no longer reproducible from
// the current calendar data, typically because one of the involved
// events moved or was cancelled since detection.
var ErrConflictGone = errors.New("conflict no longer detected")

// Preferences is one user's scheduling configuration. It is persisted as
// a JSON document in the store and deserialized per request.
type Preferences struct {
	Accounts           []source.Account       `json:"accounts,omitempty"`
	WorkingHours       calendar.WeeklyHours   `json:"workingHours,omitempty"`
	FocusBlocks        []calendar.FocusBlock  `json:"focusBlocks,omitempty"`
	Rules              []priority.Rule        `json:"priorityRules,omitempty"`
	BufferMinutes      int                    `json:"bufferMinutes"`
	GranularityMinutes int                    `json:"granularityMinutes,omitempty"`
	MinSlotMinutes     int                    `json:"minSlotMinutes,omitempty"`
	// AutoApprove lists resolution types the user trusts the agent to
	// apply without confirmation.
	AutoApprove map[resolution.Type]bool `json:"autoApprove,omitempty"`
}

// DefaultPreferences is the stock Monday-to-Friday 9-to-5 configuration
// with a 10 minute meeting buffer. Every change still requires approval.
func DefaultPreferences() *Preferences {
	hours := calendar.WeeklyHours{}
	for d := time.Monday; d <= time.Friday; d++ {
		hours[d] = calendar.DayHours{Start: "09:00", End: "17:00"}
	}
	return &Preferences{
		WorkingHours:  hours,
		BufferMinutes: 10,
	}
}

// Config wires the engine's collaborators.
type Config struct {
	Store        *store.Store
	Registry     *source.Registry
	Recorder     audit.Recorder
	Exporter     *metrics.Exporter
	Params       resolution.Params
	FetchOptions source.FetchOptions
}

// Engine is the scheduling pipeline facade.
type Engine struct {
	store    *store.Store
	registry *source.Registry
	recorder audit.Recorder
	exporter *metrics.Exporter
	scorer   *priority.Engine
	planner  *resolution.Planner
	workflow *action.Workflow
	fetch    source.FetchOptions
}

func New(cfg Config) *Engine {
	if cfg.Recorder == nil {
		cfg.Recorder = audit.NopRecorder{}
	}
	if cfg.Exporter == nil {
		cfg.Exporter = metrics.NewExporter(metrics.DefaultConfig())
	}
	return &Engine{
		store:    cfg.Store,
		registry: cfg.Registry,
		recorder: cfg.Recorder,
		exporter: cfg.Exporter,
		scorer:   priority.NewEngine(),
		planner:  resolution.NewPlanner(cfg.Params),
		workflow: action.NewWorkflow(cfg.Store, cfg.Recorder),
		fetch:    cfg.FetchOptions,
	}
}

// Workflow exposes the approval workflow for decision handling.
func (e *Engine) Workflow() *action.Workflow {
	return e.workflow
}

// Exporter exposes the metrics exporter for HTTP registration.
func (e *Engine) Exporter() *metrics.Exporter {
	return e.exporter
}

// Availability is the response of one availability query.
type Availability struct {
	Days      []*calendar.AvailabilityDay `json:"days"`
	Conflicts []*conflict.Conflict        `json:"conflicts,omitempty"`
	Degraded  bool                        `json:"degraded"`
}

// GetPreferences loads the user's preferences, falling back to the stock
// configuration for users who never saved any.
func (e *Engine) GetPreferences(ctx context.Context, userID int32) (*Preferences, error) {
	stored, err := e.store.GetUserPreference(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load preferences")
	}
	prefs := DefaultPreferences()
	if err := json.Unmarshal([]byte(stored.Preferences), prefs); err != nil {
		return nil, errors.Wrap(err, "failed to decode preferences")
	}
	return prefs, nil
}

// SavePreferences persists the user's preferences.
func (e *Engine) SavePreferences(ctx context.Context, userID int32, prefs *Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return errors.Wrap(err, "failed to encode preferences")
	}
	_, err = e.store.UpsertUserPreference(ctx, &store.UpsertUserPreference{
		UserID:      userID,
		Preferences: string(raw),
	})
	return err
}

// GetAvailability computes the unified availability picture for the
// window, with detected conflicts attached to the slots they touch.
// accountIDs narrows the query to specific accounts; empty means all.
func (e *Engine) GetAvailability(ctx context.Context, userID int32, window interval.Interval, accountIDs []string) (*Availability, error) {
	started := time.Now()
	prefs, err := e.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	events, degraded := e.fetchScored(ctx, prefs, window, accountIDs)

	days, err := availability.Aggregate(availability.Input{
		Window:      window,
		Events:      events,
		Hours:       prefs.WorkingHours,
		FocusBlocks: prefs.FocusBlocks,
		Degraded:    degraded,
	}, availability.Options{
		GranularityMinutes: prefs.GranularityMinutes,
		MinSlotMinutes:     prefs.MinSlotMinutes,
	})
	if err != nil {
		e.exporter.ObserveAvailability("error", time.Since(started))
		return nil, errors.Wrap(err, "failed to aggregate availability")
	}

	detector := conflict.NewDetector(prefs.BufferMinutes)
	conflicts, err := detector.Detect(events, prefs.WorkingHours, prefs.FocusBlocks)
	if err != nil {
		e.exporter.ObserveAvailability("error", time.Since(started))
		return nil, errors.Wrap(err, "failed to detect conflicts")
	}
	for _, c := range conflicts {
		ref := calendar.ConflictRef{ConflictID: c.ID, Type: string(c.Type)}
		for _, day := range days {
			availability.AttachConflict(day, c.Window, ref)
		}
	}

	status := "ok"
	if degraded {
		status = "degraded"
	}
	e.exporter.ObserveAvailability(status, time.Since(started))
	return &Availability{Days: days, Conflicts: conflicts, Degraded: degraded}, nil
}

// DetectConflicts runs detection over the window and persists every
// finding under its stable id, so repeated scans upsert instead of
// duplicating. Previously stored conflicts that are no longer detected
// are left untouched for the user to resolve or dismiss.
func (e *Engine) DetectConflicts(ctx context.Context, userID int32, window interval.Interval) ([]*conflict.Conflict, bool, error) {
	prefs, err := e.GetPreferences(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	events, degraded := e.fetchScored(ctx, prefs, window, nil)
	detector := conflict.NewDetector(prefs.BufferMinutes)
	conflicts, err := detector.Detect(events, prefs.WorkingHours, prefs.FocusBlocks)
	if err != nil {
		return nil, degraded, errors.Wrap(err, "failed to detect conflicts")
	}

	for _, c := range conflicts {
		ids := make([]string, 0, len(c.Events))
		for _, ev := range c.Events {
			ids = append(ids, ev.ID)
		}
		rawIDs, err := json.Marshal(ids)
		if err != nil {
			return nil, degraded, errors.Wrap(err, "failed to encode event ids")
		}
		if _, err := e.store.UpsertConflict(ctx, &store.SchedulingConflict{
			UID:           c.ID,
			UserID:        userID,
			Type:          string(c.Type),
			Severity:      string(c.Severity),
			Description:   c.Description,
			EventIDs:      string(rawIDs),
			WindowStartTs: c.Window.Start.Unix(),
			WindowEndTs:   c.Window.End.Unix(),
		}); err != nil {
			return nil, degraded, errors.Wrap(err, "failed to persist conflict")
		}
		e.exporter.CountConflict(string(c.Type), string(c.Severity))
	}

	_ = e.recorder.Record(ctx, &audit.Entry{
		UserID: userID,
		Kind:   store.AuditDetection,
		Action: "detect_conflicts",
		Detail: map[string]any{
			"window":    window,
			"found":     len(conflicts),
			"degraded":  degraded,
			"eventSeen": len(events),
		},
		Outcome: "completed",
	})
	return conflicts, degraded, nil
}

// PlannedResolution pairs a resolution candidate with the agent action
// created for it. Accept candidates change nothing and get no action.
type PlannedResolution struct {
	*resolution.Resolution
	ActionUID string `json:"actionId,omitempty"`
}

// PlanResolutions regenerates ranked resolution candidates for a stored
// conflict. The conflict is re-detected against fresh calendar data
// first; a conflict that no longer reproduces yields ErrConflictGone.
// Each actionable candidate is registered as a pending agent action.
func (e *Engine) PlanResolutions(ctx context.Context, userID int32, conflictUID string) ([]*PlannedResolution, error) {
	stored, err := e.store.GetConflict(ctx, conflictUID)
	if err != nil {
		return nil, err
	}
	if stored.UserID != userID {
		return nil, errors.Wrapf(store.ErrNotFound, "conflict %s", conflictUID)
	}

	prefs, err := e.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Replan over a week of context starting at the conflict's day, so
	// the planner has reschedule targets to work with.
	dayStart := time.Unix(stored.WindowStartTs, 0).UTC().Truncate(24 * time.Hour)
	window, err := interval.New(dayStart, dayStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}

	events, degraded := e.fetchScored(ctx, prefs, window, nil)
	detector := conflict.NewDetector(prefs.BufferMinutes)
	conflicts, err := detector.Detect(events, prefs.WorkingHours, prefs.FocusBlocks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to re-detect conflicts")
	}

	var target *conflict.Conflict
	for _, c := range conflicts {
		if c.ID == conflictUID {
			target = c
			break
		}
	}
	if target == nil {
		return nil, errors.Wrapf(ErrConflictGone, "conflict %s", conflictUID)
	}

	days, err := availability.Aggregate(availability.Input{
		Window:      window,
		Events:      events,
		Hours:       prefs.WorkingHours,
		FocusBlocks: prefs.FocusBlocks,
		Degraded:    degraded,
	}, availability.Options{
		GranularityMinutes: prefs.GranularityMinutes,
		MinSlotMinutes:     prefs.MinSlotMinutes,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate availability")
	}

	candidates := e.planner.Plan(target, days)
	planned := make([]*PlannedResolution, 0, len(candidates))
	for _, cand := range candidates {
		e.exporter.CountPlan(string(cand.Type))
		pr := &PlannedResolution{Resolution: cand}
		if cand.Type != resolution.TypeAccept {
			act, err := e.proposeAction(ctx, userID, prefs, cand)
			if err != nil {
				return nil, err
			}
			pr.ActionUID = act.UID
		}
		planned = append(planned, pr)
	}

	_ = e.recorder.Record(ctx, &audit.Entry{
		UserID:     userID,
		Kind:       store.AuditPlanning,
		Action:     "plan_resolutions",
		Detail:     candidates,
		Confidence: topConfidence(candidates),
		Outcome:    "completed",
	})
	return planned, nil
}

// DecideAction applies a user decision to a pending agent action. The
// action must belong to the requesting user.
func (e *Engine) DecideAction(ctx context.Context, userID int32, actionUID string, decision action.Decision, feedback *string) (*store.AgentAction, error) {
	existing, err := e.store.GetAgentAction(ctx, actionUID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, errors.Wrapf(store.ErrNotFound, "agent action %s", actionUID)
	}

	updated, err := e.workflow.Decide(ctx, actionUID, decision, feedback)
	if err != nil {
		e.exporter.CountDecision(string(decision), "error")
		return nil, err
	}
	e.exporter.CountDecision(string(decision), string(updated.Status))
	return updated, nil
}

// fetchScored fans out to the user's calendar accounts and scores every
// fetched event. Provider failures degrade the result instead of
// failing it.
func (e *Engine) fetchScored(ctx context.Context, prefs *Preferences, window interval.Interval, accountIDs []string) ([]*calendar.Event, bool) {
	accounts := prefs.Accounts
	if len(accountIDs) > 0 {
		wanted := make(map[string]bool, len(accountIDs))
		for _, id := range accountIDs {
			wanted[id] = true
		}
		filtered := make([]source.Account, 0, len(accounts))
		for _, a := range accounts {
			if wanted[a.ID] {
				filtered = append(filtered, a)
			}
		}
		accounts = filtered
	}
	if len(accounts) == 0 {
		return nil, false
	}

	results := source.FetchAll(ctx, e.registry, accounts, window, e.fetch)
	var events []*calendar.Event
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "error"
			slog.Warn("account fetch failed, computing degraded availability",
				"provider", r.Account.Provider, "accountID", r.Account.ID, "error", r.Err)
		}
		e.exporter.ObserveFetch(string(r.Account.Provider), status, r.Elapsed)
		events = append(events, r.Events...)
	}
	for _, ev := range events {
		ev.PriorityScore = e.scorer.Score(ev, prefs.Rules)
	}
	return events, source.Degraded(results)
}

func (e *Engine) proposeAction(ctx context.Context, userID int32, prefs *Preferences, cand *resolution.Resolution) (*store.AgentAction, error) {
	raw, err := json.Marshal(cand)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode resolution")
	}
	return e.workflow.Propose(ctx, &store.AgentAction{
		UserID:           userID,
		Type:             actionTypeFor(cand.Type),
		Description:      cand.Description,
		RequiresApproval: !prefs.AutoApprove[cand.Type],
		Reasoning:        cand.Reasoning,
		ProposedChanges:  string(raw),
		ConflictUID:      cand.ConflictID,
	})
}

func actionTypeFor(t resolution.Type) store.ActionType {
	switch t {
	case resolution.TypeCancel:
		return store.ActionCancel
	default:
		// Reschedule and shorten both modify an existing event's time.
		return store.ActionReschedule
	}
}

func topConfidence(candidates []*resolution.Resolution) float64 {
	if len(candidates) == 0 {
		return 0
	}
	return candidates[0].Confidence
}
