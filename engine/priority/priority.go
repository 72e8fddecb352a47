// Package priority scores calendar events against user-declared rules.
// Rules are evaluated in their declared order; the first enabled rule whose
// condition matches decides the bucket. Scoring is pure and deterministic:
// the same event and rule set always produce the same value.
package priority

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/engine/calendar"
)

// ErrRuleEvaluation marks a rule that could not be evaluated (for example a
// malformed regular expression). Such rules fail closed: they are treated as
// non-matching and logged, never fatal to scoring.
var ErrRuleEvaluation = errors.New("rule evaluation failed")

// Level is a discrete priority bucket.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Score maps a bucket to its numeric value. The exact midpoints are a
// tunable choice; the mapping must stay monotonic.
func (l Level) Score() (float64, bool) {
	switch l {
	case LevelLow:
		return 0.3, true
	case LevelMedium:
		return 0.6, true
	case LevelHigh:
		return 0.9, true
	}
	return 0, false
}

// ConditionKind is the closed set of event facets a rule can test.
type ConditionKind string

const (
	KindAttendee    ConditionKind = "attendee"
	KindSubject     ConditionKind = "subject"
	KindOrganizer   ConditionKind = "organizer"
	KindMeetingType ConditionKind = "meeting_type"
	KindTimeOfDay   ConditionKind = "time_of_day"
)

// Operator is the closed set of string tests a condition can apply.
type Operator string

const (
	OpContains   Operator = "contains"
	OpEquals     Operator = "equals"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpMatches    Operator = "matches"
)

// Condition pairs a facet with a test.
type Condition struct {
	Kind     ConditionKind `json:"type"`
	Operator Operator      `json:"operator"`
	Value    string        `json:"value"`
}

// Rule is one user-declared condition-to-priority mapping.
type Rule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Condition Condition `json:"condition"`
	Priority  Level     `json:"priority"`
	Enabled   bool      `json:"enabled"`
}

// baseline applies when no rule and no meeting-type default matches.
const baselineScore = 0.5

// defaultMeetingTypeScores backs the fallback when no rule matched.
var defaultMeetingTypeScores = map[calendar.MeetingType]float64{
	calendar.MeetingInterview: 0.9,
	calendar.MeetingExternal:  0.7,
	calendar.MeetingOneOnOne:  0.6,
	calendar.MeetingStandup:   0.4,
	calendar.MeetingSocial:    0.3,
}

// Engine evaluates rules. The zero value is not usable; use NewEngine.
type Engine struct {
	defaults map[calendar.MeetingType]float64
}

// NewEngine returns an engine with the stock meeting-type defaults.
func NewEngine() *Engine {
	return &Engine{defaults: defaultMeetingTypeScores}
}

// Score evaluates rules in declared order and returns the score of the
// first enabled rule that matches. Falls back to the meeting-type default,
// then the 0.5 baseline.
func (e *Engine) Score(event *calendar.Event, rules []Rule) float64 {
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		matched, err := e.matches(event, rule.Condition)
		if err != nil {
			slog.Warn("skipping unevaluable priority rule",
				"ruleID", rule.ID, "ruleName", rule.Name, "error", err)
			continue
		}
		if !matched {
			continue
		}
		if score, ok := rule.Priority.Score(); ok {
			return score
		}
		slog.Warn("priority rule has unknown level, skipping",
			"ruleID", rule.ID, "level", rule.Priority)
	}
	if score, ok := e.defaults[event.MeetingType]; ok {
		return score
	}
	return baselineScore
}

// matches dispatches on the condition kind. The switch is exhaustive over
// ConditionKind; an unknown kind is an evaluation error, not a silent miss.
func (e *Engine) matches(event *calendar.Event, cond Condition) (bool, error) {
	switch cond.Kind {
	case KindAttendee:
		for _, attendee := range event.Attendees {
			ok, err := applyOperator(attendee, cond.Operator, cond.Value)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case KindSubject:
		return applyOperator(event.Title, cond.Operator, cond.Value)
	case KindOrganizer:
		return applyOperator(event.Organizer, cond.Operator, cond.Value)
	case KindMeetingType:
		return applyOperator(string(event.MeetingType), cond.Operator, cond.Value)
	case KindTimeOfDay:
		return matchTimeOfDay(event.Start, cond.Value)
	}
	return false, errors.Wrapf(ErrRuleEvaluation, "unknown condition type %q", cond.Kind)
}

// applyOperator runs one string test. All tests are case-insensitive.
func applyOperator(field string, op Operator, value string) (bool, error) {
	f := strings.ToLower(strings.TrimSpace(field))
	v := strings.ToLower(strings.TrimSpace(value))
	switch op {
	case OpContains:
		return strings.Contains(f, v), nil
	case OpEquals:
		return f == v, nil
	case OpStartsWith:
		return strings.HasPrefix(f, v), nil
	case OpEndsWith:
		return strings.HasSuffix(f, v), nil
	case OpMatches:
		re, err := regexp.Compile("(?i)" + value)
		if err != nil {
			return false, errors.Wrapf(ErrRuleEvaluation, "invalid pattern %q: %v", value, err)
		}
		return re.MatchString(field), nil
	}
	return false, errors.Wrapf(ErrRuleEvaluation, "unknown operator %q", op)
}

// matchTimeOfDay tests whether the event start falls inside a "HH:MM-HH:MM"
// window. The operator is irrelevant for this facet and is ignored.
func matchTimeOfDay(start time.Time, window string) (bool, error) {
	parts := strings.SplitN(window, "-", 2)
	if len(parts) != 2 {
		return false, errors.Wrapf(ErrRuleEvaluation, "invalid time window %q, want HH:MM-HH:MM", window)
	}
	fromH, fromM, err := calendar.ParseClock(strings.TrimSpace(parts[0]))
	if err != nil {
		return false, errors.Wrap(ErrRuleEvaluation, err.Error())
	}
	toH, toM, err := calendar.ParseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return false, errors.Wrap(ErrRuleEvaluation, err.Error())
	}
	minutes := start.UTC().Hour()*60 + start.UTC().Minute()
	from := fromH*60 + fromM
	to := toH*60 + toM
	if from > to {
		return false, errors.Wrapf(ErrRuleEvaluation, "inverted time window %q", window)
	}
	return minutes >= from && minutes < to, nil
}
