// Package calendar defines the value objects the scheduling engine works
// over: normalized calendar events, availability slots, working hours and
// focus blocks. Events are owned by the calendar sync collaborator and are
// treated as read-mostly input here; the engine only computes and writes
// back PriorityScore.
package calendar

import (
	"time"
)

// Provider identifies the upstream calendar account type.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
	ProviderICS       Provider = "ics"
)

// EventStatus is the attendance status of an event.
type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCancelled EventStatus = "cancelled"
)

// MeetingType is a coarse classification used for default prioritization
// when no user rule matches.
type MeetingType string

const (
	MeetingOneOnOne  MeetingType = "one_on_one"
	MeetingStandup   MeetingType = "standup"
	MeetingInterview MeetingType = "interview"
	MeetingExternal  MeetingType = "external"
	MeetingSocial    MeetingType = "social"
	MeetingUnknown   MeetingType = ""
)

// Event is a calendar event normalized to UTC by the sync collaborator.
// Sync guarantees deduplication by (Provider, ProviderEventID); the
// aggregator relies on that precondition to avoid double-counting busy time.
type Event struct {
	ID              string      `json:"id"`
	Provider        Provider    `json:"provider"`
	ProviderEventID string      `json:"providerEventId"`
	Title           string      `json:"title"`
	Start           time.Time   `json:"start"`
	End             time.Time   `json:"end"`
	Attendees       []string    `json:"attendees,omitempty"`
	Organizer       string      `json:"organizer,omitempty"`
	Status          EventStatus `json:"status"`
	MeetingType     MeetingType `json:"meetingType,omitempty"`
	PriorityScore   float64     `json:"priorityScore"`
	CreatedByAgent  bool        `json:"createdByAgent,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	LastModified    time.Time   `json:"lastModified"`
}

// Busy reports whether the event blocks time on the calendar.
// Cancelled events never do.
func (e *Event) Busy() bool {
	return e.Status == StatusConfirmed || e.Status == StatusTentative
}

// ConflictRef points a time slot at a detected conflict.
type ConflictRef struct {
	ConflictID string `json:"conflictId"`
	Type       string `json:"type"`
}

// TimeSlot is one contiguous stretch of a day's availability timeline.
// Immutable once produced by the aggregator for a given query.
type TimeSlot struct {
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Available bool          `json:"available"`
	Conflicts []ConflictRef `json:"conflicts,omitempty"`
}

// AvailabilityDay is the unified availability picture for one calendar day.
// Produced fresh per query and never mutated after construction.
type AvailabilityDay struct {
	Date         string       `json:"date"` // YYYY-MM-DD, UTC
	TimeSlots    []TimeSlot   `json:"timeSlots"`
	WorkingHours *DayHours    `json:"workingHours,omitempty"`
	FocusBlocks  []FocusBlock `json:"focusBlocks,omitempty"`
	// Degraded marks availability computed from incomplete provider data.
	Degraded bool `json:"degraded"`
}

// DayHours is a working-hours window expressed as wall-clock "HH:MM" pairs.
type DayHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyHours maps weekdays to working hours. A missing weekday means the
// user does not work that day.
type WeeklyHours map[time.Weekday]DayHours
