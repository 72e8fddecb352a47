package store

// ConflictStatus tracks what happened to a detected conflict.
type ConflictStatus string

const (
	ConflictOpen      ConflictStatus = "open"
	ConflictResolved  ConflictStatus = "resolved"
	ConflictDismissed ConflictStatus = "dismissed"
)

// SchedulingConflict is the persisted form of a detected conflict. The UID
// is the detector's stable id, so re-detection upserts instead of
// duplicating. Events are stored by id; the engine rehydrates them from
// the calendar sources when planning resolutions.
type SchedulingConflict struct {
	ID          int64
	UID         string
	UserID      int32
	Type        string
	Severity    string
	Description string
	// EventIDs is a JSON array of the involved calendar event ids.
	EventIDs      string
	WindowStartTs int64
	WindowEndTs   int64
	Status        ConflictStatus
	DetectedTs    int64
}

// FindConflict specifies the conditions for listing conflicts.
type FindConflict struct {
	UserID        *int32
	Status        *ConflictStatus
	WindowStartTs *int64
	WindowEndTs   *int64
	Limit         *int
}
