package store

// AuditKind groups audit entries by the decision stage they record.
type AuditKind string

const (
	AuditDetection AuditKind = "detection"
	AuditPlanning  AuditKind = "planning"
	AuditDecision  AuditKind = "decision"
	AuditAction    AuditKind = "action"
)

// AuditEntry is one durable record of an engine decision: its inputs,
// outputs, confidence and outcome. Write failures degrade the response,
// they never block it.
type AuditEntry struct {
	ID     int64
	UID    string
	UserID int32
	Kind   AuditKind
	Action string
	// Detail is a JSON document with the decision inputs and outputs.
	Detail     string
	Confidence float64
	Outcome    string
	CreatedTs  int64
}

// FindAuditEntry specifies the conditions for listing audit entries.
type FindAuditEntry struct {
	UserID *int32
	Kind   *AuditKind
	Limit  *int
	Offset *int
}
