package store

// ActionStatus is the lifecycle state of an agent action.
type ActionStatus string

const (
	ActionPending  ActionStatus = "pending"
	ActionApproved ActionStatus = "approved"
	ActionRejected ActionStatus = "rejected"
	ActionExecuted ActionStatus = "executed"
)

// Terminal reports whether no further transition is allowed from s.
func (s ActionStatus) Terminal() bool {
	return s == ActionRejected || s == ActionExecuted
}

// ActionType classifies what the agent proposes to do.
type ActionType string

const (
	ActionSchedule       ActionType = "schedule"
	ActionReschedule     ActionType = "reschedule"
	ActionCancel         ActionType = "cancel"
	ActionSendEmail      ActionType = "send_email"
	ActionDetectConflict ActionType = "detect_conflict"
)

// AgentAction is a proposed automated change awaiting human or policy
// approval. Status is only ever changed through TransitionAgentAction.
type AgentAction struct {
	ID               int64
	UID              string
	UserID           int32
	Type             ActionType
	Description      string
	Status           ActionStatus
	RequiresApproval bool
	Reasoning        string
	// ProposedChanges is a JSON document describing the change, typically
	// a serialized resolution candidate.
	ProposedChanges string
	ConflictUID     string
	CreatedTs       int64
	ExecutedTs      *int64
	UserFeedback    *string
}

// FindAgentAction specifies the conditions for listing agent actions.
type FindAgentAction struct {
	UserID      *int32
	Status      *ActionStatus
	ConflictUID *string
	Limit       *int
}

// TransitionAgentAction is a conditional status update. The update only
// applies when the stored status equals From.
type TransitionAgentAction struct {
	UID          string
	From         ActionStatus
	To           ActionStatus
	UserFeedback *string
	ExecutedTs   *int64
}
