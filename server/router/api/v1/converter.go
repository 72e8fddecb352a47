package v1

import (
	"encoding/json"

	"github.com/clearday/clearday/store"
)

// agentActionResponse is the wire shape of a stored agent action.
type agentActionResponse struct {
	ID               string          `json:"id"`
	Type             string          `json:"type"`
	Description      string          `json:"description"`
	Status           string          `json:"status"`
	RequiresApproval bool            `json:"requiresApproval"`
	Reasoning        string          `json:"reasoning"`
	ProposedChanges  json.RawMessage `json:"proposedChanges,omitempty"`
	ConflictID       string          `json:"conflictId,omitempty"`
	CreatedTs        int64           `json:"createdTs"`
	ExecutedTs       *int64          `json:"executedTs,omitempty"`
	UserFeedback     *string         `json:"userFeedback,omitempty"`
}

func convertAgentAction(a *store.AgentAction) *agentActionResponse {
	changes := a.ProposedChanges
	if changes == "" {
		changes = "{}"
	}
	return &agentActionResponse{
		ID:               a.UID,
		Type:             string(a.Type),
		Description:      a.Description,
		Status:           string(a.Status),
		RequiresApproval: a.RequiresApproval,
		Reasoning:        a.Reasoning,
		ProposedChanges:  json.RawMessage(changes),
		ConflictID:       a.ConflictUID,
		CreatedTs:        a.CreatedTs,
		ExecutedTs:       a.ExecutedTs,
		UserFeedback:     a.UserFeedback,
	}
}

func convertAgentActions(actions []*store.AgentAction) []*agentActionResponse {
	out := make([]*agentActionResponse, 0, len(actions))
	for _, a := range actions {
		out = append(out, convertAgentAction(a))
	}
	return out
}

// auditEntryResponse is the wire shape of an audit entry.
type auditEntryResponse struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Action     string          `json:"action"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Confidence float64         `json:"confidence"`
	Outcome    string          `json:"outcome"`
	CreatedTs  int64           `json:"createdTs"`
}

func convertAuditEntry(e *store.AuditEntry) *auditEntryResponse {
	detail := e.Detail
	if detail == "" {
		detail = "{}"
	}
	return &auditEntryResponse{
		ID:         e.UID,
		Kind:       string(e.Kind),
		Action:     e.Action,
		Detail:     json.RawMessage(detail),
		Confidence: e.Confidence,
		Outcome:    e.Outcome,
		CreatedTs:  e.CreatedTs,
	}
}

func convertAuditEntries(entries []*store.AuditEntry) []*auditEntryResponse {
	out := make([]*auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, convertAuditEntry(e))
	}
	return out
}
