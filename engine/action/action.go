// Package action implements the approval workflow for agent-proposed
// changes. Every proposed change is persisted before anything acts on
// it, and status moves only through compare-and-swap transitions so two
// concurrent decisions can never both win.
package action

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/clearday/clearday/engine/audit"
	"github.com/clearday/clearday/store"
)

var (
	// ErrInvalidStateTransition means the action is in a state that can
	// never accept the requested transition.
	ErrInvalidStateTransition = errors.New("action state does not allow this transition")
	// ErrConcurrentModification means another decision won the race and
	// the action has since moved on.
	ErrConcurrentModification = errors.New("action was modified concurrently")
)

// Decision is a user's verdict on a pending action.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Workflow drives agent actions through their lifecycle:
// pending -> approved -> executed, or pending -> rejected.
type Workflow struct {
	store    *store.Store
	recorder audit.Recorder
}

func NewWorkflow(s *store.Store, recorder audit.Recorder) *Workflow {
	return &Workflow{store: s, recorder: recorder}
}

// Propose persists a new agent action. Actions that do not require
// approval are created already approved; the auto approval is still
// audited.
func (w *Workflow) Propose(ctx context.Context, proposal *store.AgentAction) (*store.AgentAction, error) {
	if proposal.UID == "" {
		proposal.UID = shortuuid.New()
	}
	if proposal.RequiresApproval {
		proposal.Status = store.ActionPending
	} else {
		proposal.Status = store.ActionApproved
	}

	created, err := w.store.CreateAgentAction(ctx, proposal)
	if err != nil {
		return nil, errors.Wrap(err, "failed to propose action")
	}

	outcome := "pending_approval"
	if created.Status == store.ActionApproved {
		outcome = "auto_approved"
	}
	_ = w.recorder.Record(ctx, &audit.Entry{
		UserID:  created.UserID,
		Kind:    store.AuditAction,
		Action:  string(created.Type),
		Detail:  created,
		Outcome: outcome,
	})
	return created, nil
}

// Decide applies a user decision to a pending action.
func (w *Workflow) Decide(ctx context.Context, uid string, decision Decision, feedback *string) (*store.AgentAction, error) {
	var to store.ActionStatus
	switch decision {
	case DecisionApprove:
		to = store.ActionApproved
	case DecisionReject:
		to = store.ActionRejected
	default:
		return nil, errors.Errorf("unknown decision %q", decision)
	}

	updated, err := w.store.TransitionAgentAction(ctx, &store.TransitionAgentAction{
		UID:          uid,
		From:         store.ActionPending,
		To:           to,
		UserFeedback: feedback,
	})
	if errors.Is(err, store.ErrStatusMismatch) {
		return nil, w.classifyMismatch(ctx, uid, store.ActionPending)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to decide action")
	}

	detail := map[string]any{"decision": decision}
	if feedback != nil {
		detail["feedback"] = *feedback
	}
	_ = w.recorder.Record(ctx, &audit.Entry{
		UserID:  updated.UserID,
		Kind:    store.AuditDecision,
		Action:  string(updated.Type),
		Detail:  detail,
		Outcome: string(updated.Status),
	})
	return updated, nil
}

// Executor applies an approved action to the upstream calendar. The
// engine ships no implementation; write-back belongs to the calendar
// sync collaborator.
type Executor interface {
	Execute(ctx context.Context, action *store.AgentAction) error
}

// Execute runs an approved action through the executor and records the
// completion. The action stays approved when the executor fails, so the
// attempt can be retried.
func (w *Workflow) Execute(ctx context.Context, uid string, executor Executor) (*store.AgentAction, error) {
	current, err := w.store.GetAgentAction(ctx, uid)
	if err != nil {
		return nil, err
	}
	if current.Status != store.ActionApproved {
		return nil, errors.Wrapf(ErrInvalidStateTransition, "action %s is %s, want approved", uid, current.Status)
	}
	if err := executor.Execute(ctx, current); err != nil {
		_ = w.recorder.Record(ctx, &audit.Entry{
			UserID:  current.UserID,
			Kind:    store.AuditAction,
			Action:  string(current.Type),
			Outcome: "execution_failed",
		})
		return nil, errors.Wrapf(err, "failed to execute action %s", uid)
	}
	return w.MarkExecuted(ctx, uid)
}

// MarkExecuted records that an approved action was carried out.
func (w *Workflow) MarkExecuted(ctx context.Context, uid string) (*store.AgentAction, error) {
	now := time.Now().Unix()
	updated, err := w.store.TransitionAgentAction(ctx, &store.TransitionAgentAction{
		UID:        uid,
		From:       store.ActionApproved,
		To:         store.ActionExecuted,
		ExecutedTs: &now,
	})
	if errors.Is(err, store.ErrStatusMismatch) {
		return nil, w.classifyMismatch(ctx, uid, store.ActionApproved)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to mark action executed")
	}

	_ = w.recorder.Record(ctx, &audit.Entry{
		UserID:  updated.UserID,
		Kind:    store.AuditAction,
		Action:  string(updated.Type),
		Outcome: string(updated.Status),
	})
	return updated, nil
}

// classifyMismatch re-reads the action after a failed compare-and-swap
// to tell a stale request apart from a lost race. A status the action
// could still have reached from the expected one means someone else got
// there first; anything else means the request itself was invalid.
func (w *Workflow) classifyMismatch(ctx context.Context, uid string, from store.ActionStatus) error {
	current, err := w.store.GetAgentAction(ctx, uid)
	if err != nil {
		return err
	}
	if !current.Status.Terminal() && advancedFrom(from, current.Status) {
		return errors.Wrapf(ErrConcurrentModification, "action %s moved to %s", uid, current.Status)
	}
	return errors.Wrapf(ErrInvalidStateTransition, "action %s is %s", uid, current.Status)
}

// advancedFrom reports whether current is reachable from the given
// status through allowed transitions.
func advancedFrom(from, current store.ActionStatus) bool {
	switch from {
	case store.ActionPending:
		return current == store.ActionApproved || current == store.ActionRejected || current == store.ActionExecuted
	case store.ActionApproved:
		return current == store.ActionExecuted
	default:
		return false
	}
}
