// Package audit records every engine decision as a durable trail entry.
// Recording is best effort: a failed write marks the response degraded,
// it never blocks the decision itself.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/clearday/clearday/store"
)

// Entry is one decision to record. Detail is marshaled to JSON; a nil
// Detail is stored as an empty document.
type Entry struct {
	UserID     int32
	Kind       store.AuditKind
	Action     string
	Detail     any
	Confidence float64
	Outcome    string
}

// Recorder writes decision records somewhere durable.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

// StoreRecorder persists entries through the store layer.
type StoreRecorder struct {
	store *store.Store
}

func NewStoreRecorder(s *store.Store) *StoreRecorder {
	return &StoreRecorder{store: s}
}

func (r *StoreRecorder) Record(ctx context.Context, entry *Entry) error {
	detail := "{}"
	if entry.Detail != nil {
		raw, err := json.Marshal(entry.Detail)
		if err != nil {
			// A detail that cannot be serialized still deserves a record.
			slog.Warn("failed to marshal audit detail", "kind", entry.Kind, "error", err)
		} else {
			detail = string(raw)
		}
	}

	_, err := r.store.CreateAuditEntry(ctx, &store.AuditEntry{
		UID:        shortuuid.New(),
		UserID:     entry.UserID,
		Kind:       entry.Kind,
		Action:     entry.Action,
		Detail:     detail,
		Confidence: entry.Confidence,
		Outcome:    entry.Outcome,
	})
	if err != nil {
		slog.Warn("failed to write audit entry", "kind", entry.Kind, "action", entry.Action, "error", err)
		return errors.Wrap(err, "failed to record audit entry")
	}
	return nil
}

// NopRecorder discards all entries.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *Entry) error { return nil }
