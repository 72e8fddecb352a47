package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStatusMismatch indicates a conditional agent action update found the
// row in a different status than expected. The caller decides whether that
// was a lost race or an illegal transition.
var ErrStatusMismatch = errors.New("agent action status did not match expected value")

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// AgentAction model related methods.
	CreateAgentAction(ctx context.Context, create *AgentAction) (*AgentAction, error)
	GetAgentAction(ctx context.Context, uid string) (*AgentAction, error)
	ListAgentActions(ctx context.Context, find *FindAgentAction) ([]*AgentAction, error)
	// TransitionAgentAction is a compare-and-swap on the status column:
	// the update applies only when the row still carries the expected
	// status, otherwise ErrStatusMismatch is returned.
	TransitionAgentAction(ctx context.Context, transition *TransitionAgentAction) (*AgentAction, error)

	// SchedulingConflict model related methods.
	UpsertConflict(ctx context.Context, upsert *SchedulingConflict) (*SchedulingConflict, error)
	GetConflict(ctx context.Context, uid string) (*SchedulingConflict, error)
	ListConflicts(ctx context.Context, find *FindConflict) ([]*SchedulingConflict, error)

	// AuditEntry model related methods.
	CreateAuditEntry(ctx context.Context, create *AuditEntry) (*AuditEntry, error)
	ListAuditEntries(ctx context.Context, find *FindAuditEntry) ([]*AuditEntry, error)

	// UserPreference model related methods.
	GetUserPreference(ctx context.Context, userID int32) (*UserPreference, error)
	UpsertUserPreference(ctx context.Context, upsert *UpsertUserPreference) (*UserPreference, error)

	// SystemSetting model related methods.
	GetSystemSetting(ctx context.Context, name string) (*SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error)
}
