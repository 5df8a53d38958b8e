// Package audit provides append-only audit logging for route state
// transitions. Every attempted operation and every apply/rollback session
// outcome gets a record.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// OpRecord is the audited form of one route-table operation.
type OpRecord struct {
	Type    string `json:"type"` // add or delete
	Dest    string `json:"dest"`
	Gateway string `json:"gateway"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Event is one immutable audit record.
type Event struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	User        string        `json:"user"`
	Profile     string        `json:"profile,omitempty"`
	Operation   string        `json:"operation"` // preview, apply, rollback, validate
	SnapshotID  string        `json:"snapshot_id,omitempty"`
	Operations  []OpRecord    `json:"operations,omitempty"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	RolledBack  bool          `json:"rolled_back,omitempty"`
	ExecuteMode bool          `json:"execute_mode"` // true if -x was used
	DryRun      bool          `json:"dry_run"`
	Duration    time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	User        string
	Profile     string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, profileName, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Profile:   profileName,
		Operation: operation,
	}
}

// WithSnapshot records the session's pre-apply snapshot
func (e *Event) WithSnapshot(id string) *Event {
	e.SnapshotID = id
	return e
}

// WithOperations sets the per-operation records
func (e *Event) WithOperations(ops []OpRecord) *Event {
	e.Operations = ops
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithRollback marks that an automatic rollback ran
func (e *Event) WithRollback(restored bool) *Event {
	e.RolledBack = restored
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithExecuteMode marks if execute mode was used
func (e *Event) WithExecuteMode(execute bool) *Event {
	e.ExecuteMode = execute
	e.DryRun = !execute
	return e
}
