package apply

import (
	"time"

	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/route"
)

// OperationResult records the OS-level outcome of one plan operation.
// Benign outcomes (already present/absent) are successes, not errors.
type OperationResult struct {
	Op      route.Operation `json:"op"`
	Outcome osroute.Outcome `json:"outcome,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Ok reports whether the operation completed without error.
func (r OperationResult) Ok() bool {
	return r.Error == ""
}

// RollbackOutcome summarizes the automatic restore attempted after a
// failed operation.
type RollbackOutcome struct {
	SnapshotID string            `json:"snapshot_id"`
	Results    []OperationResult `json:"results,omitempty"`
	Restored   bool              `json:"restored"`
	Error      string            `json:"error,omitempty"`
}

// Report is the full record of one apply session: every operation
// attempted, its result, and the rollback outcome when the session failed.
type Report struct {
	Started     time.Time         `json:"started"`
	Finished    time.Time         `json:"finished"`
	SnapshotID  string            `json:"snapshot_id"` // pre-apply capture
	Fingerprint string            `json:"fingerprint"`
	Results     []OperationResult `json:"results"`
	Success     bool              `json:"success"`
	Rollback    *RollbackOutcome  `json:"rollback,omitempty"`
}

// Applied counts operations that actually changed the table.
func (r *Report) Applied() int {
	n := 0
	for _, res := range r.Results {
		if res.Ok() && res.Outcome == osroute.OutcomeApplied {
			n++
		}
	}
	return n
}

// NoOps counts benign already-present/already-absent outcomes.
func (r *Report) NoOps() int {
	n := 0
	for _, res := range r.Results {
		if res.Ok() && res.Outcome != osroute.OutcomeApplied {
			n++
		}
	}
	return n
}

// RestoreReport records an explicit snapshot restore session.
type RestoreReport struct {
	SnapshotID string            `json:"snapshot_id"`
	Started    time.Time         `json:"started"`
	Finished   time.Time         `json:"finished"`
	Results    []OperationResult `json:"results"`
	Success    bool              `json:"success"`
}
