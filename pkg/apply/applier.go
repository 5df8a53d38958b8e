// Package apply executes diff plans against the OS route table with
// all-or-nothing session semantics: a pre-apply snapshot is captured, the
// plan runs strictly in order, and the first failure aborts the remainder
// and restores the snapshot automatically.
package apply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/snapshot"
	"github.com/routewarden/routewarden/pkg/util"
)

// DefaultOpTimeout bounds a single OS route mutation. A timeout is fatal
// to the operation and triggers the same rollback path as a rejection.
const DefaultOpTimeout = 5 * time.Second

// Applier executes plans. Callers must hold the engine's mutation lock:
// only one plan execution, forward or rollback, may be in flight at a time.
type Applier struct {
	table     osroute.Table
	snapshots *snapshot.Manager
	opTimeout time.Duration
}

// NewApplier creates an applier over the given table and snapshot store.
func NewApplier(table osroute.Table, snapshots *snapshot.Manager) *Applier {
	return &Applier{table: table, snapshots: snapshots, opTimeout: DefaultOpTimeout}
}

// WithOpTimeout overrides the per-operation bound.
func (a *Applier) WithOpTimeout(d time.Duration) *Applier {
	if d > 0 {
		a.opTimeout = d
	}
	return a
}

// Apply executes the plan. The plan must have been computed against live
// state no older than this session: a fresh table read is compared to the
// plan's fingerprint and a mismatch fails with ErrStaleState rather than
// reapplying against drifted state.
//
// Once the first mutation has been issued the session is not cancellable;
// the only escape from a partially-applied plan is the automatic rollback
// on failure or a later explicit rollback.
func (a *Applier) Apply(ctx context.Context, plan *route.Plan) (*Report, error) {
	report := &Report{Started: time.Now(), Fingerprint: plan.Fingerprint}

	live, err := a.table.List(ctx)
	if err != nil {
		return report, fmt.Errorf("re-reading live state: %w", err)
	}
	if fp := route.Fingerprint(live); fp != plan.Fingerprint {
		return report, &util.ApplyError{
			Kind:   util.ErrStaleState,
			Detail: "route table changed after the plan was computed; re-run preview",
		}
	}

	snap, err := a.snapshots.Capture(ctx)
	if err != nil {
		return report, fmt.Errorf("capturing pre-apply snapshot: %w", err)
	}
	report.SnapshotID = snap.ID

	log := util.WithOperation("apply")
	for _, op := range plan.Ops {
		outcome, opErr := a.execute(ctx, op, false)
		result := OperationResult{Op: op, Outcome: outcome}
		if opErr != nil {
			result.Error = opErr.Error()
			report.Results = append(report.Results, result)
			log.Errorf("%s failed: %v; rolling back to snapshot %s", op, opErr, snap.ID)

			report.Rollback = a.rollbackTo(ctx, snap)
			report.Finished = time.Now()
			return report, opErr
		}
		report.Results = append(report.Results, result)
		log.Debugf("%s: %s", op, outcome)
	}

	report.Success = true
	report.Finished = time.Now()
	return report, nil
}

// Restore applies the inverse plan that returns the table to the given
// snapshot. It is the explicit rollback path and shares ordering and
// execution with forward applies.
func (a *Applier) Restore(ctx context.Context, id string) (*RestoreReport, error) {
	snap, err := a.snapshots.Load(id)
	if err != nil {
		return nil, err
	}

	report := &RestoreReport{SnapshotID: id, Started: time.Now()}
	live, err := a.table.List(ctx)
	if err != nil {
		return report, fmt.Errorf("reading live state for restore: %w", err)
	}

	plan := snapshot.RestorePlan(snap, live)
	for _, op := range plan.Ops {
		outcome, opErr := a.execute(ctx, op, true)
		result := OperationResult{Op: op, Outcome: outcome}
		if opErr != nil {
			result.Error = opErr.Error()
			report.Results = append(report.Results, result)
			report.Finished = time.Now()
			return report, &util.RollbackError{SnapshotID: id, Cause: opErr}
		}
		report.Results = append(report.Results, result)
	}

	report.Success = true
	report.Finished = time.Now()
	return report, nil
}

// rollbackTo restores the pre-apply snapshot after a failed operation and
// reports the outcome alongside the triggering failure. A rollback failure
// is surfaced, never retried: the host may be left in an undefined routing
// state and needs manual intervention.
func (a *Applier) rollbackTo(ctx context.Context, snap *snapshot.Snapshot) *RollbackOutcome {
	outcome := &RollbackOutcome{SnapshotID: snap.ID}

	// The session context may already be done; rollback still has to run.
	restoreCtx := context.WithoutCancel(ctx)

	live, err := a.table.List(restoreCtx)
	if err != nil {
		outcome.Error = (&util.RollbackError{SnapshotID: snap.ID, Cause: err}).Error()
		return outcome
	}
	plan := snapshot.RestorePlan(snap, live)
	for _, op := range plan.Ops {
		res, opErr := a.execute(restoreCtx, op, true)
		result := OperationResult{Op: op, Outcome: res}
		if opErr != nil {
			result.Error = opErr.Error()
			outcome.Results = append(outcome.Results, result)
			outcome.Error = (&util.RollbackError{SnapshotID: snap.ID, Cause: opErr}).Error()
			return outcome
		}
		outcome.Results = append(outcome.Results, result)
	}
	outcome.Restored = true
	return outcome
}

// execute runs one mutation under the per-operation timeout.
func (a *Applier) execute(ctx context.Context, op route.Operation, duringRollback bool) (osroute.Outcome, error) {
	opCtx, cancel := context.WithTimeout(ctx, a.opTimeout)
	defer cancel()

	var outcome osroute.Outcome
	var err error
	switch op.Type {
	case route.OpAdd:
		outcome, err = a.table.Add(opCtx, op)
	case route.OpDelete:
		outcome, err = a.table.Delete(opCtx, op)
	default:
		err = fmt.Errorf("unknown operation type %q", op.Type)
	}

	if err != nil && duringRollback {
		var osErr *util.OSCommandError
		if errors.As(err, &osErr) {
			tagged := *osErr
			tagged.DuringRollback = true
			err = &tagged
		}
	}
	return outcome, err
}
