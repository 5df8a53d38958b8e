// Package engine composes the reconciliation components into user-facing
// sessions: preview, apply, rollback, and validate.
//
// The OS route table is process-wide shared mutable state, so the engine
// holds a single apply/rollback mutation lock: one plan execution may be
// in flight system-wide; a second request fails fast with ErrBusy instead
// of queuing. Reads never take the lock and may run concurrently, but a
// read racing an apply is not guaranteed to reflect the final state.
package engine

import (
	"context"
	"os"
	"os/user"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/routewarden/routewarden/pkg/apply"
	"github.com/routewarden/routewarden/pkg/audit"
	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/profile"
	"github.com/routewarden/routewarden/pkg/resolve"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/snapshot"
	"github.com/routewarden/routewarden/pkg/util"
	"github.com/routewarden/routewarden/pkg/validate"
)

// Engine wires the components for one host.
type Engine struct {
	table      osroute.Table
	resolver   *resolve.Resolver
	snapshots  *snapshot.Manager
	applier    *apply.Applier
	validator  *validate.Validator
	mutation   *semaphore.Weighted
	privileged func() bool
	user       string
}

// Config selects the engine's collaborators. Table, Resolver, and
// Snapshots are required. A nil Validator defaults to a table-only
// validator (no probing); a nil Privileged defaults to the platform
// privilege check. Tests inject fakes.
type Config struct {
	Table      osroute.Table
	Resolver   *resolve.Resolver
	Snapshots  *snapshot.Manager
	Validator  *validate.Validator
	Privileged func() bool
}

// New assembles an engine.
func New(cfg Config) *Engine {
	e := &Engine{
		table:      cfg.Table,
		resolver:   cfg.Resolver,
		snapshots:  cfg.Snapshots,
		validator:  cfg.Validator,
		mutation:   semaphore.NewWeighted(1),
		privileged: cfg.Privileged,
		user:       currentUser(),
	}
	if e.validator == nil {
		e.validator = validate.NewValidator(e.table, nil)
	}
	if e.privileged == nil {
		e.privileged = osroute.HasPrivilege
	}
	e.applier = apply.NewApplier(e.table, e.snapshots)
	return e
}

// Snapshots exposes the snapshot store for listing and pruning commands.
func (e *Engine) Snapshots() *snapshot.Manager {
	return e.snapshots
}

// Resolver exposes the interface resolver for listing commands.
func (e *Engine) Resolver() *resolve.Resolver {
	return e.resolver
}

// PreviewResult is a computed plan plus everything the user needs to judge
// it: per-route resolution failures and danger warnings.
type PreviewResult struct {
	Profile  string            `json:"profile"`
	Plan     *route.Plan       `json:"plan"`
	Skipped  []resolve.Skipped `json:"-"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Preview resolves the profile and computes the diff against a fresh live
// read. Routes that fail resolution are excluded from the plan and
// flagged; they never abort the preview.
func (e *Engine) Preview(ctx context.Context, prof *profile.Profile) (*PreviewResult, error) {
	resolved, skipped, err := e.resolver.ResolveRoutes(ctx, prof.EnabledRoutes())
	if err != nil {
		return nil, err
	}

	live, err := e.table.List(ctx)
	if err != nil {
		return nil, err
	}

	plan := route.ComputeDiff(resolved, live, osroute.ManagedProtocol, resolve.Protection(skipped))
	return &PreviewResult{
		Profile:  prof.Name,
		Plan:     plan,
		Skipped:  skipped,
		Warnings: prof.Warnings(),
	}, nil
}

// ApplyResult is the full outcome of an apply session.
type ApplyResult struct {
	Preview    *PreviewResult   `json:"preview"`
	Report     *apply.Report    `json:"report"`
	Validation *validate.Report `json:"validation,omitempty"`
	Resolved   []route.Resolved `json:"-"`
}

// Apply runs a full mutating session: resolve, diff, snapshot, execute,
// post-validate, audit. It requires privilege and the mutation lock.
func (e *Engine) Apply(ctx context.Context, prof *profile.Profile) (*ApplyResult, error) {
	if !e.privileged() {
		return nil, &util.PermissionError{Operation: "apply"}
	}
	if !e.mutation.TryAcquire(1) {
		return nil, &util.ApplyError{Kind: util.ErrBusy, Detail: "another apply or rollback is in flight"}
	}
	defer e.mutation.Release(1)

	start := time.Now()
	event := audit.NewEvent(e.user, prof.Name, "apply").WithExecuteMode(true)

	resolved, skipped, err := e.resolver.ResolveRoutes(ctx, prof.EnabledRoutes())
	if err != nil {
		audit.Log(event.WithError(err).WithDuration(time.Since(start)))
		return nil, err
	}

	live, err := e.table.List(ctx)
	if err != nil {
		audit.Log(event.WithError(err).WithDuration(time.Since(start)))
		return nil, err
	}
	plan := route.ComputeDiff(resolved, live, osroute.ManagedProtocol, resolve.Protection(skipped))

	result := &ApplyResult{
		Preview:  &PreviewResult{Profile: prof.Name, Plan: plan, Skipped: skipped, Warnings: prof.Warnings()},
		Resolved: resolved,
	}
	if plan.IsEmpty() {
		audit.Log(event.WithSuccess().WithDuration(time.Since(start)))
		return result, nil
	}

	report, applyErr := e.applier.Apply(ctx, plan)
	result.Report = report
	event.WithSnapshot(report.SnapshotID).WithOperations(opRecords(report.Results))

	if applyErr != nil {
		if report.Rollback != nil {
			event.WithRollback(report.Rollback.Restored)
		}
		audit.Log(event.WithError(applyErr).WithDuration(time.Since(start)))
		return result, applyErr
	}

	// Validation is informational: a failure here never rolls back.
	validation, verr := e.validator.Validate(ctx, resolved, validate.Options{})
	if verr != nil {
		util.WithProfile(prof.Name).Warnf("post-apply validation failed: %v", verr)
	} else {
		result.Validation = validation
	}

	audit.Log(event.WithSuccess().WithDuration(time.Since(start)))
	return result, nil
}

// PreviewRestore computes the plan a rollback to snapshotID would run,
// without mutating anything.
func (e *Engine) PreviewRestore(ctx context.Context, snapshotID string) (*route.Plan, error) {
	snap, err := e.snapshots.Load(snapshotID)
	if err != nil {
		return nil, err
	}
	live, err := e.table.List(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.RestorePlan(snap, live), nil
}

// Rollback restores a stored snapshot. It shares the mutation lock and
// the execution path with forward applies.
func (e *Engine) Rollback(ctx context.Context, snapshotID string) (*apply.RestoreReport, error) {
	if !e.privileged() {
		return nil, &util.PermissionError{Operation: "rollback"}
	}
	if !e.mutation.TryAcquire(1) {
		return nil, &util.ApplyError{Kind: util.ErrBusy, Detail: "another apply or rollback is in flight"}
	}
	defer e.mutation.Release(1)

	start := time.Now()
	event := audit.NewEvent(e.user, "", "rollback").WithSnapshot(snapshotID).WithExecuteMode(true)

	report, err := e.applier.Restore(ctx, snapshotID)
	if report != nil {
		event.WithOperations(opRecords(report.Results))
	}
	if err != nil {
		audit.Log(event.WithError(err).WithDuration(time.Since(start)))
		return report, err
	}

	audit.Log(event.WithSuccess().WithDuration(time.Since(start)))
	return report, nil
}

// Validate re-reads the table and optionally probes reachability for the
// profile's routes. Read-only: no lock, no rollback on failure.
func (e *Engine) Validate(ctx context.Context, prof *profile.Profile, opts validate.Options) (*validate.Report, []resolve.Skipped, error) {
	start := time.Now()
	event := audit.NewEvent(e.user, prof.Name, "validate")

	resolved, skipped, err := e.resolver.ResolveRoutes(ctx, prof.EnabledRoutes())
	if err != nil {
		return nil, nil, err
	}

	report, err := e.validator.Validate(ctx, resolved, opts)
	if err != nil {
		audit.Log(event.WithError(err).WithDuration(time.Since(start)))
		return nil, skipped, err
	}

	audit.Log(event.WithSuccess().WithDuration(time.Since(start)))
	return report, skipped, nil
}

func opRecords(results []apply.OperationResult) []audit.OpRecord {
	records := make([]audit.OpRecord, 0, len(results))
	for _, r := range results {
		records = append(records, audit.OpRecord{
			Type:    string(r.Op.Type),
			Dest:    r.Op.Dest,
			Gateway: r.Op.Gateway,
			Outcome: string(r.Outcome),
			Error:   r.Error,
		})
	}
	return records
}

func currentUser() string {
	if su := os.Getenv("SUDO_USER"); su != "" {
		return su
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
