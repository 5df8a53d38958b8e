package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/routewarden/routewarden/internal/testutil"
	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/profile"
	"github.com/routewarden/routewarden/pkg/resolve"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/snapshot"
	"github.com/routewarden/routewarden/pkg/util"
	"github.com/routewarden/routewarden/pkg/validate"
)

func testProfile() *profile.Profile {
	p := profile.New("office")
	p.Routes = []profile.RouteSpec{
		{Enabled: true, Target: "10.0.0.0/24", Gateway: "192.168.1.1", Interface: "eth0", Metric: 5},
		{Enabled: true, Target: "10.0.1.0/24", Gateway: "192.168.1.1", Interface: "wlan0", Metric: 5}, // unresolvable
	}
	return p
}

func newEngine(t *testing.T, table osroute.Table, privileged bool) *Engine {
	t.Helper()
	snaps, err := snapshot.NewManager(t.TempDir(), table)
	if err != nil {
		t.Fatal(err)
	}
	return New(Config{
		Table:      table,
		Resolver:   resolve.New(testutil.EthIfaces()),
		Snapshots:  snaps,
		Validator:  validate.NewValidator(table, nil),
		Privileged: func() bool { return privileged },
	})
}

func TestPreview(t *testing.T) {
	table := testutil.NewFakeTable()
	eng := newEngine(t, table, false) // reads need no privilege

	pv, err := eng.Preview(testutil.Context(t), testProfile())
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(pv.Plan.Ops) != 1 || pv.Plan.Ops[0].Dest != "10.0.0.0/24" {
		t.Errorf("plan = %v", pv.Plan.Ops)
	}
	if len(pv.Skipped) != 1 {
		t.Errorf("skipped = %v", pv.Skipped)
	}
	if table.Len() != 0 {
		t.Error("preview mutated the table")
	}
}

func TestApplyRequiresPrivilege(t *testing.T) {
	eng := newEngine(t, testutil.NewFakeTable(), false)

	_, err := eng.Apply(testutil.Context(t), testProfile())
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	_, err = eng.Rollback(testutil.Context(t), "any")
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("rollback: expected ErrPermissionDenied, got %v", err)
	}
}

func TestApplyEndToEnd(t *testing.T) {
	table := testutil.NewFakeTable()
	eng := newEngine(t, table, true)

	result, err := eng.Apply(testutil.Context(t), testProfile())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !result.Report.Success {
		t.Error("report not successful")
	}
	if !table.Has("10.0.0.0/24|192.168.1.1") {
		t.Error("route not installed")
	}
	if result.Validation == nil {
		t.Fatal("no post-apply validation")
	}
	if c := result.Validation.Counts(); c[validate.StatusVerified] != 1 {
		t.Errorf("validation counts = %v", c)
	}

	// Converged: a second apply is an empty plan and captures nothing.
	again, err := eng.Apply(testutil.Context(t), testProfile())
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !again.Preview.Plan.IsEmpty() {
		t.Errorf("second plan not empty: %v", again.Preview.Plan.Ops)
	}
	if again.Report != nil {
		t.Error("empty plan must not execute")
	}
}

// A config without a validator still runs post-apply validation through
// the table-only default.
func TestApplyWithDefaultValidator(t *testing.T) {
	table := testutil.NewFakeTable()
	snaps, err := snapshot.NewManager(t.TempDir(), table)
	if err != nil {
		t.Fatal(err)
	}
	eng := New(Config{
		Table:      table,
		Resolver:   resolve.New(testutil.EthIfaces()),
		Snapshots:  snaps,
		Privileged: func() bool { return true },
	})

	result, err := eng.Apply(testutil.Context(t), testProfile())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Validation == nil {
		t.Fatal("no post-apply validation")
	}
	if c := result.Validation.Counts(); c[validate.StatusVerified] != 1 {
		t.Errorf("validation counts = %v", c)
	}
}

// A route already installed stays in place when its spec later fails to
// resolve: dropping out of the desired set because an interface went away
// or a lookup failed must not turn the live route into an orphan delete.
func TestApplyKeepsRoutesForUnresolvedSpecs(t *testing.T) {
	table := testutil.NewFakeTable()
	eng := newEngine(t, table, true)
	ctx := testutil.Context(t)

	if _, err := eng.Apply(ctx, testProfile()); err != nil {
		t.Fatal(err)
	}
	if !table.Has("10.0.0.0/24|192.168.1.1") {
		t.Fatal("route not installed")
	}

	// Same profile against the same table, but eth0 has gone away.
	snaps, err := snapshot.NewManager(t.TempDir(), table)
	if err != nil {
		t.Fatal(err)
	}
	downlink := New(Config{
		Table:      table,
		Resolver:   resolve.New(&testutil.FakeInterfaces{}),
		Snapshots:  snaps,
		Validator:  validate.NewValidator(table, nil),
		Privileged: func() bool { return true },
	})

	result, err := downlink.Apply(ctx, testProfile())
	if err != nil {
		t.Fatalf("apply with interfaces absent: %v", err)
	}
	if !result.Preview.Plan.IsEmpty() {
		t.Errorf("expected empty plan, got %v", result.Preview.Plan.Ops)
	}
	if len(result.Preview.Skipped) != 2 {
		t.Errorf("skipped = %v", result.Preview.Skipped)
	}
	if !table.Has("10.0.0.0/24|192.168.1.1") {
		t.Error("installed route deleted after its interface disappeared")
	}
}

// gateTable blocks the first List call until released, holding the caller
// inside the mutation lock.
type gateTable struct {
	osroute.Table
	entered chan struct{}
	release chan struct{}
	first   sync.Once
}

func (g *gateTable) List(ctx context.Context) ([]route.LiveEntry, error) {
	var gated bool
	g.first.Do(func() { gated = true })
	if gated {
		close(g.entered)
		<-g.release
	}
	return g.Table.List(ctx)
}

// A second mutating session fails fast with ErrBusy instead of queuing
// behind the one in flight.
func TestMutationLockFailsFast(t *testing.T) {
	gate := &gateTable{
		Table:   testutil.NewFakeTable(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := newEngine(t, gate, true)
	ctx := testutil.Context(t)

	done := Go(ctx, func(ctx context.Context) (*ApplyResult, error) {
		return eng.Apply(ctx, testProfile())
	})
	<-gate.entered // first session holds the lock

	if _, err := eng.Apply(ctx, testProfile()); !errors.Is(err, util.ErrBusy) {
		t.Errorf("concurrent apply: expected ErrBusy, got %v", err)
	}
	if _, err := eng.Rollback(ctx, "any"); !errors.Is(err, util.ErrBusy) {
		t.Errorf("concurrent rollback: expected ErrBusy, got %v", err)
	}

	close(gate.release)
	res := <-done
	if res.Err != nil {
		t.Fatalf("first apply failed: %v", res.Err)
	}

	// The lock is released afterwards.
	if _, err := eng.Preview(ctx, testProfile()); err != nil {
		t.Fatalf("preview after release: %v", err)
	}
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	table := testutil.NewFakeTable()
	eng := newEngine(t, table, true)
	ctx := testutil.Context(t)

	result, err := eng.Apply(ctx, testProfile())
	if err != nil {
		t.Fatal(err)
	}
	snapID := result.Report.SnapshotID

	report, err := eng.Rollback(ctx, snapID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !report.Success {
		t.Error("restore not successful")
	}
	if table.Len() != 0 {
		t.Errorf("pre-apply state was empty, table now has %d entries", table.Len())
	}
}

func TestValidateReadOnly(t *testing.T) {
	table := testutil.NewFakeTable()
	eng := newEngine(t, table, false)

	report, skipped, err := eng.Validate(testutil.Context(t), testProfile(), validate.Options{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(skipped) != 1 {
		t.Errorf("skipped = %v", skipped)
	}
	if c := report.Counts(); c[validate.StatusMissing] != 1 {
		t.Errorf("counts = %v", c)
	}
}
