package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/routewarden/routewarden/internal/testutil"
	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/util"
)

func managedEntry(dest, gw string) route.LiveEntry {
	return route.LiveEntry{Dest: dest, Gateway: gw, IfIndex: 2, Metric: 5, Protocol: osroute.ManagedProtocol}
}

func newManager(t *testing.T, entries ...route.LiveEntry) (*Manager, *testutil.FakeTable) {
	t.Helper()
	table := testutil.NewFakeTable(entries...)
	m, err := NewManager(t.TempDir(), table)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, table
}

func TestCaptureLoadRoundTrip(t *testing.T) {
	entries := []route.LiveEntry{
		managedEntry("10.0.0.0/24", "192.168.1.1"),
		{Dest: "0.0.0.0/0", Gateway: "192.168.1.1", IfIndex: 2, Metric: 100, Protocol: 4},
	}
	m, _ := newManager(t, entries...)

	snap, err := m.Capture(testutil.Context(t))
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if snap.ID == "" || len(snap.Entries) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	loaded, err := m.Load(snap.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(snap.Entries, loaded.Entries); diff != "" {
		t.Errorf("entries changed across persist (-want +got):\n%s", diff)
	}
}

func TestLoadUnknownSnapshot(t *testing.T) {
	m, _ := newManager(t)

	_, err := m.Load("no-such-id")
	if !errors.Is(err, util.ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
	var rbErr *util.RollbackError
	if !errors.As(err, &rbErr) || rbErr.SnapshotID != "no-such-id" {
		t.Errorf("expected RollbackError with snapshot id, got %v", err)
	}
}

func TestListNewestFirstAndPrune(t *testing.T) {
	m, _ := newManager(t, managedEntry("10.0.0.0/24", "192.168.1.1"))
	ctx := testutil.Context(t)

	var ids []string
	for i := 0; i < 5; i++ {
		snap, err := m.Capture(ctx)
		if err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
		ids = append(ids, snap.ID)
		time.Sleep(5 * time.Millisecond) // distinct CreatedAt ordering
	}

	metas, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 5 {
		t.Fatalf("len = %d", len(metas))
	}
	if metas[0].ID != ids[4] || metas[4].ID != ids[0] {
		t.Error("list is not newest-first")
	}

	removed, err := m.Prune(2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	metas, _ = m.List()
	if len(metas) != 2 || metas[0].ID != ids[4] || metas[1].ID != ids[3] {
		t.Errorf("prune kept the wrong snapshots: %+v", metas)
	}

	// Pruning below the retention count is a no-op.
	removed, err = m.Prune(10)
	if err != nil || removed != 0 {
		t.Errorf("prune(10) = %d, %v", removed, err)
	}
}

// Restoring a snapshot re-adds managed entries that disappeared, deletes
// managed entries added since, and never touches foreign routes.
func TestRestorePlan(t *testing.T) {
	snap := &Snapshot{
		ID: "s1",
		Entries: []route.LiveEntry{
			managedEntry("10.0.0.0/24", "192.168.1.1"), // was present, now deleted
			{Dest: "0.0.0.0/0", Gateway: "192.168.1.1", IfIndex: 2, Metric: 100, Protocol: 4}, // foreign
		},
	}
	live := []route.LiveEntry{
		{Dest: "0.0.0.0/0", Gateway: "192.168.1.1", IfIndex: 2, Metric: 100, Protocol: 4}, // unchanged foreign
		managedEntry("172.16.0.0/16", "192.168.1.9"), // added since the snapshot
	}

	plan := RestorePlan(snap, live)

	var got []string
	for _, op := range plan.Ops {
		got = append(got, string(op.Type)+" "+op.Dest)
	}
	want := []string{
		"add 10.0.0.0/24",
		"delete 172.16.0.0/16",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("restore plan mismatch (-want +got):\n%s", diff)
	}
}
