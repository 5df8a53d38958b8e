package route

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const managed = 201

func desired(dest, gw string, ifIndex, metric int) Resolved {
	return Resolved{Dest: dest, Gateway: gw, IfIndex: ifIndex, Metric: metric, SpecKey: dest + "|" + gw}
}

func liveEntry(dest, gw string, ifIndex, metric, proto int) LiveEntry {
	return LiveEntry{Dest: dest, Gateway: gw, IfIndex: ifIndex, Metric: metric, Protocol: proto}
}

func TestComputeDiffEmptyWhenConverged(t *testing.T) {
	res := []Resolved{
		desired("10.0.0.0/24", "192.168.1.1", 2, 5),
		desired("10.0.1.0/24", "192.168.1.1", 2, 5),
	}
	live := []LiveEntry{
		liveEntry("10.0.0.0/24", "192.168.1.1", 2, 5, managed),
		liveEntry("10.0.1.0/24", "192.168.1.1", 2, 5, managed),
	}

	plan := ComputeDiff(res, live, managed, nil)
	if !plan.IsEmpty() {
		t.Fatalf("expected empty plan, got %d ops:\n%s", len(plan.Ops), plan)
	}
}

// Applying a plan and re-diffing must converge to an empty plan.
func TestComputeDiffIdempotent(t *testing.T) {
	res := []Resolved{
		desired("10.0.0.0/24", "192.168.1.1", 2, 5),
		desired("172.16.0.0/16", "192.168.1.254", 2, 10),
	}
	live := []LiveEntry{
		liveEntry("10.9.9.0/24", "192.168.1.1", 2, 5, managed), // orphan: to delete
	}

	plan := ComputeDiff(res, live, managed, nil)

	// Simulate execution against an in-memory map.
	state := make(map[string]LiveEntry)
	for _, e := range live {
		state[e.Key()] = e
	}
	for _, op := range plan.Ops {
		key := op.Dest + "|" + op.Gateway
		switch op.Type {
		case OpAdd:
			state[key] = LiveEntry{Dest: op.Dest, Gateway: op.Gateway, IfIndex: op.IfIndex, Metric: op.Metric, Protocol: managed}
		case OpDelete:
			delete(state, key)
		}
	}
	after := make([]LiveEntry, 0, len(state))
	for _, e := range state {
		after = append(after, e)
	}

	again := ComputeDiff(res, after, managed, nil)
	if !again.IsEmpty() {
		t.Fatalf("second diff not empty:\n%s", again)
	}
}

func TestComputeDiffAddsMissing(t *testing.T) {
	res := []Resolved{desired("10.0.0.0/24", "192.168.1.1", 2, 5)}

	plan := ComputeDiff(res, nil, managed, nil)

	want := []Operation{{
		Type: OpAdd, Dest: "10.0.0.0/24", Gateway: "192.168.1.1",
		IfIndex: 2, Metric: 5, SpecKey: "10.0.0.0/24|192.168.1.1",
	}}
	if diff := cmp.Diff(want, plan.Ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

// Live entries not stamped with the managed protocol are never deleted,
// even when the profile does not mention them.
func TestComputeDiffLeavesForeignRoutes(t *testing.T) {
	live := []LiveEntry{
		liveEntry("0.0.0.0/0", "192.168.1.1", 2, 100, 4),        // DHCP default route
		liveEntry("192.168.1.0/24", "0.0.0.0", 2, 0, 2),         // kernel on-link
		liveEntry("10.8.0.0/24", "10.8.0.1", 7, 50, 3),          // other daemon
		liveEntry("172.16.0.0/16", "192.168.1.9", 2, 5, managed), // ours, orphaned
	}

	plan := ComputeDiff(nil, live, managed, nil)

	if len(plan.Ops) != 1 {
		t.Fatalf("expected exactly 1 delete, got %d:\n%s", len(plan.Ops), plan)
	}
	op := plan.Ops[0]
	if op.Type != OpDelete || op.Dest != "172.16.0.0/16" {
		t.Errorf("expected delete of managed orphan, got %s", op)
	}
}

// A managed live route whose source spec failed resolution this session is
// absent from the desired set, but it must be kept, not deleted as an
// orphan. Only a disabled or removed spec releases its routes.
func TestComputeDiffProtectedEntriesAreKept(t *testing.T) {
	// First entry's interface is down, the second came from a domain spec
	// whose lookup now fails, the third's spec was removed entirely.
	live := []LiveEntry{
		liveEntry("10.0.0.0/24", "192.168.1.1", 2, 5, managed),
		liveEntry("93.184.216.34/32", "192.168.1.1", 2, 5, managed),
		liveEntry("172.16.0.0/16", "192.168.1.9", 2, 5, managed),
	}

	var p Protected
	p.ProtectKey("10.0.0.0/24|192.168.1.1")
	p.ProtectGateway("192.168.1.1")

	plan := ComputeDiff(nil, live, managed, &p)

	if len(plan.Ops) != 1 {
		t.Fatalf("expected exactly 1 delete, got %d:\n%s", len(plan.Ops), plan)
	}
	if op := plan.Ops[0]; op.Type != OpDelete || op.Dest != "172.16.0.0/16" {
		t.Errorf("expected delete of the unprotected orphan, got %s", op)
	}
}

// Gateway protection holds host routes only; a protected gateway never
// shields a broader managed prefix from deletion.
func TestComputeDiffGatewayProtectionIsHostRoutesOnly(t *testing.T) {
	live := []LiveEntry{
		liveEntry("10.0.0.0/24", "192.168.1.1", 2, 5, managed),
	}
	var p Protected
	p.ProtectGateway("192.168.1.1")

	plan := ComputeDiff(nil, live, managed, &p)

	if len(plan.Ops) != 1 || plan.Ops[0].Type != OpDelete {
		t.Fatalf("expected the /24 orphan deleted, got:\n%s", plan)
	}
}

// A metric or interface change on an existing route is a paired
// Delete+Add, not a bare add that would duplicate the entry.
func TestComputeDiffModifyPairsDeleteAndAdd(t *testing.T) {
	res := []Resolved{desired("10.0.0.0/24", "192.168.1.1", 2, 5)}
	live := []LiveEntry{liveEntry("10.0.0.0/24", "192.168.1.1", 2, 20, managed)}

	plan := ComputeDiff(res, live, managed, nil)

	if len(plan.Ops) != 2 {
		t.Fatalf("expected delete+add pair, got %d ops:\n%s", len(plan.Ops), plan)
	}
	var add, del *Operation
	for i := range plan.Ops {
		switch plan.Ops[i].Type {
		case OpAdd:
			add = &plan.Ops[i]
		case OpDelete:
			del = &plan.Ops[i]
		}
	}
	if add == nil || del == nil {
		t.Fatalf("pair incomplete: %v", plan.Ops)
	}
	if add.PairKey == "" || add.PairKey != del.PairKey {
		t.Errorf("pair keys do not link: add=%q del=%q", add.PairKey, del.PairKey)
	}
	if del.Metric != 20 || add.Metric != 5 {
		t.Errorf("pair metrics wrong: del=%d add=%d", del.Metric, add.Metric)
	}

	rows := plan.Rows()
	if len(rows) != 1 || rows[0].Action != "modify" {
		t.Errorf("expected one modify row, got %+v", rows)
	}
}

// A gateway change is a different identity key: delete old, add new,
// unpaired.
func TestComputeDiffGatewayChangeIsDistinctRoutes(t *testing.T) {
	res := []Resolved{desired("10.0.0.0/24", "192.168.1.254", 2, 5)}
	live := []LiveEntry{liveEntry("10.0.0.0/24", "192.168.1.1", 2, 5, managed)}

	plan := ComputeDiff(res, live, managed, nil)

	if len(plan.Ops) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(plan.Ops))
	}
	for _, op := range plan.Ops {
		if op.PairKey != "" {
			t.Errorf("gateway change must not pair, got PairKey=%q on %s", op.PairKey, op)
		}
	}
	// Adds before deletes.
	if plan.Ops[0].Type != OpAdd || plan.Ops[1].Type != OpDelete {
		t.Errorf("wrong order: %v then %v", plan.Ops[0].Type, plan.Ops[1].Type)
	}
}

// Replacing the default route must sequence the new default's add
// immediately before the old default's delete, after all other adds, so
// there is never a window with no default route.
func TestComputeDiffDefaultRouteReplacementOrdering(t *testing.T) {
	res := []Resolved{
		desired("0.0.0.0/0", "192.168.1.254", 2, 1),
		desired("10.0.0.0/24", "192.168.1.1", 2, 5),
	}
	live := []LiveEntry{
		liveEntry("0.0.0.0/0", "192.168.1.1", 2, 1, managed),
		liveEntry("172.16.0.0/16", "192.168.1.1", 2, 5, managed),
	}

	plan := ComputeDiff(res, live, managed, nil)

	var order []string
	for _, op := range plan.Ops {
		order = append(order, string(op.Type)+" "+op.Dest)
	}
	want := []string{
		"add 10.0.0.0/24",
		"add 0.0.0.0/0",
		"delete 0.0.0.0/0",
		"delete 172.16.0.0/16",
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
}

// Minimality: entries identical in destination, gateway, interface, and
// metric produce no operation at all.
func TestComputeDiffMinimal(t *testing.T) {
	res := []Resolved{
		desired("10.0.0.0/24", "192.168.1.1", 2, 5),
		desired("10.0.1.0/24", "192.168.1.1", 2, 5),
		desired("10.0.2.0/24", "192.168.1.1", 2, 5),
	}
	live := []LiveEntry{
		liveEntry("10.0.0.0/24", "192.168.1.1", 2, 5, managed),
		liveEntry("10.0.1.0/24", "192.168.1.1", 2, 5, managed),
	}

	plan := ComputeDiff(res, live, managed, nil)
	if len(plan.Ops) != 1 {
		t.Fatalf("expected exactly the one missing add, got:\n%s", plan)
	}
	if plan.Ops[0].Dest != "10.0.2.0/24" {
		t.Errorf("wrong op: %s", plan.Ops[0])
	}
}

func TestComputeDiffDeterministic(t *testing.T) {
	res := []Resolved{
		desired("10.0.2.0/24", "192.168.1.1", 2, 5),
		desired("10.0.0.0/24", "192.168.1.1", 2, 5),
		desired("10.0.1.0/24", "192.168.1.1", 2, 5),
	}

	a := ComputeDiff(res, nil, managed, nil)
	b := ComputeDiff([]Resolved{res[2], res[0], res[1]}, nil, managed, nil)
	if diff := cmp.Diff(a.Ops, b.Ops); diff != "" {
		t.Errorf("plans differ across input orderings:\n%s", diff)
	}
}

func TestFingerprint(t *testing.T) {
	a := []LiveEntry{
		liveEntry("10.0.0.0/24", "192.168.1.1", 2, 5, managed),
		liveEntry("0.0.0.0/0", "192.168.1.1", 2, 1, 4),
	}
	b := []LiveEntry{a[1], a[0]} // same set, different order

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprint must be order-insensitive")
	}

	c := append([]LiveEntry{}, a...)
	c[0].Metric = 6
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("fingerprint must change when a metric changes")
	}
}
