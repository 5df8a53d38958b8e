package route

import (
	"fmt"
	"sort"
	"strings"

	"github.com/routewarden/routewarden/pkg/util"
)

// OpType is the closed set of plan operations. The OS route primitive has
// no atomic update, so a changed route is always a Delete+Add pair.
type OpType string

const (
	OpAdd    OpType = "add"
	OpDelete OpType = "delete"
)

// Operation is one route-table mutation in a plan.
type Operation struct {
	Type    OpType `json:"type"`
	Dest    string `json:"dest"`
	Gateway string `json:"gateway"`
	IfIndex int    `json:"if_index"`
	Metric  int    `json:"metric"`
	SpecKey string `json:"spec_key,omitempty"` // source profile spec, empty for orphan deletes
	PairKey string `json:"pair_key,omitempty"` // links the Delete+Add halves of a modify
}

// RouteKey returns the identity key of the route the operation touches.
func (o Operation) RouteKey() string {
	return o.Dest + "|" + o.Gateway
}

func (o Operation) String() string {
	switch o.Type {
	case OpAdd:
		return fmt.Sprintf("[ADD] %s via %s dev %d metric %d", o.Dest, o.Gateway, o.IfIndex, o.Metric)
	default:
		return fmt.Sprintf("[DEL] %s via %s", o.Dest, o.Gateway)
	}
}

// Plan is an ordered sequence of operations plus the fingerprint of the
// live state it was computed against.
type Plan struct {
	Ops         []Operation `json:"ops"`
	Fingerprint string      `json:"fingerprint"`
}

// IsEmpty reports whether the plan contains no operations.
func (p *Plan) IsEmpty() bool {
	return len(p.Ops) == 0
}

// Adds returns the Add operations in plan order.
func (p *Plan) Adds() []Operation {
	return p.byType(OpAdd)
}

// Deletes returns the Delete operations in plan order.
func (p *Plan) Deletes() []Operation {
	return p.byType(OpDelete)
}

func (p *Plan) byType(t OpType) []Operation {
	var ops []Operation
	for _, op := range p.Ops {
		if op.Type == t {
			ops = append(ops, op)
		}
	}
	return ops
}

// Rows collapses Delete+Add pairs sharing a PairKey into single "modify"
// rows for preview display. Execution still runs the two halves separately.
type Row struct {
	Action  string // "add", "delete", "modify"
	Dest    string
	Old     *Operation
	New     *Operation
	SpecKey string
}

// Rows returns display rows in a stable order: adds, modifies, deletes.
func (p *Plan) Rows() []Row {
	pairDel := make(map[string]*Operation)
	pairAdd := make(map[string]*Operation)
	var singles []Operation
	for i := range p.Ops {
		op := p.Ops[i]
		if op.PairKey == "" {
			singles = append(singles, op)
			continue
		}
		if op.Type == OpDelete {
			pairDel[op.PairKey] = &p.Ops[i]
		} else {
			pairAdd[op.PairKey] = &p.Ops[i]
		}
	}

	var rows []Row
	for _, op := range singles {
		o := op
		switch op.Type {
		case OpAdd:
			rows = append(rows, Row{Action: "add", Dest: op.Dest, New: &o, SpecKey: op.SpecKey})
		default:
			rows = append(rows, Row{Action: "delete", Dest: op.Dest, Old: &o, SpecKey: op.SpecKey})
		}
	}
	pairKeys := make([]string, 0, len(pairAdd))
	for k := range pairAdd {
		pairKeys = append(pairKeys, k)
	}
	sort.Strings(pairKeys)
	for _, k := range pairKeys {
		add := pairAdd[k]
		rows = append(rows, Row{Action: "modify", Dest: add.Dest, Old: pairDel[k], New: add, SpecKey: add.SpecKey})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		order := map[string]int{"add": 0, "modify": 1, "delete": 2}
		if order[rows[i].Action] != order[rows[j].Action] {
			return order[rows[i].Action] < order[rows[j].Action]
		}
		return rows[i].Dest < rows[j].Dest
	})
	return rows
}

// String renders the plan for logs and previews.
func (p *Plan) String() string {
	if p.IsEmpty() {
		return "No changes"
	}
	var sb strings.Builder
	for _, op := range p.Ops {
		sb.WriteString("  " + op.String() + "\n")
	}
	return sb.String()
}

// Protected marks live entries the diff must not treat as orphans. A spec
// that fails resolution drops out of the desired set, but the routes it
// installed in an earlier session stay in place until the spec resolves
// again; only a disabled or removed spec releases its routes for deletion.
type Protected struct {
	keys     map[string]struct{}
	gateways map[string]struct{}
}

// ProtectKey exempts the exact identity key ("cidr|gateway").
func (p *Protected) ProtectKey(key string) {
	if p.keys == nil {
		p.keys = make(map[string]struct{})
	}
	p.keys[key] = struct{}{}
}

// ProtectGateway exempts every /32 entry via gw. A domain spec whose
// lookup is failing cannot name the addresses it installed earlier, so
// all host routes through its gateway are held.
func (p *Protected) ProtectGateway(gw string) {
	if p.gateways == nil {
		p.gateways = make(map[string]struct{})
	}
	p.gateways[gw] = struct{}{}
}

func (p *Protected) covers(e LiveEntry) bool {
	if p == nil {
		return false
	}
	if _, ok := p.keys[e.Key()]; ok {
		return true
	}
	if strings.HasSuffix(e.Dest, "/32") {
		if _, ok := p.gateways[e.Gateway]; ok {
			return true
		}
	}
	return false
}

// ComputeDiff builds the minimal ordered plan transforming live state
// toward the resolved desired set.
//
// Live entries are deleted only when their protocol equals managedProto,
// the marker stamped on every route this tool adds. Foreign routes,
// including a default route the profile does not mention, are never
// touched. Entries covered by protected are likewise kept: absence from
// the desired set means deletion only when the spec is gone, not when it
// merely failed to resolve this session.
//
// Ordering invariant: Adds run before Deletes, except that a default-route
// modify is sequenced Add-new-default immediately before Delete-old-default
// so there is never a window with no default route.
func ComputeDiff(resolved []Resolved, live []LiveEntry, managedProto int, protected *Protected) *Plan {
	desired := make(map[string]Resolved, len(resolved))
	for _, r := range resolved {
		desired[r.Key()] = r
	}
	liveByKey := make(map[string]LiveEntry, len(live))
	for _, e := range live {
		liveByKey[e.Key()] = e
	}

	var adds, deletes []Operation

	keys := make([]string, 0, len(desired))
	for k := range desired {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		want := desired[k]
		have, ok := liveByKey[k]
		if !ok {
			adds = append(adds, Operation{
				Type: OpAdd, Dest: want.Dest, Gateway: want.Gateway,
				IfIndex: want.IfIndex, Metric: want.Metric, SpecKey: want.SpecKey,
			})
			continue
		}
		if have.IfIndex == want.IfIndex && have.Metric == want.Metric {
			continue // identical in all compared fields: no operation
		}
		// Same destination and gateway, different metric or interface:
		// one Delete(old) + one Add(new) keyed to the same desired route.
		deletes = append(deletes, Operation{
			Type: OpDelete, Dest: have.Dest, Gateway: have.Gateway,
			IfIndex: have.IfIndex, Metric: have.Metric,
			SpecKey: want.SpecKey, PairKey: k,
		})
		adds = append(adds, Operation{
			Type: OpAdd, Dest: want.Dest, Gateway: want.Gateway,
			IfIndex: want.IfIndex, Metric: want.Metric,
			SpecKey: want.SpecKey, PairKey: k,
		})
	}

	liveKeys := make([]string, 0, len(liveByKey))
	for k := range liveByKey {
		liveKeys = append(liveKeys, k)
	}
	sort.Strings(liveKeys)
	for _, k := range liveKeys {
		e := liveByKey[k]
		if _, ok := desired[k]; ok {
			continue
		}
		if e.Protocol != managedProto {
			continue // foreign route: never reconciled
		}
		if protected.covers(e) {
			continue // source spec failed resolution this session
		}
		deletes = append(deletes, Operation{
			Type: OpDelete, Dest: e.Dest, Gateway: e.Gateway,
			IfIndex: e.IfIndex, Metric: e.Metric,
		})
	}

	ops := sequence(adds, deletes)
	return &Plan{Ops: ops, Fingerprint: Fingerprint(live)}
}

// sequence orders operations: non-default adds, then the default-route add
// and delete adjacent to each other, then the remaining deletes.
func sequence(adds, deletes []Operation) []Operation {
	var ops []Operation
	var defaultAdds, defaultDels []Operation

	for _, op := range adds {
		if util.IsDefaultRoute(op.Dest) {
			defaultAdds = append(defaultAdds, op)
			continue
		}
		ops = append(ops, op)
	}
	var restDels []Operation
	for _, op := range deletes {
		if util.IsDefaultRoute(op.Dest) {
			defaultDels = append(defaultDels, op)
			continue
		}
		restDels = append(restDels, op)
	}

	ops = append(ops, defaultAdds...)
	ops = append(ops, defaultDels...)
	ops = append(ops, restDels...)
	return ops
}
