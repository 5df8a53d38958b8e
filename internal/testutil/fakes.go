package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/validate"
)

// FakeTable is an in-memory osroute.Table. Mutations can be scripted to
// fail by identity key, so tests can force mid-plan failures and observe
// the rollback path.
type FakeTable struct {
	mu      sync.Mutex
	entries map[string]route.LiveEntry

	// FailAdd and FailDelete map identity keys ("cidr|gateway") to the
	// error returned instead of mutating; remaining count decrements so a
	// retry during rollback can be allowed to succeed.
	FailAdd    map[string]error
	FailDelete map[string]error

	// ListErr, when set, fails every List call.
	ListErr error

	// Calls records each mutation in order, e.g. "add 10.0.0.0/24|192.168.1.1".
	Calls []string
}

// NewFakeTable seeds a table with the given live entries.
func NewFakeTable(entries ...route.LiveEntry) *FakeTable {
	t := &FakeTable{entries: make(map[string]route.LiveEntry)}
	for _, e := range entries {
		t.entries[e.Key()] = e
	}
	return t
}

func (t *FakeTable) List(ctx context.Context) ([]route.LiveEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ListErr != nil {
		return nil, t.ListErr
	}
	out := make([]route.LiveEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (t *FakeTable) Add(ctx context.Context, op route.Operation) (osroute.Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := op.Dest + "|" + op.Gateway
	t.Calls = append(t.Calls, "add "+key)
	if err, ok := t.FailAdd[key]; ok {
		delete(t.FailAdd, key)
		return "", err
	}
	if _, ok := t.entries[key]; ok {
		return osroute.OutcomeAlreadyPresent, nil
	}
	t.entries[key] = route.LiveEntry{
		Dest:     op.Dest,
		Gateway:  op.Gateway,
		IfIndex:  op.IfIndex,
		Metric:   op.Metric,
		Protocol: osroute.ManagedProtocol,
	}
	return osroute.OutcomeApplied, nil
}

func (t *FakeTable) Delete(ctx context.Context, op route.Operation) (osroute.Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := op.Dest + "|" + op.Gateway
	t.Calls = append(t.Calls, "delete "+key)
	if err, ok := t.FailDelete[key]; ok {
		delete(t.FailDelete, key)
		return "", err
	}
	if _, ok := t.entries[key]; !ok {
		return osroute.OutcomeAlreadyAbsent, nil
	}
	delete(t.entries, key)
	return osroute.OutcomeApplied, nil
}

// Has reports whether the table currently holds an entry with the key.
func (t *FakeTable) Has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// Len returns the current entry count.
func (t *FakeTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// FakeInterfaces is a static osroute.Interfaces.
type FakeInterfaces struct {
	Ifaces []osroute.Iface
	Err    error
}

func (f *FakeInterfaces) List() ([]osroute.Iface, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Ifaces, nil
}

// EthIfaces returns a conventional two-interface fixture: eth0 (index 2,
// up) and eth1 (index 3, down).
func EthIfaces() *FakeInterfaces {
	return &FakeInterfaces{Ifaces: []osroute.Iface{
		{Name: "eth0", Index: 2, Addresses: []string{"192.168.1.10/24"}, Up: true},
		{Name: "eth1", Index: 3, Addresses: []string{"10.0.0.10/24"}, Up: false},
	}}
}

// FakeProber returns scripted results per target address.
type FakeProber struct {
	Results map[string]validate.ProbeResult
	Errs    map[string]error
	Probed  []string
}

func (p *FakeProber) Trace(ctx context.Context, target string, opts validate.ProbeOptions) (validate.ProbeResult, error) {
	p.Probed = append(p.Probed, target)
	if err, ok := p.Errs[target]; ok {
		return validate.ProbeResult{}, err
	}
	if r, ok := p.Results[target]; ok {
		return r, nil
	}
	return validate.ProbeResult{}, fmt.Errorf("no scripted probe result for %s", target)
}
