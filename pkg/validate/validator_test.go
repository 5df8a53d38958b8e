package validate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/routewarden/routewarden/internal/testutil"
	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/validate"
)

func resolved(dest, gw string, ifIndex int) route.Resolved {
	return route.Resolved{Dest: dest, Gateway: gw, IfIndex: ifIndex, Metric: 5, SpecKey: dest + "|" + gw}
}

func liveEntry(dest, gw string, ifIndex int) route.LiveEntry {
	return route.LiveEntry{Dest: dest, Gateway: gw, IfIndex: ifIndex, Metric: 5, Protocol: osroute.ManagedProtocol}
}

func TestValidateTableCheck(t *testing.T) {
	table := testutil.NewFakeTable(
		liveEntry("10.0.0.0/24", "192.168.1.1", 2),
		liveEntry("10.0.1.0/24", "192.168.1.1", 7), // wrong interface
	)
	v := validate.NewValidator(table, nil)

	report, err := v.Validate(testutil.Context(t), []route.Resolved{
		resolved("10.0.0.0/24", "192.168.1.1", 2),
		resolved("10.0.1.0/24", "192.168.1.1", 2),
		resolved("10.0.2.0/24", "192.168.1.1", 2),
	}, validate.Options{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	counts := report.Counts()
	if counts[validate.StatusVerified] != 1 || counts[validate.StatusMissing] != 2 {
		t.Fatalf("counts = %v", counts)
	}
	if !report.Results[0].TablePresent {
		t.Error("matching entry not marked present")
	}
	if report.Results[1].Detail == "" {
		t.Error("interface mismatch should carry a detail message")
	}
}

// A route can be in the table yet unreachable; the two signals are
// reported separately.
func TestValidateTraceSeparatesPresenceFromReachability(t *testing.T) {
	table := testutil.NewFakeTable(liveEntry("10.0.0.0/24", "192.168.1.1", 2))
	prober := &testutil.FakeProber{
		Results: map[string]validate.ProbeResult{
			"10.0.0.0": {Reached: false, FirstHop: "192.168.1.1", Hops: 8},
		},
	}
	v := validate.NewValidator(table, prober)

	report, err := v.Validate(testutil.Context(t), []route.Resolved{
		resolved("10.0.0.0/24", "192.168.1.1", 2),
	}, validate.Options{Trace: true})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	r := report.Results[0]
	if r.Status != validate.StatusUnreachable {
		t.Errorf("status = %v, want unreachable", r.Status)
	}
	if !r.TablePresent {
		t.Error("unreachable route must still report table presence")
	}
	if r.FirstHop != "192.168.1.1" {
		t.Errorf("first hop = %q", r.FirstHop)
	}
}

func TestValidateTraceReached(t *testing.T) {
	table := testutil.NewFakeTable(liveEntry("10.0.0.5/32", "192.168.1.1", 2))
	prober := &testutil.FakeProber{
		Results: map[string]validate.ProbeResult{
			"10.0.0.5": {Reached: true, FirstHop: "192.168.1.1", Hops: 3, Latency: 12 * time.Millisecond},
		},
	}
	v := validate.NewValidator(table, prober)

	report, err := v.Validate(testutil.Context(t), []route.Resolved{
		resolved("10.0.0.5/32", "192.168.1.1", 2),
	}, validate.Options{Trace: true})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	r := report.Results[0]
	if r.Status != validate.StatusVerified || r.Latency != 12*time.Millisecond {
		t.Errorf("result = %+v", r)
	}
	if len(prober.Probed) != 1 || prober.Probed[0] != "10.0.0.5" {
		t.Errorf("probed = %v", prober.Probed)
	}
}

// A probe error degrades the result detail without failing the cycle.
func TestValidateProbeErrorIsNotFatal(t *testing.T) {
	table := testutil.NewFakeTable(liveEntry("10.0.0.0/24", "192.168.1.1", 2))
	prober := &testutil.FakeProber{
		Errs: map[string]error{"10.0.0.0": errors.New("raw socket unavailable")},
	}
	v := validate.NewValidator(table, prober)

	report, err := v.Validate(testutil.Context(t), []route.Resolved{
		resolved("10.0.0.0/24", "192.168.1.1", 2),
	}, validate.Options{Trace: true})
	if err != nil {
		t.Fatalf("probe errors must not fail validation: %v", err)
	}
	if report.Results[0].Detail == "" {
		t.Error("probe error not surfaced in detail")
	}
}

// Cancellation is checked before each probe, never mid-probe.
func TestValidateCancelledBetweenProbes(t *testing.T) {
	table := testutil.NewFakeTable(liveEntry("10.0.0.0/24", "192.168.1.1", 2))
	prober := &testutil.FakeProber{Results: map[string]validate.ProbeResult{}}
	v := validate.NewValidator(table, prober)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Validate(ctx, []route.Resolved{
		resolved("10.0.0.0/24", "192.168.1.1", 2),
	}, validate.Options{Trace: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(prober.Probed) != 0 {
		t.Error("probe started after cancellation")
	}
}

func TestReportBySpec(t *testing.T) {
	report := &validate.Report{Results: []validate.Result{
		{SpecKey: "cdn.example.com|192.168.1.1", Dest: "1.2.3.4/32", Status: validate.StatusVerified},
		{SpecKey: "cdn.example.com|192.168.1.1", Dest: "1.2.3.5/32", Status: validate.StatusMissing},
		{SpecKey: "10.0.0.0/24|192.168.1.1", Dest: "10.0.0.0/24", Status: validate.StatusVerified},
	}}

	by := report.BySpec()
	if len(by) != 2 {
		t.Fatalf("groups = %d", len(by))
	}
	if len(by["cdn.example.com|192.168.1.1"]) != 2 {
		t.Error("domain expansion not grouped under one spec key")
	}
}
