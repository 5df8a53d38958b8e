// Package validate confirms post-apply state: it re-reads the live table
// and optionally probes reachability. Validation never mutates state and
// never triggers rollback; it is purely informational.
package validate

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/util"
)

// Status classifies one managed route after a validate cycle.
type Status string

const (
	// StatusVerified: a live entry matches destination, mask, gateway,
	// and interface.
	StatusVerified Status = "verified"
	// StatusMissing: no matching live entry.
	StatusMissing Status = "missing"
	// StatusUnreachable: probe got no response within bounds. A route can
	// be present in the table yet unreachable (gateway down); the two
	// signals are surfaced separately, not collapsed.
	StatusUnreachable Status = "unreachable"
)

// Result is the validation outcome for one resolved route.
type Result struct {
	SpecKey      string        `json:"spec_key"`
	Dest         string        `json:"dest"`
	Status       Status        `json:"status"`
	TablePresent bool          `json:"table_present"`
	FirstHop     string        `json:"first_hop,omitempty"`
	Latency      time.Duration `json:"latency,omitempty"`
	Detail       string        `json:"detail,omitempty"`
}

// Report aggregates one validate cycle.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Results   []Result  `json:"results"`
	Duration  time.Duration `json:"duration"`
}

// BySpec groups results by source spec key. A domain spec that resolved
// to several addresses yields several results under one key.
func (r *Report) BySpec() map[string][]Result {
	m := make(map[string][]Result, len(r.Results))
	for _, res := range r.Results {
		m[res.SpecKey] = append(m[res.SpecKey], res)
	}
	return m
}

// Counts returns totals per status.
func (r *Report) Counts() map[Status]int {
	m := make(map[Status]int)
	for _, res := range r.Results {
		m[res.Status]++
	}
	return m
}

// Options control one validate cycle.
type Options struct {
	Trace bool // run the bounded hop-trace per route
	Probe ProbeOptions
}

// Validator checks managed routes against the live table and the network.
type Validator struct {
	table  osroute.Table
	prober Prober
}

// NewValidator creates a validator. prober may be nil when tracing is
// never requested.
func NewValidator(table osroute.Table, prober Prober) *Validator {
	return &Validator{table: table, prober: prober}
}

// Validate classifies each resolved route. Cancellation is cooperative:
// the context is checked before each target's probe, never mid-probe.
func (v *Validator) Validate(ctx context.Context, resolved []route.Resolved, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{Timestamp: start}

	live, err := v.table.List(ctx)
	if err != nil {
		return nil, err
	}
	liveByKey := make(map[string]route.LiveEntry, len(live))
	for _, e := range live {
		liveByKey[e.Key()] = e
	}

	if opts.Probe.MaxHops == 0 {
		opts.Probe = DefaultProbeOptions()
	}

	for _, r := range resolved {
		result := Result{SpecKey: r.SpecKey, Dest: r.Dest}

		if e, ok := liveByKey[r.Key()]; ok && e.IfIndex == r.IfIndex {
			result.TablePresent = true
			result.Status = StatusVerified
		} else {
			result.Status = StatusMissing
			if ok {
				result.Detail = "entry present on a different interface"
			}
		}

		if opts.Trace && v.prober != nil {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			probe, perr := v.prober.Trace(ctx, probeTarget(r.Dest), opts.Probe)
			if perr != nil {
				result.Detail = joinDetail(result.Detail, "probe error: "+perr.Error())
				util.WithOperation("validate").Warnf("probe %s: %v", r.Dest, perr)
			} else if probe.Reached {
				result.FirstHop = probe.FirstHop
				result.Latency = probe.Latency
			} else {
				result.Status = StatusUnreachable
				result.FirstHop = probe.FirstHop
				result.Detail = joinDetail(result.Detail, "no response within probe bounds")
			}
		}

		report.Results = append(report.Results, result)
	}

	report.Duration = time.Since(start)
	return report, nil
}

// probeTarget picks a representative host address inside a CIDR target.
func probeTarget(dest string) string {
	host := dest
	if i := strings.Index(dest, "/"); i >= 0 {
		host = dest[:i]
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}

func joinDetail(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
