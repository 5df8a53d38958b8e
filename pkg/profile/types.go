// Package profile defines the user-authored desired state: named, ordered
// collections of route specifications, persisted one file per profile.
package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/routewarden/routewarden/pkg/util"
)

// DefaultMetric is applied when a spec omits its metric.
const DefaultMetric = 5

// RouteSpec is one declarative route. Target may be a literal IPv4
// address, a CIDR, or a domain name resolved at apply time (never
// persisted in resolved form).
type RouteSpec struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Target      string `json:"target" yaml:"target"`
	PrefixLen   int    `json:"prefix_len,omitempty" yaml:"prefix_len,omitempty"` // bare-IP targets only; CIDR targets carry their own
	Gateway     string `json:"gateway" yaml:"gateway"`
	Interface   string `json:"interface" yaml:"interface"` // display name, resolved to ifIndex per session
	Metric      int    `json:"metric" yaml:"metric"`
	Group       string `json:"group,omitempty" yaml:"group,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsDomain reports whether the target is a domain literal.
func (s RouteSpec) IsDomain() bool {
	return util.IsDomain(s.Target)
}

// DestinationCIDR returns the normalized CIDR for literal targets.
// A bare IP uses PrefixLen (default 32).
func (s RouteSpec) DestinationCIDR() (string, error) {
	t := strings.TrimSpace(s.Target)
	if strings.Contains(t, "/") {
		return util.NormalizeCIDR(t)
	}
	prefix := s.PrefixLen
	if prefix == 0 {
		prefix = 32
	}
	return util.NormalizeCIDR(fmt.Sprintf("%s/%d", t, prefix))
}

// Key returns the spec identity key (destination, mask, gateway) after
// normalization. Domain targets key on the literal domain since their
// addresses are unknown until apply time. Keys are unique within a profile.
func (s RouteSpec) Key() string {
	if s.IsDomain() {
		return strings.ToLower(strings.TrimSpace(s.Target)) + "|" + s.Gateway
	}
	dest, err := s.DestinationCIDR()
	if err != nil {
		dest = strings.TrimSpace(s.Target)
	}
	return dest + "|" + s.Gateway
}

// Defaults holds per-profile fallbacks carried into specs and validation.
type Defaults struct {
	Metric         int `json:"metric" yaml:"metric"`
	ProbeTimeoutMS int `json:"probe_timeout_ms,omitempty" yaml:"probe_timeout_ms,omitempty"`
}

// Profile is a named ordered collection of route specs, the unit of
// desired state. The engine references a profile during an apply session
// but never owns or mutates it.
type Profile struct {
	Version      int         `json:"version" yaml:"version"`
	Name         string      `json:"name" yaml:"name"`
	Created      time.Time   `json:"created,omitempty" yaml:"created,omitempty"`
	LastModified time.Time   `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	Defaults     Defaults    `json:"defaults" yaml:"defaults"`
	Routes       []RouteSpec `json:"routes" yaml:"routes"`
}

// New creates an empty profile with current defaults.
func New(name string) *Profile {
	now := time.Now()
	return &Profile{
		Version:      1,
		Name:         name,
		Created:      now,
		LastModified: now,
		Defaults:     Defaults{Metric: DefaultMetric, ProbeTimeoutMS: 1500},
	}
}

// EnabledRoutes returns the enabled specs in profile order, with profile
// defaults filled in.
func (p *Profile) EnabledRoutes() []RouteSpec {
	var out []RouteSpec
	for _, s := range p.Routes {
		if !s.Enabled {
			continue
		}
		if s.Metric == 0 {
			if p.Defaults.Metric > 0 {
				s.Metric = p.Defaults.Metric
			} else {
				s.Metric = DefaultMetric
			}
		}
		out = append(out, s)
	}
	return out
}
