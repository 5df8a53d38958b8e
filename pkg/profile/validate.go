package profile

import (
	"fmt"
	"strings"

	"github.com/routewarden/routewarden/pkg/util"
)

// Validate checks a profile at edit/import time. Malformed specs are
// rejected here and never reach the engine.
func (p *Profile) Validate() error {
	v := &util.ValidationBuilder{}

	v.Add(strings.TrimSpace(p.Name) != "", "profile name must not be empty")

	seen := make(map[string]int)
	for i, s := range p.Routes {
		prefix := fmt.Sprintf("route %d (%s)", i+1, s.Target)
		validateSpec(v, prefix, s)

		key := s.Key()
		if prev, dup := seen[key]; dup {
			v.AddErrorf("%s: duplicate of route %d (same destination, mask, and gateway)", prefix, prev+1)
		} else {
			seen[key] = i
		}
	}

	return v.Build()
}

func validateSpec(v *util.ValidationBuilder, prefix string, s RouteSpec) {
	target := strings.TrimSpace(s.Target)
	if target == "" {
		v.AddErrorf("%s: target must not be empty", prefix)
		return
	}

	switch {
	case strings.Contains(target, "/"):
		if _, err := util.NormalizeCIDR(target); err != nil {
			v.AddErrorf("%s: %v", prefix, err)
		}
	case util.IsIPv4(target):
		if s.PrefixLen < 0 || s.PrefixLen > 32 {
			v.AddErrorf("%s: prefix length %d out of range (0-32)", prefix, s.PrefixLen)
		}
	case util.IsDomain(target):
		// resolved at apply time
	default:
		v.AddErrorf("%s: target is not a valid IPv4 address, CIDR, or domain", prefix)
	}

	if s.Gateway == "" {
		v.AddErrorf("%s: gateway must not be empty", prefix)
	} else if !util.IsIPv4(s.Gateway) {
		v.AddErrorf("%s: gateway %q is not a valid IPv4 address", prefix, s.Gateway)
	}

	v.Add(strings.TrimSpace(s.Interface) != "", fmt.Sprintf("%s: interface name must not be empty", prefix))

	if s.Metric != 0 && (s.Metric < 1 || s.Metric > 999) {
		v.AddErrorf("%s: metric %d out of range (1-999)", prefix, s.Metric)
	}

	if len(s.Description) > 200 {
		v.AddErrorf("%s: description exceeds 200 characters", prefix)
	}
}

// Warnings returns advisory messages for specs that target dangerous
// destinations. These do not block validation.
func (p *Profile) Warnings() []string {
	var warnings []string
	for _, s := range p.Routes {
		if !s.Enabled || s.IsDomain() {
			continue
		}
		dest, err := s.DestinationCIDR()
		if err != nil {
			continue
		}
		if w := util.DangerWarning(dest); w != "" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", s.Target, w))
		}
	}
	return warnings
}
