// Package resolve turns symbolic route spec fields into concrete values at
// apply time: interface display names into live interface indices and
// domain targets into IPv4 addresses.
//
// Nothing here is cached across apply sessions. Interface indices are not
// stable across reboots, so every session re-resolves names against the
// live interface set; this is the system's core robustness property, not
// an optimization opportunity.
package resolve

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/profile"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/util"
)

// DefaultDNSTimeout bounds one domain lookup.
const DefaultDNSTimeout = 3 * time.Second

// LookupFunc resolves a host name to its IPv4 addresses.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// Resolver resolves interface names and destinations.
type Resolver struct {
	ifaces     osroute.Interfaces
	lookup     LookupFunc
	dnsTimeout time.Duration
}

// New creates a resolver over the given interface enumerator, using the
// system resolver for domain targets.
func New(ifaces osroute.Interfaces) *Resolver {
	return &Resolver{
		ifaces: ifaces,
		lookup: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip4", host)
		},
		dnsTimeout: DefaultDNSTimeout,
	}
}

// WithDNSTimeout overrides the per-lookup DNS bound.
func (r *Resolver) WithDNSTimeout(d time.Duration) *Resolver {
	if d > 0 {
		r.dnsTimeout = d
	}
	return r
}

// WithLookup overrides the domain lookup function.
func (r *Resolver) WithLookup(fn LookupFunc) *Resolver {
	if fn != nil {
		r.lookup = fn
	}
	return r
}

// ListInterfaces returns the live interface set.
func (r *Resolver) ListInterfaces() ([]osroute.Iface, error) {
	return r.ifaces.List()
}

// ResolveInterface maps an interface display name to its current index.
func (r *Resolver) ResolveInterface(name string) (int, error) {
	iface, err := r.findInterface(name)
	if err != nil {
		return 0, err
	}
	return iface.Index, nil
}

func (r *Resolver) findInterface(name string) (osroute.Iface, error) {
	ifaces, err := r.ifaces.List()
	if err != nil {
		return osroute.Iface{}, err
	}
	for _, iface := range ifaces {
		if strings.EqualFold(iface.Name, name) {
			return iface, nil
		}
	}
	return osroute.Iface{}, util.NewResolutionError(util.InterfaceNotFound, "interface", name, "no live interface matches")
}

// gatewayOnLink reports whether gw lies within one of the interface's
// configured subnets. An interface reporting no addresses yields true:
// the check cannot be decided, and over-skipping is worse than trusting
// the profile.
func gatewayOnLink(gw string, iface osroute.Iface) bool {
	if len(iface.Addresses) == 0 {
		return true
	}
	for _, addr := range iface.Addresses {
		i := strings.Index(addr, "/")
		if i < 0 {
			continue
		}
		prefix, err := strconv.Atoi(addr[i+1:])
		if err != nil {
			continue
		}
		if util.IsSameSubnet(gw, addr[:i], prefix) {
			return true
		}
	}
	return false
}

// ResolveDestination normalizes a spec's target to one or more CIDR
// targets. Literal IP/CIDR input is pure format validation; a domain
// target does one bounded DNS lookup and expands to all resolved IPv4
// addresses as /32 targets.
func (r *Resolver) ResolveDestination(ctx context.Context, spec profile.RouteSpec) ([]string, error) {
	if !spec.IsDomain() {
		dest, err := spec.DestinationCIDR()
		if err != nil {
			return nil, util.NewResolutionError(util.InvalidFormat, "destination", spec.Target, err.Error())
		}
		return []string{dest}, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.dnsTimeout)
	defer cancel()

	ips, err := r.lookup(lookupCtx, spec.Target)
	if err != nil {
		return nil, util.NewResolutionError(util.NameResolutionFailed, "destination", spec.Target, err.Error())
	}

	seen := make(map[string]bool)
	var targets []string
	for _, ip := range ips {
		v4 := ip.To4()
		if v4 == nil {
			continue
		}
		cidr := v4.String() + "/32"
		if !seen[cidr] {
			seen[cidr] = true
			targets = append(targets, cidr)
		}
	}
	if len(targets) == 0 {
		return nil, util.NewResolutionError(util.NameResolutionFailed, "destination", spec.Target, "lookup returned no IPv4 addresses")
	}
	sort.Strings(targets)
	return targets, nil
}

// Skipped records a spec excluded from resolution, with the reason. A
// resolution failure flags the route; it never aborts the rest.
type Skipped struct {
	Spec   profile.RouteSpec
	Reason string
	Err    error
}

// Protection converts this session's skipped specs into the set of live
// entries the diff must keep. Literal targets protect their exact identity
// key; domain targets cannot name the addresses they resolved to earlier,
// so they protect every host route via their gateway.
func Protection(skipped []Skipped) *route.Protected {
	if len(skipped) == 0 {
		return nil
	}
	p := &route.Protected{}
	for _, s := range skipped {
		if s.Spec.IsDomain() {
			p.ProtectGateway(s.Spec.Gateway)
			continue
		}
		dest, err := s.Spec.DestinationCIDR()
		if err != nil {
			continue // unparseable target: nothing it could have installed
		}
		p.ProtectKey(dest + "|" + s.Spec.Gateway)
	}
	return p
}

// ResolveRoutes resolves all enabled specs. Specs whose interface or
// destination cannot be resolved are returned in skipped; a domain target
// expands to one Resolved per address, all traced to the same spec key.
func (r *Resolver) ResolveRoutes(ctx context.Context, specs []profile.RouteSpec) ([]route.Resolved, []Skipped, error) {
	var resolved []route.Resolved
	var skipped []Skipped

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		iface, err := r.findInterface(spec.Interface)
		if err != nil {
			skipped = append(skipped, Skipped{Spec: spec, Reason: "interface", Err: err})
			continue
		}

		if !gatewayOnLink(spec.Gateway, iface) {
			err := util.NewResolutionError(util.GatewayOffLink, "gateway", spec.Gateway,
				"not within any subnet of interface "+iface.Name)
			skipped = append(skipped, Skipped{Spec: spec, Reason: "gateway", Err: err})
			continue
		}

		targets, err := r.ResolveDestination(ctx, spec)
		if err != nil {
			skipped = append(skipped, Skipped{Spec: spec, Reason: "destination", Err: err})
			continue
		}

		for _, dest := range targets {
			resolved = append(resolved, route.Resolved{
				Dest:    dest,
				Gateway: spec.Gateway,
				IfIndex: iface.Index,
				Metric:  spec.Metric,
				SpecKey: spec.Key(),
			})
		}
	}
	return resolved, skipped, nil
}
