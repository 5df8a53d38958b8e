//go:build linux

package osroute

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/util"
)

// NetlinkTable implements Table against the kernel main routing table via
// rtnetlink (github.com/vishvananda/netlink).
type NetlinkTable struct{}

// NewTable returns the platform route table.
func NewTable() Table {
	return &NetlinkTable{}
}

// HasPrivilege reports whether the process can mutate the route table.
func HasPrivilege() bool {
	return os.Geteuid() == 0
}

// List returns the current IPv4 entries from the main table. Entries the
// kernel synthesizes per-interface (scope link, no gateway) are included so
// reconciliation sees the full picture; ownership is carried by Protocol.
func (t *NetlinkTable) List(ctx context.Context) ([]route.LiveEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filter := &netlink.Route{Table: unix.RT_TABLE_MAIN}
	nlRoutes, err := netlink.RouteListFiltered(netlink.FAMILY_V4, filter, netlink.RT_FILTER_TABLE)
	if err != nil {
		return nil, mapListError(err)
	}

	entries := make([]route.LiveEntry, 0, len(nlRoutes))
	for _, nr := range nlRoutes {
		entries = append(entries, fromNetlink(nr))
	}
	return entries, nil
}

// Add installs the route, stamped with ManagedProtocol.
func (t *NetlinkTable) Add(ctx context.Context, op route.Operation) (Outcome, error) {
	nr, err := toNetlink(op)
	if err != nil {
		return "", &util.OSCommandError{Kind: util.OSRejected, Operation: "add", Route: op.RouteKey(), Reason: err.Error()}
	}
	nr.Protocol = ManagedProtocol

	if err := callWithDeadline(ctx, func() error { return netlink.RouteAdd(&nr) }); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", &util.OSCommandError{Kind: util.OSTimeout, Operation: "add", Route: op.RouteKey()}
		}
		if errors.Is(err, unix.EEXIST) {
			return OutcomeAlreadyPresent, nil
		}
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			return "", &util.PermissionError{Operation: "route add"}
		}
		return "", &util.OSCommandError{Kind: util.OSRejected, Operation: "add", Route: op.RouteKey(), Reason: err.Error()}
	}
	return OutcomeApplied, nil
}

// Delete removes the route. A route that is already gone is a benign no-op.
func (t *NetlinkTable) Delete(ctx context.Context, op route.Operation) (Outcome, error) {
	nr, err := toNetlink(op)
	if err != nil {
		return "", &util.OSCommandError{Kind: util.OSRejected, Operation: "delete", Route: op.RouteKey(), Reason: err.Error()}
	}

	if err := callWithDeadline(ctx, func() error { return netlink.RouteDel(&nr) }); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", &util.OSCommandError{Kind: util.OSTimeout, Operation: "delete", Route: op.RouteKey()}
		}
		if errors.Is(err, unix.ESRCH) || errors.Is(err, unix.ENOENT) {
			return OutcomeAlreadyAbsent, nil
		}
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			return "", &util.PermissionError{Operation: "route delete"}
		}
		return "", &util.OSCommandError{Kind: util.OSRejected, Operation: "delete", Route: op.RouteKey(), Reason: err.Error()}
	}
	return OutcomeApplied, nil
}

// callWithDeadline runs a netlink call under the context deadline. Netlink
// sockets have no per-call timeout, so a deadline expiry abandons the call
// and surfaces as a timeout; the operation is then fatal to the session.
func callWithDeadline(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toNetlink(op route.Operation) (netlink.Route, error) {
	var nr netlink.Route

	_, ipNet, err := net.ParseCIDR(op.Dest)
	if err != nil {
		return netlink.Route{}, fmt.Errorf("invalid destination %q: %w", op.Dest, err)
	}
	nr.Dst = ipNet

	if op.Gateway != "" && op.Gateway != "0.0.0.0" {
		gw := net.ParseIP(op.Gateway)
		if gw == nil {
			return netlink.Route{}, fmt.Errorf("invalid gateway %q", op.Gateway)
		}
		nr.Gw = gw
	}

	if op.IfIndex != 0 {
		nr.LinkIndex = op.IfIndex
	}
	if op.Metric != 0 {
		nr.Priority = op.Metric
	}
	nr.Table = unix.RT_TABLE_MAIN
	nr.Type = unix.RTN_UNICAST
	return nr, nil
}

func fromNetlink(nr netlink.Route) route.LiveEntry {
	e := route.LiveEntry{
		IfIndex:  nr.LinkIndex,
		Metric:   nr.Priority,
		Protocol: int(nr.Protocol),
	}
	if nr.Dst == nil {
		e.Dest = "0.0.0.0/0"
	} else {
		e.Dest = nr.Dst.String()
	}
	if len(nr.Gw) != 0 {
		e.Gateway = nr.Gw.String()
	} else {
		e.Gateway = "0.0.0.0" // on-link
	}
	return e
}

func mapListError(err error) error {
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		return &util.PermissionError{Operation: "route list"}
	}
	return fmt.Errorf("listing routes: %w", err)
}

// NetlinkInterfaces enumerates live links via rtnetlink.
type NetlinkInterfaces struct{}

// NewInterfaces returns the platform interface enumerator.
func NewInterfaces() Interfaces {
	return &NetlinkInterfaces{}
}

// List returns (name, index) pairs with IPv4 addresses for present links.
func (n *NetlinkInterfaces) List() ([]Iface, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	ifaces := make([]Iface, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		iface := Iface{
			Name:  attrs.Name,
			Index: attrs.Index,
			Up:    attrs.OperState == netlink.OperUp || attrs.Flags&net.FlagUp != 0,
		}
		addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
		if err == nil {
			for _, a := range addrs {
				iface.Addresses = append(iface.Addresses, a.IPNet.String())
			}
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}
