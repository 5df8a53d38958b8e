//go:build linux

package osroute

import (
	"net"
	"testing"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/routewarden/routewarden/pkg/route"
)

func TestToNetlink(t *testing.T) {
	op := route.Operation{
		Type: route.OpAdd, Dest: "10.0.0.0/24", Gateway: "192.168.1.1",
		IfIndex: 2, Metric: 5,
	}
	nr, err := toNetlink(op)
	if err != nil {
		t.Fatalf("toNetlink: %v", err)
	}
	if nr.Dst.String() != "10.0.0.0/24" || nr.Gw.String() != "192.168.1.1" {
		t.Errorf("dst=%v gw=%v", nr.Dst, nr.Gw)
	}
	if nr.LinkIndex != 2 || nr.Priority != 5 || nr.Table != unix.RT_TABLE_MAIN {
		t.Errorf("attrs: %+v", nr)
	}

	if _, err := toNetlink(route.Operation{Dest: "bogus"}); err == nil {
		t.Error("bad destination accepted")
	}
	if _, err := toNetlink(route.Operation{Dest: "10.0.0.0/24", Gateway: "bogus"}); err == nil {
		t.Error("bad gateway accepted")
	}
}

func TestFromNetlink(t *testing.T) {
	_, dst, _ := net.ParseCIDR("10.0.0.0/24")
	nr := netlink.Route{
		Dst: dst, Gw: net.ParseIP("192.168.1.1"),
		LinkIndex: 2, Priority: 5, Protocol: ManagedProtocol,
	}
	e := fromNetlink(nr)
	if e.Dest != "10.0.0.0/24" || e.Gateway != "192.168.1.1" || e.Protocol != ManagedProtocol {
		t.Errorf("entry = %+v", e)
	}

	// The kernel reports the default route with a nil Dst and on-link
	// routes with no gateway.
	e = fromNetlink(netlink.Route{Gw: net.ParseIP("192.168.1.1")})
	if e.Dest != "0.0.0.0/0" {
		t.Errorf("nil Dst = %q, want 0.0.0.0/0", e.Dest)
	}
	e = fromNetlink(netlink.Route{Dst: dst})
	if e.Gateway != "0.0.0.0" {
		t.Errorf("on-link gateway = %q, want 0.0.0.0", e.Gateway)
	}
}
