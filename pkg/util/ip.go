package util

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// domainRe matches bare domain literals (at least one dot, alpha TLD).
var domainRe = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// IsIPv4 reports whether s is a literal IPv4 address.
func IsIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// IsDomain reports whether s looks like a domain literal.
func IsDomain(s string) bool {
	return domainRe.MatchString(s)
}

// NormalizeCIDR canonicalizes an IPv4 target to masked CIDR form.
// A bare IP becomes a /32. "10.0.0.5/24" becomes "10.0.0.0/24".
func NormalizeCIDR(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("empty destination")
	}
	if !strings.Contains(target, "/") {
		ip := net.ParseIP(target)
		if ip == nil || ip.To4() == nil {
			return "", fmt.Errorf("invalid IPv4 address: %s", target)
		}
		return ip.To4().String() + "/32", nil
	}
	ip, ipNet, err := net.ParseCIDR(target)
	if err != nil {
		return "", fmt.Errorf("invalid CIDR notation: %s", target)
	}
	if ip.To4() == nil {
		return "", fmt.Errorf("not an IPv4 CIDR: %s", target)
	}
	return ipNet.String(), nil
}

// PrefixToMask converts a prefix length (0-32) to dotted-quad form.
func PrefixToMask(prefix int) string {
	if prefix < 0 || prefix > 32 {
		return "0.0.0.0"
	}
	m := net.CIDRMask(prefix, 32)
	return net.IP(m).String()
}

// MaskToPrefix converts a dotted-quad netmask to a prefix length.
// Returns 0 for malformed or non-contiguous masks.
func MaskToPrefix(mask string) int {
	ip := net.ParseIP(mask)
	if ip == nil {
		return 0
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	ones, bits := net.IPMask(v4).Size()
	if bits != 32 {
		return 0
	}
	return ones
}

// IsSameSubnet reports whether two IPv4 addresses share the subnet
// described by prefix.
func IsSameSubnet(a, b string, prefix int) bool {
	ipA := net.ParseIP(a)
	ipB := net.ParseIP(b)
	if ipA == nil || ipB == nil {
		return false
	}
	mask := net.CIDRMask(prefix, 32)
	return ipA.Mask(mask).Equal(ipB.Mask(mask))
}

// IsDefaultRoute reports whether a normalized CIDR is the IPv4 default route.
func IsDefaultRoute(cidr string) bool {
	return cidr == "0.0.0.0/0"
}

// DangerWarning returns a non-empty warning for route targets that commonly
// break connectivity when mishandled: the default route, loopback,
// link-local, and multicast space.
func DangerWarning(cidr string) string {
	ip := cidr
	if i := strings.Index(cidr, "/"); i >= 0 {
		ip = cidr[:i]
	}
	switch {
	case IsDefaultRoute(cidr):
		return "changing the default route (0.0.0.0/0) can cut off all connectivity"
	case strings.HasPrefix(ip, "127."):
		return "loopback routes can break local services"
	case strings.HasPrefix(ip, "169.254."):
		return "link-local routes can break neighbor discovery"
	case strings.HasPrefix(ip, "224.") || strings.HasPrefix(ip, "239."):
		return "multicast routes can break multicast services"
	}
	return ""
}
