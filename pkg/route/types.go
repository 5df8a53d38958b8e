// Package route defines the engine's route data model and diff computation.
//
// Two route shapes flow through the engine: Resolved routes, derived from
// profile specs at apply time, and LiveEntry routes, mirrored from the OS
// table. Neither is retained between apply sessions; every session starts
// from a fresh resolution and a fresh table read.
package route

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Resolved is a route spec after symbolic resolution: destination
// normalized to a concrete CIDR and interface name replaced by the live
// interface index. A domain spec expands to one Resolved per address, all
// carrying the same SpecKey.
type Resolved struct {
	Dest    string `json:"dest"` // normalized IPv4 CIDR
	Gateway string `json:"gateway"`
	IfIndex int    `json:"if_index"`
	Metric  int    `json:"metric"`
	SpecKey string `json:"spec_key"` // identity key of the source profile spec
}

// Key returns the identity key (destination, mask, gateway). The CIDR
// carries the mask, so two routes to the same prefix via different
// gateways are distinct entries.
func (r Resolved) Key() string {
	return r.Dest + "|" + r.Gateway
}

// LiveEntry mirrors one persistent IPv4 entry as currently held by the OS.
type LiveEntry struct {
	Dest     string `json:"dest"`
	Gateway  string `json:"gateway"`
	IfIndex  int    `json:"if_index"`
	Metric   int    `json:"metric"`
	Protocol int    `json:"protocol"` // routing protocol number; marks ownership
}

// Key returns the identity key (destination, mask, gateway).
func (e LiveEntry) Key() string {
	return e.Dest + "|" + e.Gateway
}

func (e LiveEntry) String() string {
	return fmt.Sprintf("%s via %s dev %d metric %d proto %d",
		e.Dest, e.Gateway, e.IfIndex, e.Metric, e.Protocol)
}

// Fingerprint produces a stable digest of a live entry set. A plan records
// the fingerprint of the state it was computed against; the applier
// re-reads the table and refuses to run against drifted state.
func Fingerprint(entries []LiveEntry) string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, fmt.Sprintf("%s|%d|%d|%d", e.Key(), e.IfIndex, e.Metric, e.Protocol))
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
