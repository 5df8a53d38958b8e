// Package osroute accesses the operating system's persistent IPv4 route
// table. The table is externally-owned shared state: the engine reads it
// fresh every session and never caches entries across sessions.
package osroute

import (
	"context"

	"github.com/routewarden/routewarden/pkg/route"
)

// ManagedProtocol is the routing protocol number stamped on every route
// this tool installs. It marks ownership: reconciliation only ever deletes
// entries carrying this protocol, the way the original tool keyed on
// persistent NetMgmt routes. Values above 4 are free for userspace daemons
// (see rtnetlink(7)).
const ManagedProtocol = 201

// Outcome reports the OS-level result of one mutation. Benign outcomes are
// no-ops for idempotence, not errors.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyPresent Outcome = "already-present"
	OutcomeAlreadyAbsent  Outcome = "already-absent"
)

// Table performs queries and mutations against the OS route table.
// Mutations require elevated privilege; List does not.
type Table interface {
	// List returns the current persistent IPv4 entries.
	List(ctx context.Context) ([]route.LiveEntry, error)
	// Add installs the route described by op, marked with ManagedProtocol.
	Add(ctx context.Context, op route.Operation) (Outcome, error)
	// Delete removes the route described by op.
	Delete(ctx context.Context, op route.Operation) (Outcome, error)
}

// Iface is one live network interface.
type Iface struct {
	Name      string   `json:"name"`
	Index     int      `json:"index"`
	Addresses []string `json:"addresses,omitempty"`
	Up        bool     `json:"up"`
}

// Interfaces enumerates currently present network interfaces.
type Interfaces interface {
	List() ([]Iface, error)
}
