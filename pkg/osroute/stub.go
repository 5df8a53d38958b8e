//go:build !linux

package osroute

import (
	"context"

	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/util"
)

// stubTable is returned on platforms without a netlink route table.
type stubTable struct{}

// NewTable returns the platform route table.
func NewTable() Table {
	return stubTable{}
}

// HasPrivilege reports whether the process can mutate the route table.
func HasPrivilege() bool {
	return false
}

func (stubTable) List(context.Context) ([]route.LiveEntry, error) {
	return nil, util.ErrUnsupportedPlatform
}

func (stubTable) Add(context.Context, route.Operation) (Outcome, error) {
	return "", util.ErrUnsupportedPlatform
}

func (stubTable) Delete(context.Context, route.Operation) (Outcome, error) {
	return "", util.ErrUnsupportedPlatform
}

type stubInterfaces struct{}

// NewInterfaces returns the platform interface enumerator.
func NewInterfaces() Interfaces {
	return stubInterfaces{}
}

func (stubInterfaces) List() ([]Iface, error) {
	return nil, util.ErrUnsupportedPlatform
}
