// Package snapshot captures immutable copies of the live route table and
// turns them back into restore plans. A snapshot written by one run is
// restorable by any later run.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/util"
)

// Snapshot is an immutable capture of the full live route table. Once
// created it is never mutated; retention is handled by Prune.
type Snapshot struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Entries   []route.LiveEntry `json:"entries"`
}

// Manager persists snapshots as one JSON file per capture.
type Manager struct {
	dir   string
	table osroute.Table
}

// NewManager creates the snapshot directory if needed.
func NewManager(dir string, table osroute.Table) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &Manager{dir: dir, table: table}, nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".json")
}

// Capture reads the live table and stores an immutable copy. Pure capture:
// no mutation, no lock required.
func (m *Manager) Capture(ctx context.Context) (*Snapshot, error) {
	entries, err := m.table.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading live routes for snapshot: %w", err)
	}

	snap := &Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Entries:   entries,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(m.path(snap.ID), data, 0644); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	util.WithField("snapshot", snap.ID).Debugf("captured %d live entries", len(entries))
	return snap, nil
}

// Load reads a snapshot by identifier.
func (m *Manager) Load(id string) (*Snapshot, error) {
	data, err := os.ReadFile(m.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &util.RollbackError{SnapshotID: id, Cause: util.ErrSnapshotNotFound}
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", id, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// Meta summarizes one stored snapshot for listings.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Entries   int       `json:"entries"`
}

// List returns stored snapshots, newest first.
func (m *Manager) List() ([]Meta, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	var metas []Meta
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(de.Name(), ".json")
		snap, err := m.Load(id)
		if err != nil {
			util.Warnf("skipping unreadable snapshot %s: %v", id, err)
			continue
		}
		metas = append(metas, Meta{ID: snap.ID, CreatedAt: snap.CreatedAt, Entries: len(snap.Entries)})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].CreatedAt.After(metas[j].CreatedAt) })
	return metas, nil
}

// Delete removes a stored snapshot.
func (m *Manager) Delete(id string) error {
	if err := os.Remove(m.path(id)); err != nil {
		if os.IsNotExist(err) {
			return &util.RollbackError{SnapshotID: id, Cause: util.ErrSnapshotNotFound}
		}
		return err
	}
	return nil
}

// Prune deletes all but the newest keep snapshots.
func (m *Manager) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	metas, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(metas) <= keep {
		return 0, nil
	}
	removed := 0
	for _, meta := range metas[keep:] {
		if err := m.Delete(meta.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// RestorePlan computes the inverse plan that transforms the current live
// state back to the snapshot. The snapshot is treated as the desired state
// so rollback reuses exactly the diff and ordering guarantees of a forward
// apply. Live foreign routes absent from the snapshot are left alone;
// managed routes absent from the snapshot are deleted.
func RestorePlan(snap *Snapshot, live []route.LiveEntry) *route.Plan {
	desired := make([]route.Resolved, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		desired = append(desired, route.Resolved{
			Dest:    e.Dest,
			Gateway: e.Gateway,
			IfIndex: e.IfIndex,
			Metric:  e.Metric,
		})
	}
	return route.ComputeDiff(desired, live, osroute.ManagedProtocol, nil)
}
