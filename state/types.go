// Package state implements the StateReader/StateWriter contract of
// spec.md §6: the persistence boundary the core delegates environment
// and snapshot storage to. It ships two concrete stores — MemStore for
// tests and single-process use, SQLiteStore for durability across
// process restarts — alongside the interfaces themselves so callers can
// substitute their own.
package state

import (
	"github.com/flowforge/flowplan/fingerprint"
	"github.com/flowforge/flowplan/snapshot"
)

// SnapshotTableInfo is the lightweight record an Environment stores per
// model (spec.md §3): enough to locate the full Snapshot in state
// (via ID) without carrying the whole object.
type SnapshotTableInfo struct {
	Name        string
	Fingerprint fingerprint.Fingerprint
	TableName   string
}

// ID is the snapshot_id this table info refers to.
func (i SnapshotTableInfo) ID() snapshot.ID {
	return snapshot.ID{
		Name:           i.Name,
		DataHash:       i.Fingerprint.DataHash,
		MetadataHash:   i.Fingerprint.MetadataHash,
		ParentDataHash: i.Fingerprint.ParentDataHash,
	}
}

// Environment is the named view over a set of snapshots (spec.md §3).
type Environment struct {
	Name           string
	Snapshots      []SnapshotTableInfo
	Start          string
	End            string
	PlanID         string
	PreviousPlanID string
}
