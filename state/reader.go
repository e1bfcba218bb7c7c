package state

import "github.com/flowforge/flowplan/snapshot"

// Reader is the read side of spec.md §6's state reader contract.
type Reader interface {
	// GetEnvironment returns the named environment, or ok=false if it
	// does not exist.
	GetEnvironment(name string) (env *Environment, ok bool, err error)

	// GetSnapshots resolves a batch of snapshot_ids in one call.
	// Missing ids are simply absent from the result, not an error.
	GetSnapshots(ids []snapshot.ID) (map[snapshot.ID]*snapshot.Snapshot, error)

	// GetSnapshotsByName returns every stored snapshot for the given
	// model names (all historical fingerprints, not just the latest).
	// When excludeExternal is true, snapshots for EMBEDDED models
	// (which have no physical table of their own) are omitted.
	GetSnapshotsByName(names []string, excludeExternal bool) ([]*snapshot.Snapshot, error)
}

// Writer is the write side of spec.md §6's state reader contract.
type Writer interface {
	// PushSnapshots persists newly built snapshots, assigning CreatedTS
	// if unset.
	PushSnapshots(snaps []*snapshot.Snapshot) error

	// Promote overwrites env's stored record. With noGaps set,
	// implementations refuse the promote when a snapshot env references
	// is not persisted; interval coverage of [env.Start, env.End] is not
	// checked.
	Promote(env *Environment, noGaps bool) error

	// DeleteEnvironment removes the named environment's record.
	DeleteEnvironment(name string) error
}

// ReadWriter is the full contract components F/G/H consume.
type ReadWriter interface {
	Reader
	Writer
}
