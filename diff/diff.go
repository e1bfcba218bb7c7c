// Package diff implements ContextDiff.Create (spec.md §4.G): the
// reconciliation between a locally-built snapshot set and whatever a
// target environment already has persisted in state.
package diff

import (
	"log/slog"
	"sort"

	"github.com/flowforge/flowplan/fingerprint"
	"github.com/flowforge/flowplan/internal/dagsort"
	"github.com/flowforge/flowplan/snapshot"
	"github.com/flowforge/flowplan/state"
)

// ModifiedPair is `(new Snapshot, old Snapshot)` from spec.md §3.
type ModifiedPair struct {
	New *snapshot.Snapshot
	Old *snapshot.Snapshot
}

// ContextDiff is the result of reconciling local models with a remote
// environment (spec.md §3).
type ContextDiff struct {
	Environment      string
	Added            map[string]bool
	Removed          map[string]bool
	ModifiedSnapshots map[string]ModifiedPair
	Snapshots        map[string]*snapshot.Snapshot
	NewSnapshots     []*snapshot.Snapshot
	PreviousPlanID   string
}

// DirectlyModified reports spec.md §4.G's
// `directly_modified(name) ⇔ name ∈ modified ∧ ¬data_hash_matches(new_of(name), old_of(name))`.
func (d *ContextDiff) DirectlyModified(name string) bool {
	pair, ok := d.ModifiedSnapshots[name]
	if !ok {
		return false
	}
	return !fingerprint.DataHashMatches(pair.New.Fingerprint, pair.Old.Fingerprint)
}

type indirectRemoteEntry struct {
	versions  []snapshot.DataVersion
	createdTS int64
	id        snapshot.ID
}

// Create runs the nine-step algorithm of spec.md §4.G.
func Create(envName string, snapshots map[string]*snapshot.Snapshot, reader state.Reader) (*ContextDiff, error) {
	// Step 1.
	env, ok, err := reader.GetEnvironment(envName)
	if err != nil {
		return nil, err
	}
	existingInfo := map[string]state.SnapshotTableInfo{}
	previousPlanID := ""
	if ok {
		for _, info := range env.Snapshots {
			existingInfo[info.Name] = info
		}
		previousPlanID = env.PlanID
	}

	// Step 2/3.
	added := map[string]bool{}
	for name := range snapshots {
		if _, exists := existingInfo[name]; !exists {
			added[name] = true
		}
	}
	removed := map[string]bool{}
	for name := range existingInfo {
		if _, exists := snapshots[name]; !exists {
			removed[name] = true
		}
	}

	// Step 4.
	modifiedInfo := map[string]state.SnapshotTableInfo{}
	for name, snap := range snapshots {
		if added[name] {
			continue
		}
		info, exists := existingInfo[name]
		if !exists {
			continue
		}
		if !snap.Fingerprint.Equal(info.Fingerprint) {
			modifiedInfo[name] = info
		}
	}

	// Step 5.
	idSet := map[snapshot.ID]bool{}
	for _, info := range modifiedInfo {
		idSet[info.ID()] = true
	}
	for _, snap := range snapshots {
		idSet[snap.ID()] = true
	}
	ids := make([]snapshot.ID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	stored, err := reader.GetSnapshots(ids)
	if err != nil {
		return nil, err
	}

	// Step 6.
	merged := map[string]*snapshot.Snapshot{}
	modified := map[string]ModifiedPair{}
	var newSnaps []*snapshot.Snapshot
	indirectRemote := map[string]indirectRemoteEntry{}

	// Step 7. Iterate names in sorted order for determinism.
	names := make([]string, 0, len(snapshots))
	for name := range snapshots {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		snap := snapshots[name]
		prevInfo, hasPrev := modifiedInfo[name]
		existing, hasExisting := stored[snap.ID()]

		if hasExisting {
			merged[name] = existing.Copy()
			if hasPrev {
				if oldStored, ok := stored[prevInfo.ID()]; ok {
					modified[name] = ModifiedPair{New: existing.Copy(), Old: oldStored.Copy()}
				}
				for child, versions := range existing.IndirectVersions {
					entry, seen := indirectRemote[child]
					// Most-recent wins on created_ts; ties (e.g. two
					// snapshots written in the same transaction) break on
					// the lexicographically greater snapshot_id so the
					// choice is deterministic rather than iteration-order
					// dependent (spec.md §9 open question).
					if !seen || existing.CreatedTS > entry.createdTS ||
						(existing.CreatedTS == entry.createdTS && existing.ID().String() > entry.id.String()) {
						indirectRemote[child] = indirectRemoteEntry{versions: versions, createdTS: existing.CreatedTS, id: existing.ID()}
					}
				}
			}
			continue
		}

		snapCopy := snap.Copy()
		merged[name] = snapCopy
		newSnaps = append(newSnaps, snapCopy)
		if hasPrev {
			if oldStored, ok := stored[prevInfo.ID()]; ok {
				snapCopy.PreviousVersions = oldStored.AllVersions()
				modified[name] = ModifiedPair{New: snapCopy, Old: oldStored.Copy()}
			}
		}
	}

	// Step 8. Indirect-change version reuse.
	for _, s := range newSnaps {
		prevVersion, hasPrevVersion := s.PreviousVersion()
		if !hasPrevVersion {
			continue
		}
		if s.Fingerprint.DataHash != prevVersion.DataHash {
			continue
		}
		remote, ok := indirectRemote[s.Name]
		if !ok || len(remote.versions) == 0 {
			continue
		}

		remoteHead := remote.versions[len(remote.versions)-1].Version
		localHead := prevVersion.Version

		if containsVersion(s.PreviousVersions, remoteHead) {
			s.Version = localHead
		} else if containsVersion(remote.versions, localHead) {
			s.Version = remoteHead
		} else {
			slog.Debug("diff: indirect version lineage diverged, forcing fresh version", slog.String("model", s.Name))
			s.Version = snapshot.Fresh()
		}
	}

	// Step 9: order new_snapshots topologically (SPEC_FULL.md §3.G)
	// so promotion can create tables without re-deriving order.
	deps := map[string][]string{}
	for name, s := range merged {
		parentNames := make([]string, 0, len(s.Parents))
		for pid := range s.Parents {
			parentNames = append(parentNames, pid.Name)
		}
		sort.Strings(parentNames)
		deps[name] = parentNames
	}
	sort.Slice(newSnaps, func(i, j int) bool { return newSnaps[i].Name < newSnaps[j].Name })
	sortedNew, ok := dagsort.Sort(newSnaps, deps, func(s *snapshot.Snapshot) string { return s.Name })
	if ok {
		newSnaps = sortedNew
	}

	slog.Info("diff: computed context diff",
		slog.String("environment", envName),
		slog.Int("added", len(added)),
		slog.Int("removed", len(removed)),
		slog.Int("modified", len(modified)),
		slog.Int("new_snapshots", len(newSnaps)),
	)

	return &ContextDiff{
		Environment:      envName,
		Added:            added,
		Removed:          removed,
		ModifiedSnapshots: modified,
		Snapshots:        merged,
		NewSnapshots:     newSnaps,
		PreviousPlanID:   previousPlanID,
	}, nil
}

func containsVersion(versions []snapshot.DataVersion, version string) bool {
	for _, v := range versions {
		if v.Version == version {
			return true
		}
	}
	return false
}
