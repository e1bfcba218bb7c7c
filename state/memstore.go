package state

import (
	"sync"
	"time"

	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/snapshot"
)

// MemStore is an in-memory ReadWriter, sufficient for tests and
// single-process use (SPEC_FULL.md §4). All methods are safe for
// concurrent use.
type MemStore struct {
	mu           sync.Mutex
	environments map[string]*Environment
	snapshots    map[snapshot.ID]*snapshot.Snapshot
	byName       map[string][]snapshot.ID
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		environments: make(map[string]*Environment),
		snapshots:    make(map[snapshot.ID]*snapshot.Snapshot),
		byName:       make(map[string][]snapshot.ID),
	}
}

func (m *MemStore) GetEnvironment(name string) (*Environment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	env, ok := m.environments[name]
	if !ok {
		return nil, false, nil
	}
	cp := *env
	cp.Snapshots = append([]SnapshotTableInfo(nil), env.Snapshots...)
	return &cp, true, nil
}

func (m *MemStore) GetSnapshots(ids []snapshot.ID) (map[snapshot.ID]*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[snapshot.ID]*snapshot.Snapshot, len(ids))
	for _, id := range ids {
		if s, ok := m.snapshots[id]; ok {
			if s.ID() != id {
				return nil, errf("GetSnapshots", "stored snapshot for %s has fingerprint mismatch with its id", id.Name)
			}
			out[id] = s.Copy()
		}
	}
	return out, nil
}

func (m *MemStore) GetSnapshotsByName(names []string, excludeExternal bool) ([]*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []*snapshot.Snapshot
	for name, ids := range m.byName {
		if !wanted[name] {
			continue
		}
		for _, id := range ids {
			s := m.snapshots[id]
			if s == nil {
				continue
			}
			if excludeExternal && s.Kind == modelmeta.KindEmbedded {
				continue
			}
			out = append(out, s.Copy())
		}
	}
	return out, nil
}

func (m *MemStore) PushSnapshots(snaps []*snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UnixNano()
	for _, s := range snaps {
		id := s.ID()
		if _, exists := m.snapshots[id]; exists {
			continue
		}
		cp := s.Copy()
		if cp.CreatedTS == 0 {
			cp.CreatedTS = now
		}
		m.snapshots[id] = cp
		m.byName[s.Name] = append(m.byName[s.Name], id)
	}
	return nil
}

func (m *MemStore) Promote(env *Environment, noGaps bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if noGaps {
		for _, info := range env.Snapshots {
			s := m.snapshots[info.ID()]
			if s == nil {
				return errf("Promote", "no_gaps requested but snapshot %s is not yet persisted", info.Name)
			}
		}
	}
	cp := *env
	cp.Snapshots = append([]SnapshotTableInfo(nil), env.Snapshots...)
	m.environments[env.Name] = &cp
	return nil
}

func (m *MemStore) DeleteEnvironment(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.environments, name)
	return nil
}
