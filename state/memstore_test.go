package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowplan/fingerprint"
	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/snapshot"
)

func testSnapshot(name, dataHash string) *snapshot.Snapshot {
	m := &modelmeta.Model{Name: name, Kind: modelmeta.KindFull}
	fp := fingerprint.Fingerprint{DataHash: dataHash, MetadataHash: "m", ParentDataHash: "p"}
	return snapshot.Build(m, fp, "sqlmesh", nil)
}

func TestMemStore_PushAndGetSnapshots(t *testing.T) {
	store := NewMemStore()
	s := testSnapshot("db.schema.a", "h1")
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{s}))

	got, err := store.GetSnapshots([]snapshot.ID{s.ID()})
	require.NoError(t, err)
	require.Contains(t, got, s.ID())
	assert.Equal(t, "h1", got[s.ID()].Version)
	assert.NotZero(t, got[s.ID()].CreatedTS)
}

func TestMemStore_PushIsIdempotentPerID(t *testing.T) {
	store := NewMemStore()
	s := testSnapshot("db.schema.a", "h1")
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{s}))
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{s}))

	all, err := store.GetSnapshotsByName([]string{"db.schema.a"}, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemStore_GetSnapshotsByName_ExcludesEmbedded(t *testing.T) {
	store := NewMemStore()
	full := testSnapshot("db.schema.a", "h1")
	embedded := &snapshot.Snapshot{Name: "db.schema.b", Kind: modelmeta.KindEmbedded,
		Fingerprint: fingerprint.Fingerprint{DataHash: "h2"}, Version: "h2"}
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{full, embedded}))

	all, err := store.GetSnapshotsByName([]string{"db.schema.a", "db.schema.b"}, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "db.schema.a", all[0].Name)
}

func TestMemStore_EnvironmentRoundTrip(t *testing.T) {
	store := NewMemStore()
	_, ok, err := store.GetEnvironment("dev")
	require.NoError(t, err)
	assert.False(t, ok)

	env := &Environment{Name: "dev", PlanID: "plan1", Snapshots: []SnapshotTableInfo{
		{Name: "db.schema.a", Fingerprint: fingerprint.Fingerprint{DataHash: "h1"}},
	}}
	require.NoError(t, store.Promote(env, false))

	got, ok, err := store.GetEnvironment("dev")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "plan1", got.PlanID)
	assert.Len(t, got.Snapshots, 1)
}

func TestMemStore_PromoteNoGapsRejectsUnpersistedSnapshot(t *testing.T) {
	store := NewMemStore()
	env := &Environment{Name: "dev", Snapshots: []SnapshotTableInfo{
		{Name: "db.schema.a", Fingerprint: fingerprint.Fingerprint{DataHash: "h1"}},
	}}
	err := store.Promote(env, true)
	require.Error(t, err)
}

func TestMemStore_DeleteEnvironment(t *testing.T) {
	store := NewMemStore()
	require.NoError(t, store.Promote(&Environment{Name: "dev"}, false))
	require.NoError(t, store.DeleteEnvironment("dev"))
	_, ok, err := store.GetEnvironment("dev")
	require.NoError(t, err)
	assert.False(t, ok)
}
