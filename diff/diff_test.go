package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowplan/fingerprint"
	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/snapshot"
	"github.com/flowforge/flowplan/state"
)

func TestCreate_NoExistingEnvironment_EverythingAdded(t *testing.T) {
	store := state.NewMemStore()
	local := map[string]*snapshot.Snapshot{
		"db.a": snapshot.Build(&modelmeta.Model{Name: "db.a", Kind: modelmeta.KindFull},
			fingerprint.Fingerprint{DataHash: "h1", MetadataHash: "m", ParentDataHash: "p"}, "sqlmesh", nil),
	}

	cd, err := Create("dev", local, store)
	require.NoError(t, err)
	assert.True(t, cd.Added["db.a"])
	assert.Empty(t, cd.Removed)
	assert.Len(t, cd.NewSnapshots, 1)
}

func TestCreate_RemovedWhenMissingLocally(t *testing.T) {
	store := state.NewMemStore()
	fp := fingerprint.Fingerprint{DataHash: "h1", MetadataHash: "m", ParentDataHash: "p"}
	existing := snapshot.Build(&modelmeta.Model{Name: "db.a", Kind: modelmeta.KindFull}, fp, "sqlmesh", nil)
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{existing}))
	require.NoError(t, store.Promote(&state.Environment{
		Name:      "dev",
		Snapshots: []state.SnapshotTableInfo{{Name: "db.a", Fingerprint: fp}},
	}, false))

	cd, err := Create("dev", map[string]*snapshot.Snapshot{}, store)
	require.NoError(t, err)
	assert.True(t, cd.Removed["db.a"])
	assert.Empty(t, cd.Added)
}

func TestCreate_UnchangedFingerprintIsNeitherAddedNorModified(t *testing.T) {
	store := state.NewMemStore()
	fp := fingerprint.Fingerprint{DataHash: "h1", MetadataHash: "m", ParentDataHash: "p"}
	existing := snapshot.Build(&modelmeta.Model{Name: "db.a", Kind: modelmeta.KindFull}, fp, "sqlmesh", nil)
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{existing}))
	require.NoError(t, store.Promote(&state.Environment{
		Name:      "dev",
		Snapshots: []state.SnapshotTableInfo{{Name: "db.a", Fingerprint: fp}},
	}, false))

	local := map[string]*snapshot.Snapshot{
		"db.a": snapshot.Build(&modelmeta.Model{Name: "db.a", Kind: modelmeta.KindFull}, fp, "sqlmesh", nil),
	}
	cd, err := Create("dev", local, store)
	require.NoError(t, err)
	assert.Empty(t, cd.Added)
	assert.Empty(t, cd.ModifiedSnapshots)
	assert.Empty(t, cd.NewSnapshots)
	assert.Equal(t, "h1", cd.Snapshots["db.a"].Version)
}

func TestCreate_FingerprintChangeIsModifiedAndDirectlyModified(t *testing.T) {
	store := state.NewMemStore()
	oldFP := fingerprint.Fingerprint{DataHash: "h1", MetadataHash: "m", ParentDataHash: "p"}
	existing := snapshot.Build(&modelmeta.Model{Name: "db.a", Kind: modelmeta.KindFull}, oldFP, "sqlmesh", nil)
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{existing}))
	require.NoError(t, store.Promote(&state.Environment{
		Name:      "dev",
		Snapshots: []state.SnapshotTableInfo{{Name: "db.a", Fingerprint: oldFP}},
	}, false))

	newFP := fingerprint.Fingerprint{DataHash: "h2", MetadataHash: "m", ParentDataHash: "p"}
	local := map[string]*snapshot.Snapshot{
		"db.a": snapshot.Build(&modelmeta.Model{Name: "db.a", Kind: modelmeta.KindFull}, newFP, "sqlmesh", nil),
	}
	cd, err := Create("dev", local, store)
	require.NoError(t, err)
	require.Contains(t, cd.ModifiedSnapshots, "db.a")
	assert.True(t, cd.DirectlyModified("db.a"))
	require.Len(t, cd.NewSnapshots, 1)
	assert.Equal(t, "h2", cd.NewSnapshots[0].Version)
}

func TestCreate_MetadataOnlyChangeIsModifiedButNotDirectlyModified(t *testing.T) {
	store := state.NewMemStore()
	oldFP := fingerprint.Fingerprint{DataHash: "h1", MetadataHash: "m1", ParentDataHash: "p"}
	existing := snapshot.Build(&modelmeta.Model{Name: "db.a", Kind: modelmeta.KindFull}, oldFP, "sqlmesh", nil)
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{existing}))
	require.NoError(t, store.Promote(&state.Environment{
		Name:      "dev",
		Snapshots: []state.SnapshotTableInfo{{Name: "db.a", Fingerprint: oldFP}},
	}, false))

	newFP := fingerprint.Fingerprint{DataHash: "h1", MetadataHash: "m2", ParentDataHash: "p"}
	local := map[string]*snapshot.Snapshot{
		"db.a": snapshot.Build(&modelmeta.Model{Name: "db.a", Kind: modelmeta.KindFull}, newFP, "sqlmesh", nil),
	}
	cd, err := Create("dev", local, store)
	require.NoError(t, err)
	require.Contains(t, cd.ModifiedSnapshots, "db.a")
	assert.False(t, cd.DirectlyModified("db.a"))
}

func TestCreate_NewSnapshotsAreTopologicallyOrdered(t *testing.T) {
	store := state.NewMemStore()
	parentFP := fingerprint.Fingerprint{DataHash: "hp", MetadataHash: "m", ParentDataHash: "p"}
	parent := snapshot.Build(&modelmeta.Model{Name: "db.parent", Kind: modelmeta.KindFull}, parentFP, "sqlmesh", nil)
	childFP := fingerprint.Fingerprint{DataHash: "hc", MetadataHash: "m", ParentDataHash: "hp"}
	child := snapshot.Build(&modelmeta.Model{Name: "db.child", Kind: modelmeta.KindFull}, childFP, "sqlmesh",
		map[snapshot.ID]bool{parent.ID(): true})

	// db.child sorts before db.parent by name, so this checks that
	// Create orders by dependency rather than by name.
	local := map[string]*snapshot.Snapshot{"db.child": child, "db.parent": parent}
	cd, err := Create("dev", local, store)
	require.NoError(t, err)
	require.Len(t, cd.NewSnapshots, 2)
	parentIdx, childIdx := -1, -1
	for i, s := range cd.NewSnapshots {
		if s.Name == "db.parent" {
			parentIdx = i
		}
		if s.Name == "db.child" {
			childIdx = i
		}
	}
	assert.Less(t, parentIdx, childIdx)
}

func setupIndirectReuseFixture(t *testing.T, remoteVersions, localPreviousVersions []snapshot.DataVersion) (*ContextDiff, error) {
	t.Helper()
	store := state.NewMemStore()

	fpParentV1 := fingerprint.Fingerprint{DataHash: "pdata1", MetadataHash: "m", ParentDataHash: "pp1"}
	parentV1 := &snapshot.Snapshot{
		Name: "db.parent", Kind: modelmeta.KindFull, Fingerprint: fpParentV1, Version: "pdata1",
		IndirectVersions: map[string][]snapshot.DataVersion{"db.child": remoteVersions},
		CreatedTS:        100,
	}
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{parentV1}))

	fpParentV2 := fingerprint.Fingerprint{DataHash: "pdata2", MetadataHash: "m", ParentDataHash: "pp2"}
	parentV2 := &snapshot.Snapshot{Name: "db.parent", Kind: modelmeta.KindFull, Fingerprint: fpParentV2, Version: "pdata2", CreatedTS: 200}

	fpChildV2 := fingerprint.Fingerprint{DataHash: "cdata", MetadataHash: "m", ParentDataHash: "pdata2"}
	childV2 := &snapshot.Snapshot{
		Name: "db.child", Kind: modelmeta.KindFull, Fingerprint: fpChildV2,
		PreviousVersions: localPreviousVersions,
		Version:          "cver2_new", CreatedTS: 200,
	}
	require.NoError(t, store.PushSnapshots([]*snapshot.Snapshot{parentV2, childV2}))
	require.NoError(t, store.Promote(&state.Environment{
		Name: "dev",
		Snapshots: []state.SnapshotTableInfo{
			{Name: "db.parent", Fingerprint: fpParentV2},
			{Name: "db.child", Fingerprint: fpChildV2},
		},
	}, false))

	localParent := &snapshot.Snapshot{Name: "db.parent", Kind: modelmeta.KindFull, Fingerprint: fpParentV1, Version: "pdata1"}
	fpChildV3 := fingerprint.Fingerprint{DataHash: "cdata", MetadataHash: "m", ParentDataHash: "pdata1"}
	localChild := &snapshot.Snapshot{
		Name: "db.child", Kind: modelmeta.KindFull, Fingerprint: fpChildV3, Version: "cdata",
		Parents: map[snapshot.ID]bool{localParent.ID(): true},
	}

	local := map[string]*snapshot.Snapshot{"db.parent": localParent, "db.child": localChild}
	return Create("dev", local, store)
}

func TestCreate_IndirectVersionReuse_LocalDominates(t *testing.T) {
	cd, err := setupIndirectReuseFixture(t,
		[]snapshot.DataVersion{{DataHash: "cdata", Version: "cver1_old"}},
		[]snapshot.DataVersion{{DataHash: "cdata", Version: "cver1_old"}},
	)
	require.NoError(t, err)
	assert.Equal(t, "cver2_new", cd.Snapshots["db.child"].Version)
}

func TestCreate_IndirectVersionReuse_RemoteDominates(t *testing.T) {
	// Remote's recorded lineage for db.child includes local's current
	// head (cver2_new, appended automatically from childV2's own
	// Version) plus one more version beyond it, so remote has advanced
	// past local.
	cd, err := setupIndirectReuseFixture(t,
		[]snapshot.DataVersion{{DataHash: "cdata", Version: "cver2_new"}, {DataHash: "cdata", Version: "cver3_remote_new"}},
		[]snapshot.DataVersion{{DataHash: "cdata", Version: "cver1_old"}},
	)
	require.NoError(t, err)
	assert.Equal(t, "cver3_remote_new", cd.Snapshots["db.child"].Version)
}

func TestCreate_IndirectVersionReuse_DivergedForcesFresh(t *testing.T) {
	cd, err := setupIndirectReuseFixture(t,
		[]snapshot.DataVersion{{DataHash: "cdata", Version: "cverB"}},
		[]snapshot.DataVersion{{DataHash: "cdata", Version: "cverA"}},
	)
	require.NoError(t, err)
	got := cd.Snapshots["db.child"].Version
	assert.NotEqual(t, "cverA", got)
	assert.NotEqual(t, "cverB", got)
	assert.NotEmpty(t, got)
}
