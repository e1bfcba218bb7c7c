package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowforge/flowplan/fingerprint"
	"github.com/flowforge/flowplan/modelmeta"
)

func TestTableName(t *testing.T) {
	got := TableName("sqlmesh", "db.schema.my_model", "abc123")
	assert.Equal(t, "sqlmesh.db__schema__my_model__abc123", got)
}

func TestViewName_ProductionOmitsSuffix(t *testing.T) {
	assert.Equal(t, "schema.my_model", ViewName("prod", "db.schema.my_model"))
}

func TestViewName_NonProductionAddsSuffix(t *testing.T) {
	assert.Equal(t, "schema__dev.my_model", ViewName("dev", "db.schema.my_model"))
}

func TestBuild_VersionStartsAtDataHash(t *testing.T) {
	m := &modelmeta.Model{Name: "db.schema.m", Kind: modelmeta.KindFull}
	fp := fingerprint.Fingerprint{DataHash: "deadbeef", MetadataHash: "cafe", ParentDataHash: "babe"}
	s := Build(m, fp, "sqlmesh", nil)
	assert.Equal(t, "deadbeef", s.Version)
	assert.Empty(t, s.PreviousVersions)
	assert.Equal(t, "sqlmesh.db__schema__m__deadbeef", s.TableName())
}

func TestAllVersions_AppendsCurrent(t *testing.T) {
	s := &Snapshot{
		Fingerprint:      fingerprint.Fingerprint{DataHash: "new"},
		Version:          "new",
		PreviousVersions: []DataVersion{{DataHash: "old1", Version: "old1"}},
	}
	all := s.AllVersions()
	assert.Equal(t, []DataVersion{{DataHash: "old1", Version: "old1"}, {DataHash: "new", Version: "new"}}, all)
}

func TestPreviousVersion_LastEntry(t *testing.T) {
	s := &Snapshot{PreviousVersions: []DataVersion{{Version: "a"}, {Version: "b"}}}
	pv, ok := s.PreviousVersion()
	assert.True(t, ok)
	assert.Equal(t, "b", pv.Version)
}

func TestCopy_DoesNotAliasSlicesOrMaps(t *testing.T) {
	s := &Snapshot{
		PreviousVersions: []DataVersion{{Version: "a"}},
		IndirectVersions: map[string][]DataVersion{"child": {{Version: "x"}}},
		Parents:          map[ID]bool{{Name: "p"}: true},
	}
	cp := s.Copy()
	cp.PreviousVersions[0].Version = "mutated"
	cp.IndirectVersions["child"][0].Version = "mutated"
	cp.Parents[ID{Name: "q"}] = true

	assert.Equal(t, "a", s.PreviousVersions[0].Version)
	assert.Equal(t, "x", s.IndirectVersions["child"][0].Version)
	assert.Len(t, s.Parents, 1)
}
