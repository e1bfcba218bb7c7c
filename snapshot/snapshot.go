// Package snapshot implements the point-in-time model binding of
// spec.md §4.F: a Snapshot pins a model's fingerprint to a physical
// table version, distinct from the model definition itself so that
// diff (package diff) can reuse or roll forward a version independent
// of source edits.
package snapshot

import (
	"strings"

	"github.com/google/uuid"

	"github.com/flowforge/flowplan/fingerprint"
	"github.com/flowforge/flowplan/modelmeta"
)

// DataVersion names a physical version alongside the data_hash it was
// built from, so a later diff can tell "is this version's *data*
// identical to mine" apart from "does this version happen to share a
// physical table name with mine" (spec.md §4.G step 8 needs both).
type DataVersion struct {
	DataHash string
	Version  string
}

// ID is the `snapshot_id = (name, fingerprint)` pair of spec.md §3. It
// is comparable so it can be used as a map key (e.g. Snapshot.Parents).
type ID struct {
	Name           string
	DataHash       string
	MetadataHash   string
	ParentDataHash string
}

func (id ID) String() string {
	return id.Name + "@" + id.DataHash + ":" + id.MetadataHash + ":" + id.ParentDataHash
}

// Snapshot is the point-in-time binding of spec.md §3/§4.F.
type Snapshot struct {
	Name        string
	Kind        modelmeta.Kind
	Fingerprint fingerprint.Fingerprint

	// Version is the physical table identity. It starts out equal to
	// Fingerprint.DataHash for a never-before-seen snapshot but may be
	// reassigned during diff construction (spec.md §4.G step 8) to
	// reuse or roll forward an existing remote version. It must never
	// be mutated outside diff construction (spec.md §3 "Ownership").
	Version string

	PreviousVersions []DataVersion
	IndirectVersions map[string][]DataVersion
	Parents          map[ID]bool

	PhysicalSchema string
	CreatedTS      int64
	UnpausedTS     *int64
}

// Build constructs the freshly-computed Snapshot(m) of spec.md §4.F:
// fingerprint and version are derived, but created_ts is left zero —
// it is assigned at persistence time by the state writer, not here.
func Build(m *modelmeta.Model, fp fingerprint.Fingerprint, physicalSchema string, parents map[ID]bool) *Snapshot {
	p := parents
	if p == nil {
		p = map[ID]bool{}
	}
	return &Snapshot{
		Name:             m.Name,
		Kind:             m.Kind,
		Fingerprint:      fp,
		Version:          fp.DataHash,
		IndirectVersions: map[string][]DataVersion{},
		Parents:          p,
		PhysicalSchema:   physicalSchema,
	}
}

// ID returns the snapshot_id of s.
func (s *Snapshot) ID() ID {
	return ID{Name: s.Name, DataHash: s.Fingerprint.DataHash, MetadataHash: s.Fingerprint.MetadataHash, ParentDataHash: s.Fingerprint.ParentDataHash}
}

// DataVersion is s's own (DataHash, Version) pair, the unit diff
// compares lineages with.
func (s *Snapshot) DataVersion() DataVersion {
	return DataVersion{DataHash: s.Fingerprint.DataHash, Version: s.Version}
}

// AllVersions is `prev.all_versions` from spec.md §4.G step 7: every
// version this snapshot could revive, oldest first, s's own current
// version last.
func (s *Snapshot) AllVersions() []DataVersion {
	out := make([]DataVersion, 0, len(s.PreviousVersions)+1)
	out = append(out, s.PreviousVersions...)
	out = append(out, s.DataVersion())
	return out
}

// PreviousVersion is the immediate predecessor this snapshot was
// derived from, i.e. the last entry of PreviousVersions, or the zero
// value if this snapshot has no lineage (spec.md §4.G step 8's
// `s.previous_version`).
func (s *Snapshot) PreviousVersion() (DataVersion, bool) {
	if len(s.PreviousVersions) == 0 {
		return DataVersion{}, false
	}
	return s.PreviousVersions[len(s.PreviousVersions)-1], true
}

// Copy returns a deep-enough copy for diff to mutate (Version,
// PreviousVersions) without aliasing the original.
func (s *Snapshot) Copy() *Snapshot {
	cp := *s
	cp.PreviousVersions = append([]DataVersion(nil), s.PreviousVersions...)
	cp.IndirectVersions = make(map[string][]DataVersion, len(s.IndirectVersions))
	for k, v := range s.IndirectVersions {
		cp.IndirectVersions[k] = append([]DataVersion(nil), v...)
	}
	cp.Parents = make(map[ID]bool, len(s.Parents))
	for k := range s.Parents {
		cp.Parents[k] = true
	}
	return &cp
}

// TableName implements spec.md §4.F/§6:
// `{physical_schema}.{name_with_dots_to_underscores}__{version}`.
func (s *Snapshot) TableName() string {
	return TableName(s.PhysicalSchema, s.Name, s.Version)
}

// TableName is the free function form, used by environment promotion
// (component H) before a Snapshot value exists for a reassigned
// version.
func TableName(physicalSchema, name, version string) string {
	return physicalSchema + "." + strings.ReplaceAll(name, ".", "__") + "__" + version
}

// ViewName implements the environment view naming of spec.md §6:
// `{schema}__{env}.{view_name}`, where schema/view_name are modelName's
// own schema and table segments — production uses the schema verbatim
// (no `__env` suffix).
func ViewName(env, modelName string) string {
	schema, table := SplitSchemaTable(modelName)
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		return schema + "." + table
	}
	return schema + "__" + env + "." + table
}

// SplitSchemaTable splits a dotted `[catalog.]schema.table` model name
// into its schema and table segments, ignoring any catalog prefix.
func SplitSchemaTable(modelName string) (schema, table string) {
	parts := strings.Split(modelName, ".")
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[len(parts)-2], parts[len(parts)-1]
	}
}

// Fresh generates a new physical version, used when diff concludes a
// model's lineage has diverged and forces a rebuild (spec.md §4.G step
// 8). It is formatted the same way data_hash values are so the two are
// indistinguishable in shape (SPEC_FULL.md §3.F).
func Fresh() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}
