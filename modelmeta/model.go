// Package modelmeta parses and validates model metadata (spec.md §4.C):
// the MODEL(...) property block plus the load-time invariants of
// spec.md §3 (unique/explicit-cast projections, no SELECT *, partition
// columns present, INCREMENTAL_BY_TIME requires a time column).
package modelmeta

import (
	"strings"
	"time"

	"github.com/flowforge/flowplan/sqlast"
)

// TimeColumn is a model's incremental time column (spec.md §3): an
// optional declared string Format, defaulting to the engine's native
// timestamp rendering when empty.
type TimeColumn struct {
	Name   string
	Format string
}

// Model is the user's declarative unit (spec.md §3). Query is nil for
// Python models (Entrypoint set) and for SEED models declared through a
// MODEL block; seed.Load sets SeedPath together with a generated
// column-list Query.
type Model struct {
	Name        string
	Kind        Kind
	Dialect     sqlast.Dialect
	DialectName string

	Cron           string
	NormalizedCron string
	IntervalUnit   IntervalUnit

	TimeColumn    *TimeColumn
	PartitionedBy []string

	Query           sqlast.Statement
	PreStatements   []sqlast.Statement // everything between MODEL(...) and the final query
	Entrypoint      string             // set for Python models
	SeedPath        string             // set for Seed models

	Path        string
	Description string
	Owner       string
	StorageFormat string
	BatchSize   int
	Start       string
	Stamp       string

	// DependsOn holds explicit parent model names declared via the
	// `depends_on` property, in addition to any inferred from the
	// query's table references (render package resolves the union).
	DependsOn []string

	// Audits holds the names of audits assigned to this model via the
	// `audits` property; part of metadata_hash (spec.md §4.E).
	Audits []string
}

// ID is the stable identifier used for Snapshot.snapshot_id and cache
// keys: the model name exactly as declared, since spec.md §3 treats
// names as case-sensitive identity.
func (m *Model) ID() string {
	return m.Name
}

// TableTimeColumn returns the time column name, or "" if unset.
func (m *Model) TableTimeColumn() string {
	if m.TimeColumn == nil {
		return ""
	}
	return m.TimeColumn.Name
}

// AllPartitionColumns returns PartitionedBy with the time column
// implicitly prepended (spec.md §3 "Partitioned by").
func (m *Model) AllPartitionColumns() []string {
	if m.TimeColumn == nil {
		return m.PartitionedBy
	}
	tc := strings.ToLower(m.TimeColumn.Name)
	for _, p := range m.PartitionedBy {
		if strings.ToLower(p) == tc {
			return m.PartitionedBy
		}
	}
	out := make([]string, 0, len(m.PartitionedBy)+1)
	out = append(out, m.TimeColumn.Name)
	out = append(out, m.PartitionedBy...)
	return out
}

// startTime parses Start with the small set of layouts sqlmesh-style
// model files use; callers outside this package typically treat a
// parse failure the same as "unset" since Start only affects backfill
// floor computation, not identity.
func (m *Model) startTime() (time.Time, bool) {
	if m.Start == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, m.Start); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
