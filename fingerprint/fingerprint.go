// Package fingerprint computes the stable, change-sensitive version key
// described in spec.md §4.E: a triple (DataHash, MetadataHash,
// ParentDataHash) split so that data-affecting changes can be told apart
// from metadata-only ones (spec.md §1, §8).
package fingerprint

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/sqlast"
)

// Fingerprint is the triple from spec.md §4.E/GLOSSARY.
type Fingerprint struct {
	DataHash       string
	MetadataHash   string
	ParentDataHash string
}

// String renders the fingerprint the way it appears in snapshot_id text
// (spec.md §4.F: `snapshot_id = (name, fingerprint)`).
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s:%s:%s", f.DataHash, f.MetadataHash, f.ParentDataHash)
}

// Equal compares all three components.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f == o
}

// DataHashMatches compares only the DataHash component (spec.md §4.E:
// "This distinction is load-bearing for §4.G" — it is how the context
// diff tells a directly- from an indirectly-modified model apart).
func DataHashMatches(a, b Fingerprint) bool {
	return a.DataHash == b.DataHash
}

// digest hashes canonical, newline-joined fields into a 16-character
// lowercase hex digest. xxhash is a fast, non-cryptographic digest
// appropriate for content-addressing identity, not collision-resistant
// security hashing (SPEC_FULL.md §3.E); inputs are pre-sorted/ordered
// by callers so the digest is deterministic across hosts and runs.
func digest(fields ...string) string {
	h := xxhash.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Compute derives m's fingerprint. renderedQuery is the query rendered
// at the epoch reference window (spec.md §4.E: "so date macros do not
// pollute identity") with macros fully eliminated. parentDataHashes must
// already be ordered DAG-topologically, name-tie-broken (spec.md §4.E;
// cmd/flowplan's buildSnapshots orders them by the project's
// topological model order).
func Compute(m *modelmeta.Model, renderedQuery sqlast.Statement, parentDataHashes []string) Fingerprint {
	return Fingerprint{
		DataHash:       computeDataHash(m, renderedQuery),
		MetadataHash:   computeMetadataHash(m),
		ParentDataHash: computeParentDataHash(parentDataHashes),
	}
}

func computeDataHash(m *modelmeta.Model, renderedQuery sqlast.Statement) string {
	queryText := sqlast.String(renderedQuery, m.Dialect)

	var preText []string
	for _, st := range m.PreStatements {
		if isDefStatement(st) {
			continue
		}
		preText = append(preText, sqlast.String(st, m.Dialect))
	}
	sort.Strings(preText) // pre-statement order is not semantically meaningful for identity beyond set membership

	return digest(
		queryText,
		strings.Join(preText, "\x1f"),
		m.Kind.String(),
		timeColumnKey(m),
		// partitioned_by is an ordered list (spec.md §3) and partition
		// order is data-affecting, so it is hashed as declared rather
		// than through canonicalList's sort.
		strings.Join(m.AllPartitionColumns(), ","),
		m.StorageFormat,
		m.Dialect.String(),
	)
}

func computeMetadataHash(m *modelmeta.Model) string {
	return digest(
		m.Owner,
		m.Description,
		m.Cron,
		strconv.Itoa(m.BatchSize),
		m.Start,
		m.Stamp,
		strings.Join(canonicalList(m.Audits), ","),
	)
}

func computeParentDataHash(orderedParentDataHashes []string) string {
	if len(orderedParentDataHashes) == 0 {
		return digest()
	}
	return digest(orderedParentDataHashes...)
}

func timeColumnKey(m *modelmeta.Model) string {
	if m.TimeColumn == nil {
		return ""
	}
	return m.TimeColumn.Name + "\x1e" + m.TimeColumn.Format
}

func isDefStatement(st sqlast.Statement) bool {
	es, ok := st.(*sqlast.ExprStatement)
	if !ok {
		return false
	}
	_, ok = es.Expr.(*sqlast.MacroDef)
	return ok
}

// canonicalList copies and sorts in lists that contribute to identity
// but whose declared order is not itself semantically meaningful
// (audits).
func canonicalList(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
