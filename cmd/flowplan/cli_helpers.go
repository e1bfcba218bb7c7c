package main

import (
	"sort"

	"github.com/flowforge/flowplan/diff"
)

// sortedBoolKeys returns m's keys in sorted order, for deterministic
// plan output.
func sortedBoolKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// directlyModifiedNames returns the modified model names whose data
// (not just metadata) changed, per diff.ContextDiff.DirectlyModified.
func directlyModifiedNames(cd *diff.ContextDiff) []string {
	var out []string
	for name := range cd.ModifiedSnapshots {
		if cd.DirectlyModified(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
