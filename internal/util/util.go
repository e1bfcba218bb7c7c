// Package util holds small generic helpers shared across flowplan's
// packages; nothing here is domain-specific.
package util

import (
	"sort"
)

// TransformSlice applies converter to each element of in and returns the
// resulting slice.
func TransformSlice[T any, R any](in []T, converter func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = converter(v)
	}
	return out
}

// CanonicalMapIter yields map entries in sorted key order, so callers that
// need deterministic output (DDL, fingerprints, plan text) don't depend on
// Go's randomized map iteration order.
func CanonicalMapIter[T any](m map[string]T) func(yield func(string, T) bool) {
	return func(yield func(string, T) bool) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}

// SortedKeys returns the keys of m in sorted order.
func SortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
