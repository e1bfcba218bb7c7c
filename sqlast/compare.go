package sqlast

import "reflect"

// Equal reports whether two nodes are structurally identical ASTs. This
// underlies fingerprint.Compute's requirement that two queries differing
// only in comments or whitespace hash identically: Equal (and Compute)
// both operate on the parsed tree, never on raw source text.
func Equal(a, b Node) bool {
	return reflect.DeepEqual(a, b)
}
