// Package dagsort performs a deterministic topological sort over a
// dependency graph, used to order the context diff's new snapshots and
// the CLI's model load order (parents before children).
package dagsort

// Sort performs a topological sort on items based on their dependencies
// using depth-first search with three-color marking (unvisited, visiting,
// visited) to detect cycles. Dependencies are visited before dependents.
// Ties among items with no ordering constraint between them are broken by
// the input order, so the result is deterministic for a fixed input slice.
//
// Returns (sorted, true) on success, or (nil, false) if items forms a cycle.
func Sort[T any](items []T, dependencies map[string][]string, getID func(T) string) ([]T, bool) {
	var sorted []T
	visited := make(map[string]bool, len(items))
	visiting := make(map[string]bool, len(items))
	itemMap := make(map[string]T, len(items))

	for _, item := range items {
		itemMap[getID(item)] = item
	}

	var visit func(string) bool
	visit = func(id string) bool {
		if visiting[id] {
			return false
		}
		if visited[id] {
			return true
		}

		visiting[id] = true
		for _, dep := range dependencies[id] {
			if _, exists := itemMap[dep]; exists {
				if !visit(dep) {
					return false
				}
			}
		}
		visiting[id] = false
		visited[id] = true

		if item, exists := itemMap[id]; exists {
			sorted = append(sorted, item)
		}
		return true
	}

	for _, item := range items {
		id := getID(item)
		if !visited[id] {
			if !visit(id) {
				return nil, false
			}
		}
	}

	return sorted, true
}
