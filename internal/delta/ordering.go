// Package delta implements schema change planning: diffing snapshots
// into command trees, canonicalizing commands, and applying them to
// produce new snapshots.
package delta

import "errors"

// ErrCircularDependency is returned when a circular dependency is detected.
var ErrCircularDependency = errors.New("circular dependency detected")

// DependencyNode represents a node with dependencies for topological sorting.
type DependencyNode interface {
	ID() string
	Dependencies() []string
}

// TopoSort performs topological sort using Kahn's algorithm.
// Returns nodes ordered so that dependencies come before dependents.
// Dependencies naming nodes outside the set are ignored when
// allowUnresolved is true, and are an error otherwise. Cycles are an
// error in strict mode; with allowUnresolved the cycle members are
// appended after the sortable nodes, in input order.
func TopoSort[T DependencyNode](nodes []T, allowUnresolved bool) ([]T, error) {
	if len(nodes) <= 1 {
		return nodes, nil
	}

	nodeMap := make(map[string]T, len(nodes))
	nodeIDs := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		id := n.ID()
		nodeMap[id] = n
		nodeIDs[id] = true
	}

	// in-degree = number of dependencies that are in our node set
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		id := n.ID()
		count := 0
		for _, dep := range n.Dependencies() {
			if nodeIDs[dep] {
				count++
			} else if !allowUnresolved {
				return nil, errors.New("unresolved dependency: " + id + " -> " + dep)
			}
		}
		inDegree[id] = count
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sortStrings(queue)

	var result []T
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if n, ok := nodeMap[id]; ok {
			result = append(result, n)
		}

		for otherID, otherNode := range nodeMap {
			for _, dep := range otherNode.Dependencies() {
				if dep == id {
					inDegree[otherID]--
					if inDegree[otherID] == 0 {
						queue = append(queue, otherID)
						sortStrings(queue)
					}
					break
				}
			}
		}
	}

	if len(result) != len(nodes) {
		if !allowUnresolved {
			return nil, ErrCircularDependency
		}
		// Cycle members never reach in-degree zero. Append them in
		// input order so the result stays deterministic and complete.
		placed := make(map[string]bool, len(result))
		for _, n := range result {
			placed[n.ID()] = true
		}
		for _, n := range nodes {
			if !placed[n.ID()] {
				result = append(result, n)
			}
		}
	}

	return result, nil
}

// sortStrings performs an in-place insertion sort on a small slice.
// Used for maintaining deterministic ordering in the queue.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
