package query

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/plaenen/graphstore/pkg/projection"
)

// Visitor receives each visited node. Returning false terminates the
// traversal early.
type Visitor func(id string) bool

// BFS traverses breadth-first from start, visiting each reachable node once.
// Cycle-safe. Returns the visit order up to early termination.
func BFS(v projection.View, start string, visit Visitor) []string {
	if !v.HasNode(start) {
		return nil
	}
	seen := mapset.NewThreadUnsafeSet(start)
	queue := []string{start}
	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		if visit != nil && !visit(node) {
			return order
		}
		for _, e := range v.Out(node) {
			if seen.Add(e.To) {
				queue = append(queue, e.To)
			}
		}
	}
	return order
}

// DFS traverses depth-first from start, visiting each reachable node once.
// Cycle-safe. Returns the visit order up to early termination.
func DFS(v projection.View, start string, visit Visitor) []string {
	if !v.HasNode(start) {
		return nil
	}
	seen := mapset.NewThreadUnsafeSet[string]()
	var order []string
	stopped := false

	var walk func(node string)
	walk = func(node string) {
		if stopped || !seen.Add(node) {
			return
		}
		order = append(order, node)
		if visit != nil && !visit(node) {
			stopped = true
			return
		}
		for _, e := range v.Out(node) {
			walk(e.To)
		}
	}
	walk(start)
	return order
}

// Reachable reports whether to is reachable from from.
func Reachable(v projection.View, from, to string) bool {
	found := false
	BFS(v, from, func(id string) bool {
		if id == to {
			found = true
			return false
		}
		return true
	})
	return found
}
