package query

import (
	"sort"

	"github.com/plaenen/graphstore/pkg/projection"
)

// Analyzers are advisory structural checks. Planarity and colorability are
// analyzers by default; a variant that declares planarity in its constraints
// promotes the planarity check to a validation rejection.

// undirectedEdgeCount counts distinct undirected edges, ignoring self loops.
func undirectedEdgeCount(v projection.View) int {
	adj := undirectedAdj(v)
	total := 0
	for _, set := range adj {
		total += set.Cardinality()
	}
	return total / 2
}

// PlanarityResult reports the outcome of the planarity analyzer.
type PlanarityResult struct {
	// Planar is false only when a definite obstruction was found.
	Planar bool

	// Reason names the obstruction when Planar is false.
	Reason string
}

// CheckPlanarity applies two necessary conditions: the Euler edge bound
// (e <= 3v-6 for v >= 3) and the absence of a K5. Passing both does not
// prove planarity; failing either disproves it.
func CheckPlanarity(v projection.View, budget Budget) (PlanarityResult, error) {
	nodes := v.NodeIDs()
	n := len(nodes)
	if err := budget.checkNodes("planarity", n); err != nil {
		return PlanarityResult{}, err
	}
	if n >= 3 {
		e := undirectedEdgeCount(v)
		if e > 3*n-6 {
			return PlanarityResult{Planar: false, Reason: "edge count exceeds Euler bound"}, nil
		}
	}
	matches, err := detectCliques(v, 5)
	if err != nil {
		return PlanarityResult{}, err
	}
	if len(matches) > 0 {
		return PlanarityResult{Planar: false, Reason: "contains K5"}, nil
	}
	return PlanarityResult{Planar: true}, nil
}

// GreedyColoring colors nodes greedily in degree-descending order and
// returns the assignment. The color count is an upper bound on the
// chromatic number.
func GreedyColoring(v projection.View) map[string]int {
	adj := undirectedAdj(v)
	nodes := v.NodeIDs()
	sort.SliceStable(nodes, func(i, j int) bool {
		return adj[nodes[i]].Cardinality() > adj[nodes[j]].Cardinality()
	})

	colors := make(map[string]int, len(nodes))
	for _, node := range nodes {
		used := make(map[int]bool)
		for _, nb := range adj[node].ToSlice() {
			if c, ok := colors[nb]; ok {
				used[c] = true
			}
		}
		c := 0
		for used[c] {
			c++
		}
		colors[node] = c
	}
	return colors
}

// ChromaticUpperBound returns the number of colors the greedy coloring
// used. A result of at most 4 is consistent with four-color compliance.
func ChromaticUpperBound(v projection.View) int {
	colors := GreedyColoring(v)
	max := -1
	for _, c := range colors {
		if c > max {
			max = c
		}
	}
	return max + 1
}
