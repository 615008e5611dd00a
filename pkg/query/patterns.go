package query

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

// PatternKind enumerates the closed pattern catalog.
type PatternKind string

const (
	PatternClique           PatternKind = "clique"
	PatternSimpleCycle      PatternKind = "simple_cycle"
	PatternStar             PatternKind = "star"
	PatternBipartite        PatternKind = "bipartite"
	PatternHamiltonianPath  PatternKind = "hamiltonian_path"
	PatternHamiltonianCycle PatternKind = "hamiltonian_cycle"
	PatternSubgraph         PatternKind = "subgraph"
)

// Needle is an explicit pattern graph for subgraph isomorphism.
type Needle struct {
	Nodes []string
	Edges [][2]string
}

// Pattern selects a catalog entry. K is the clique size, cycle length, or
// star leaf count. Tolerance is the number of missing edges a fuzzy match
// may have; 0 demands an exact match.
type Pattern struct {
	Kind      PatternKind
	K         int
	Tolerance int
	Needle    *Needle
}

// Match reports one occurrence: the mapping from pattern positions to graph
// nodes, and how many edges the occurrence is missing relative to the exact
// pattern.
type Match struct {
	Mapping       map[string]string
	Discrepancies int
}

// Detect finds occurrences of a pattern in the view. Operations that would
// exceed the budget return ErrComplexityBudgetExceeded.
func Detect(v projection.View, p Pattern, budget Budget) ([]Match, error) {
	nodes := v.NodeIDs()
	if err := budget.checkNodes(string(p.Kind), len(nodes)); err != nil {
		return nil, err
	}
	switch p.Kind {
	case PatternClique:
		if p.Tolerance > 0 {
			return detectFuzzy(v, cliqueNeedle(p.K), p.Tolerance, budget)
		}
		return detectCliques(v, p.K)
	case PatternSimpleCycle:
		return detectSimpleCycles(v, p.K, budget)
	case PatternStar:
		return detectStars(v, p.K, p.Tolerance)
	case PatternBipartite:
		return detectBipartite(v, p.Tolerance)
	case PatternHamiltonianPath:
		return detectHamiltonian(v, false, budget)
	case PatternHamiltonianCycle:
		return detectHamiltonian(v, true, budget)
	case PatternSubgraph:
		if p.Needle == nil {
			return nil, fmt.Errorf("%w: subgraph pattern without needle", graph.ErrTypeMismatch)
		}
		return detectFuzzy(v, *p.Needle, p.Tolerance, budget)
	default:
		return nil, fmt.Errorf("%w: pattern kind %q", graph.ErrTypeMismatch, p.Kind)
	}
}

// undirectedAdj builds a symmetric adjacency set over the view.
func undirectedAdj(v projection.View) map[string]mapset.Set[string] {
	adj := make(map[string]mapset.Set[string])
	for _, n := range v.NodeIDs() {
		adj[n] = mapset.NewThreadUnsafeSet[string]()
	}
	for _, n := range v.NodeIDs() {
		for _, e := range v.Out(n) {
			if e.To == n {
				continue
			}
			if _, ok := adj[e.To]; ok {
				adj[n].Add(e.To)
				adj[e.To].Add(n)
			}
		}
	}
	return adj
}

func positionMapping(nodes []string) map[string]string {
	m := make(map[string]string, len(nodes))
	for i, n := range nodes {
		m[fmt.Sprintf("n%d", i)] = n
	}
	return m
}

// detectCliques finds cliques of exactly size k via Bron-Kerbosch with
// pivoting over the undirected adjacency, reporting one match per maximal
// clique of size >= k (its k smallest members).
func detectCliques(v projection.View, k int) ([]Match, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: clique size %d", graph.ErrConstraintViolation, k)
	}
	adj := undirectedAdj(v)
	var matches []Match

	var bronKerbosch func(r, p, x mapset.Set[string])
	bronKerbosch = func(r, p, x mapset.Set[string]) {
		if p.Cardinality() == 0 && x.Cardinality() == 0 {
			if r.Cardinality() >= k {
				members := r.ToSlice()
				sort.Strings(members)
				matches = append(matches, Match{Mapping: positionMapping(members[:k])})
			}
			return
		}
		// Pivot on the vertex with the most candidates excluded.
		var pivot string
		best := -1
		for _, u := range p.Union(x).ToSlice() {
			if d := adj[u].Intersect(p).Cardinality(); d > best {
				best = d
				pivot = u
			}
		}
		for _, n := range p.Difference(adj[pivot]).ToSlice() {
			bronKerbosch(
				r.Union(mapset.NewThreadUnsafeSet(n)),
				p.Intersect(adj[n]),
				x.Intersect(adj[n]),
			)
			p.Remove(n)
			x.Add(n)
		}
	}

	all := mapset.NewThreadUnsafeSet[string]()
	for n := range adj {
		all.Add(n)
	}
	bronKerbosch(mapset.NewThreadUnsafeSet[string](), all, mapset.NewThreadUnsafeSet[string]())
	return matches, nil
}

func cliqueNeedle(k int) Needle {
	n := Needle{}
	for i := 0; i < k; i++ {
		n.Nodes = append(n.Nodes, fmt.Sprintf("n%d", i))
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			n.Edges = append(n.Edges, [2]string{n.Nodes[i], n.Nodes[j]})
		}
	}
	return n
}

func detectSimpleCycles(v projection.View, k int, budget Budget) ([]Match, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: cycle length %d", graph.ErrConstraintViolation, k)
	}
	cycles, err := EnumerateCycles(v, k, budget)
	if err != nil {
		return nil, err
	}
	var matches []Match
	for _, c := range cycles {
		if len(c) == k {
			matches = append(matches, Match{Mapping: positionMapping(c)})
		}
	}
	return matches, nil
}

// detectStars finds nodes with at least k distinct neighbors. A fuzzy match
// accepts k-tolerance neighbors, reporting the shortfall as discrepancies.
func detectStars(v projection.View, k, tolerance int) ([]Match, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: star size %d", graph.ErrConstraintViolation, k)
	}
	var matches []Match
	for _, center := range v.NodeIDs() {
		leaves := Neighbors(v, center, DirectionBoth)
		missing := k - len(leaves)
		if missing < 0 {
			missing = 0
		}
		if len(leaves) >= k-tolerance {
			take := k
			if take > len(leaves) {
				take = len(leaves)
			}
			mapping := map[string]string{"center": center}
			for i, leaf := range leaves[:take] {
				mapping[fmt.Sprintf("leaf%d", i)] = leaf
			}
			matches = append(matches, Match{Mapping: mapping, Discrepancies: missing})
		}
	}
	return matches, nil
}

// detectBipartite two-colors each connected component. Each edge whose
// endpoints share a color is one discrepancy; the view is bipartite within
// tolerance when the total stays at or below it. The single match maps each
// node to its partition label.
func detectBipartite(v projection.View, tolerance int) ([]Match, error) {
	color := make(map[string]string)
	conflicts := 0
	for _, start := range v.NodeIDs() {
		if _, done := color[start]; done {
			continue
		}
		color[start] = "A"
		queue := []string{start}
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			next := "A"
			if color[node] == "A" {
				next = "B"
			}
			for _, nb := range Neighbors(v, node, DirectionBoth) {
				if c, seen := color[nb]; seen {
					if c == color[node] {
						conflicts++
					}
					continue
				}
				color[nb] = next
				queue = append(queue, nb)
			}
		}
	}
	// Undirected conflict edges are seen from both endpoints.
	conflicts /= 2
	if conflicts > tolerance {
		return nil, nil
	}
	return []Match{{Mapping: color, Discrepancies: conflicts}}, nil
}

// detectHamiltonian searches for a path (or cycle) visiting every node
// exactly once, by backtracking. Only small views are accepted.
func detectHamiltonian(v projection.View, closed bool, budget Budget) ([]Match, error) {
	nodes := v.NodeIDs()
	n := len(nodes)
	if n == 0 {
		return nil, nil
	}
	cost := int64(n) * int64(n)
	for i := 0; i < n && cost < 1<<40; i++ {
		cost *= 2
	}
	op := "hamiltonian_path"
	if closed {
		op = "hamiltonian_cycle"
	}
	if err := budget.checkCost(op, cost); err != nil {
		return nil, err
	}

	adjacent := func(a, b string) bool { return HasEdge(v, a, b) }
	used := make(map[string]bool, n)
	var path []string

	var extend func(node string) bool
	extend = func(node string) bool {
		path = append(path, node)
		used[node] = true
		if len(path) == n {
			if !closed || adjacent(node, path[0]) {
				return true
			}
		} else {
			for _, e := range v.Out(node) {
				if !used[e.To] && extend(e.To) {
					return true
				}
			}
			if !v.Directed() {
				for _, e := range v.In(node) {
					if !used[e.From] && extend(e.From) {
						return true
					}
				}
			}
		}
		path = path[:len(path)-1]
		used[node] = false
		return false
	}

	for _, start := range nodes {
		if extend(start) {
			return []Match{{Mapping: positionMapping(path)}}, nil
		}
	}
	return nil, nil
}

// detectFuzzy runs backtracking subgraph matching of a needle against the
// view, allowing up to tolerance missing edges. Matches report the node
// mapping and the count of needle edges absent from the view.
func detectFuzzy(v projection.View, needle Needle, tolerance int, budget Budget) ([]Match, error) {
	hay := v.NodeIDs()
	cost := int64(1)
	for i := 0; i < len(needle.Nodes) && cost < 1<<40; i++ {
		cost *= int64(len(hay) + 1)
	}
	if err := budget.checkCost("subgraph_match", cost); err != nil {
		return nil, err
	}

	adj := undirectedAdj(v)
	connected := func(a, b string) bool { return adj[a] != nil && adj[a].Contains(b) }

	assignment := make(map[string]string, len(needle.Nodes))
	usedNodes := make(map[string]bool, len(hay))
	var matches []Match
	seen := make(map[string]struct{})

	missingEdges := func() int {
		missing := 0
		for _, e := range needle.Edges {
			a, aOK := assignment[e[0]]
			b, bOK := assignment[e[1]]
			if aOK && bOK && !connected(a, b) {
				missing++
			}
		}
		return missing
	}

	var assign func(i int)
	assign = func(i int) {
		if len(matches) >= 64 {
			return
		}
		if i == len(needle.Nodes) {
			miss := missingEdges()
			if miss <= tolerance {
				// Canonicalize on the mapped node set to avoid reporting
				// the same occurrence once per automorphism.
				targets := make([]string, 0, len(assignment))
				for _, t := range assignment {
					targets = append(targets, t)
				}
				sort.Strings(targets)
				key := fmt.Sprint(targets)
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					mapping := make(map[string]string, len(assignment))
					for k, val := range assignment {
						mapping[k] = val
					}
					matches = append(matches, Match{Mapping: mapping, Discrepancies: miss})
				}
			}
			return
		}
		pn := needle.Nodes[i]
		for _, candidate := range hay {
			if usedNodes[candidate] {
				continue
			}
			assignment[pn] = candidate
			usedNodes[candidate] = true
			if missingEdges() <= tolerance {
				assign(i + 1)
			}
			delete(assignment, pn)
			usedNodes[candidate] = false
		}
	}
	assign(0)
	return matches, nil
}

// MotifCensus counts connected induced subgraphs of size k (3 or 4) by
// isomorphism class. Classes are keyed by the minimal adjacency bitmask
// over all vertex orderings.
func MotifCensus(v projection.View, k int, budget Budget) (map[string]int, error) {
	if k != 3 && k != 4 {
		return nil, fmt.Errorf("%w: motif size %d", graph.ErrConstraintViolation, k)
	}
	nodes := v.NodeIDs()
	n := len(nodes)
	if err := budget.checkNodes("motif_census", n); err != nil {
		return nil, err
	}
	cost := int64(1)
	for i := 0; i < k; i++ {
		cost *= int64(n)
	}
	if err := budget.checkCost("motif_census", cost); err != nil {
		return nil, err
	}

	census := make(map[string]int)
	subset := make([]string, 0, k)

	var choose func(start int)
	choose = func(start int) {
		if len(subset) == k {
			if sig, connected := motifSignature(v, subset, k); connected {
				census[sig]++
			}
			return
		}
		for i := start; i < n; i++ {
			subset = append(subset, nodes[i])
			choose(i + 1)
			subset = subset[:len(subset)-1]
		}
	}
	choose(0)
	return census, nil
}

// motifSignature canonicalizes the induced directed adjacency over every
// permutation of the subset and reports weak connectivity.
func motifSignature(v projection.View, subset []string, k int) (string, bool) {
	adjacency := func(order []string) uint64 {
		var mask uint64
		for i, a := range order {
			for j, b := range order {
				if i != j && HasEdge(v, a, b) {
					mask |= 1 << uint(i*k+j)
				}
			}
		}
		return mask
	}

	// Weak connectivity over the induced undirected structure.
	reach := map[string]bool{subset[0]: true}
	frontier := []string{subset[0]}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, other := range subset {
			if !reach[other] && (HasEdge(v, cur, other) || HasEdge(v, other, cur)) {
				reach[other] = true
				frontier = append(frontier, other)
			}
		}
	}
	if len(reach) != len(subset) {
		return "", false
	}

	perm := append([]string(nil), subset...)
	best := adjacency(perm)
	var permute func(i int)
	permute = func(i int) {
		if i == len(perm) {
			if m := adjacency(perm); m < best {
				best = m
			}
			return
		}
		for j := i; j < len(perm); j++ {
			perm[i], perm[j] = perm[j], perm[i]
			permute(i + 1)
			perm[i], perm[j] = perm[j], perm[i]
		}
	}
	permute(0)
	return fmt.Sprintf("k%d-%x", k, best), true
}
