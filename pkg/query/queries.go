package query

import (
	"sort"

	"github.com/plaenen/graphstore/pkg/projection"
)

// Direction selects which incident edges a neighbor query considers.
type Direction int

const (
	DirectionOut Direction = iota
	DirectionIn
	DirectionBoth
)

// HasNode reports node existence.
func HasNode(v projection.View, id string) bool {
	return v.HasNode(id)
}

// HasEdge reports whether an edge from one node to another exists. For
// undirected views either orientation matches.
func HasEdge(v projection.View, from, to string) bool {
	for _, e := range v.Out(from) {
		if e.To == to {
			return true
		}
	}
	return false
}

// Degree returns the number of distinct neighbors in the given direction; a
// neighbor joined by several edges counts once.
func Degree(v projection.View, id string, dir Direction) int {
	return len(Neighbors(v, id, dir))
}

// Neighbors returns the adjacent node identifiers in the given direction,
// deduplicated, in deterministic order.
func Neighbors(v projection.View, id string, dir Direction) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(n string) {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	if dir == DirectionOut || dir == DirectionBoth {
		for _, e := range v.Out(id) {
			add(e.To)
		}
	}
	if dir == DirectionIn || dir == DirectionBoth {
		for _, e := range v.In(id) {
			add(e.From)
		}
	}
	return out
}

// Subgraph is an extracted induced subgraph: the requested nodes and every
// edge of the parent view with both endpoints among them.
type Subgraph struct {
	nodes    map[string]struct{}
	out      map[string][]projection.Edge
	directed bool
}

// Induced extracts the induced subgraph on the given node set.
func Induced(v projection.View, nodes []string) *Subgraph {
	s := &Subgraph{
		nodes: make(map[string]struct{}, len(nodes)),
		out:   make(map[string][]projection.Edge),
	}
	for _, n := range nodes {
		if v.HasNode(n) {
			s.nodes[n] = struct{}{}
		}
	}
	for n := range s.nodes {
		for _, e := range v.Out(n) {
			if _, ok := s.nodes[e.To]; ok {
				s.out[n] = append(s.out[n], e)
			}
		}
	}
	s.directed = v.Directed()
	return s
}

// NodeIDs implements projection.View.
func (s *Subgraph) NodeIDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for n := range s.nodes {
		ids = append(ids, n)
	}
	sort.Strings(ids)
	return ids
}

// HasNode implements projection.View.
func (s *Subgraph) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Out implements projection.View.
func (s *Subgraph) Out(id string) []projection.Edge { return s.out[id] }

// In implements projection.View.
func (s *Subgraph) In(id string) []projection.Edge {
	var in []projection.Edge
	for _, edges := range s.out {
		for _, e := range edges {
			if e.To == id {
				in = append(in, e)
			}
		}
	}
	return in
}

// Directed implements projection.View.
func (s *Subgraph) Directed() bool { return s.directed }
