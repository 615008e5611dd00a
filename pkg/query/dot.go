package query

import (
	"github.com/emicklei/dot"
	"github.com/plaenen/graphstore/pkg/projection"
)

// DOT renders a view in Graphviz DOT form for debugging and documentation.
func DOT(v projection.View, name string) string {
	var g *dot.Graph
	if v.Directed() {
		g = dot.NewGraph(dot.Directed)
	} else {
		g = dot.NewGraph(dot.Undirected)
	}
	g.ID(name)

	nodes := make(map[string]dot.Node)
	for _, id := range v.NodeIDs() {
		nodes[id] = g.Node(id)
	}
	seen := make(map[[2]string]bool)
	for _, id := range v.NodeIDs() {
		for _, e := range v.Out(id) {
			to, ok := nodes[e.To]
			if !ok {
				continue
			}
			if !v.Directed() {
				key := [2]string{e.From, e.To}
				if e.To < e.From {
					key = [2]string{e.To, e.From}
				}
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			edge := g.Edge(nodes[id], to)
			if e.Label != "" {
				edge.Label(e.Label)
			}
		}
	}
	return g.String()
}
