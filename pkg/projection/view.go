package projection

import "sort"

// Edge is one directed, optionally labeled and weighted edge of a view.
// Unweighted edges report weight 1.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Label  string  `json:"label,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// View is the structural read surface the query layer operates on. All
// implementations return deterministic, sorted node orderings so replays
// produce structurally equal results.
type View interface {
	// NodeIDs returns every node identifier in sorted order.
	NodeIDs() []string

	// HasNode reports node existence.
	HasNode(id string) bool

	// Out returns the outgoing edges of a node.
	Out(id string) []Edge

	// In returns the incoming edges of a node.
	In(id string) []Edge

	// Directed reports whether edge direction is meaningful for this view.
	Directed() bool
}

// inFromOut derives incoming edges by scanning all out-adjacencies. States
// that keep only out-adjacency use this.
func inFromOut(v View, id string) []Edge {
	var in []Edge
	for _, n := range v.NodeIDs() {
		for _, e := range v.Out(n) {
			if e.To == id {
				in = append(in, e)
			}
		}
	}
	return in
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortEdges(edges []Edge) []Edge {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Label < edges[j].Label
	})
	return edges
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
