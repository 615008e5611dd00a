package query

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

// testView is a fixture graph for query tests.
type testView struct {
	directed bool
	nodes    []string
	out      map[string][]projection.Edge
}

func newTestView(directed bool) *testView {
	return &testView{directed: directed, out: make(map[string][]projection.Edge)}
}

func (v *testView) node(ids ...string) *testView {
	v.nodes = append(v.nodes, ids...)
	return v
}

func (v *testView) edge(from, to string, weight float64) *testView {
	v.out[from] = append(v.out[from], projection.Edge{From: from, To: to, Weight: weight})
	if !v.directed {
		v.out[to] = append(v.out[to], projection.Edge{From: to, To: from, Weight: weight})
	}
	return v
}

func (v *testView) NodeIDs() []string {
	ids := append([]string(nil), v.nodes...)
	sort.Strings(ids)
	return ids
}

func (v *testView) HasNode(id string) bool {
	for _, n := range v.nodes {
		if n == id {
			return true
		}
	}
	return false
}

func (v *testView) Out(id string) []projection.Edge { return v.out[id] }

func (v *testView) In(id string) []projection.Edge {
	var in []projection.Edge
	for _, edges := range v.out {
		for _, e := range edges {
			if e.To == id {
				in = append(in, e)
			}
		}
	}
	return in
}

func (v *testView) Directed() bool { return v.directed }

func diamond() *testView {
	// a -> b -> d, a -> c -> d, with weights making a-c-d the short path.
	return newTestView(true).
		node("a", "b", "c", "d").
		edge("a", "b", 1).
		edge("b", "d", 10).
		edge("a", "c", 2).
		edge("c", "d", 2)
}

func TestTraversal(t *testing.T) {
	v := diamond()

	bfs := BFS(v, "a", nil)
	assert.Equal(t, "a", bfs[0])
	assert.Len(t, bfs, 4)

	dfs := DFS(v, "a", nil)
	assert.Equal(t, "a", dfs[0])
	assert.Len(t, dfs, 4)

	// Early termination stops the walk.
	short := BFS(v, "a", func(id string) bool { return id != "b" })
	assert.Less(t, len(short), 4)

	assert.True(t, Reachable(v, "a", "d"))
	assert.False(t, Reachable(v, "d", "a"))
}

func TestNeighborsAndDegree(t *testing.T) {
	v := diamond()
	assert.ElementsMatch(t, []string{"b", "c"}, Neighbors(v, "a", DirectionOut))
	assert.ElementsMatch(t, []string{"b", "c"}, Neighbors(v, "d", DirectionIn))
	assert.ElementsMatch(t, []string{"a", "d"}, Neighbors(v, "b", DirectionBoth))
	assert.Equal(t, 2, Degree(v, "a", DirectionOut))
	assert.Equal(t, 0, Degree(v, "a", DirectionIn))
	assert.True(t, HasEdge(v, "a", "b"))
	assert.False(t, HasEdge(v, "b", "a"))
}

func TestInducedSubgraph(t *testing.T) {
	v := diamond()
	sub := Induced(v, []string{"a", "b", "d"})
	assert.ElementsMatch(t, []string{"a", "b", "d"}, sub.NodeIDs())
	assert.True(t, HasEdge(sub, "a", "b"))
	assert.True(t, HasEdge(sub, "b", "d"))
	assert.False(t, HasEdge(sub, "a", "c"))
}

func TestShortestPath(t *testing.T) {
	v := diamond()
	path, err := ShortestPath(v, "a", "d", DefaultBudget())
	require.NoError(t, err)
	assert.Equal(t, 4.0, path.Distance)
	assert.Equal(t, []string{"a", "c", "d"}, path.Nodes)

	_, err = ShortestPath(v, "d", "a", DefaultBudget())
	assert.ErrorIs(t, err, graph.ErrPathUnresolved)

	_, err = ShortestPath(v, "a", "ghost", DefaultBudget())
	assert.ErrorIs(t, err, graph.ErrUnknownEntity)
}

func TestShortestPath_NegativeWeightRejected(t *testing.T) {
	v := newTestView(true).node("a", "b").edge("a", "b", -3)
	_, err := ShortestPath(v, "a", "b", DefaultBudget())
	assert.ErrorIs(t, err, graph.ErrConstraintViolation)
}

func TestCycles(t *testing.T) {
	acyclic := diamond()
	assert.False(t, HasCycle(acyclic))
	assert.Nil(t, FindCycle(acyclic))
	assert.True(t, WouldCycle(acyclic, "d", "a"))
	assert.False(t, WouldCycle(acyclic, "b", "c"))

	cyclic := newTestView(true).
		node("a", "b", "c").
		edge("a", "b", 1).
		edge("b", "c", 1).
		edge("c", "a", 1)
	assert.True(t, HasCycle(cyclic))
	cycle := FindCycle(cyclic)
	require.NotEmpty(t, cycle)
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])

	cycles, err := EnumerateCycles(cyclic, 3, DefaultBudget())
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Len(t, cycles[0], 3)
}

func TestStronglyConnectedComponents(t *testing.T) {
	v := newTestView(true).
		node("a", "b", "c", "d").
		edge("a", "b", 1).
		edge("b", "a", 1).
		edge("b", "c", 1).
		edge("c", "d", 1).
		edge("d", "c", 1)
	sccs := StronglyConnectedComponents(v)
	require.Len(t, sccs, 2)
	assert.Equal(t, []string{"a", "b"}, sccs[0])
	assert.Equal(t, []string{"c", "d"}, sccs[1])
}

func TestBudget_Exceeded(t *testing.T) {
	v := diamond()
	_, err := ShortestPath(v, "a", "d", Budget{MaxNodes: 2})
	assert.ErrorIs(t, err, graph.ErrComplexityBudgetExceeded)

	var budgetErr *graph.BudgetError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "shortest_path", budgetErr.Operation)
}
