package query

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/graphstore/pkg/graph"
)

// cliqueInSparse embeds a 5-clique in a larger sparse graph.
func cliqueInSparse() (*testView, []string) {
	v := newTestView(false)
	clique := []string{"k0", "k1", "k2", "k3", "k4"}
	v.node(clique...)
	for i := 0; i < len(clique); i++ {
		for j := i + 1; j < len(clique); j++ {
			v.edge(clique[i], clique[j], 1)
		}
	}
	// Sparse periphery.
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("p%d", i)
		v.node(id)
		v.edge(id, clique[i%2], 1)
	}
	return v, clique
}

func TestDetect_Clique(t *testing.T) {
	v, clique := cliqueInSparse()

	matches, err := Detect(v, Pattern{Kind: PatternClique, K: 5}, DefaultBudget())
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	found := false
	for _, m := range matches {
		if m.Discrepancies != 0 || len(m.Mapping) != 5 {
			continue
		}
		selected := map[string]bool{}
		for _, node := range m.Mapping {
			selected[node] = true
		}
		all := true
		for _, k := range clique {
			if !selected[k] {
				all = false
			}
		}
		if all {
			found = true
		}
	}
	assert.True(t, found, "a zero-discrepancy match must select exactly the embedded clique")
}

func TestDetect_Star(t *testing.T) {
	v := newTestView(true).node("hub", "s1", "s2", "s3")
	v.edge("hub", "s1", 1).edge("hub", "s2", 1).edge("hub", "s3", 1)

	matches, err := Detect(v, Pattern{Kind: PatternStar, K: 3}, DefaultBudget())
	require.NoError(t, err)

	var hub *Match
	for i := range matches {
		if matches[i].Mapping["center"] == "hub" {
			hub = &matches[i]
		}
	}
	require.NotNil(t, hub)
	assert.Equal(t, 0, hub.Discrepancies)

	// Fuzzy: k=4 with tolerance 1 still matches the 3-leaf hub.
	matches, err = Detect(v, Pattern{Kind: PatternStar, K: 4, Tolerance: 1}, DefaultBudget())
	require.NoError(t, err)
	found := false
	for _, m := range matches {
		if m.Mapping["center"] == "hub" {
			found = true
			assert.Equal(t, 1, m.Discrepancies)
		}
	}
	assert.True(t, found)
}

func TestDetect_SimpleCycle(t *testing.T) {
	v := newTestView(true).node("a", "b", "c").
		edge("a", "b", 1).edge("b", "c", 1).edge("c", "a", 1)

	matches, err := Detect(v, Pattern{Kind: PatternSimpleCycle, K: 3}, DefaultBudget())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Len(t, matches[0].Mapping, 3)
}

func TestDetect_Bipartite(t *testing.T) {
	bip := newTestView(false).node("l1", "l2", "r1", "r2").
		edge("l1", "r1", 1).edge("l1", "r2", 1).edge("l2", "r1", 1)

	matches, err := Detect(bip, Pattern{Kind: PatternBipartite}, DefaultBudget())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, 0, m.Discrepancies)
	assert.NotEqual(t, m.Mapping["l1"], m.Mapping["r1"])
	assert.Equal(t, m.Mapping["l1"], m.Mapping["l2"])

	triangle := newTestView(false).node("a", "b", "c").
		edge("a", "b", 1).edge("b", "c", 1).edge("c", "a", 1)
	matches, err = Detect(triangle, Pattern{Kind: PatternBipartite}, DefaultBudget())
	require.NoError(t, err)
	assert.Empty(t, matches, "an odd cycle is not bipartite at tolerance 0")

	matches, err = Detect(triangle, Pattern{Kind: PatternBipartite, Tolerance: 1}, DefaultBudget())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Discrepancies)
}

func TestDetect_HamiltonianPathAndCycle(t *testing.T) {
	path := newTestView(true).node("a", "b", "c", "d").
		edge("a", "b", 1).edge("b", "c", 1).edge("c", "d", 1)

	matches, err := Detect(path, Pattern{Kind: PatternHamiltonianPath}, DefaultBudget())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Len(t, matches[0].Mapping, 4)

	matches, err = Detect(path, Pattern{Kind: PatternHamiltonianCycle}, DefaultBudget())
	require.NoError(t, err)
	assert.Empty(t, matches)

	ring := newTestView(true).node("a", "b", "c").
		edge("a", "b", 1).edge("b", "c", 1).edge("c", "a", 1)
	matches, err = Detect(ring, Pattern{Kind: PatternHamiltonianCycle}, DefaultBudget())
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestDetect_SubgraphIsomorphism(t *testing.T) {
	v := newTestView(false).node("a", "b", "c", "d").
		edge("a", "b", 1).edge("b", "c", 1).edge("a", "c", 1).edge("c", "d", 1)

	needle := &Needle{
		Nodes: []string{"x", "y", "z"},
		Edges: [][2]string{{"x", "y"}, {"y", "z"}, {"x", "z"}},
	}
	matches, err := Detect(v, Pattern{Kind: PatternSubgraph, Needle: needle}, DefaultBudget())
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, 0, matches[0].Discrepancies)

	// Fuzzy matching reports the missing-edge count.
	square := &Needle{
		Nodes: []string{"w", "x", "y", "z"},
		Edges: [][2]string{{"w", "x"}, {"x", "y"}, {"y", "z"}, {"z", "w"}},
	}
	matches, err = Detect(v, Pattern{Kind: PatternSubgraph, Needle: square, Tolerance: 1}, DefaultBudget())
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.LessOrEqual(t, m.Discrepancies, 1)
		assert.Len(t, m.Mapping, 4)
	}
}

func TestDetect_BudgetGuard(t *testing.T) {
	v, _ := cliqueInSparse()
	_, err := Detect(v, Pattern{Kind: PatternHamiltonianCycle}, Budget{MaxCost: 10})
	assert.ErrorIs(t, err, graph.ErrComplexityBudgetExceeded)
}

func TestMotifCensus(t *testing.T) {
	triangle := newTestView(false).node("a", "b", "c").
		edge("a", "b", 1).edge("b", "c", 1).edge("c", "a", 1)

	census, err := MotifCensus(triangle, 3, DefaultBudget())
	require.NoError(t, err)
	require.Len(t, census, 1)
	for _, count := range census {
		assert.Equal(t, 1, count)
	}

	_, err = MotifCensus(triangle, 5, DefaultBudget())
	assert.ErrorIs(t, err, graph.ErrConstraintViolation)
}

func TestBuildPlan(t *testing.T) {
	plan, err := BuildPlan(Pattern{Kind: PatternClique, K: 3}, "")
	require.NoError(t, err)
	assert.Len(t, plan.Nodes, 3)
	assert.Len(t, plan.Edges, 3)

	// Anchoring reuses the existing node as position 0.
	plan, err = BuildPlan(Pattern{Kind: PatternStar, K: 2}, "hub")
	require.NoError(t, err)
	assert.Len(t, plan.Nodes, 2)
	for _, e := range plan.Edges {
		assert.Equal(t, "hub", e.From)
	}

	_, err = BuildPlan(Pattern{Kind: PatternBipartite}, "")
	assert.ErrorIs(t, err, graph.ErrTypeMismatch)
}

func TestDOT(t *testing.T) {
	v := diamond()
	out := DOT(v, "diamond")
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, `"a"`)
}

func TestAnalyzers(t *testing.T) {
	v, _ := cliqueInSparse()
	result, err := CheckPlanarity(v, DefaultBudget())
	require.NoError(t, err)
	assert.False(t, result.Planar, "K5 is not planar")

	path := newTestView(false).node("a", "b").edge("a", "b", 1)
	result, err = CheckPlanarity(path, DefaultBudget())
	require.NoError(t, err)
	assert.True(t, result.Planar)

	assert.LessOrEqual(t, ChromaticUpperBound(path), 2)
	assert.GreaterOrEqual(t, ChromaticUpperBound(v), 5)
}
