package query

import (
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
)

// Plan is the structural blueprint a pattern invocation produces: the nodes
// and edges to add. The pattern layer never emits events directly; the
// engine turns a plan into commands and routes them through the state
// machine.
type Plan struct {
	Nodes []string
	Edges []PlanEdge
}

// PlanEdge is one edge of a plan.
type PlanEdge struct {
	From  string
	To    string
	Label string
}

// BuildPlan materializes a pattern into a plan. When anchor is non-empty it
// is used as the first node (assumed to exist already) and is not included
// in Plan.Nodes.
func BuildPlan(p Pattern, anchor string) (*Plan, error) {
	name := func(i int) string {
		return fmt.Sprintf("%s-%d", p.Kind, i)
	}
	plan := &Plan{}
	node := func(i int) string {
		if i == 0 && anchor != "" {
			return anchor
		}
		return name(i)
	}
	addNode := func(i int) {
		if i == 0 && anchor != "" {
			return
		}
		plan.Nodes = append(plan.Nodes, name(i))
	}

	switch p.Kind {
	case PatternClique:
		if p.K < 2 {
			return nil, fmt.Errorf("%w: clique size %d", graph.ErrConstraintViolation, p.K)
		}
		for i := 0; i < p.K; i++ {
			addNode(i)
		}
		for i := 0; i < p.K; i++ {
			for j := i + 1; j < p.K; j++ {
				plan.Edges = append(plan.Edges, PlanEdge{From: node(i), To: node(j)})
			}
		}
	case PatternSimpleCycle:
		if p.K < 2 {
			return nil, fmt.Errorf("%w: cycle length %d", graph.ErrConstraintViolation, p.K)
		}
		for i := 0; i < p.K; i++ {
			addNode(i)
		}
		for i := 0; i < p.K; i++ {
			plan.Edges = append(plan.Edges, PlanEdge{From: node(i), To: node((i + 1) % p.K)})
		}
	case PatternStar:
		if p.K < 1 {
			return nil, fmt.Errorf("%w: star size %d", graph.ErrConstraintViolation, p.K)
		}
		for i := 0; i <= p.K; i++ {
			addNode(i)
		}
		for i := 1; i <= p.K; i++ {
			plan.Edges = append(plan.Edges, PlanEdge{From: node(0), To: node(i)})
		}
	case PatternSubgraph:
		if p.Needle == nil {
			return nil, fmt.Errorf("%w: subgraph pattern without needle", graph.ErrTypeMismatch)
		}
		plan.Nodes = append(plan.Nodes, p.Needle.Nodes...)
		for _, e := range p.Needle.Edges {
			plan.Edges = append(plan.Edges, PlanEdge{From: e[0], To: e[1]})
		}
	default:
		return nil, fmt.Errorf("%w: pattern %q cannot be invoked", graph.ErrTypeMismatch, p.Kind)
	}
	return plan, nil
}
