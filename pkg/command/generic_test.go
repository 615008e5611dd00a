package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

func TestGeneric_SimpleGraphClassification(t *testing.T) {
	m := NewMachine()
	p := initialized(t, m, "g-1", graph.VariantGeneric)
	p = run(t, m, p, AddNode{Aggregate: "g-1", ID: "a"})
	p = run(t, m, p, AddNode{Aggregate: "g-1", ID: "b"})
	p = run(t, m, p, AddNode{Aggregate: "g-1", ID: "c"})
	p = run(t, m, p, AddEdge{Aggregate: "g-1", From: "a", To: "b"})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: AddEdge{Aggregate: "g-1", From: "a", To: "a"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrSelfLoopInSimpleGraph)

	_, err = m.Handle(context.Background(), &Envelope{
		Command: AddEdge{Aggregate: "g-1", From: "a", To: "b"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrMultiEdgeInSimpleGraph)

	_, err = m.Handle(context.Background(), &Envelope{
		Command: AddEdge{Aggregate: "g-1", From: "a", To: "c", Weight: -1},
	}, p)
	assert.ErrorIs(t, err, graph.ErrConstraintViolation)
}

func TestGeneric_AcyclicConstraint(t *testing.T) {
	m := NewMachine()
	p := projection.Empty("dag-1", graph.VariantGeneric)
	p = run(t, m, p, InitializeGraph{
		Aggregate:   "dag-1",
		Variant:     graph.VariantGeneric,
		Constraints: graph.Constraints{Acyclic: true},
	})
	p = run(t, m, p, AddNode{Aggregate: "dag-1", ID: "a"})
	p = run(t, m, p, AddNode{Aggregate: "dag-1", ID: "b"})
	p = run(t, m, p, AddEdge{Aggregate: "dag-1", From: "a", To: "b"})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: AddEdge{Aggregate: "dag-1", From: "b", To: "a"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrCycleInDAG)
}

func TestGeneric_DegreeBound(t *testing.T) {
	m := NewMachine()
	p := projection.Empty("deg-1", graph.VariantGeneric)
	p = run(t, m, p, InitializeGraph{
		Aggregate:   "deg-1",
		Variant:     graph.VariantGeneric,
		Constraints: graph.Constraints{MaxDegree: 1},
	})
	p = run(t, m, p, AddNode{Aggregate: "deg-1", ID: "a"})
	p = run(t, m, p, AddNode{Aggregate: "deg-1", ID: "b"})
	p = run(t, m, p, AddNode{Aggregate: "deg-1", ID: "c"})
	p = run(t, m, p, AddEdge{Aggregate: "deg-1", From: "a", To: "b"})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: AddEdge{Aggregate: "deg-1", From: "a", To: "c"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrConstraintViolation)
}

func TestGeneric_PlanarConstraint(t *testing.T) {
	m := NewMachine()
	p := projection.Empty("pl-1", graph.VariantGeneric)
	p = run(t, m, p, InitializeGraph{
		Aggregate:   "pl-1",
		Variant:     graph.VariantGeneric,
		Constraints: graph.Constraints{Planar: true},
	})
	// Build K5 progressively; the last edge must be rejected.
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		p = run(t, m, p, AddNode{Aggregate: "pl-1", ID: id})
	}
	var rejected bool
	for i := 0; i < len(ids) && !rejected; i++ {
		for j := i + 1; j < len(ids) && !rejected; j++ {
			events, err := m.Handle(context.Background(), &Envelope{
				Command: AddEdge{Aggregate: "pl-1", From: ids[i], To: ids[j]},
			}, p)
			if err != nil {
				assert.ErrorIs(t, err, graph.ErrPlanarityViolation)
				rejected = true
				break
			}
			p = apply(t, p, events)
		}
	}
	assert.True(t, rejected, "completing K5 must violate planarity")
}

func TestGeneric_RemoveEdgeAndNode(t *testing.T) {
	m := NewMachine()
	p := initialized(t, m, "g-2", graph.VariantGeneric)
	p = run(t, m, p, AddNode{Aggregate: "g-2", ID: "a"})
	p = run(t, m, p, AddNode{Aggregate: "g-2", ID: "b"})
	p = run(t, m, p, AddEdge{Aggregate: "g-2", From: "a", To: "b"})
	p = run(t, m, p, RemoveEdge{Aggregate: "g-2", From: "a", To: "b"})
	assert.False(t, p.Generic().HasEdge("a", "b"))

	_, err := m.Handle(context.Background(), &Envelope{
		Command: RemoveEdge{Aggregate: "g-2", From: "a", To: "b"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrUnknownEntity)

	p = run(t, m, p, RemoveNode{Aggregate: "g-2", ID: "b"})
	assert.False(t, p.Generic().HasNode("b"))
}
