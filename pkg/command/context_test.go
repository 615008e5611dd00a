package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

func salesContext(t *testing.T, m *Machine) *projection.Projection {
	t.Helper()
	p := initialized(t, m, "ctx-1", graph.VariantContext)
	p = run(t, m, p, DefineContext{Aggregate: "ctx-1", Name: "sales"})
	p = run(t, m, p, AddAggregate{Aggregate: "ctx-1", Context: "sales", ID: "order-1"})
	p = run(t, m, p, AddEntity{Aggregate: "ctx-1", ID: "line-1", Owner: "order-1"})
	p = run(t, m, p, AddEntity{Aggregate: "ctx-1", ID: "line-2", Owner: "order-1"})
	return p
}

func TestContext_BuildAndRootLookup(t *testing.T) {
	m := NewMachine()
	p := salesContext(t, m)
	p = run(t, m, p, AddRelationship{
		Aggregate: "ctx-1", From: "order-1", To: "line-1",
		Kind: graph.RelationComposition, Cardinality: graph.CardinalityOneToMany,
	})

	root, err := p.Context().RootOf("line-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", root)
}

func TestContext_UnknownReferencesRejected(t *testing.T) {
	m := NewMachine()
	p := salesContext(t, m)

	tests := []struct {
		name string
		cmd  Command
	}{
		{"unknown context", AddAggregate{Aggregate: "ctx-1", Context: "billing", ID: "x"}},
		{"unknown owner", AddEntity{Aggregate: "ctx-1", ID: "x", Owner: "ghost"}},
		{"unknown entity", AttachValueObject{Aggregate: "ctx-1", Entity: "ghost", Name: "n", Value: "v"}},
		{"unknown endpoint", AddRelationship{Aggregate: "ctx-1", From: "ghost", To: "line-1", Kind: graph.RelationReference, Cardinality: graph.CardinalityManyToMany}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Handle(context.Background(), &Envelope{Command: tt.cmd}, p)
			assert.ErrorIs(t, err, graph.ErrUnknownEntity)
		})
	}
}

func TestContext_DuplicateIdentifiers(t *testing.T) {
	m := NewMachine()
	p := salesContext(t, m)

	_, err := m.Handle(context.Background(), &Envelope{
		Command: AddAggregate{Aggregate: "ctx-1", Context: "sales", ID: "order-1"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrDuplicateIdentifier)

	_, err = m.Handle(context.Background(), &Envelope{
		Command: AddEntity{Aggregate: "ctx-1", ID: "line-1", Owner: "order-1"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrDuplicateIdentifier)
}

func TestContext_CardinalityEnforcedOnCreation(t *testing.T) {
	m := NewMachine()
	p := salesContext(t, m)
	p = run(t, m, p, AddRelationship{
		Aggregate: "ctx-1", From: "order-1", To: "line-1",
		Kind: graph.RelationComposition, Cardinality: graph.CardinalityOneToMany,
	})

	// 1:n allows more children under the same parent...
	p = run(t, m, p, AddRelationship{
		Aggregate: "ctx-1", From: "order-1", To: "line-2",
		Kind: graph.RelationComposition, Cardinality: graph.CardinalityOneToMany,
	})

	// ...but a child cannot gain a second composition parent.
	p2 := run(t, m, p, AddAggregate{Aggregate: "ctx-1", Context: "sales", ID: "order-2"})
	_, err := m.Handle(context.Background(), &Envelope{
		Command: AddRelationship{
			Aggregate: "ctx-1", From: "order-2", To: "line-1",
			Kind: graph.RelationComposition, Cardinality: graph.CardinalityOneToMany,
		},
	}, p2)
	assert.ErrorIs(t, err, graph.ErrConstraintViolation)
}

func TestContext_CompositionCycleRejected(t *testing.T) {
	m := NewMachine()
	p := salesContext(t, m)
	p = run(t, m, p, AddRelationship{
		Aggregate: "ctx-1", From: "line-1", To: "line-2",
		Kind: graph.RelationComposition, Cardinality: graph.CardinalityOneToMany,
	})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: AddRelationship{
			Aggregate: "ctx-1", From: "line-2", To: "line-1",
			Kind: graph.RelationComposition, Cardinality: graph.CardinalityOneToMany,
		},
	}, p)
	assert.ErrorIs(t, err, graph.ErrInvariantViolation)
}

func TestContext_AttachValueObjectSupersedes(t *testing.T) {
	m := NewMachine()
	p := salesContext(t, m)
	p = run(t, m, p, AttachValueObject{Aggregate: "ctx-1", Entity: "line-1", Name: "qty", Value: "1"})

	events, err := m.Handle(context.Background(), &Envelope{
		Command: AttachValueObject{Aggregate: "ctx-1", Entity: "line-1", Name: "qty", Value: "2"},
	}, p)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.IsType(t, &graph.ValueObjectRemoved{}, events[0].Payload)
	assert.IsType(t, &graph.ValueObjectAttached{}, events[1].Payload)
}
