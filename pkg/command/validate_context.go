package command

import (
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

func decideContext(cmd Command, p *projection.Projection) ([]graph.Payload, error) {
	state := p.Context()
	switch c := cmd.(type) {
	case DefineContext:
		if state.HasContext(c.Name) {
			return nil, fmt.Errorf("%w: context %s", graph.ErrDuplicateIdentifier, c.Name)
		}
		return []graph.Payload{&graph.ContextDefined{Name: c.Name}}, nil

	case AddAggregate:
		if !state.HasContext(c.Context) {
			return nil, fmt.Errorf("%w: context %s", graph.ErrUnknownEntity, c.Context)
		}
		if state.HasMember(c.ID) {
			return nil, fmt.Errorf("%w: %s", graph.ErrDuplicateIdentifier, c.ID)
		}
		return []graph.Payload{&graph.AggregateAdded{Context: c.Context, ID: c.ID, Name: c.Name}}, nil

	case AddEntity:
		if _, ok := state.Aggregate(c.Owner); !ok {
			return nil, fmt.Errorf("%w: aggregate %s", graph.ErrUnknownEntity, c.Owner)
		}
		if state.HasMember(c.ID) {
			return nil, fmt.Errorf("%w: %s", graph.ErrDuplicateIdentifier, c.ID)
		}
		return []graph.Payload{&graph.EntityAdded{ID: c.ID, Aggregate: c.Owner}}, nil

	case AttachValueObject:
		if _, ok := state.Entity(c.Entity); !ok {
			return nil, fmt.Errorf("%w: entity %s", graph.ErrUnknownEntity, c.Entity)
		}
		// An existing value is superseded by a correlated
		// removal-then-addition pair, never updated in place.
		if _, exists := state.ValueObject(c.Entity, c.Name); exists {
			return []graph.Payload{
				&graph.ValueObjectRemoved{Entity: c.Entity, Name: c.Name},
				&graph.ValueObjectAttached{Entity: c.Entity, Name: c.Name, Value: c.Value},
			}, nil
		}
		return []graph.Payload{
			&graph.ValueObjectAttached{Entity: c.Entity, Name: c.Name, Value: c.Value},
		}, nil

	case AddRelationship:
		if !state.HasMember(c.From) {
			return nil, fmt.Errorf("%w: %s", graph.ErrUnknownEntity, c.From)
		}
		if !state.HasMember(c.To) {
			return nil, fmt.Errorf("%w: %s", graph.ErrUnknownEntity, c.To)
		}
		if err := checkCardinality(state, c); err != nil {
			return nil, err
		}
		if c.Kind == graph.RelationComposition {
			if err := checkComposition(state, c.From, c.To); err != nil {
				return nil, err
			}
		}
		return []graph.Payload{&graph.RelationshipAdded{
			From:        c.From,
			To:          c.To,
			Kind:        c.Kind,
			Cardinality: c.Cardinality,
		}}, nil

	default:
		return nil, fmt.Errorf("%w: %s on context aggregate", graph.ErrTypeMismatch, cmd.CommandType())
	}
}

// checkCardinality enforces the declared bound at creation time.
func checkCardinality(state *projection.ContextState, c AddRelationship) error {
	switch c.Cardinality {
	case graph.CardinalityOneToOne:
		for _, r := range state.Relationships() {
			if r.Kind == c.Kind && (r.From == c.From || r.To == c.To) {
				return fmt.Errorf("%w: 1:1 %s relationship already present on %s or %s",
					graph.ErrConstraintViolation, c.Kind, c.From, c.To)
			}
		}
	case graph.CardinalityOneToMany:
		for _, r := range state.Relationships() {
			if r.Kind == c.Kind && r.To == c.To {
				return fmt.Errorf("%w: %s already has a %s parent",
					graph.ErrConstraintViolation, c.To, c.Kind)
			}
		}
	case graph.CardinalityManyToMany:
		// Unbounded.
	default:
		return fmt.Errorf("%w: cardinality %q", graph.ErrTypeMismatch, c.Cardinality)
	}
	return nil
}

// checkComposition keeps hierarchical edges a partial order: a member has
// at most one composition parent, and the composition structure stays
// acyclic.
func checkComposition(state *projection.ContextState, from, to string) error {
	for _, r := range state.Relationships() {
		if r.Kind == graph.RelationComposition && r.To == to {
			return fmt.Errorf("%w: %s already composed into %s",
				graph.ErrConstraintViolation, to, r.From)
		}
	}
	// Walking composition edges upward from the new parent must not reach
	// the new child.
	current := from
	for steps := 0; steps < 1_000; steps++ {
		if current == to {
			return graph.NewInvariantError("CompositionPartialOrder",
				fmt.Sprintf("composing %s into %s closes a cycle", to, from))
		}
		parent := ""
		for _, r := range state.Relationships() {
			if r.Kind == graph.RelationComposition && r.To == current {
				parent = r.From
				break
			}
		}
		if parent == "" {
			return nil
		}
		current = parent
	}
	return graph.NewInvariantError("CompositionPartialOrder", "composition chain too deep")
}

// checkContextInvariants verifies the post state: composition edges form a
// forest.
func checkContextInvariants(p *projection.Projection) error {
	state := p.Context()
	parents := make(map[string]int)
	for _, r := range state.Relationships() {
		if r.Kind == graph.RelationComposition {
			parents[r.To]++
			if parents[r.To] > 1 {
				return graph.NewInvariantError("CompositionPartialOrder",
					fmt.Sprintf("%s has multiple composition parents", r.To))
			}
		}
	}
	return nil
}
