package command

import (
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

func (m *Machine) decideComposed(cmd Command, p *projection.Projection) ([]graph.Payload, error) {
	state := p.Composed()
	switch c := cmd.(type) {
	case AddSubgraph:
		if _, exists := state.Subgraph(c.Label); exists {
			return nil, fmt.Errorf("%w: subgraph label %s", graph.ErrDuplicateIdentifier, c.Label)
		}
		if c.Subgraph == p.AggregateID() {
			return nil, graph.NewInvariantError("SubgraphReference",
				"a composition cannot mount itself")
		}
		variant := c.Variant
		if m.resolver != nil {
			child, err := m.resolver(c.Subgraph)
			if err != nil || child == nil || !child.Initialized() {
				return nil, fmt.Errorf("%w: subgraph aggregate %s", graph.ErrUnknownAggregate, c.Subgraph)
			}
			if variant == "" {
				variant = child.Variant()
			} else if variant != child.Variant() {
				return nil, fmt.Errorf("%w: subgraph %s is %s, not %s",
					graph.ErrTypeMismatch, c.Subgraph, child.Variant(), variant)
			}
		}
		return []graph.Payload{&graph.SubgraphAdded{
			Label:     c.Label,
			Aggregate: c.Subgraph,
			Variant:   variant,
		}}, nil

	case CreateMapping:
		fromRef, ok := state.Subgraph(c.FromSubgraph)
		if !ok {
			return nil, fmt.Errorf("%w: subgraph %s", graph.ErrUnknownEntity, c.FromSubgraph)
		}
		toRef, ok := state.Subgraph(c.ToSubgraph)
		if !ok {
			return nil, fmt.Errorf("%w: subgraph %s", graph.ErrUnknownEntity, c.ToSubgraph)
		}
		// Mappings are pure references; they must point at entities that
		// exist in their respective subgraphs.
		if m.resolver != nil {
			if err := m.checkMappedEntity(fromRef, c.FromEntity); err != nil {
				return nil, err
			}
			if err := m.checkMappedEntity(toRef, c.ToEntity); err != nil {
				return nil, err
			}
		}
		for _, existing := range state.MappingsFrom(c.FromSubgraph, c.FromEntity) {
			if existing.ToSubgraph == c.ToSubgraph && existing.ToEntity == c.ToEntity {
				return nil, fmt.Errorf("%w: mapping %s/%s -> %s/%s",
					graph.ErrDuplicateIdentifier, c.FromSubgraph, c.FromEntity, c.ToSubgraph, c.ToEntity)
			}
		}
		return []graph.Payload{&graph.MappingCreated{
			FromSubgraph: c.FromSubgraph,
			FromEntity:   c.FromEntity,
			ToSubgraph:   c.ToSubgraph,
			ToEntity:     c.ToEntity,
			Kind:         c.Kind,
		}}, nil

	default:
		return nil, fmt.Errorf("%w: %s on composed aggregate", graph.ErrTypeMismatch, cmd.CommandType())
	}
}

func (m *Machine) checkMappedEntity(ref projection.SubgraphRef, entity string) error {
	child, err := m.resolver(ref.Aggregate)
	if err != nil || child == nil {
		return fmt.Errorf("%w: subgraph aggregate %s", graph.ErrUnknownAggregate, ref.Aggregate)
	}
	if !entityExists(child, entity) {
		return fmt.Errorf("%w: %s in subgraph %s", graph.ErrUnknownEntity, entity, ref.Label)
	}
	return nil
}
