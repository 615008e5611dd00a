package projection

import (
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
)

// SubgraphRef mounts another aggregate's projection under a label.
// Composition never merges storage: the child projection is held by
// reference and resolved at query time.
type SubgraphRef struct {
	Label     string        `json:"label"`
	Aggregate string        `json:"aggregate"`
	Variant   graph.Variant `json:"variant"`
}

// Mapping is a cross-graph edge. It is a pure reference between entities of
// two subgraphs and never alters either subgraph's fold.
type Mapping struct {
	FromSubgraph string `json:"from_subgraph"`
	FromEntity   string `json:"from_entity"`
	ToSubgraph   string `json:"to_subgraph"`
	ToEntity     string `json:"to_entity"`
	Kind         string `json:"kind,omitempty"`
}

// ComposedState is the fold target for composed-variant aggregates: a map
// of subgraph labels to aggregate references plus the cross-graph mappings.
type ComposedState struct {
	subgraphs map[string]SubgraphRef
	mappings  []Mapping
}

func newComposedState() *ComposedState {
	return &ComposedState{subgraphs: make(map[string]SubgraphRef)}
}

func (s *ComposedState) clone() variantState {
	c := newComposedState()
	for k, v := range s.subgraphs {
		c.subgraphs[k] = v
	}
	c.mappings = append([]Mapping(nil), s.mappings...)
	return c
}

func (s *ComposedState) apply(p graph.Payload) error {
	switch payload := p.(type) {
	case *graph.SubgraphAdded:
		s.subgraphs[payload.Label] = SubgraphRef{
			Label:     payload.Label,
			Aggregate: payload.Aggregate,
			Variant:   payload.Variant,
		}
	case *graph.MappingCreated:
		s.mappings = append(s.mappings, Mapping{
			FromSubgraph: payload.FromSubgraph,
			FromEntity:   payload.FromEntity,
			ToSubgraph:   payload.ToSubgraph,
			ToEntity:     payload.ToEntity,
			Kind:         payload.Kind,
		})
	default:
		return fmt.Errorf("%w: %s on composed projection", graph.ErrTypeMismatch, p.PayloadKind())
	}
	return nil
}

// Subgraph returns the reference mounted under label.
func (s *ComposedState) Subgraph(label string) (SubgraphRef, bool) {
	ref, ok := s.subgraphs[label]
	return ref, ok
}

// SubgraphLabels returns all mounted labels in sorted order.
func (s *ComposedState) SubgraphLabels() []string {
	return sortedKeys(s.subgraphs)
}

// Mappings returns every cross-graph mapping.
func (s *ComposedState) Mappings() []Mapping {
	return append([]Mapping(nil), s.mappings...)
}

// MappingsFrom returns the mappings originating at (label, entity).
// Cross-graph queries traverse these transparently.
func (s *ComposedState) MappingsFrom(label, entity string) []Mapping {
	var out []Mapping
	for _, m := range s.mappings {
		if m.FromSubgraph == label && m.FromEntity == entity {
			out = append(out, m)
		}
	}
	return out
}
