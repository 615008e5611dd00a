package projection

import (
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
)

// AggregateInfo describes one aggregate root in a context graph.
type AggregateInfo struct {
	ID      string `json:"id"`
	Context string `json:"context"`
	Name    string `json:"name,omitempty"`
}

// EntityInfo describes one entity belonging to an aggregate.
type EntityInfo struct {
	ID        string `json:"id"`
	Aggregate string `json:"aggregate"`
}

// Relationship is a directed edge between entities carrying a kind and a
// cardinality.
type Relationship struct {
	From        string            `json:"from"`
	To          string            `json:"to"`
	Kind        graph.RelationKind `json:"kind"`
	Cardinality graph.Cardinality  `json:"cardinality"`
}

// ContextState is the fold target for context-variant aggregates: bounded
// contexts, a forest of aggregate roots, entities, attached value objects,
// and relationship edges. Hierarchical (composition) edges respect a partial
// order, enforced at command validation.
type ContextState struct {
	contexts     map[string]struct{}
	aggregates   map[string]AggregateInfo
	entities     map[string]EntityInfo
	valueObjects map[string]map[string]string // entity -> name -> value
	relations    []Relationship
}

func newContextState() *ContextState {
	return &ContextState{
		contexts:     make(map[string]struct{}),
		aggregates:   make(map[string]AggregateInfo),
		entities:     make(map[string]EntityInfo),
		valueObjects: make(map[string]map[string]string),
	}
}

func (s *ContextState) clone() variantState {
	c := newContextState()
	for k := range s.contexts {
		c.contexts[k] = struct{}{}
	}
	for k, v := range s.aggregates {
		c.aggregates[k] = v
	}
	for k, v := range s.entities {
		c.entities[k] = v
	}
	for k, v := range s.valueObjects {
		c.valueObjects[k] = cloneStringMap(v)
	}
	c.relations = append([]Relationship(nil), s.relations...)
	return c
}

func (s *ContextState) apply(p graph.Payload) error {
	switch payload := p.(type) {
	case *graph.ContextDefined:
		s.contexts[payload.Name] = struct{}{}
	case *graph.AggregateAdded:
		s.aggregates[payload.ID] = AggregateInfo{ID: payload.ID, Context: payload.Context, Name: payload.Name}
	case *graph.EntityAdded:
		s.entities[payload.ID] = EntityInfo{ID: payload.ID, Aggregate: payload.Aggregate}
	case *graph.ValueObjectAttached:
		vos, ok := s.valueObjects[payload.Entity]
		if !ok {
			vos = make(map[string]string)
			s.valueObjects[payload.Entity] = vos
		}
		vos[payload.Name] = payload.Value
	case *graph.ValueObjectRemoved:
		delete(s.valueObjects[payload.Entity], payload.Name)
	case *graph.RelationshipAdded:
		s.relations = append(s.relations, Relationship{
			From:        payload.From,
			To:          payload.To,
			Kind:        payload.Kind,
			Cardinality: payload.Cardinality,
		})
	default:
		return fmt.Errorf("%w: %s on context projection", graph.ErrTypeMismatch, p.PayloadKind())
	}
	return nil
}

// HasContext reports whether a bounded context was defined.
func (s *ContextState) HasContext(name string) bool {
	_, ok := s.contexts[name]
	return ok
}

// Aggregate returns an aggregate by ID.
func (s *ContextState) Aggregate(id string) (AggregateInfo, bool) {
	a, ok := s.aggregates[id]
	return a, ok
}

// Entity returns an entity by ID.
func (s *ContextState) Entity(id string) (EntityInfo, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// HasMember reports whether id names an aggregate or an entity.
func (s *ContextState) HasMember(id string) bool {
	if _, ok := s.aggregates[id]; ok {
		return true
	}
	_, ok := s.entities[id]
	return ok
}

// ValueObject returns the latest value of a value object attached to an
// entity. A removal not superseded by a later attachment leaves it absent.
func (s *ContextState) ValueObject(entity, name string) (string, bool) {
	v, ok := s.valueObjects[entity][name]
	return v, ok
}

// ValueObjects returns all value objects attached to an entity.
func (s *ContextState) ValueObjects(entity string) map[string]string {
	return cloneStringMap(s.valueObjects[entity])
}

// Relationships returns all relationship edges.
func (s *ContextState) Relationships() []Relationship {
	return append([]Relationship(nil), s.relations...)
}

// RelationsFrom returns the relationships originating at id with the given
// kind; empty kind matches all.
func (s *ContextState) RelationsFrom(id string, kind graph.RelationKind) []Relationship {
	var out []Relationship
	for _, r := range s.relations {
		if r.From == id && (kind == "" || r.Kind == kind) {
			out = append(out, r)
		}
	}
	return out
}

// RootOf follows composition edges upward from an entity or aggregate to
// the aggregate root that owns it.
func (s *ContextState) RootOf(id string) (string, error) {
	if !s.HasMember(id) {
		return "", fmt.Errorf("%w: %s", graph.ErrUnknownEntity, id)
	}
	current := id
	for {
		if _, isAggregate := s.aggregates[current]; isAggregate {
			return current, nil
		}
		parent := ""
		for _, r := range s.relations {
			if r.Kind == graph.RelationComposition && r.To == current {
				parent = r.From
				break
			}
		}
		if parent == "" {
			if e, ok := s.entities[current]; ok {
				return e.Aggregate, nil
			}
			return current, nil
		}
		current = parent
	}
}

// View implementation. Nodes are aggregates and entities; edges are
// relationships.

func (s *ContextState) NodeIDs() []string {
	ids := make(map[string]struct{}, len(s.aggregates)+len(s.entities))
	for id := range s.aggregates {
		ids[id] = struct{}{}
	}
	for id := range s.entities {
		ids[id] = struct{}{}
	}
	return sortedKeys(ids)
}

func (s *ContextState) HasNode(id string) bool { return s.HasMember(id) }

func (s *ContextState) Out(id string) []Edge {
	var edges []Edge
	for _, r := range s.relations {
		if r.From == id {
			edges = append(edges, Edge{From: r.From, To: r.To, Label: string(r.Kind), Weight: 1})
		}
	}
	return sortEdges(edges)
}

func (s *ContextState) In(id string) []Edge {
	var edges []Edge
	for _, r := range s.relations {
		if r.To == id {
			edges = append(edges, Edge{From: r.From, To: r.To, Label: string(r.Kind), Weight: 1})
		}
	}
	return sortEdges(edges)
}

func (s *ContextState) Directed() bool { return true }
