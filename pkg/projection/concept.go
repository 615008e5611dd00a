package projection

import (
	"fmt"
	"math"

	"github.com/plaenen/graphstore/pkg/graph"
)

// Concept is one point in the quality space plus its attached properties.
type Concept struct {
	ID          string            `json:"id"`
	Coordinates []float64         `json:"coordinates"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Relation is one symmetric strength-weighted semantic edge.
type Relation struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Kind     string  `json:"kind,omitempty"`
	Strength float64 `json:"strength"`
}

type relationKey struct {
	A string
	B string
}

func normRelationKey(a, b string) relationKey {
	if b < a {
		a, b = b, a
	}
	return relationKey{A: a, B: b}
}

// ConceptState is the fold target for concept-variant aggregates: typed
// quality coordinates, a symmetric semantic edge set, declared regions of
// the quality space, an inferred-edge cache, and an optional one-shot
// trained network.
type ConceptState struct {
	dimensions []graph.QualityDimension
	concepts   map[string]*Concept
	relations  map[relationKey]Relation
	regions    map[string][]string
	inferred   []graph.InferredEdge
	weights    [][]float64
}

func newConceptState() *ConceptState {
	return &ConceptState{
		concepts:  make(map[string]*Concept),
		relations: make(map[relationKey]Relation),
		regions:   make(map[string][]string),
	}
}

func (s *ConceptState) clone() variantState {
	c := newConceptState()
	c.dimensions = append([]graph.QualityDimension(nil), s.dimensions...)
	for k, v := range s.concepts {
		copied := *v
		copied.Coordinates = append([]float64(nil), v.Coordinates...)
		copied.Properties = cloneStringMap(v.Properties)
		c.concepts[k] = &copied
	}
	for k, v := range s.relations {
		c.relations[k] = v
	}
	for k, v := range s.regions {
		c.regions[k] = append([]string(nil), v...)
	}
	c.inferred = append([]graph.InferredEdge(nil), s.inferred...)
	if s.weights != nil {
		c.weights = make([][]float64, len(s.weights))
		for i, row := range s.weights {
			c.weights[i] = append([]float64(nil), row...)
		}
	}
	return c
}

func (s *ConceptState) apply(p graph.Payload) error {
	switch payload := p.(type) {
	case *graph.SpaceDefined:
		s.dimensions = append([]graph.QualityDimension(nil), payload.Dimensions...)
	case *graph.ConceptAdded:
		s.concepts[payload.ID] = &Concept{
			ID:          payload.ID,
			Coordinates: append([]float64(nil), payload.Coordinates...),
		}
	case *graph.PropertiesAttached:
		c, ok := s.concepts[payload.Concept]
		if !ok {
			return fmt.Errorf("%w: concept %s", graph.ErrUnknownEntity, payload.Concept)
		}
		if c.Properties == nil {
			c.Properties = make(map[string]string)
		}
		for k, v := range payload.Properties {
			c.Properties[k] = v
		}
	case *graph.PropertyRemoved:
		if c, ok := s.concepts[payload.Concept]; ok {
			delete(c.Properties, payload.Name)
		}
	case *graph.RelationAdded:
		s.relations[normRelationKey(payload.From, payload.To)] = Relation{
			From:     payload.From,
			To:       payload.To,
			Kind:     payload.Kind,
			Strength: payload.Strength,
		}
	case *graph.RegionDefined:
		s.regions[payload.Name] = append([]string(nil), payload.Members...)
	case *graph.RegionMemberAdded:
		s.regions[payload.Region] = append(s.regions[payload.Region], payload.Concept)
	case *graph.InferenceComputed:
		s.inferred = append([]graph.InferredEdge(nil), payload.Edges...)
	case *graph.NetworkTrained:
		s.weights = make([][]float64, len(payload.Weights))
		for i, row := range payload.Weights {
			s.weights[i] = append([]float64(nil), row...)
		}
	default:
		return fmt.Errorf("%w: %s on concept projection", graph.ErrTypeMismatch, p.PayloadKind())
	}
	return nil
}

// Dimensions returns the declared quality dimensions.
func (s *ConceptState) Dimensions() []graph.QualityDimension {
	return append([]graph.QualityDimension(nil), s.dimensions...)
}

// HasConcept reports whether a concept exists.
func (s *ConceptState) HasConcept(id string) bool {
	_, ok := s.concepts[id]
	return ok
}

// Concept returns a concept by ID.
func (s *ConceptState) Concept(id string) (Concept, bool) {
	c, ok := s.concepts[id]
	if !ok {
		return Concept{}, false
	}
	copied := *c
	copied.Coordinates = append([]float64(nil), c.Coordinates...)
	copied.Properties = cloneStringMap(c.Properties)
	return copied, true
}

// RelationBetween returns the relation between two concepts, if asserted.
func (s *ConceptState) RelationBetween(a, b string) (Relation, bool) {
	r, ok := s.relations[normRelationKey(a, b)]
	return r, ok
}

// Relations returns every asserted relation.
func (s *ConceptState) Relations() []Relation {
	out := make([]Relation, 0, len(s.relations))
	for _, r := range s.relations {
		out = append(out, r)
	}
	return out
}

// Region returns the member concepts of a declared region.
func (s *ConceptState) Region(name string) ([]string, bool) {
	members, ok := s.regions[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), members...), true
}

// RegionNames returns the declared region names in sorted order.
func (s *ConceptState) RegionNames() []string {
	return sortedKeys(s.regions)
}

// InRegion reports whether a concept is a member of a region.
func (s *ConceptState) InRegion(region, concept string) bool {
	for _, member := range s.regions[region] {
		if member == concept {
			return true
		}
	}
	return false
}

// Inferred returns the cached inferred edges from the last inference run.
func (s *ConceptState) Inferred() []graph.InferredEdge {
	return append([]graph.InferredEdge(nil), s.inferred...)
}

// TrainedWeights returns the trained network weights, or nil.
func (s *ConceptState) TrainedWeights() [][]float64 {
	return s.weights
}

// QualityDistance is the Euclidean norm over the declared quality
// dimensions between two concepts.
func (s *ConceptState) QualityDistance(a, b string) (float64, error) {
	ca, ok := s.concepts[a]
	if !ok {
		return 0, fmt.Errorf("%w: %s", graph.ErrUnknownEntity, a)
	}
	cb, ok := s.concepts[b]
	if !ok {
		return 0, fmt.Errorf("%w: %s", graph.ErrUnknownEntity, b)
	}
	n := len(ca.Coordinates)
	if len(cb.Coordinates) < n {
		n = len(cb.Coordinates)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := ca.Coordinates[i] - cb.Coordinates[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// RelationDistance converts a relation strength in [0,1] to an edge weight
// for traversal and shortest-path queries: stronger relations are closer.
// Structural invariants over the quality space (triangle inequality, region
// convexity) use QualityDistance, never this.
func RelationDistance(strength float64) float64 {
	return 1 - strength
}

// View implementation. The semantic edge set is symmetric, so the view is
// undirected: Out and In are both the full incidence list.

func (s *ConceptState) NodeIDs() []string { return sortedKeys(s.concepts) }

func (s *ConceptState) HasNode(id string) bool { return s.HasConcept(id) }

func (s *ConceptState) Out(id string) []Edge {
	var edges []Edge
	for _, r := range s.relations {
		if r.From == id {
			edges = append(edges, Edge{From: id, To: r.To, Label: r.Kind, Weight: RelationDistance(r.Strength)})
		} else if r.To == id {
			edges = append(edges, Edge{From: id, To: r.From, Label: r.Kind, Weight: RelationDistance(r.Strength)})
		}
	}
	return sortEdges(edges)
}

func (s *ConceptState) In(id string) []Edge { return s.Out(id) }

func (s *ConceptState) Directed() bool { return false }
