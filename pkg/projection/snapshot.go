package projection

import (
	"encoding/json"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/plaenen/graphstore/pkg/graph"
)

// SnapshotData is the full serialized form of a projection. Restoring it is
// equivalent to replaying the stream prefix it represents.
type SnapshotData struct {
	AggregateID string            `json:"aggregate_id"`
	Variant     graph.Variant     `json:"variant"`
	Version     uint64            `json:"version"`
	HeadCID     string            `json:"head_cid"`
	Archived    bool              `json:"archived"`
	Constraints graph.Constraints `json:"constraints"`
	State       json.RawMessage   `json:"state"`
}

// Snapshot serializes the projection.
func (p *Projection) Snapshot() (*SnapshotData, error) {
	state, err := marshalState(p.state)
	if err != nil {
		return nil, fmt.Errorf("snapshot state: %w", err)
	}
	return &SnapshotData{
		AggregateID: p.aggregateID,
		Variant:     p.variant,
		Version:     p.version,
		HeadCID:     p.headCID,
		Archived:    p.archived,
		Constraints: p.constraints,
		State:       state,
	}, nil
}

// FromSnapshot reconstructs a projection from serialized form. Folding the
// remaining tail of events onto the result equals a full replay.
func FromSnapshot(snap *SnapshotData) (*Projection, error) {
	state, err := unmarshalState(snap.Variant, snap.State)
	if err != nil {
		return nil, fmt.Errorf("restore state: %w", err)
	}
	return &Projection{
		aggregateID: snap.AggregateID,
		variant:     snap.Variant,
		version:     snap.Version,
		headCID:     snap.HeadCID,
		archived:    snap.Archived,
		constraints: snap.Constraints,
		state:       state,
	}, nil
}

// Per-state wire DTOs. Maps with non-string keys and set types are
// flattened into sorted slices so the serialized form is stable.

type ipldStateWire struct {
	Contents map[string]ContentDescriptor `json:"contents"`
	Links    map[string]map[string]string `json:"links"`
	Pins     []string                     `json:"pins"`
}

type contextStateWire struct {
	Contexts     []string                     `json:"contexts"`
	Aggregates   map[string]AggregateInfo     `json:"aggregates"`
	Entities     map[string]EntityInfo        `json:"entities"`
	ValueObjects map[string]map[string]string `json:"value_objects"`
	Relations    []Relationship               `json:"relations"`
}

type workflowStateWire struct {
	Name        string                     `json:"name"`
	Published   bool                       `json:"published"`
	States      map[string]graph.StateKind `json:"states"`
	Transitions []Transition               `json:"transitions"`
	Instances   map[string]*Instance       `json:"instances"`
}

type conceptStateWire struct {
	Dimensions []graph.QualityDimension `json:"dimensions"`
	Concepts   map[string]*Concept      `json:"concepts"`
	Relations  []Relation               `json:"relations"`
	Regions    map[string][]string      `json:"regions,omitempty"`
	Inferred   []graph.InferredEdge     `json:"inferred"`
	Weights    [][]float64              `json:"weights,omitempty"`
}

type composedStateWire struct {
	Subgraphs map[string]SubgraphRef `json:"subgraphs"`
	Mappings  []Mapping              `json:"mappings"`
}

type genericStateWire struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []Edge           `json:"edges"`
}

func marshalState(state variantState) ([]byte, error) {
	switch s := state.(type) {
	case *IpldState:
		pins := s.pins.ToSlice()
		sort.Strings(pins)
		return json.Marshal(ipldStateWire{Contents: s.contents, Links: s.links, Pins: pins})
	case *ContextState:
		contexts := sortedKeys(s.contexts)
		return json.Marshal(contextStateWire{
			Contexts:     contexts,
			Aggregates:   s.aggregates,
			Entities:     s.entities,
			ValueObjects: s.valueObjects,
			Relations:    s.relations,
		})
	case *WorkflowState:
		transitions := make([]Transition, 0, len(s.transitions))
		for _, t := range s.transitions {
			transitions = append(transitions, t)
		}
		sort.Slice(transitions, func(i, j int) bool {
			if transitions[i].From != transitions[j].From {
				return transitions[i].From < transitions[j].From
			}
			return transitions[i].Event < transitions[j].Event
		})
		return json.Marshal(workflowStateWire{
			Name:        s.name,
			Published:   s.published,
			States:      s.states,
			Transitions: transitions,
			Instances:   s.instances,
		})
	case *ConceptState:
		relations := make([]Relation, 0, len(s.relations))
		for _, r := range s.relations {
			relations = append(relations, r)
		}
		sort.Slice(relations, func(i, j int) bool {
			if relations[i].From != relations[j].From {
				return relations[i].From < relations[j].From
			}
			return relations[i].To < relations[j].To
		})
		regions := s.regions
		if len(regions) == 0 {
			regions = nil
		}
		return json.Marshal(conceptStateWire{
			Dimensions: s.dimensions,
			Concepts:   s.concepts,
			Relations:  relations,
			Regions:    regions,
			Inferred:   s.inferred,
			Weights:    s.weights,
		})
	case *ComposedState:
		return json.Marshal(composedStateWire{Subgraphs: s.subgraphs, Mappings: s.mappings})
	case *GenericState:
		var edges []Edge
		for _, tos := range s.edges {
			for _, e := range tos {
				edges = append(edges, e)
			}
		}
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].From != edges[j].From {
				return edges[i].From < edges[j].From
			}
			return edges[i].To < edges[j].To
		})
		return json.Marshal(genericStateWire{Nodes: s.nodes, Edges: edges})
	default:
		return nil, fmt.Errorf("unknown state type %T", state)
	}
}

func unmarshalState(variant graph.Variant, data []byte) (variantState, error) {
	switch variant {
	case graph.VariantIpld:
		var w ipldStateWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		s := newIpldState()
		if w.Contents != nil {
			s.contents = w.Contents
		}
		if w.Links != nil {
			s.links = w.Links
		}
		s.pins = mapset.NewSet[string](w.Pins...)
		return s, nil
	case graph.VariantContext:
		var w contextStateWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		s := newContextState()
		for _, name := range w.Contexts {
			s.contexts[name] = struct{}{}
		}
		if w.Aggregates != nil {
			s.aggregates = w.Aggregates
		}
		if w.Entities != nil {
			s.entities = w.Entities
		}
		if w.ValueObjects != nil {
			s.valueObjects = w.ValueObjects
		}
		s.relations = w.Relations
		return s, nil
	case graph.VariantWorkflow:
		var w workflowStateWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		s := newWorkflowState()
		s.name = w.Name
		s.published = w.Published
		if w.States != nil {
			s.states = w.States
		}
		for _, t := range w.Transitions {
			s.transitions[transitionKey{From: t.From, Event: t.Event}] = t
		}
		if w.Instances != nil {
			s.instances = w.Instances
		}
		return s, nil
	case graph.VariantConcept:
		var w conceptStateWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		s := newConceptState()
		s.dimensions = w.Dimensions
		if w.Concepts != nil {
			s.concepts = w.Concepts
		}
		for _, r := range w.Relations {
			s.relations[normRelationKey(r.From, r.To)] = r
		}
		if w.Regions != nil {
			s.regions = w.Regions
		}
		s.inferred = w.Inferred
		s.weights = w.Weights
		return s, nil
	case graph.VariantComposed:
		var w composedStateWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		s := newComposedState()
		if w.Subgraphs != nil {
			s.subgraphs = w.Subgraphs
		}
		s.mappings = w.Mappings
		return s, nil
	default:
		var w genericStateWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		s := newGenericState()
		if w.Nodes != nil {
			s.nodes = w.Nodes
		}
		for _, e := range w.Edges {
			tos, ok := s.edges[e.From]
			if !ok {
				tos = make(map[string]Edge)
				s.edges[e.From] = tos
			}
			tos[e.To] = e
		}
		return s, nil
	}
}
