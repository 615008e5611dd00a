package projection

import (
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
)

// Node is one node of a generic graph with labels and the latest value of
// each property.
type Node struct {
	ID         string            `json:"id"`
	Labels     []string          `json:"labels,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// GenericState is the fold target for generic-variant aggregates: a simple
// directed graph (no self loops, no parallel edges; both enforced at
// command validation) with weighted, labeled edges.
type GenericState struct {
	nodes map[string]*Node
	edges map[string]map[string]Edge // from -> to -> edge
}

func newGenericState() *GenericState {
	return &GenericState{
		nodes: make(map[string]*Node),
		edges: make(map[string]map[string]Edge),
	}
}

func (s *GenericState) clone() variantState {
	c := newGenericState()
	for k, v := range s.nodes {
		copied := *v
		copied.Labels = append([]string(nil), v.Labels...)
		copied.Properties = cloneStringMap(v.Properties)
		c.nodes[k] = &copied
	}
	for from, tos := range s.edges {
		m := make(map[string]Edge, len(tos))
		for to, e := range tos {
			m[to] = e
		}
		c.edges[from] = m
	}
	return c
}

func (s *GenericState) apply(p graph.Payload) error {
	switch payload := p.(type) {
	case *graph.NodeAdded:
		s.nodes[payload.ID] = &Node{
			ID:         payload.ID,
			Labels:     append([]string(nil), payload.Labels...),
			Properties: cloneStringMap(payload.Properties),
		}
	case *graph.NodeRemoved:
		delete(s.nodes, payload.ID)
		delete(s.edges, payload.ID)
		for _, tos := range s.edges {
			delete(tos, payload.ID)
		}
	case *graph.EdgeAdded:
		tos, ok := s.edges[payload.From]
		if !ok {
			tos = make(map[string]Edge)
			s.edges[payload.From] = tos
		}
		weight := payload.Weight
		if weight == 0 {
			weight = 1
		}
		tos[payload.To] = Edge{From: payload.From, To: payload.To, Label: payload.Label, Weight: weight}
	case *graph.EdgeRemoved:
		delete(s.edges[payload.From], payload.To)
	case *graph.NodePropertyAdded:
		n, ok := s.nodes[payload.Node]
		if !ok {
			return fmt.Errorf("%w: node %s", graph.ErrUnknownEntity, payload.Node)
		}
		if n.Properties == nil {
			n.Properties = make(map[string]string)
		}
		n.Properties[payload.Name] = payload.Value
	case *graph.NodePropertyRemoved:
		if n, ok := s.nodes[payload.Node]; ok {
			delete(n.Properties, payload.Name)
		}
	default:
		return fmt.Errorf("%w: %s on generic projection", graph.ErrTypeMismatch, p.PayloadKind())
	}
	return nil
}

// Node returns a node by ID.
func (s *GenericState) Node(id string) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	copied := *n
	copied.Labels = append([]string(nil), n.Labels...)
	copied.Properties = cloneStringMap(n.Properties)
	return copied, true
}

// HasEdge reports whether a directed edge exists.
func (s *GenericState) HasEdge(from, to string) bool {
	_, ok := s.edges[from][to]
	return ok
}

// NodeCount returns the number of nodes.
func (s *GenericState) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of edges.
func (s *GenericState) EdgeCount() int {
	n := 0
	for _, tos := range s.edges {
		n += len(tos)
	}
	return n
}

// View implementation.

func (s *GenericState) NodeIDs() []string { return sortedKeys(s.nodes) }

func (s *GenericState) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

func (s *GenericState) Out(id string) []Edge {
	tos := s.edges[id]
	edges := make([]Edge, 0, len(tos))
	for _, e := range tos {
		edges = append(edges, e)
	}
	return sortEdges(edges)
}

func (s *GenericState) In(id string) []Edge { return inFromOut(s, id) }

func (s *GenericState) Directed() bool { return true }
