package projection

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/plaenen/graphstore/pkg/graph"
)

// ContentDescriptor describes one content-addressed block known to an IPLD
// projection.
type ContentDescriptor struct {
	Codec string `json:"codec,omitempty"`
	Size  uint64 `json:"size,omitempty"`
}

// IpldState is the fold target for IPLD-variant aggregates: a table of
// content descriptors, a labeled link adjacency, and a pin set. The link
// structure is a DAG; acyclicity is enforced at command validation.
type IpldState struct {
	contents map[string]ContentDescriptor
	links    map[string]map[string]string // from cid -> link name -> to cid
	pins     mapset.Set[string]
}

func newIpldState() *IpldState {
	return &IpldState{
		contents: make(map[string]ContentDescriptor),
		links:    make(map[string]map[string]string),
		pins:     mapset.NewSet[string](),
	}
}

func (s *IpldState) clone() variantState {
	c := newIpldState()
	for k, v := range s.contents {
		c.contents[k] = v
	}
	for from, names := range s.links {
		m := make(map[string]string, len(names))
		for name, to := range names {
			m[name] = to
		}
		c.links[from] = m
	}
	c.pins = s.pins.Clone()
	return c
}

func (s *IpldState) apply(p graph.Payload) error {
	switch payload := p.(type) {
	case *graph.CidAdded:
		s.contents[payload.Cid] = ContentDescriptor{Codec: payload.Codec, Size: payload.Size}
	case *graph.CidsLinked:
		names, ok := s.links[payload.From]
		if !ok {
			names = make(map[string]string)
			s.links[payload.From] = names
		}
		names[payload.Name] = payload.To
	case *graph.CidPinned:
		s.pins.Add(payload.Cid)
	case *graph.CidUnpinned:
		s.pins.Remove(payload.Cid)
	default:
		return fmt.Errorf("%w: %s on ipld projection", graph.ErrTypeMismatch, p.PayloadKind())
	}
	return nil
}

// HasCid reports whether the block is known.
func (s *IpldState) HasCid(cid string) bool {
	_, ok := s.contents[cid]
	return ok
}

// Descriptor returns the content descriptor for a block.
func (s *IpldState) Descriptor(cid string) (ContentDescriptor, bool) {
	d, ok := s.contents[cid]
	return d, ok
}

// Link returns the target of a named link, if present.
func (s *IpldState) Link(from, name string) (string, bool) {
	to, ok := s.links[from][name]
	return to, ok
}

// Pinned reports whether the block is pinned.
func (s *IpldState) Pinned(cid string) bool {
	return s.pins.Contains(cid)
}

// PinCount returns the number of pinned blocks.
func (s *IpldState) PinCount() int {
	return s.pins.Cardinality()
}

// ResolvePath walks labeled edges from root through the given segments.
// An undefined segment yields ErrPathUnresolved. The path form is
// "root/name1/name2/...".
func (s *IpldState) ResolvePath(path string) (string, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", fmt.Errorf("%w: empty path", graph.ErrPathUnresolved)
	}
	current := segments[0]
	if !s.HasCid(current) {
		return "", fmt.Errorf("%w: root %s unknown", graph.ErrPathUnresolved, current)
	}
	for _, name := range segments[1:] {
		to, ok := s.Link(current, name)
		if !ok {
			return "", fmt.Errorf("%w: no link %q from %s", graph.ErrPathUnresolved, name, current)
		}
		current = to
	}
	return current, nil
}

// View implementation.

func (s *IpldState) NodeIDs() []string { return sortedKeys(s.contents) }

func (s *IpldState) HasNode(id string) bool { return s.HasCid(id) }

func (s *IpldState) Out(id string) []Edge {
	names := s.links[id]
	edges := make([]Edge, 0, len(names))
	for name, to := range names {
		edges = append(edges, Edge{From: id, To: to, Label: name, Weight: 1})
	}
	return sortEdges(edges)
}

func (s *IpldState) In(id string) []Edge { return inFromOut(s, id) }

func (s *IpldState) Directed() bool { return true }
