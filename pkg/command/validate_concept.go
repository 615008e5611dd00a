package command

import (
	"fmt"
	"sort"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

// inferenceThreshold is the minimum derived strength worth recording.
const inferenceThreshold = 0.25

func decideConcept(cmd Command, p *projection.Projection) ([]graph.Payload, error) {
	state := p.Concept()
	switch c := cmd.(type) {
	case DefineConcept:
		if len(state.Dimensions()) > 0 {
			return nil, fmt.Errorf("%w: quality space already defined", graph.ErrDuplicateIdentifier)
		}
		if len(c.Dimensions) == 0 {
			return nil, fmt.Errorf("%w: no dimensions", graph.ErrConstraintViolation)
		}
		seen := make(map[string]struct{}, len(c.Dimensions))
		for _, d := range c.Dimensions {
			if _, dup := seen[d.Name]; dup {
				return nil, fmt.Errorf("%w: dimension %s", graph.ErrDuplicateIdentifier, d.Name)
			}
			seen[d.Name] = struct{}{}
			if d.Max < d.Min {
				return nil, fmt.Errorf("%w: dimension %s has max < min", graph.ErrConstraintViolation, d.Name)
			}
		}
		return []graph.Payload{&graph.SpaceDefined{Dimensions: c.Dimensions}}, nil

	case AddConcept:
		dims := state.Dimensions()
		if len(dims) == 0 {
			return nil, graph.NewInvariantError("SpaceDefined", "define the quality space first")
		}
		if state.HasConcept(c.ID) {
			return nil, fmt.Errorf("%w: concept %s", graph.ErrDuplicateIdentifier, c.ID)
		}
		if len(c.Coordinates) != len(dims) {
			return nil, fmt.Errorf("%w: %d coordinates for %d dimensions",
				graph.ErrTypeMismatch, len(c.Coordinates), len(dims))
		}
		for i, v := range c.Coordinates {
			if v < dims[i].Min || v > dims[i].Max {
				return nil, fmt.Errorf("%w: coordinate %s=%f outside [%f, %f]",
					graph.ErrConstraintViolation, dims[i].Name, v, dims[i].Min, dims[i].Max)
			}
		}
		return []graph.Payload{&graph.ConceptAdded{ID: c.ID, Coordinates: c.Coordinates}}, nil

	case AttachProperties:
		if !state.HasConcept(c.Concept) {
			return nil, fmt.Errorf("%w: concept %s", graph.ErrUnknownEntity, c.Concept)
		}
		if len(c.Properties) == 0 {
			return nil, fmt.Errorf("%w: no properties", graph.ErrConstraintViolation)
		}
		// Properties already present are superseded by correlated
		// removal-then-addition, not overwritten.
		existing, _ := state.Concept(c.Concept)
		var payloads []graph.Payload
		names := make([]string, 0, len(c.Properties))
		for name := range c.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, present := existing.Properties[name]; present {
				payloads = append(payloads, &graph.PropertyRemoved{Concept: c.Concept, Name: name})
			}
		}
		payloads = append(payloads, &graph.PropertiesAttached{Concept: c.Concept, Properties: c.Properties})
		return payloads, nil

	case AddRelation:
		if !state.HasConcept(c.From) {
			return nil, fmt.Errorf("%w: concept %s", graph.ErrUnknownEntity, c.From)
		}
		if !state.HasConcept(c.To) {
			return nil, fmt.Errorf("%w: concept %s", graph.ErrUnknownEntity, c.To)
		}
		if c.From == c.To {
			return nil, fmt.Errorf("%w: relation %s->%s", graph.ErrSelfLoopInSimpleGraph, c.From, c.To)
		}
		if c.Strength < 0 || c.Strength > 1 {
			return nil, fmt.Errorf("%w: strength %f outside [0, 1]",
				graph.ErrConstraintViolation, c.Strength)
		}
		if _, exists := state.RelationBetween(c.From, c.To); exists {
			return nil, fmt.Errorf("%w: relation %s-%s", graph.ErrMultiEdgeInSimpleGraph, c.From, c.To)
		}
		if err := checkTriangles(state, c); err != nil {
			return nil, err
		}
		return []graph.Payload{&graph.RelationAdded{
			From:     c.From,
			To:       c.To,
			Kind:     c.Kind,
			Strength: c.Strength,
		}}, nil

	case DefineRegion:
		if _, exists := state.Region(c.Name); exists {
			return nil, fmt.Errorf("%w: region %s", graph.ErrDuplicateIdentifier, c.Name)
		}
		if len(c.Members) == 0 {
			return nil, fmt.Errorf("%w: region %s has no members", graph.ErrConstraintViolation, c.Name)
		}
		seen := make(map[string]struct{}, len(c.Members))
		for _, member := range c.Members {
			if !state.HasConcept(member) {
				return nil, fmt.Errorf("%w: concept %s", graph.ErrUnknownEntity, member)
			}
			if _, dup := seen[member]; dup {
				return nil, fmt.Errorf("%w: member %s", graph.ErrDuplicateIdentifier, member)
			}
			seen[member] = struct{}{}
		}
		return []graph.Payload{&graph.RegionDefined{Name: c.Name, Members: c.Members}}, nil

	case AddToRegion:
		if _, exists := state.Region(c.Region); !exists {
			return nil, fmt.Errorf("%w: region %s", graph.ErrUnknownEntity, c.Region)
		}
		if !state.HasConcept(c.Concept) {
			return nil, fmt.Errorf("%w: concept %s", graph.ErrUnknownEntity, c.Concept)
		}
		if state.InRegion(c.Region, c.Concept) {
			return nil, fmt.Errorf("%w: %s already in region %s", graph.ErrDuplicateIdentifier, c.Concept, c.Region)
		}
		return []graph.Payload{&graph.RegionMemberAdded{Region: c.Region, Concept: c.Concept}}, nil

	case RunInference:
		edges := inferEdges(state)
		return []graph.Payload{&graph.InferenceComputed{Edges: edges}}, nil

	default:
		return nil, fmt.Errorf("%w: %s on concept aggregate", graph.ErrTypeMismatch, cmd.CommandType())
	}
}

// checkTriangles verifies the triangle inequality at the smallest cycles
// the new edge would close: for every common neighbor of its endpoints,
// all three sides must satisfy d(a,c) <= d(a,b) + d(b,c), where d is the
// Euclidean norm over the declared quality dimensions.
func checkTriangles(state *projection.ConceptState, c AddRelation) error {
	for _, other := range state.NodeIDs() {
		if other == c.From || other == c.To {
			continue
		}
		_, okFrom := state.RelationBetween(c.From, other)
		_, okTo := state.RelationBetween(c.To, other)
		if !okFrom || !okTo {
			continue
		}
		if err := checkTriangle(state, c.From, c.To, other); err != nil {
			return err
		}
	}
	return nil
}

// checkTriangle verifies one triangle of quality-space distances.
func checkTriangle(state *projection.ConceptState, a, b, c string) error {
	dab, err := state.QualityDistance(a, b)
	if err != nil {
		return err
	}
	dac, err := state.QualityDistance(a, c)
	if err != nil {
		return err
	}
	dbc, err := state.QualityDistance(b, c)
	if err != nil {
		return err
	}
	const epsilon = 1e-9
	if dab > dac+dbc+epsilon || dac > dab+dbc+epsilon || dbc > dab+dac+epsilon {
		return fmt.Errorf("%w: triangle %s-%s-%s", graph.ErrTriangleInequality, a, b, c)
	}
	return nil
}

// inferEdges derives relations for concept pairs with no asserted relation
// but a shared neighbor, taking the strongest two-hop product. Output is
// sorted so inference is deterministic.
func inferEdges(state *projection.ConceptState) []graph.InferredEdge {
	nodes := state.NodeIDs()
	var edges []graph.InferredEdge
	for i, a := range nodes {
		for _, b := range nodes[i+1:] {
			if _, direct := state.RelationBetween(a, b); direct {
				continue
			}
			best := 0.0
			for _, mid := range nodes {
				if mid == a || mid == b {
					continue
				}
				ra, okA := state.RelationBetween(a, mid)
				rb, okB := state.RelationBetween(b, mid)
				if okA && okB {
					if s := ra.Strength * rb.Strength; s > best {
						best = s
					}
				}
			}
			if best >= inferenceThreshold {
				edges = append(edges, graph.InferredEdge{From: a, To: b, Strength: best})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// checkConceptInvariants verifies the post state: every triangle of
// asserted relations satisfies the triangle inequality over quality-space
// distances, and every declared region remains convex.
func checkConceptInvariants(p *projection.Projection) error {
	state := p.Concept()
	nodes := state.NodeIDs()
	for i, a := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			b := nodes[j]
			if _, ok := state.RelationBetween(a, b); !ok {
				continue
			}
			for _, c := range nodes[j+1:] {
				_, okAC := state.RelationBetween(a, c)
				_, okBC := state.RelationBetween(b, c)
				if !okAC || !okBC {
					continue
				}
				if err := checkTriangle(state, a, b, c); err != nil {
					return err
				}
			}
		}
	}
	for _, region := range state.RegionNames() {
		if err := checkRegionConvex(state, region); err != nil {
			return err
		}
	}
	return nil
}

// checkRegionConvex verifies a region by betweenness: any concept lying on
// the quality-space segment between two members must itself be a member.
// This keeps regions convex as concepts and members accrue.
func checkRegionConvex(state *projection.ConceptState, region string) error {
	members, _ := state.Region(region)
	const epsilon = 1e-9
	for i, x := range members {
		for _, z := range members[i+1:] {
			dxz, err := state.QualityDistance(x, z)
			if err != nil {
				return err
			}
			for _, y := range state.NodeIDs() {
				if y == x || y == z || state.InRegion(region, y) {
					continue
				}
				dxy, err := state.QualityDistance(x, y)
				if err != nil {
					return err
				}
				dyz, err := state.QualityDistance(y, z)
				if err != nil {
					return err
				}
				if dxy+dyz <= dxz+epsilon {
					return graph.NewInvariantError("ConvexRegion",
						fmt.Sprintf("%s lies between %s and %s but is outside region %s", y, x, z, region))
				}
			}
		}
	}
	return nil
}
