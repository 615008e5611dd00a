package command

import (
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
	"github.com/plaenen/graphstore/pkg/query"
)

func decideGeneric(cmd Command, p *projection.Projection) ([]graph.Payload, error) {
	state := p.Generic()
	switch c := cmd.(type) {
	case AddNode:
		if state.HasNode(c.ID) {
			return nil, fmt.Errorf("%w: node %s", graph.ErrDuplicateIdentifier, c.ID)
		}
		return []graph.Payload{&graph.NodeAdded{ID: c.ID, Labels: c.Labels, Properties: c.Properties}}, nil

	case RemoveNode:
		if !state.HasNode(c.ID) {
			return nil, fmt.Errorf("%w: node %s", graph.ErrUnknownEntity, c.ID)
		}
		return []graph.Payload{&graph.NodeRemoved{ID: c.ID}}, nil

	case AddEdge:
		if !state.HasNode(c.From) {
			return nil, fmt.Errorf("%w: node %s", graph.ErrUnknownEntity, c.From)
		}
		if !state.HasNode(c.To) {
			return nil, fmt.Errorf("%w: node %s", graph.ErrUnknownEntity, c.To)
		}
		if c.From == c.To {
			return nil, fmt.Errorf("%w: %s", graph.ErrSelfLoopInSimpleGraph, c.From)
		}
		if state.HasEdge(c.From, c.To) {
			return nil, fmt.Errorf("%w: %s->%s", graph.ErrMultiEdgeInSimpleGraph, c.From, c.To)
		}
		if c.Weight < 0 {
			return nil, fmt.Errorf("%w: negative weight %f", graph.ErrConstraintViolation, c.Weight)
		}
		cons := p.Constraints()
		if cons.Acyclic && query.WouldCycle(state, c.From, c.To) {
			return nil, fmt.Errorf("%w: %s->%s", graph.ErrCycleInDAG, c.From, c.To)
		}
		if cons.MaxDegree > 0 {
			if query.Degree(state, c.From, query.DirectionBoth) >= cons.MaxDegree ||
				query.Degree(state, c.To, query.DirectionBoth) >= cons.MaxDegree {
				return nil, fmt.Errorf("%w: degree bound %d", graph.ErrConstraintViolation, cons.MaxDegree)
			}
		}
		return []graph.Payload{&graph.EdgeAdded{From: c.From, To: c.To, Label: c.Label, Weight: c.Weight}}, nil

	case RemoveEdge:
		if !state.HasEdge(c.From, c.To) {
			return nil, fmt.Errorf("%w: edge %s->%s", graph.ErrUnknownEntity, c.From, c.To)
		}
		return []graph.Payload{&graph.EdgeRemoved{From: c.From, To: c.To}}, nil

	case SetNodeProperty:
		node, ok := state.Node(c.Node)
		if !ok {
			return nil, fmt.Errorf("%w: node %s", graph.ErrUnknownEntity, c.Node)
		}
		var payloads []graph.Payload
		if _, present := node.Properties[c.Name]; present {
			payloads = append(payloads, &graph.NodePropertyRemoved{Node: c.Node, Name: c.Name})
		}
		payloads = append(payloads, &graph.NodePropertyAdded{Node: c.Node, Name: c.Name, Value: c.Value})
		return payloads, nil

	default:
		return nil, fmt.Errorf("%w: %s on generic aggregate", graph.ErrTypeMismatch, cmd.CommandType())
	}
}

// checkGenericInvariants verifies the post state against the declared
// constraints.
func checkGenericInvariants(p *projection.Projection) error {
	state := p.Generic()
	cons := p.Constraints()
	if cons.Acyclic && query.HasCycle(state) {
		return fmt.Errorf("%w: graph contains a cycle", graph.ErrCycleInDAG)
	}
	if cons.Planar {
		result, err := query.CheckPlanarity(state, query.DefaultBudget())
		if err != nil {
			return err
		}
		if !result.Planar {
			return fmt.Errorf("%w: %s", graph.ErrPlanarityViolation, result.Reason)
		}
	}
	return nil
}
