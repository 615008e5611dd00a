package command

import (
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
	"github.com/plaenen/graphstore/pkg/query"
)

func decideIpld(cmd Command, p *projection.Projection) ([]graph.Payload, error) {
	state := p.Ipld()
	switch c := cmd.(type) {
	case AddCid:
		if state.HasCid(c.Cid) {
			return nil, fmt.Errorf("%w: cid %s", graph.ErrDuplicateIdentifier, c.Cid)
		}
		return []graph.Payload{&graph.CidAdded{Cid: c.Cid, Codec: c.Codec, Size: c.Size}}, nil

	case LinkCids:
		if !state.HasCid(c.From) {
			return nil, fmt.Errorf("%w: %s", graph.ErrUnknownEntity, c.From)
		}
		if !state.HasCid(c.To) {
			return nil, fmt.Errorf("%w: %s", graph.ErrUnknownEntity, c.To)
		}
		if _, exists := state.Link(c.From, c.Name); exists {
			return nil, fmt.Errorf("%w: link %q from %s", graph.ErrDuplicateIdentifier, c.Name, c.From)
		}
		if query.WouldCycle(state, c.From, c.To) {
			return nil, graph.NewInvariantError("AcyclicIPLD",
				fmt.Sprintf("link %s->%s closes a cycle", c.From, c.To))
		}
		if max := p.Constraints().MaxDegree; max > 0 && len(state.Out(c.From)) >= max {
			return nil, fmt.Errorf("%w: degree of %s would exceed %d",
				graph.ErrConstraintViolation, c.From, max)
		}
		return []graph.Payload{&graph.CidsLinked{From: c.From, Name: c.Name, To: c.To}}, nil

	case PinCid:
		if !state.HasCid(c.Cid) {
			return nil, fmt.Errorf("%w: %s", graph.ErrUnknownEntity, c.Cid)
		}
		if state.Pinned(c.Cid) {
			return nil, fmt.Errorf("%w: %s already pinned", graph.ErrDuplicateIdentifier, c.Cid)
		}
		return []graph.Payload{&graph.CidPinned{Cid: c.Cid}}, nil

	case UnpinCid:
		if !state.Pinned(c.Cid) {
			return nil, fmt.Errorf("%w: %s is not pinned", graph.ErrUnknownEntity, c.Cid)
		}
		return []graph.Payload{&graph.CidUnpinned{Cid: c.Cid}}, nil

	default:
		return nil, fmt.Errorf("%w: %s on ipld aggregate", graph.ErrTypeMismatch, cmd.CommandType())
	}
}

// checkIpldInvariants verifies the post state: the link structure must be a
// DAG.
func checkIpldInvariants(p *projection.Projection) error {
	if query.HasCycle(p.Ipld()) {
		return graph.NewInvariantError("AcyclicIPLD", "link structure contains a cycle")
	}
	return nil
}
