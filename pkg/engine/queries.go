package engine

import (
	"context"
	"fmt"

	"github.com/plaenen/graphstore/pkg/command"
	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/idgen"
	"github.com/plaenen/graphstore/pkg/projection"
	"github.com/plaenen/graphstore/pkg/query"
)

// VerifyChain fetches an aggregate's full stream and verifies every CID and
// previous-CID link.
func (e *Engine) VerifyChain(ctx context.Context, aid string) error {
	msgs, err := e.transport.Fetch(ctx, aid, 0)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("%w: %s", graph.ErrUnknownAggregate, aid)
	}
	events := make([]*graph.Event, 0, len(msgs))
	for _, msg := range msgs {
		event, err := graph.Unmarshal(msg.Data)
		if err != nil {
			return err
		}
		events = append(events, event)
	}
	return e.chain.VerifyChain(events)
}

// View returns the structural view of an aggregate's projection. Composed
// aggregates have no standalone view; query their subgraphs individually or
// use MappedNeighbors.
func (e *Engine) View(ctx context.Context, aid string) (projection.View, error) {
	p, err := e.Projection(ctx, aid)
	if err != nil {
		return nil, err
	}
	v := p.View()
	if v == nil {
		return nil, fmt.Errorf("%w: %s projection has no standalone view", graph.ErrTypeMismatch, p.Variant())
	}
	return v, nil
}

// DetectPattern runs pattern detection against an aggregate's view.
func (e *Engine) DetectPattern(ctx context.Context, aid string, p query.Pattern, budget query.Budget) ([]query.Match, error) {
	v, err := e.View(ctx, aid)
	if err != nil {
		return nil, err
	}
	return query.Detect(v, p, budget)
}

// InvokePattern materializes a pattern into nodes and edges and submits
// them through the state machine as one correlated transaction. Only
// generic aggregates accept pattern invocation.
func (e *Engine) InvokePattern(ctx context.Context, aid string, p query.Pattern, anchor string) (string, error) {
	proj, err := e.Projection(ctx, aid)
	if err != nil {
		return "", err
	}
	if proj.Variant() != graph.VariantGeneric {
		return "", fmt.Errorf("%w: pattern invocation targets generic graphs, not %s",
			graph.ErrTypeMismatch, proj.Variant())
	}
	plan, err := query.BuildPlan(p, anchor)
	if err != nil {
		return "", err
	}

	correlation := idgen.NewCorrelationID()
	for _, node := range plan.Nodes {
		if _, err := e.Submit(ctx, command.AddNode{Aggregate: aid, ID: node},
			command.Metadata{CorrelationID: correlation}); err != nil {
			return "", err
		}
	}
	for _, edge := range plan.Edges {
		if _, err := e.Submit(ctx, command.AddEdge{Aggregate: aid, From: edge.From, To: edge.To, Label: edge.Label},
			command.Metadata{CorrelationID: correlation}); err != nil {
			return "", err
		}
	}
	return correlation, nil
}

// MappedNeighbors answers a cross-graph query on a composed aggregate:
// the entities reachable from (label, entity) by traversing mappings
// transparently.
func (e *Engine) MappedNeighbors(ctx context.Context, aid, label, entity string) ([]projection.Mapping, error) {
	p, err := e.Projection(ctx, aid)
	if err != nil {
		return nil, err
	}
	composed := p.Composed()
	if composed == nil {
		return nil, fmt.Errorf("%w: %s is not a composed aggregate", graph.ErrTypeMismatch, aid)
	}
	if _, ok := composed.Subgraph(label); !ok {
		return nil, fmt.Errorf("%w: subgraph %s", graph.ErrUnknownEntity, label)
	}
	return composed.MappingsFrom(label, entity), nil
}

// Content fetches canonical payload bytes by CID from the content store.
func (e *Engine) Content(ctx context.Context, cid string) ([]byte, error) {
	if e.contents == nil {
		return nil, fmt.Errorf("%w: no content store configured", graph.ErrUnknownEntity)
	}
	return e.contents.Get(ctx, cid)
}
