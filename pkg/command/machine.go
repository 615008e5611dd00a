package command

import (
	"context"
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/idgen"
	"github.com/plaenen/graphstore/pkg/projection"
)

// Resolver fetches the current projection of another aggregate. The
// composed validators use it to check cross-graph references; it must not
// block.
type Resolver func(aggregateID string) (*projection.Projection, error)

// Machine validates commands against the latest projection of their target
// aggregate and either emits a non-empty event list or rejects. Rejections
// are values; no event is emitted on rejection and the projection is left
// untouched.
type Machine struct {
	chain    *graph.ChainBuilder
	resolver Resolver
}

// Option configures a Machine.
type Option func(*Machine)

// WithCIDFunc overrides the content addresser.
func WithCIDFunc(fn graph.CIDFunc) Option {
	return func(m *Machine) {
		m.chain = graph.NewChainBuilder(fn)
	}
}

// WithResolver supplies the projection resolver for composed aggregates.
func WithResolver(r Resolver) Option {
	return func(m *Machine) {
		m.resolver = r
	}
}

// NewMachine creates a command state machine.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{chain: graph.NewChainBuilder(nil)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle validates the enveloped command against the projection and returns
// the events it produces. Events are constructed in causal order under one
// correlation identifier: the first inherits the envelope's causation, each
// subsequent event's causation is the preceding event's EID.
func (m *Machine) Handle(ctx context.Context, env *Envelope, p *projection.Projection) ([]*graph.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := env.Command
	if cmd == nil {
		return nil, fmt.Errorf("%w: nil command", graph.ErrTypeMismatch)
	}
	if cmd.AggregateID() != p.AggregateID() {
		return nil, fmt.Errorf("%w: command targets %s, projection is %s",
			graph.ErrTypeMismatch, cmd.AggregateID(), p.AggregateID())
	}

	payloads, err := m.decide(cmd, p)
	if err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: command produced no facts", graph.ErrTypeMismatch)
	}

	events, err := m.build(env, p, payloads)
	if err != nil {
		return nil, err
	}

	// Rule 3: simulate application against a snapshot of the projection
	// and check the variant invariants on the post state.
	simulated, err := simulate(p, events)
	if err != nil {
		return nil, err
	}
	if err := checkInvariants(simulated); err != nil {
		return nil, err
	}
	return events, nil
}

// decide dispatches to the variant handler. Lifecycle gates come first:
// only InitializeGraph may touch an empty projection, and archived
// aggregates reject everything.
func (m *Machine) decide(cmd Command, p *projection.Projection) ([]graph.Payload, error) {
	if init, ok := cmd.(InitializeGraph); ok {
		if p.Initialized() {
			return nil, fmt.Errorf("%w: aggregate %s already initialized",
				graph.ErrDuplicateIdentifier, init.Aggregate)
		}
		if !init.Variant.Valid() {
			return nil, fmt.Errorf("%w: variant %q", graph.ErrTypeMismatch, init.Variant)
		}
		return []graph.Payload{&graph.GraphInitialized{
			Variant:     init.Variant,
			Constraints: init.Constraints,
		}}, nil
	}
	if !p.Initialized() {
		return nil, fmt.Errorf("%w: %s", graph.ErrUnknownAggregate, cmd.AggregateID())
	}
	if p.Archived() {
		return nil, fmt.Errorf("%w: %s", graph.ErrArchived, cmd.AggregateID())
	}
	if archive, ok := cmd.(ArchiveGraph); ok {
		return []graph.Payload{&graph.GraphArchived{Reason: archive.Reason}}, nil
	}

	switch p.Variant() {
	case graph.VariantIpld:
		return decideIpld(cmd, p)
	case graph.VariantContext:
		return decideContext(cmd, p)
	case graph.VariantWorkflow:
		return decideWorkflow(cmd, p)
	case graph.VariantConcept:
		return decideConcept(cmd, p)
	case graph.VariantComposed:
		return m.decideComposed(cmd, p)
	case graph.VariantGeneric:
		return decideGeneric(cmd, p)
	default:
		return nil, fmt.Errorf("%w: variant %q", graph.ErrTypeMismatch, p.Variant())
	}
}

// build threads the payloads into chained events: shared correlation,
// causal-order causation, previous CID walking from the projection head.
func (m *Machine) build(env *Envelope, p *projection.Projection, payloads []graph.Payload) ([]*graph.Event, error) {
	correlation := env.Metadata.CorrelationID
	if correlation == "" {
		correlation = idgen.NewCorrelationID()
	}
	causation := env.Metadata.CausationID
	previous := p.HeadCID()
	variant := p.Variant()
	if init, ok := env.Command.(InitializeGraph); ok {
		variant = init.Variant
	}

	events := make([]*graph.Event, 0, len(payloads))
	for i, payload := range payloads {
		var eid string
		if env.Metadata.CommandID != "" {
			eid = idgen.DeterministicEventID(env.Metadata.CommandID, p.AggregateID(), i)
		} else {
			eid = idgen.NewEventID()
		}
		event, err := m.chain.Link(eid, p.AggregateID(), variant, correlation, causation, payload, previous)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
		causation = event.ID
		previous = event.CID
	}
	return events, nil
}

// simulate applies the proposed events to a snapshot of the projection.
func simulate(p *projection.Projection, events []*graph.Event) (*projection.Projection, error) {
	current := p
	for i, e := range events {
		next, err := current.Apply(&graph.Envelope{Event: *e, Sequence: p.Version() + uint64(i) + 1})
		if err != nil {
			return nil, fmt.Errorf("simulate event %d: %w", i, err)
		}
		current = next
	}
	return current, nil
}

// entityExists reports whether id names a member of the projection, using
// the variant's notion of an entity.
func entityExists(p *projection.Projection, id string) bool {
	switch p.Variant() {
	case graph.VariantIpld:
		return p.Ipld().HasCid(id)
	case graph.VariantContext:
		return p.Context().HasMember(id)
	case graph.VariantWorkflow:
		if p.Workflow().HasState(id) {
			return true
		}
		_, ok := p.Workflow().Instance(id)
		return ok
	case graph.VariantConcept:
		return p.Concept().HasConcept(id)
	case graph.VariantGeneric:
		return p.Generic().HasNode(id)
	default:
		return false
	}
}
