// Package projection folds ordered event streams into read-only per-variant
// views. Folds are pure: applying an event produces a new projection value
// and the old value remains valid for any reader holding it.
package projection

import (
	"fmt"

	"github.com/plaenen/graphstore/pkg/graph"
)

// variantState is the indexed structure behind one projection variant.
// Implementations are never mutated in place by Apply; they are cloned first.
type variantState interface {
	// clone returns a deep copy safe for independent mutation.
	clone() variantState

	// apply folds one validated payload into the state.
	apply(p graph.Payload) error
}

// Projection is a read-only view of a single aggregate, produced by folding
// its event stream. Version equals the count of events folded.
type Projection struct {
	aggregateID string
	variant     graph.Variant
	version     uint64
	headCID     string
	archived    bool
	constraints graph.Constraints
	state       variantState
}

// Empty returns the projection of an aggregate with no events folded.
func Empty(aggregateID string, variant graph.Variant) *Projection {
	return &Projection{
		aggregateID: aggregateID,
		variant:     variant,
		state:       newState(variant),
	}
}

func newState(variant graph.Variant) variantState {
	switch variant {
	case graph.VariantIpld:
		return newIpldState()
	case graph.VariantContext:
		return newContextState()
	case graph.VariantWorkflow:
		return newWorkflowState()
	case graph.VariantConcept:
		return newConceptState()
	case graph.VariantComposed:
		return newComposedState()
	default:
		return newGenericState()
	}
}

// AggregateID returns the aggregate this projection views.
func (p *Projection) AggregateID() string { return p.aggregateID }

// Variant returns the graph flavor.
func (p *Projection) Variant() graph.Variant { return p.variant }

// Version returns the number of events folded.
func (p *Projection) Version() uint64 { return p.version }

// HeadCID returns the content address of the latest folded event. Empty for
// an empty projection.
func (p *Projection) HeadCID() string { return p.headCID }

// Archived reports whether the aggregate has been archived.
func (p *Projection) Archived() bool { return p.archived }

// Constraints returns the structural bounds declared at initialization.
func (p *Projection) Constraints() graph.Constraints { return p.constraints }

// Initialized reports whether the initialization event has been folded.
func (p *Projection) Initialized() bool { return p.version > 0 }

// Apply folds one enveloped event and returns the resulting projection.
// The receiver is left untouched. Applying the event already at the head
// under the same sequence is a no-op (CID dedupe); any other sequence gap
// is ErrOutOfOrder, and a previous-CID mismatch is ErrStaleHead.
func (p *Projection) Apply(env *graph.Envelope) (*Projection, error) {
	e := &env.Event
	if e.AggregateID != p.aggregateID {
		return nil, fmt.Errorf("%w: event for aggregate %s applied to %s",
			graph.ErrTypeMismatch, e.AggregateID, p.aggregateID)
	}
	if env.Sequence == p.version && e.CID == p.headCID && p.version > 0 {
		return p, nil
	}
	if env.Sequence != p.version+1 {
		return nil, fmt.Errorf("%w: sequence %d, next is %d",
			graph.ErrOutOfOrder, env.Sequence, p.version+1)
	}
	if e.PreviousCID != p.headCID {
		return nil, fmt.Errorf("%w: event previous %q, projection head %q",
			graph.ErrStaleHead, e.PreviousCID, p.headCID)
	}

	next := &Projection{
		aggregateID: p.aggregateID,
		variant:     p.variant,
		version:     p.version + 1,
		headCID:     e.CID,
		archived:    p.archived,
		constraints: p.constraints,
	}

	switch payload := e.Payload.(type) {
	case *graph.GraphInitialized:
		if p.version != 0 {
			return nil, fmt.Errorf("%w: initialization at version %d", graph.ErrOutOfOrder, p.version)
		}
		if p.variant != "" && p.variant != payload.Variant {
			return nil, fmt.Errorf("%w: projection is %s, event initializes %s",
				graph.ErrTypeMismatch, p.variant, payload.Variant)
		}
		next.variant = payload.Variant
		next.constraints = payload.Constraints
		next.state = newState(payload.Variant)
	case *graph.GraphArchived:
		next.archived = true
		next.state = p.state.clone()
	case *graph.SnapshotTaken:
		// Snapshot markers advance the chain but carry no structural change.
		next.state = p.state.clone()
	default:
		st := p.state.clone()
		if err := st.apply(e.Payload); err != nil {
			return nil, err
		}
		next.state = st
	}
	return next, nil
}

// Replay folds an ordered event stream from empty. Equivalent to repeated
// Apply starting from Empty.
func Replay(aggregateID string, envs []*graph.Envelope) (*Projection, error) {
	variant := graph.Variant("")
	if len(envs) > 0 {
		variant = envs[0].Event.Variant
	}
	p := Empty(aggregateID, variant)
	for _, env := range envs {
		next, err := p.Apply(env)
		if err != nil {
			return nil, fmt.Errorf("replay at sequence %d: %w", env.Sequence, err)
		}
		p = next
	}
	return p, nil
}

// Ipld returns the IPLD state, or nil when the variant differs.
func (p *Projection) Ipld() *IpldState {
	s, _ := p.state.(*IpldState)
	return s
}

// Context returns the context state, or nil when the variant differs.
func (p *Projection) Context() *ContextState {
	s, _ := p.state.(*ContextState)
	return s
}

// Workflow returns the workflow state, or nil when the variant differs.
func (p *Projection) Workflow() *WorkflowState {
	s, _ := p.state.(*WorkflowState)
	return s
}

// Concept returns the concept state, or nil when the variant differs.
func (p *Projection) Concept() *ConceptState {
	s, _ := p.state.(*ConceptState)
	return s
}

// Composed returns the composed state, or nil when the variant differs.
func (p *Projection) Composed() *ComposedState {
	s, _ := p.state.(*ComposedState)
	return s
}

// Generic returns the generic state, or nil when the variant differs.
func (p *Projection) Generic() *GenericState {
	s, _ := p.state.(*GenericState)
	return s
}

// View returns the structural graph view of the projection, or nil when the
// variant has no standalone structure (composed projections compose the
// views of their subgraphs instead).
func (p *Projection) View() View {
	if v, ok := p.state.(View); ok {
		return v
	}
	return nil
}
