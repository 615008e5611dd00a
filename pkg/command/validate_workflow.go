package command

import (
	"fmt"
	"strings"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
	"github.com/plaenen/graphstore/pkg/query"
)

func decideWorkflow(cmd Command, p *projection.Projection) ([]graph.Payload, error) {
	state := p.Workflow()
	switch c := cmd.(type) {
	case DefineWorkflow:
		if state.Name() != "" {
			return nil, fmt.Errorf("%w: workflow already defined as %q",
				graph.ErrDuplicateIdentifier, state.Name())
		}
		return []graph.Payload{&graph.WorkflowDefined{Name: c.Name}}, nil

	case AddState:
		if state.Published() {
			return nil, fmt.Errorf("%w: definition is published", graph.ErrInvalidStateMachine)
		}
		if state.HasState(c.Name) {
			return nil, fmt.Errorf("%w: state %s", graph.ErrDuplicateIdentifier, c.Name)
		}
		kind := c.Kind
		if kind == "" {
			kind = graph.StateNormal
			if state.InitialState() == "" {
				kind = graph.StateInitial
			}
		}
		if kind == graph.StateInitial && state.InitialState() != "" {
			return nil, fmt.Errorf("%w: initial state %s already defined",
				graph.ErrInvalidStateMachine, state.InitialState())
		}
		return []graph.Payload{&graph.StateAdded{Name: c.Name, Kind: kind}}, nil

	case AddTransition:
		if state.Published() {
			return nil, fmt.Errorf("%w: definition is published", graph.ErrInvalidStateMachine)
		}
		if !state.HasState(c.From) {
			return nil, fmt.Errorf("%w: state %s", graph.ErrUnknownEntity, c.From)
		}
		if !state.HasState(c.To) {
			return nil, fmt.Errorf("%w: state %s", graph.ErrUnknownEntity, c.To)
		}
		if _, exists := state.TransitionFor(c.From, c.Event); exists {
			return nil, fmt.Errorf("%w: (%s, %s)", graph.ErrAmbiguousTransition, c.From, c.Event)
		}
		return []graph.Payload{&graph.TransitionAdded{
			From:  c.From,
			To:    c.To,
			Event: c.Event,
			Guard: c.Guard,
		}}, nil

	case PublishWorkflow:
		if state.Published() {
			return nil, fmt.Errorf("%w: already published", graph.ErrDuplicateIdentifier)
		}
		if err := validDefinition(state); err != nil {
			return nil, err
		}
		return []graph.Payload{&graph.WorkflowPublished{}}, nil

	case StartInstance:
		if !state.Published() {
			return nil, fmt.Errorf("%w: definition not published", graph.ErrInvalidStateMachine)
		}
		if _, exists := state.Instance(c.Instance); exists {
			return nil, fmt.Errorf("%w: instance %s", graph.ErrDuplicateIdentifier, c.Instance)
		}
		return []graph.Payload{&graph.InstanceStarted{
			Instance: c.Instance,
			State:    state.InitialState(),
		}}, nil

	case TriggerEvent:
		inst, ok := state.Instance(c.Instance)
		if !ok {
			return nil, fmt.Errorf("%w: instance %s", graph.ErrUnknownEntity, c.Instance)
		}
		if inst.Status != projection.InstanceRunning {
			return nil, graph.NewInvariantError("InstanceRunning",
				fmt.Sprintf("instance %s is %s", c.Instance, inst.Status))
		}
		t, ok := state.TransitionFor(inst.Current, c.Event)
		if !ok {
			return nil, graph.NewInvariantError("TransitionDefined",
				fmt.Sprintf("no transition for event %q from state %q", c.Event, inst.Current))
		}
		if !evalGuard(t.Guard, c.Context) {
			return nil, graph.NewInvariantError("GuardSatisfied",
				fmt.Sprintf("guard %q rejected event %q", t.Guard, c.Event))
		}
		payloads := []graph.Payload{&graph.StateTransitioned{
			Instance: c.Instance,
			Event:    c.Event,
			From:     inst.Current,
			To:       t.To,
		}}
		if kind, _ := state.StateKind(t.To); kind == graph.StateFinal {
			payloads = append(payloads, &graph.InstanceCompleted{Instance: c.Instance})
		}
		return payloads, nil

	case FailInstance:
		inst, ok := state.Instance(c.Instance)
		if !ok {
			return nil, fmt.Errorf("%w: instance %s", graph.ErrUnknownEntity, c.Instance)
		}
		if inst.Status != projection.InstanceRunning {
			return nil, graph.NewInvariantError("InstanceRunning",
				fmt.Sprintf("instance %s is %s", c.Instance, inst.Status))
		}
		return []graph.Payload{&graph.InstanceFailed{Instance: c.Instance, Reason: c.Reason}}, nil

	case RetryInstance:
		inst, ok := state.Instance(c.Instance)
		if !ok {
			return nil, fmt.Errorf("%w: instance %s", graph.ErrUnknownEntity, c.Instance)
		}
		if inst.Status != projection.InstanceFailed {
			return nil, graph.NewInvariantError("InstanceFailed",
				fmt.Sprintf("instance %s is %s, only failed instances retry", c.Instance, inst.Status))
		}
		return []graph.Payload{&graph.InstanceResumed{Instance: c.Instance, State: inst.Current}}, nil

	default:
		return nil, fmt.Errorf("%w: %s on workflow aggregate", graph.ErrTypeMismatch, cmd.CommandType())
	}
}

// validDefinition checks the machine shape before publication: exactly one
// initial state, and every state reachable from it.
func validDefinition(state *projection.WorkflowState) error {
	initial := state.InitialState()
	if initial == "" {
		return fmt.Errorf("%w: no initial state", graph.ErrInvalidStateMachine)
	}
	reached := query.BFS(state, initial, nil)
	if len(reached) != len(state.NodeIDs()) {
		return fmt.Errorf("%w: %d of %d states unreachable from %s",
			graph.ErrInvalidStateMachine, len(state.NodeIDs())-len(reached), len(state.NodeIDs()), initial)
	}
	return nil
}

// evalGuard evaluates a guard expression against the trigger context.
// Supported forms: "" (always true), "key" (present and non-empty),
// "!key" (absent or empty), "key=value" (exact match).
func evalGuard(guard string, ctx map[string]string) bool {
	guard = strings.TrimSpace(guard)
	if guard == "" {
		return true
	}
	if strings.HasPrefix(guard, "!") {
		return ctx[strings.TrimPrefix(guard, "!")] == ""
	}
	if key, value, found := strings.Cut(guard, "="); found {
		return ctx[key] == value
	}
	return ctx[guard] != ""
}

// checkWorkflowInvariants verifies the post state: at most one initial
// state. The transition table keys on (from, event), so ambiguity cannot
// survive a fold and is not re-checked here.
func checkWorkflowInvariants(p *projection.Projection) error {
	state := p.Workflow()
	initials := 0
	for _, name := range state.NodeIDs() {
		if kind, _ := state.StateKind(name); kind == graph.StateInitial {
			initials++
		}
	}
	if initials > 1 {
		return fmt.Errorf("%w: %d initial states", graph.ErrInvalidStateMachine, initials)
	}
	return nil
}
