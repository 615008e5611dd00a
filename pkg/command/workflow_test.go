package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

func publishedWorkflow(t *testing.T, m *Machine) *projection.Projection {
	t.Helper()
	p := initialized(t, m, "wf-1", graph.VariantWorkflow)
	p = run(t, m, p, DefineWorkflow{Aggregate: "wf-1", Name: "w"})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "draft", Kind: graph.StateInitial})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "review", Kind: graph.StateNormal})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "published", Kind: graph.StateNormal})
	p = run(t, m, p, AddTransition{Aggregate: "wf-1", From: "draft", To: "review", Event: "submit"})
	p = run(t, m, p, AddTransition{Aggregate: "wf-1", From: "review", To: "published", Event: "approve"})
	return run(t, m, p, PublishWorkflow{Aggregate: "wf-1"})
}

func TestWorkflow_FullTransitionRun(t *testing.T) {
	m := NewMachine()
	p := publishedWorkflow(t, m)
	p = run(t, m, p, StartInstance{Aggregate: "wf-1", Instance: "i-1"})
	p = run(t, m, p, TriggerEvent{Aggregate: "wf-1", Instance: "i-1", Event: "submit"})
	p = run(t, m, p, TriggerEvent{Aggregate: "wf-1", Instance: "i-1", Event: "approve"})

	inst, ok := p.Workflow().Instance("i-1")
	require.True(t, ok)
	assert.Equal(t, "published", inst.Current)
	assert.Len(t, inst.History, 2)
	assert.Equal(t, uint64(11), p.Version())
}

func TestWorkflow_TriggerWithoutTransition(t *testing.T) {
	m := NewMachine()
	p := publishedWorkflow(t, m)
	p = run(t, m, p, StartInstance{Aggregate: "wf-1", Instance: "i-1"})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: TriggerEvent{Aggregate: "wf-1", Instance: "i-1", Event: "approve"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrInvariantViolation)
}

func TestWorkflow_SecondInitialStateRejected(t *testing.T) {
	m := NewMachine()
	p := initialized(t, m, "wf-1", graph.VariantWorkflow)
	p = run(t, m, p, DefineWorkflow{Aggregate: "wf-1", Name: "w"})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "draft", Kind: graph.StateInitial})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: AddState{Aggregate: "wf-1", Name: "other", Kind: graph.StateInitial},
	}, p)
	assert.ErrorIs(t, err, graph.ErrInvalidStateMachine)
}

func TestWorkflow_AmbiguousTransitionRejected(t *testing.T) {
	m := NewMachine()
	p := initialized(t, m, "wf-1", graph.VariantWorkflow)
	p = run(t, m, p, DefineWorkflow{Aggregate: "wf-1", Name: "w"})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "draft", Kind: graph.StateInitial})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "a", Kind: graph.StateNormal})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "b", Kind: graph.StateNormal})
	p = run(t, m, p, AddTransition{Aggregate: "wf-1", From: "draft", To: "a", Event: "go"})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: AddTransition{Aggregate: "wf-1", From: "draft", To: "b", Event: "go"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrAmbiguousTransition)
}

func TestWorkflow_PublishRequiresReachability(t *testing.T) {
	m := NewMachine()
	p := initialized(t, m, "wf-1", graph.VariantWorkflow)
	p = run(t, m, p, DefineWorkflow{Aggregate: "wf-1", Name: "w"})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "draft", Kind: graph.StateInitial})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "orphan", Kind: graph.StateNormal})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: PublishWorkflow{Aggregate: "wf-1"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrInvalidStateMachine)
}

func TestWorkflow_StartRequiresPublished(t *testing.T) {
	m := NewMachine()
	p := initialized(t, m, "wf-1", graph.VariantWorkflow)
	p = run(t, m, p, DefineWorkflow{Aggregate: "wf-1", Name: "w"})
	p = run(t, m, p, AddState{Aggregate: "wf-1", Name: "draft", Kind: graph.StateInitial})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: StartInstance{Aggregate: "wf-1", Instance: "i-1"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrInvalidStateMachine)
}

func TestWorkflow_GuardedTransition(t *testing.T) {
	m := NewMachine()
	p := initialized(t, m, "wf-2", graph.VariantWorkflow)
	p = run(t, m, p, DefineWorkflow{Aggregate: "wf-2", Name: "guarded"})
	p = run(t, m, p, AddState{Aggregate: "wf-2", Name: "open", Kind: graph.StateInitial})
	p = run(t, m, p, AddState{Aggregate: "wf-2", Name: "closed", Kind: graph.StateNormal})
	p = run(t, m, p, AddTransition{Aggregate: "wf-2", From: "open", To: "closed", Event: "close", Guard: "approved=yes"})
	p = run(t, m, p, PublishWorkflow{Aggregate: "wf-2"})
	p = run(t, m, p, StartInstance{Aggregate: "wf-2", Instance: "i-1"})

	_, err := m.Handle(context.Background(), &Envelope{
		Command: TriggerEvent{Aggregate: "wf-2", Instance: "i-1", Event: "close", Context: map[string]string{"approved": "no"}},
	}, p)
	assert.ErrorIs(t, err, graph.ErrInvariantViolation)

	p = run(t, m, p, TriggerEvent{Aggregate: "wf-2", Instance: "i-1", Event: "close", Context: map[string]string{"approved": "yes"}})
	inst, _ := p.Workflow().Instance("i-1")
	assert.Equal(t, "closed", inst.Current)
}

func TestWorkflow_FinalStateCompletesInstance(t *testing.T) {
	m := NewMachine()
	p := initialized(t, m, "wf-3", graph.VariantWorkflow)
	p = run(t, m, p, DefineWorkflow{Aggregate: "wf-3", Name: "final"})
	p = run(t, m, p, AddState{Aggregate: "wf-3", Name: "start", Kind: graph.StateInitial})
	p = run(t, m, p, AddState{Aggregate: "wf-3", Name: "done", Kind: graph.StateFinal})
	p = run(t, m, p, AddTransition{Aggregate: "wf-3", From: "start", To: "done", Event: "finish"})
	p = run(t, m, p, PublishWorkflow{Aggregate: "wf-3"})
	p = run(t, m, p, StartInstance{Aggregate: "wf-3", Instance: "i-1"})

	events, err := m.Handle(context.Background(), &Envelope{
		Command: TriggerEvent{Aggregate: "wf-3", Instance: "i-1", Event: "finish"},
	}, p)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.IsType(t, &graph.StateTransitioned{}, events[0].Payload)
	assert.IsType(t, &graph.InstanceCompleted{}, events[1].Payload)

	p = apply(t, p, events)
	inst, _ := p.Workflow().Instance("i-1")
	assert.Equal(t, projection.InstanceCompleted, inst.Status)
}

func TestWorkflow_FailRetry(t *testing.T) {
	m := NewMachine()
	p := publishedWorkflow(t, m)
	p = run(t, m, p, StartInstance{Aggregate: "wf-1", Instance: "i-1"})
	p = run(t, m, p, FailInstance{Aggregate: "wf-1", Instance: "i-1", Reason: "boom"})

	inst, _ := p.Workflow().Instance("i-1")
	require.Equal(t, projection.InstanceFailed, inst.Status)

	// Only failed instances may retry.
	p = run(t, m, p, RetryInstance{Aggregate: "wf-1", Instance: "i-1"})
	inst, _ = p.Workflow().Instance("i-1")
	assert.Equal(t, projection.InstanceRunning, inst.Status)

	_, err := m.Handle(context.Background(), &Envelope{
		Command: RetryInstance{Aggregate: "wf-1", Instance: "i-1"},
	}, p)
	assert.ErrorIs(t, err, graph.ErrInvariantViolation)
}
