package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/graphstore/pkg/command"
	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/query"
	"github.com/plaenen/graphstore/pkg/store/sqlite"
	"github.com/plaenen/graphstore/pkg/transport"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	bus, srv, err := transport.NewEmbeddedBus(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		bus.Close()
		srv.Shutdown()
	})
	return New(bus, opts...)
}

func TestEngine_IpldEndToEnd(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	aid, err := e.Initialize(ctx, graph.VariantIpld, graph.Constraints{})
	require.NoError(t, err)
	require.NotEmpty(t, aid)

	for _, cmd := range []command.Command{
		command.AddCid{Aggregate: aid, Cid: "Qm1"},
		command.AddCid{Aggregate: aid, Cid: "Qm2"},
		command.LinkCids{Aggregate: aid, From: "Qm1", Name: "child", To: "Qm2"},
	} {
		corr, err := e.Submit(ctx, cmd, command.Metadata{})
		require.NoError(t, err)
		assert.NotEmpty(t, corr)
	}

	p, err := e.Projection(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), p.Version())

	state := p.Ipld()
	assert.Len(t, state.NodeIDs(), 2)
	resolved, err := state.ResolvePath("Qm1/child")
	require.NoError(t, err)
	assert.Equal(t, "Qm2", resolved)

	require.NoError(t, e.VerifyChain(ctx, aid))
}

func TestEngine_RejectionLeavesProjectionUntouched(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	aid, err := e.Initialize(ctx, graph.VariantIpld, graph.Constraints{})
	require.NoError(t, err)
	_, err = e.Submit(ctx, command.AddCid{Aggregate: aid, Cid: "Qm1"}, command.Metadata{})
	require.NoError(t, err)
	_, err = e.Submit(ctx, command.AddCid{Aggregate: aid, Cid: "Qm2"}, command.Metadata{})
	require.NoError(t, err)
	_, err = e.Submit(ctx, command.LinkCids{Aggregate: aid, From: "Qm1", Name: "child", To: "Qm2"}, command.Metadata{})
	require.NoError(t, err)

	_, err = e.Submit(ctx, command.LinkCids{Aggregate: aid, From: "Qm2", Name: "back", To: "Qm1"}, command.Metadata{})
	require.ErrorIs(t, err, graph.ErrInvariantViolation)

	p, err := e.Projection(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), p.Version(), "a rejected command emits nothing")

	// Replay from the transport agrees with the incrementally built view.
	replayed, err := e.Replay(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, p.Version(), replayed.Version())
	assert.Equal(t, p.HeadCID(), replayed.HeadCID())
}

func TestEngine_UnknownAggregate(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Projection(context.Background(), "ghost")
	assert.ErrorIs(t, err, graph.ErrUnknownAggregate)
}

func TestEngine_WorkflowScenario(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	aid, err := e.Initialize(ctx, graph.VariantWorkflow, graph.Constraints{})
	require.NoError(t, err)

	for _, cmd := range []command.Command{
		command.DefineWorkflow{Aggregate: aid, Name: "w"},
		command.AddState{Aggregate: aid, Name: "draft", Kind: graph.StateInitial},
		command.AddState{Aggregate: aid, Name: "review", Kind: graph.StateNormal},
		command.AddState{Aggregate: aid, Name: "published", Kind: graph.StateNormal},
		command.AddTransition{Aggregate: aid, From: "draft", To: "review", Event: "submit"},
		command.AddTransition{Aggregate: aid, From: "review", To: "published", Event: "approve"},
		command.PublishWorkflow{Aggregate: aid},
		command.StartInstance{Aggregate: aid, Instance: "i-1"},
		command.TriggerEvent{Aggregate: aid, Instance: "i-1", Event: "submit"},
		command.TriggerEvent{Aggregate: aid, Instance: "i-1", Event: "approve"},
	} {
		_, err := e.Submit(ctx, cmd, command.Metadata{})
		require.NoError(t, err)
	}

	p, err := e.Projection(ctx, aid)
	require.NoError(t, err)
	inst, ok := p.Workflow().Instance("i-1")
	require.True(t, ok)
	assert.Equal(t, "published", inst.Current)
	assert.Len(t, inst.History, 2)
}

func TestEngine_SnapshotRestore(t *testing.T) {
	db, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := newTestEngine(t, WithSnapshotStore(db), WithContentStore(db))
	ctx := context.Background()

	aid, err := e.Initialize(ctx, graph.VariantGeneric, graph.Constraints{})
	require.NoError(t, err)
	_, err = e.Submit(ctx, command.AddNode{Aggregate: aid, ID: "a"}, command.Metadata{})
	require.NoError(t, err)
	_, err = e.Submit(ctx, command.AddNode{Aggregate: aid, ID: "b"}, command.Metadata{})
	require.NoError(t, err)

	version, data, err := e.Snapshot(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)
	require.NotEmpty(t, data)

	// The snapshot marker extends the chain.
	p, err := e.Projection(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), p.Version())

	// More events after the snapshot.
	_, err = e.Submit(ctx, command.AddEdge{Aggregate: aid, From: "a", To: "b"}, command.Metadata{})
	require.NoError(t, err)

	// Restore seeds from the snapshot and folds the tail.
	require.NoError(t, e.Restore(ctx, aid, data))
	restored, err := e.Projection(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), restored.Version())
	assert.True(t, restored.Generic().HasEdge("a", "b"))
}

func TestEngine_Subscribe(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aid, err := e.Initialize(ctx, graph.VariantGeneric, graph.Constraints{})
	require.NoError(t, err)

	received := make(chan *graph.Envelope, 8)
	sub, err := e.Subscribe(ctx, aid, 0, func(env *graph.Envelope) error {
		received <- env
		return nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	first := waitEnvelope(t, received)
	assert.Equal(t, uint64(1), first.Sequence)
	assert.IsType(t, &graph.GraphInitialized{}, first.Event.Payload)

	_, err = e.Submit(ctx, command.AddNode{Aggregate: aid, ID: "a"}, command.Metadata{})
	require.NoError(t, err)
	next := waitEnvelope(t, received)
	assert.Equal(t, uint64(2), next.Sequence)
	assert.IsType(t, &graph.NodeAdded{}, next.Event.Payload)
}

func TestEngine_DetectAndInvokePattern(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	aid, err := e.Initialize(ctx, graph.VariantGeneric, graph.Constraints{})
	require.NoError(t, err)

	corr, err := e.InvokePattern(ctx, aid, query.Pattern{Kind: query.PatternClique, K: 3}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, corr)

	matches, err := e.DetectPattern(ctx, aid, query.Pattern{Kind: query.PatternClique, K: 3}, query.DefaultBudget())
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestEngine_ArchivedStaysQueryable(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	aid, err := e.Initialize(ctx, graph.VariantGeneric, graph.Constraints{})
	require.NoError(t, err)
	_, err = e.Submit(ctx, command.AddNode{Aggregate: aid, ID: "a"}, command.Metadata{})
	require.NoError(t, err)
	_, err = e.Submit(ctx, command.ArchiveGraph{Aggregate: aid, Reason: "done"}, command.Metadata{})
	require.NoError(t, err)

	_, err = e.Submit(ctx, command.AddNode{Aggregate: aid, ID: "b"}, command.Metadata{})
	assert.ErrorIs(t, err, graph.ErrArchived)

	p, err := e.Projection(ctx, aid)
	require.NoError(t, err)
	assert.True(t, p.Archived())
	assert.True(t, p.Generic().HasNode("a"))
}

func waitEnvelope(t *testing.T, ch chan *graph.Envelope) *graph.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}
