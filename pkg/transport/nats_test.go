package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/graphstore/pkg/graph"
)

func newTestBus(t *testing.T) *NatsBus {
	t.Helper()
	bus, srv, err := NewEmbeddedBus(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		bus.Close()
		srv.Shutdown()
	})
	return bus
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "graph.agg-1.events", Subject("agg-1"))
}

func TestPublishFetch_Ordering(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	for i, cid := range []string{"cid-1", "cid-2", "cid-3"} {
		ack, err := bus.Publish(ctx, "agg-1", []byte(cid), cid, uint64(i))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), ack.Sequence)
		assert.False(t, ack.Duplicate)
	}

	msgs, err := bus.Fetch(ctx, "agg-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, msg := range msgs {
		assert.Equal(t, uint64(i+1), msg.Headers.Sequence)
		assert.False(t, msg.Headers.Timestamp.IsZero())
	}
	assert.Equal(t, "cid-2", msgs[1].Headers.CID)

	tail, err := bus.Fetch(ctx, "agg-1", 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(3), tail[0].Headers.Sequence)
}

func TestPublish_StaleHead(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	_, err := bus.Publish(ctx, "agg-1", []byte("one"), "cid-1", 0)
	require.NoError(t, err)

	// A second writer with the same view loses the race.
	_, err = bus.Publish(ctx, "agg-1", []byte("two"), "cid-2", 0)
	assert.ErrorIs(t, err, graph.ErrStaleHead)

	msgs, err := bus.Fetch(ctx, "agg-1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "the losing append must not be stored")
}

func TestPublish_DedupeByCid(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	_, err := bus.Publish(ctx, "agg-1", []byte("one"), "cid-1", 0)
	require.NoError(t, err)

	// Redelivery with the same message ID is deduplicated server-side.
	ack, err := bus.Publish(ctx, "agg-1", []byte("one"), "cid-1", 0)
	require.NoError(t, err)
	assert.True(t, ack.Duplicate)

	msgs, err := bus.Fetch(ctx, "agg-1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestPublish_PerAggregateIsolation(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	_, err := bus.Publish(ctx, "agg-1", []byte("one"), "cid-1", 0)
	require.NoError(t, err)
	// Another aggregate's substream starts at its own zero.
	ack, err := bus.Publish(ctx, "agg-2", []byte("two"), "cid-2", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ack.Sequence)
}

func TestSubscribe_DeliversInOrder(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, cid := range []string{"cid-1", "cid-2"} {
		_, err := bus.Publish(ctx, "agg-1", []byte(cid), cid, uint64(i))
		require.NoError(t, err)
	}

	received := make(chan Headers, 8)
	sub, err := bus.Subscribe(ctx, "agg-1", 1, func(msg *Message) error {
		received <- msg.Headers
		return nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// fromSequence is exclusive: only the second event arrives, then live
	// events follow.
	first := waitHeaders(t, received)
	assert.Equal(t, uint64(2), first.Sequence)
	assert.Equal(t, "cid-2", first.CID)

	_, err = bus.Publish(ctx, "agg-1", []byte("cid-3"), "cid-3", 2)
	require.NoError(t, err)
	next := waitHeaders(t, received)
	assert.Equal(t, uint64(3), next.Sequence)
}

func TestPublish_Cancellation(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bus.Publish(ctx, "agg-1", []byte("one"), "cid-1", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func waitHeaders(t *testing.T, ch chan Headers) Headers {
	t.Helper()
	select {
	case h := <-ch:
		return h
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return Headers{}
	}
}
