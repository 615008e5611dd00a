// Package transport abstracts the ordered append-only event bus. The core
// treats the transport's per-aggregate sequence as the single ordering
// authority; timestamps live in message headers, never in events.
package transport

import (
	"context"
	"fmt"
	"time"
)

// Subject returns the transport subject for an aggregate's event stream.
// Subjects follow the hierarchy graph.<aid>.events.
func Subject(aggregateID string) string {
	return fmt.Sprintf("graph.%s.events", aggregateID)
}

// Headers carry the ordering metadata the transport assigns at publish
// time, plus the event's CID used as the message-dedupe key.
type Headers struct {
	// Sequence is the per-aggregate position, starting at 1.
	Sequence uint64

	// Timestamp is the transport's server timestamp.
	Timestamp time.Time

	// CID is the content address of the event payload.
	CID string
}

// Ack is the result of a durable append.
type Ack struct {
	Sequence  uint64
	Timestamp time.Time

	// Duplicate is true when the publish was deduplicated by CID.
	Duplicate bool
}

// Message is one delivered event with its headers.
type Message struct {
	Data    []byte
	Headers Headers
}

// Handler processes one delivered message. Returning an error nacks the
// message for redelivery.
type Handler func(msg *Message) error

// Subscription is an active event subscription.
type Subscription interface {
	// Unsubscribe stops delivery and releases resources.
	Unsubscribe() error
}

// Bus is the ordered append-only stream the core publishes to and replays
// from. Publish and the consuming operations honor context cancellation
// and deadlines; on cancellation they return without side effects.
type Bus interface {
	// Publish durably appends an event under the aggregate's subject.
	// expectedSequence is the publisher's view of the current length of
	// the substream; a mismatch means another writer won and the append
	// is refused with graph.ErrStaleHead. The cid doubles as the
	// message-dedupe key.
	Publish(ctx context.Context, aggregateID string, data []byte, cid string, expectedSequence uint64) (*Ack, error)

	// Subscribe delivers the aggregate's events from fromSequence
	// (exclusive; 0 = from the beginning) and then live.
	Subscribe(ctx context.Context, aggregateID string, fromSequence uint64, handler Handler) (Subscription, error)

	// Fetch returns the aggregate's persisted events from fromSequence
	// (exclusive) in order. Used for replay and catch-up.
	Fetch(ctx context.Context, aggregateID string, fromSequence uint64) ([]*Message, error)

	// Close releases transport resources.
	Close() error
}
