// Package store defines the persistence interfaces behind the engine: the
// append-only event log keyed by (aggregate, sequence), an optional content
// store keyed by CID, snapshot persistence, and subscription checkpoints.
package store

import (
	"context"
	"time"
)

// EventRecord is one persisted event: the serialized record plus the
// ordering and dedupe headers.
type EventRecord struct {
	AggregateID string
	Sequence    uint64
	CID         string
	Data        []byte
	Timestamp   time.Time
}

// EventLog persists per-aggregate ordered event streams.
type EventLog interface {
	// Append stores one event at the next sequence. Appending an event
	// whose CID already exists at its sequence is a no-op (dedupe);
	// appending at any other occupied or non-contiguous sequence fails.
	Append(ctx context.Context, rec *EventRecord) error

	// Load returns an aggregate's events after fromSequence, in order.
	Load(ctx context.Context, aggregateID string, fromSequence uint64) ([]*EventRecord, error)

	// LatestSequence returns the highest stored sequence for an
	// aggregate, 0 when none.
	LatestSequence(ctx context.Context, aggregateID string) (uint64, error)

	// Aggregates lists every aggregate with at least one event.
	Aggregates(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}

// ContentStore maps CIDs to canonical payload bytes for independent
// content fetch.
type ContentStore interface {
	Put(ctx context.Context, cid string, data []byte) error
	Get(ctx context.Context, cid string) ([]byte, error)
}

// SnapshotRecord is one persisted projection snapshot summarizing the
// stream prefix up to Version.
type SnapshotRecord struct {
	AggregateID string
	Version     uint64
	HeadCID     string
	Data        []byte
	CreatedAt   time.Time
}

// SnapshotStore persists projection snapshots.
type SnapshotStore interface {
	// SaveSnapshot persists a snapshot, replacing any older one at a
	// lower version.
	SaveSnapshot(ctx context.Context, snap *SnapshotRecord) error

	// LatestSnapshot returns the most recent snapshot for an aggregate.
	// Returns graph.ErrSnapshotNotFound when none exists.
	LatestSnapshot(ctx context.Context, aggregateID string) (*SnapshotRecord, error)

	// DeleteSnapshots removes all snapshots for an aggregate.
	DeleteSnapshots(ctx context.Context, aggregateID string) error
}

// Checkpoint records how far a named consumer has processed an aggregate's
// stream, so catch-up subscriptions resume instead of restarting.
type Checkpoint struct {
	Consumer    string
	AggregateID string
	Sequence    uint64
	UpdatedAt   time.Time
}

// CheckpointStore persists consumer positions.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error
	LoadCheckpoint(ctx context.Context, consumer, aggregateID string) (*Checkpoint, error)
	DeleteCheckpoint(ctx context.Context, consumer, aggregateID string) error
}

// SnapshotStrategy decides when a snapshot is worth taking.
type SnapshotStrategy interface {
	ShouldSnapshot(currentVersion, eventsSinceLastSnapshot uint64) bool
}

// IntervalSnapshotStrategy snapshots every N events.
type IntervalSnapshotStrategy struct {
	Interval uint64
}

// NewIntervalSnapshotStrategy creates a strategy that snapshots every
// interval events.
func NewIntervalSnapshotStrategy(interval uint64) *IntervalSnapshotStrategy {
	return &IntervalSnapshotStrategy{Interval: interval}
}

// ShouldSnapshot checks whether the interval threshold has passed.
func (s *IntervalSnapshotStrategy) ShouldSnapshot(currentVersion, eventsSinceLastSnapshot uint64) bool {
	if s.Interval == 0 {
		return false
	}
	return eventsSinceLastSnapshot >= s.Interval
}
