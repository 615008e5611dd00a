package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/idgen"
	"github.com/plaenen/graphstore/pkg/projection"
	"github.com/plaenen/graphstore/pkg/store"
)

// Snapshot serializes the aggregate's current projection, persists it, and
// records a SnapshotTaken event in the aggregate's chain referencing the
// prefix it summarizes. Returns the version and the serialized projection.
func (e *Engine) Snapshot(ctx context.Context, aid string) (uint64, []byte, error) {
	p, err := e.Projection(ctx, aid)
	if err != nil {
		return 0, nil, err
	}
	snap, err := p.Snapshot()
	if err != nil {
		return 0, nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotCID := graph.DefaultCID(data)
	if e.contents != nil {
		if err := e.contents.Put(ctx, snapshotCID, data); err != nil {
			return 0, nil, err
		}
	}
	if e.snapshots != nil {
		if err := e.snapshots.SaveSnapshot(ctx, &store.SnapshotRecord{
			AggregateID: aid,
			Version:     p.Version(),
			HeadCID:     p.HeadCID(),
			Data:        data,
			CreatedAt:   time.Now(),
		}); err != nil {
			return 0, nil, err
		}
	}

	// The marker event is engine-built: it carries no domain fact and
	// does not pass through command validation.
	marker, err := e.chain.Link(
		idgen.NewEventID(),
		aid,
		p.Variant(),
		idgen.NewCorrelationID(),
		"",
		&graph.SnapshotTaken{Version: p.Version(), SnapshotCID: snapshotCID},
		p.HeadCID(),
	)
	if err != nil {
		return 0, nil, err
	}
	if err := e.publish(ctx, aid, []*graph.Event{marker}); err != nil {
		return 0, nil, err
	}
	if e.metrics != nil {
		e.metrics.SnapshotsTaken.Add(ctx, 1)
	}
	return p.Version(), data, nil
}

// Restore seeds an aggregate's projection from a serialized snapshot and
// folds the remaining tail of events on top. Equivalent to a full replay
// of the prefix the snapshot represents plus the tail.
func (e *Engine) Restore(ctx context.Context, aid string, data []byte) error {
	snap, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	if snap.AggregateID != aid {
		return fmt.Errorf("%w: snapshot is for %s", graph.ErrTypeMismatch, snap.AggregateID)
	}
	p, err := projection.FromSnapshot(snap)
	if err != nil {
		return err
	}
	e.cache.Invalidate(aid)
	e.cache.Put(p)
	if _, err := e.Projection(ctx, aid); err != nil {
		e.cache.Invalidate(aid)
		return err
	}
	if e.metrics != nil {
		e.metrics.SnapshotsRestored.Add(ctx, 1)
	}
	return nil
}

// maybeSnapshot applies the configured snapshot strategy after a publish.
func (e *Engine) maybeSnapshot(ctx context.Context, p *projection.Projection) {
	if e.strategy == nil || e.snapshots == nil {
		return
	}
	var since uint64 = p.Version()
	if rec, err := e.snapshots.LatestSnapshot(ctx, p.AggregateID()); err == nil && rec != nil {
		since = p.Version() - rec.Version
	}
	if !e.strategy.ShouldSnapshot(p.Version(), since) {
		return
	}
	snap, err := p.Snapshot()
	if err != nil {
		e.logger.Warn("snapshot failed", "aggregate_id", p.AggregateID(), "error", err)
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		e.logger.Warn("snapshot marshal failed", "aggregate_id", p.AggregateID(), "error", err)
		return
	}
	if err := e.snapshots.SaveSnapshot(ctx, &store.SnapshotRecord{
		AggregateID: p.AggregateID(),
		Version:     p.Version(),
		HeadCID:     p.HeadCID(),
		Data:        data,
		CreatedAt:   time.Now(),
	}); err != nil {
		e.logger.Warn("snapshot save failed", "aggregate_id", p.AggregateID(), "error", err)
		return
	}
	if e.metrics != nil {
		e.metrics.SnapshotsTaken.Add(ctx, 1)
	}
}

func decodeSnapshot(data []byte) (*projection.SnapshotData, error) {
	var snap projection.SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
