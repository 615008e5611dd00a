package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the graph engine.
type Metrics struct {
	// Command metrics
	CommandDuration metric.Float64Histogram
	CommandTotal    metric.Int64Counter
	CommandRejected metric.Int64Counter

	// Event metrics
	EventsPublished metric.Int64Counter
	PublishLatency  metric.Float64Histogram

	// Projection metrics
	FoldDuration    metric.Float64Histogram
	ReplayTotal     metric.Int64Counter
	CacheHits       metric.Int64Counter
	CacheMisses     metric.Int64Counter

	// Snapshot metrics
	SnapshotsTaken    metric.Int64Counter
	SnapshotsRestored metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CommandDuration, err = meter.Float64Histogram(
		"graphstore.command.duration",
		metric.WithDescription("Command handling duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.duration: %w", err)
	}

	m.CommandTotal, err = meter.Int64Counter(
		"graphstore.command.total",
		metric.WithDescription("Total commands handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.total: %w", err)
	}

	m.CommandRejected, err = meter.Int64Counter(
		"graphstore.command.rejected",
		metric.WithDescription("Total commands rejected"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.rejected: %w", err)
	}

	m.EventsPublished, err = meter.Int64Counter(
		"graphstore.events.published",
		metric.WithDescription("Total events published to the transport"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events.published: %w", err)
	}

	m.PublishLatency, err = meter.Float64Histogram(
		"graphstore.publish.latency",
		metric.WithDescription("Transport publish latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating publish.latency: %w", err)
	}

	m.FoldDuration, err = meter.Float64Histogram(
		"graphstore.projection.fold.duration",
		metric.WithDescription("Per-event fold duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating projection.fold.duration: %w", err)
	}

	m.ReplayTotal, err = meter.Int64Counter(
		"graphstore.projection.replay.total",
		metric.WithDescription("Total full replays performed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating projection.replay.total: %w", err)
	}

	m.CacheHits, err = meter.Int64Counter(
		"graphstore.projection.cache.hits",
		metric.WithDescription("Projection cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating projection.cache.hits: %w", err)
	}

	m.CacheMisses, err = meter.Int64Counter(
		"graphstore.projection.cache.misses",
		metric.WithDescription("Projection cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating projection.cache.misses: %w", err)
	}

	m.SnapshotsTaken, err = meter.Int64Counter(
		"graphstore.snapshots.taken",
		metric.WithDescription("Total snapshots persisted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating snapshots.taken: %w", err)
	}

	m.SnapshotsRestored, err = meter.Int64Counter(
		"graphstore.snapshots.restored",
		metric.WithDescription("Total snapshot restores"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating snapshots.restored: %w", err)
	}

	return m, nil
}
