// Package engine exposes the public surface of the graph store: initialize,
// submit, query, subscribe, snapshot and restore. It owns the wiring between
// the command state machine, the projection cache, the transport, and the
// persistence stores.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/plaenen/graphstore/pkg/command"
	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/idgen"
	"github.com/plaenen/graphstore/pkg/observability"
	"github.com/plaenen/graphstore/pkg/projection"
	"github.com/plaenen/graphstore/pkg/store"
	"github.com/plaenen/graphstore/pkg/transport"
)

// Engine is the unified graph store. One engine serves many aggregates;
// mutation of a single aggregate is serialized through the transport's
// per-aggregate ordering, and separate aggregates proceed concurrently.
type Engine struct {
	machine   *command.Machine
	bus       *command.Bus
	transport transport.Bus
	snapshots store.SnapshotStore
	contents  store.ContentStore
	strategy  store.SnapshotStrategy
	cache     *projection.Cache
	chain     *graph.ChainBuilder
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu         sync.Mutex
	inflight   map[string]int
	maxPending int
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnapshotStore enables snapshot persistence.
func WithSnapshotStore(s store.SnapshotStore) Option {
	return func(e *Engine) { e.snapshots = s }
}

// WithContentStore enables independent content fetch by CID.
func WithContentStore(s store.ContentStore) Option {
	return func(e *Engine) { e.contents = s }
}

// WithSnapshotStrategy sets when snapshots are taken automatically.
func WithSnapshotStrategy(s store.SnapshotStrategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics wires metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithMiddleware appends command middleware, outermost first.
func WithMiddleware(mws ...command.Middleware) Option {
	return func(e *Engine) {
		for _, mw := range mws {
			e.bus.Use(mw)
		}
	}
}

// WithMaxPending bounds in-flight submissions per aggregate before the
// engine answers Busy. Default 16.
func WithMaxPending(n int) Option {
	return func(e *Engine) { e.maxPending = n }
}

// New creates an engine over a transport bus.
func New(bus transport.Bus, opts ...Option) *Engine {
	e := &Engine{
		transport:  bus,
		cache:      projection.NewCache(),
		chain:      graph.NewChainBuilder(nil),
		logger:     slog.Default(),
		inflight:   make(map[string]int),
		maxPending: 16,
	}
	e.machine = command.NewMachine(command.WithResolver(func(aid string) (*projection.Projection, error) {
		return e.projectionLocked(context.Background(), aid)
	}))
	e.bus = command.NewBus()
	for _, opt := range opts {
		opt(e)
	}
	e.registerHandlers()
	return e
}

// registerHandlers routes every known command type to the state machine.
func (e *Engine) registerHandlers() {
	handler := command.HandlerFunc(func(ctx context.Context, env *command.Envelope) ([]*graph.Event, error) {
		p, err := e.projectionFor(ctx, env.Command)
		if err != nil {
			return nil, err
		}
		return e.machine.Handle(ctx, env, p)
	})
	for _, t := range []command.Command{
		command.InitializeGraph{}, command.ArchiveGraph{},
		command.AddCid{}, command.LinkCids{}, command.PinCid{}, command.UnpinCid{},
		command.DefineContext{}, command.AddAggregate{}, command.AddEntity{},
		command.AttachValueObject{}, command.AddRelationship{},
		command.DefineWorkflow{}, command.PublishWorkflow{}, command.AddState{},
		command.AddTransition{}, command.StartInstance{}, command.TriggerEvent{},
		command.FailInstance{}, command.RetryInstance{},
		command.DefineConcept{}, command.AddConcept{}, command.AttachProperties{},
		command.AddRelation{}, command.DefineRegion{}, command.AddToRegion{},
		command.RunInference{},
		command.AddSubgraph{}, command.CreateMapping{},
		command.AddNode{}, command.RemoveNode{}, command.AddEdge{},
		command.RemoveEdge{}, command.SetNodeProperty{},
	} {
		e.bus.Register(t.CommandType(), handler)
	}
}

// projectionFor loads the target projection for a command. Initialization
// commands start from empty.
func (e *Engine) projectionFor(ctx context.Context, cmd command.Command) (*projection.Projection, error) {
	if init, ok := cmd.(command.InitializeGraph); ok {
		if cached := e.cache.Get(init.Aggregate); cached != nil {
			return cached, nil
		}
		return projection.Empty(init.Aggregate, init.Variant), nil
	}
	return e.Projection(ctx, cmd.AggregateID())
}

// Initialize creates a new aggregate of the given variant and returns its
// AID.
func (e *Engine) Initialize(ctx context.Context, variant graph.Variant, constraints graph.Constraints) (string, error) {
	aid := idgen.NewAggregateID()
	_, err := e.Submit(ctx, command.InitializeGraph{
		Aggregate:   aid,
		Variant:     variant,
		Constraints: constraints,
	}, command.Metadata{})
	if err != nil {
		return "", err
	}
	return aid, nil
}

// Submit validates a command and durably publishes the events it produces.
// On success the correlation identifier shared by those events is returned;
// on rejection no event is published and no projection changes.
func (e *Engine) Submit(ctx context.Context, cmd command.Command, meta command.Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	aid := cmd.AggregateID()
	if err := e.acquire(aid); err != nil {
		return "", err
	}
	defer e.release(aid)

	start := time.Now()
	if meta.CorrelationID == "" {
		meta.CorrelationID = idgen.NewCorrelationID()
	}
	env := &command.Envelope{Command: cmd, Metadata: meta}

	events, err := e.bus.Send(ctx, env)
	if e.metrics != nil {
		e.metrics.CommandTotal.Add(ctx, 1)
		e.metrics.CommandDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.CommandRejected.Add(ctx, 1)
		}
		return "", err
	}

	if err := e.publish(ctx, aid, events); err != nil {
		return "", err
	}
	return meta.CorrelationID, nil
}

// publish appends the emitted batch to the transport, one chained append
// per event, then folds the batch into the cached projection.
func (e *Engine) publish(ctx context.Context, aid string, events []*graph.Event) error {
	p, err := e.projectionFor(ctx, initOrTarget(aid, events))
	if err != nil {
		return err
	}
	for _, event := range events {
		data, err := graph.Marshal(event)
		if err != nil {
			return err
		}
		publishStart := time.Now()
		ack, err := e.transport.Publish(ctx, aid, data, event.CID, p.Version())
		if e.metrics != nil {
			e.metrics.PublishLatency.Record(ctx, time.Since(publishStart).Seconds())
		}
		if err != nil {
			e.cache.Invalidate(aid)
			return err
		}
		if e.metrics != nil && !ack.Duplicate {
			e.metrics.EventsPublished.Add(ctx, 1)
		}
		if e.contents != nil {
			canonical, cErr := graph.CanonicalPayloadBytes(event.Payload)
			if cErr == nil {
				_ = e.contents.Put(ctx, event.CID, canonical)
			}
		}
		next, err := p.Apply(&graph.Envelope{Event: *event, Sequence: ack.Sequence, Timestamp: ack.Timestamp})
		if err != nil {
			e.cache.Invalidate(aid)
			return err
		}
		p = next
	}
	e.cache.Put(p)
	e.maybeSnapshot(ctx, p)
	return nil
}

// initOrTarget builds a command-shaped key for projectionFor: the first
// event of an initialization batch carries the variant.
func initOrTarget(aid string, events []*graph.Event) command.Command {
	if len(events) > 0 {
		if init, ok := events[0].Payload.(*graph.GraphInitialized); ok {
			return command.InitializeGraph{Aggregate: aid, Variant: init.Variant}
		}
	}
	return command.ArchiveGraph{Aggregate: aid}
}

// Projection returns the current projection of an aggregate, from cache
// when fresh, folding any transport tail on top, or replaying from a
// snapshot or from zero.
func (e *Engine) Projection(ctx context.Context, aid string) (*projection.Projection, error) {
	return e.projectionLocked(ctx, aid)
}

func (e *Engine) projectionLocked(ctx context.Context, aid string) (*projection.Projection, error) {
	p := e.cache.Get(aid)
	if p == nil {
		if e.metrics != nil {
			e.metrics.CacheMisses.Add(ctx, 1)
		}
		if restored := e.restoreFromSnapshotStore(ctx, aid); restored != nil {
			p = restored
		} else {
			p = projection.Empty(aid, "")
		}
	} else if e.metrics != nil {
		e.metrics.CacheHits.Add(ctx, 1)
	}

	msgs, err := e.transport.Fetch(ctx, aid, p.Version())
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 && p.Version() == 0 {
		return nil, fmt.Errorf("%w: %s", graph.ErrUnknownAggregate, aid)
	}
	for _, msg := range msgs {
		env, err := decode(msg)
		if err != nil {
			return nil, err
		}
		foldStart := time.Now()
		next, err := p.Apply(env)
		if e.metrics != nil {
			e.metrics.FoldDuration.Record(ctx, time.Since(foldStart).Seconds())
		}
		if err != nil {
			return nil, err
		}
		p = next
	}
	e.cache.Put(p)
	return p, nil
}

// restoreFromSnapshotStore loads the latest persisted snapshot, if any.
func (e *Engine) restoreFromSnapshotStore(ctx context.Context, aid string) *projection.Projection {
	if e.snapshots == nil {
		return nil
	}
	rec, err := e.snapshots.LatestSnapshot(ctx, aid)
	if err != nil || rec == nil {
		return nil
	}
	snap, err := decodeSnapshot(rec.Data)
	if err != nil {
		e.logger.Warn("discarding unreadable snapshot", "aggregate_id", aid, "error", err)
		return nil
	}
	p, err := projection.FromSnapshot(snap)
	if err != nil {
		e.logger.Warn("discarding unrestorable snapshot", "aggregate_id", aid, "error", err)
		return nil
	}
	if e.metrics != nil {
		e.metrics.SnapshotsRestored.Add(ctx, 1)
	}
	return p
}

// Subscribe fans out an aggregate's persisted events from fromSequence
// (exclusive).
func (e *Engine) Subscribe(ctx context.Context, aid string, fromSequence uint64, handler func(*graph.Envelope) error) (transport.Subscription, error) {
	return e.transport.Subscribe(ctx, aid, fromSequence, func(msg *transport.Message) error {
		env, err := decode(msg)
		if err != nil {
			return err
		}
		return handler(env)
	})
}

// Replay fetches the full stream of an aggregate and folds it from zero,
// bypassing the cache.
func (e *Engine) Replay(ctx context.Context, aid string) (*projection.Projection, error) {
	msgs, err := e.transport.Fetch(ctx, aid, 0)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: %s", graph.ErrUnknownAggregate, aid)
	}
	envs := make([]*graph.Envelope, 0, len(msgs))
	for _, msg := range msgs {
		env, err := decode(msg)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	if e.metrics != nil {
		e.metrics.ReplayTotal.Add(ctx, 1)
	}
	return projection.Replay(aid, envs)
}

// acquire counts an in-flight submission; past the pending bound the
// engine refuses with Busy rather than queueing.
func (e *Engine) acquire(aid string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[aid] >= e.maxPending {
		return fmt.Errorf("%w: %s has %d pending submissions", graph.ErrBusy, aid, e.inflight[aid])
	}
	e.inflight[aid]++
	return nil
}

func (e *Engine) release(aid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight[aid]--
	if e.inflight[aid] <= 0 {
		delete(e.inflight, aid)
	}
}

// decode turns a transport message into an event envelope.
func decode(msg *transport.Message) (*graph.Envelope, error) {
	event, err := graph.Unmarshal(msg.Data)
	if err != nil {
		return nil, err
	}
	return &graph.Envelope{
		Event:     *event,
		Sequence:  msg.Headers.Sequence,
		Timestamp: msg.Headers.Timestamp,
	}, nil
}
