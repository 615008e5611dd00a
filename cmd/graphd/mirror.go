package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plaenen/graphstore/pkg/engine"
	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/store"
	"github.com/plaenen/graphstore/pkg/store/sqlite"
)

const mirrorConsumer = "event-mirror"

// mirrorService keeps the local SQLite event log in sync with the
// transport: every aggregate already present in the log is tailed from its
// checkpoint, so replay and verify work offline.
type mirrorService struct {
	engine *engine.Engine
	db     *sqlite.Store
	logger *slog.Logger
	cancel context.CancelFunc
}

func newMirrorService(eng *engine.Engine, db *sqlite.Store, logger *slog.Logger) *mirrorService {
	return &mirrorService{engine: eng, db: db, logger: logger}
}

func (s *mirrorService) Name() string { return mirrorConsumer }

func (s *mirrorService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	aggregates, err := s.db.Aggregates(ctx)
	if err != nil {
		return fmt.Errorf("list mirrored aggregates: %w", err)
	}
	for _, aid := range aggregates {
		if err := s.tail(runCtx, aid); err != nil {
			s.logger.Warn("mirror tail failed",
				"aggregate_id", shortAID(aid), "error", err)
		}
	}
	return nil
}

// tail resumes mirroring one aggregate from its checkpoint.
func (s *mirrorService) tail(ctx context.Context, aid string) error {
	cp, err := s.db.LoadCheckpoint(ctx, mirrorConsumer, aid)
	if err != nil {
		return err
	}
	var from uint64
	if cp != nil {
		from = cp.Sequence
	}
	_, err = s.engine.Subscribe(ctx, aid, from, func(env *graph.Envelope) error {
		data, err := graph.Marshal(&env.Event)
		if err != nil {
			return err
		}
		if err := s.db.Append(ctx, &store.EventRecord{
			AggregateID: aid,
			Sequence:    env.Sequence,
			CID:         env.Event.CID,
			Data:        data,
			Timestamp:   env.Timestamp,
		}); err != nil {
			return err
		}
		return s.db.SaveCheckpoint(ctx, &store.Checkpoint{
			Consumer:    mirrorConsumer,
			AggregateID: aid,
			Sequence:    env.Sequence,
			UpdatedAt:   time.Now(),
		})
	})
	return err
}

func (s *mirrorService) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
