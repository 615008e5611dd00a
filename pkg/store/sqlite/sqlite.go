// Package sqlite implements the store interfaces on SQLite via the pure Go
// driver, giving ACID guarantees with no CGo dependency.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/store"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store implements store.EventLog, store.ContentStore, store.SnapshotStore
// and store.CheckpointStore on one SQLite database.
type Store struct {
	db *sql.DB
}

type config struct {
	dsn          string
	maxOpenConns int
	maxIdleConns int
	walMode      bool
}

func defaultConfig() config {
	return config{
		dsn:          "graphstore.db",
		maxOpenConns: 25,
		maxIdleConns: 5,
		walMode:      true,
	}
}

// Option configures a Store.
type Option func(*config)

// WithDSN sets the data source name (file path or ":memory:").
func WithDSN(dsn string) Option {
	return func(c *config) {
		c.dsn = dsn
	}
}

// WithMemoryDatabase uses an in-memory database, for tests.
func WithMemoryDatabase() Option {
	return func(c *config) {
		c.dsn = ":memory:"
	}
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

// WithWALMode toggles write-ahead logging. Not available for :memory:.
func WithWALMode(enabled bool) Option {
	return func(c *config) {
		c.walMode = enabled
	}
}

// New opens the database, applies the schema, and returns the store.
func New(opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// :memory: needs a single connection, otherwise every connection gets
	// its own empty database.
	if cfg.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.maxOpenConns)
		db.SetMaxIdleConns(cfg.maxIdleConns)
		if cfg.walMode {
			if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to enable WAL: %w", err)
			}
		}
	}
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append implements store.EventLog.
func (s *Store) Append(ctx context.Context, rec *store.EventRecord) error {
	latest, err := s.LatestSequence(ctx, rec.AggregateID)
	if err != nil {
		return err
	}
	if rec.Sequence <= latest {
		var existing string
		err := s.db.QueryRowContext(ctx,
			`SELECT cid FROM events WHERE aggregate_id = ? AND sequence = ?`,
			rec.AggregateID, rec.Sequence,
		).Scan(&existing)
		if err == nil && existing == rec.CID {
			return nil // Redelivery of a stored event.
		}
		return fmt.Errorf("%w: sequence %d already used", graph.ErrOutOfOrder, rec.Sequence)
	}
	if rec.Sequence != latest+1 {
		return fmt.Errorf("%w: sequence %d, next is %d", graph.ErrOutOfOrder, rec.Sequence, latest+1)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (aggregate_id, sequence, cid, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.AggregateID, rec.Sequence, rec.CID, rec.Data, rec.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Load implements store.EventLog.
func (s *Store) Load(ctx context.Context, aggregateID string, fromSequence uint64) ([]*store.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT aggregate_id, sequence, cid, data, created_at
		FROM events
		WHERE aggregate_id = ? AND sequence > ?
		ORDER BY sequence ASC
	`, aggregateID, fromSequence)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	var out []*store.EventRecord
	for rows.Next() {
		var rec store.EventRecord
		var createdAt int64
		if err := rows.Scan(&rec.AggregateID, &rec.Sequence, &rec.CID, &rec.Data, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Timestamp = time.UnixMilli(createdAt)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// LatestSequence implements store.EventLog.
func (s *Store) LatestSequence(ctx context.Context, aggregateID string) (uint64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM events WHERE aggregate_id = ?`, aggregateID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// Aggregates implements store.EventLog.
func (s *Store) Aggregates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT aggregate_id FROM events ORDER BY aggregate_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Put implements store.ContentStore.
func (s *Store) Put(ctx context.Context, cid string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contents (cid, data) VALUES (?, ?)
		ON CONFLICT(cid) DO NOTHING
	`, cid, data)
	if err != nil {
		return fmt.Errorf("failed to store content: %w", err)
	}
	return nil
}

// Get implements store.ContentStore.
func (s *Store) Get(ctx context.Context, cid string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM contents WHERE cid = ?`, cid,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: content %s", graph.ErrUnknownEntity, cid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return data, nil
}

// SaveSnapshot implements store.SnapshotStore.
func (s *Store) SaveSnapshot(ctx context.Context, snap *store.SnapshotRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (aggregate_id, version, head_cid, data, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(aggregate_id) DO UPDATE SET
			version = excluded.version,
			head_cid = excluded.head_cid,
			data = excluded.data,
			created_at = excluded.created_at
		WHERE excluded.version > snapshots.version
	`, snap.AggregateID, snap.Version, snap.HeadCID, snap.Data, snap.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot implements store.SnapshotStore.
func (s *Store) LatestSnapshot(ctx context.Context, aggregateID string) (*store.SnapshotRecord, error) {
	var snap store.SnapshotRecord
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT aggregate_id, version, head_cid, data, created_at
		FROM snapshots WHERE aggregate_id = ?
	`, aggregateID).Scan(&snap.AggregateID, &snap.Version, &snap.HeadCID, &snap.Data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, graph.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snap.CreatedAt = time.UnixMilli(createdAt)
	return &snap, nil
}

// DeleteSnapshots implements store.SnapshotStore.
func (s *Store) DeleteSnapshots(ctx context.Context, aggregateID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE aggregate_id = ?`, aggregateID)
	return err
}

// SaveCheckpoint implements store.CheckpointStore.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *store.Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (consumer, aggregate_id, sequence, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(consumer, aggregate_id) DO UPDATE SET
			sequence = excluded.sequence,
			updated_at = excluded.updated_at
	`, cp.Consumer, cp.AggregateID, cp.Sequence, cp.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements store.CheckpointStore.
func (s *Store) LoadCheckpoint(ctx context.Context, consumer, aggregateID string) (*store.Checkpoint, error) {
	var cp store.Checkpoint
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT consumer, aggregate_id, sequence, updated_at
		FROM checkpoints WHERE consumer = ? AND aggregate_id = ?
	`, consumer, aggregateID).Scan(&cp.Consumer, &cp.AggregateID, &cp.Sequence, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	cp.UpdatedAt = time.UnixMilli(updatedAt)
	return &cp, nil
}

// DeleteCheckpoint implements store.CheckpointStore.
func (s *Store) DeleteCheckpoint(ctx context.Context, consumer, aggregateID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE consumer = ? AND aggregate_id = ?`,
		consumer, aggregateID)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
