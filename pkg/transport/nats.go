package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/plaenen/graphstore/pkg/graph"
)

// NatsBus is a NATS JetStream implementation of Bus. One stream holds every
// aggregate's substream; per-aggregate ordering comes from subject-scoped
// optimistic appends, and redeliveries are deduplicated by CID message ID.
type NatsBus struct {
	nc           *nats.Conn
	js           nats.JetStreamContext
	streamName   string
	fetchTimeout time.Duration
	mu           sync.Mutex
	subs         []*nats.Subscription
}

// Config holds configuration for the NATS bus.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the JetStream stream holding graph events.
	StreamName string

	// MaxAge is how long to retain events. Zero keeps them forever;
	// event streams are the source of truth and default to unlimited.
	MaxAge time.Duration

	// MaxBytes bounds stream storage. Zero is unlimited.
	MaxBytes int64

	// FetchTimeout bounds how long a Fetch waits for the next batch.
	FetchTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the NATS bus.
func DefaultConfig() Config {
	return Config{
		URL:          nats.DefaultURL,
		StreamName:   "GRAPH",
		FetchTimeout: 2 * time.Second,
	}
}

// NewNatsBus connects to NATS and ensures the graph stream exists.
// Connection attempts are retried with exponential backoff.
func NewNatsBus(config Config) (*NatsBus, error) {
	var nc *nats.Conn
	connect := func() error {
		var err error
		nc, err = nats.Connect(config.URL)
		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrTransportUnavailable, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	fetchTimeout := config.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 2 * time.Second
	}
	bus := &NatsBus{nc: nc, js: js, streamName: config.StreamName, fetchTimeout: fetchTimeout}
	if err := bus.ensureStream(config); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}
	return bus, nil
}

// ensureStream creates or updates the JetStream stream.
func (b *NatsBus) ensureStream(config Config) error {
	streamConfig := &nats.StreamConfig{
		Name:      config.StreamName,
		Subjects:  []string{"graph.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    config.MaxAge,
		MaxBytes:  config.MaxBytes,
		Storage:   nats.FileStorage,
		Replicas:  1,
		// Dedupe window for CID message IDs.
		Duplicates: 2 * time.Minute,
	}

	_, err := b.js.StreamInfo(config.StreamName)
	if err != nil {
		_, err = b.js.AddStream(streamConfig)
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		return nil
	}
	_, err = b.js.UpdateStream(streamConfig)
	if err != nil {
		return fmt.Errorf("failed to update stream: %w", err)
	}
	return nil
}

// Publish appends one event under the aggregate's subject. The expected
// substream length is enforced server-side, so two concurrent writers with
// the same view race and exactly one wins; the loser gets ErrStaleHead.
func (b *NatsBus) Publish(ctx context.Context, aggregateID string, data []byte, cid string, expectedSequence uint64) (*Ack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ack, err := b.js.Publish(
		Subject(aggregateID),
		data,
		nats.MsgId(cid),
		nats.ExpectLastSequencePerSubject(expectedSequence),
		nats.Context(ctx),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *nats.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence {
			return nil, fmt.Errorf("%w: expected substream length %d", graph.ErrStaleHead, expectedSequence)
		}
		return nil, fmt.Errorf("%w: %v", graph.ErrTransportUnavailable, err)
	}
	return &Ack{
		Sequence:  expectedSequence + 1,
		Timestamp: time.Now(),
		Duplicate: ack.Duplicate,
	}, nil
}

// Fetch drains the aggregate's substream from fromSequence (exclusive).
func (b *NatsBus) Fetch(ctx context.Context, aggregateID string, fromSequence uint64) ([]*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub, err := b.js.PullSubscribe(
		Subject(aggregateID),
		"",
		nats.DeliverAll(),
		nats.BindStream(b.streamName),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrTransportUnavailable, err)
	}
	defer sub.Unsubscribe()

	var out []*Message
	var seq uint64
	for {
		batchCtx, cancel := context.WithTimeout(ctx, b.fetchTimeout)
		msgs, err := sub.Fetch(256, nats.Context(batchCtx))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Timeout means the substream is drained.
			if !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
				return out, fmt.Errorf("%w: %v", graph.ErrTransportUnavailable, err)
			}
			break
		}
		for _, m := range msgs {
			seq++
			meta, metaErr := m.Metadata()
			ts := time.Now()
			if metaErr == nil {
				ts = meta.Timestamp
			}
			m.Ack()
			if seq <= fromSequence {
				continue
			}
			out = append(out, &Message{
				Data: m.Data,
				Headers: Headers{
					Sequence:  seq,
					Timestamp: ts,
					CID:       m.Header.Get(nats.MsgIdHdr),
				},
			})
		}
		if len(msgs) < 256 {
			break
		}
	}
	return out, nil
}

// Subscribe delivers persisted and live events for one aggregate in order.
func (b *NatsBus) Subscribe(ctx context.Context, aggregateID string, fromSequence uint64, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var seq uint64
	sub, err := b.js.Subscribe(
		Subject(aggregateID),
		func(m *nats.Msg) {
			current := seq + 1
			meta, metaErr := m.Metadata()
			ts := time.Now()
			if metaErr == nil {
				ts = meta.Timestamp
			}
			msg := &Message{
				Data: m.Data,
				Headers: Headers{
					Sequence:  current,
					Timestamp: ts,
					CID:       m.Header.Get(nats.MsgIdHdr),
				},
			}
			if current <= fromSequence {
				seq = current
				m.Ack()
				return
			}
			if err := handler(msg); err != nil {
				m.Nak()
				return
			}
			seq = current
			m.Ack()
		},
		nats.DeliverAll(),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrTransportUnavailable, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()

	return &natsSubscription{sub: sub}, nil
}

// Close closes all subscriptions and the connection.
func (b *NatsBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.nc.Close()
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
