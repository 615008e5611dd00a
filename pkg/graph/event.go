package graph

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is an immutable, content-addressed fact. Events never carry
// timestamps; time lives in transport headers and is read at consumption.
type Event struct {
	// ID is the event identifier (EID), unique within the process and
	// independent of the content address.
	ID string

	// AggregateID identifies the graph instance this event belongs to.
	AggregateID string

	// Variant is the graph flavor of the owning aggregate.
	Variant Variant

	// CorrelationID is shared by all events of one business transaction.
	CorrelationID string

	// CausationID is the EID of the event that directly caused this one.
	// Empty for transaction-initiating events.
	CausationID string

	// Payload is the atomic fact. One of the closed payload set.
	Payload Payload

	// PreviousCID links to the preceding event's content address. Empty
	// only for the first event of an aggregate.
	PreviousCID string

	// CID is the content address of the payload's canonical bytes.
	CID string
}

// Envelope pairs an event with the ordering metadata assigned by the
// transport at publish time.
type Envelope struct {
	Event Event

	// Sequence is the per-aggregate position assigned by the transport.
	// It is the single ordering authority within an aggregate.
	Sequence uint64

	// Timestamp is the transport's server timestamp, informational only.
	Timestamp time.Time
}

// eventWire is the serialized form of an event.
type eventWire struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	Variant       Variant         `json:"variant"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	PayloadKind   string          `json:"payload_kind"`
	Payload       json.RawMessage `json:"payload"`
	PreviousCID   string          `json:"previous_cid,omitempty"`
	CID           string          `json:"cid"`
}

// Marshal serializes an event for transport and persistence.
func Marshal(e *Event) ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("event %s has no payload", e.ID)
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(eventWire{
		ID:            e.ID,
		AggregateID:   e.AggregateID,
		Variant:       e.Variant,
		CorrelationID: e.CorrelationID,
		CausationID:   e.CausationID,
		PayloadKind:   e.Payload.PayloadKind(),
		Payload:       body,
		PreviousCID:   e.PreviousCID,
		CID:           e.CID,
	})
}

// Unmarshal reconstructs an event from its serialized form. The payload is
// decoded into its concrete type via the payload registry.
func Unmarshal(data []byte) (*Event, error) {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	payload, err := DecodePayload(w.PayloadKind, w.Payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            w.ID,
		AggregateID:   w.AggregateID,
		Variant:       w.Variant,
		CorrelationID: w.CorrelationID,
		CausationID:   w.CausationID,
		Payload:       payload,
		PreviousCID:   w.PreviousCID,
		CID:           w.CID,
	}, nil
}
