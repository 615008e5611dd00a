package graph

import "fmt"

// ChainBuilder threads events into a per-aggregate hash chain. Each event's
// PreviousCID must equal the CID of the event before it, so the head CID
// commits to the entire history.
type ChainBuilder struct {
	cid CIDFunc
}

// NewChainBuilder creates a chain builder. fn may be nil to use DefaultCID.
func NewChainBuilder(fn CIDFunc) *ChainBuilder {
	if fn == nil {
		fn = DefaultCID
	}
	return &ChainBuilder{cid: fn}
}

// Link builds an event record for payload whose PreviousCID is previousCID.
// previousCID is empty only for the first event of an aggregate.
func (b *ChainBuilder) Link(
	eid, aid string,
	variant Variant,
	correlationID, causationID string,
	payload Payload,
	previousCID string,
) (*Event, error) {
	cid, err := ContentID(payload, b.cid)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            eid,
		AggregateID:   aid,
		Variant:       variant,
		CorrelationID: correlationID,
		CausationID:   causationID,
		Payload:       payload,
		PreviousCID:   previousCID,
		CID:           cid,
	}, nil
}

// VerifyChain checks that events form a valid hash chain in sequence order:
// every declared CID matches the payload's content address, and every
// PreviousCID equals the CID of the preceding event.
func (b *ChainBuilder) VerifyChain(events []*Event) error {
	for i, e := range events {
		want, err := ContentID(e.Payload, b.cid)
		if err != nil {
			return &ChainError{Reason: fmt.Sprintf("cannot address payload: %v", err), At: i}
		}
		if e.CID != want {
			return &ChainError{
				Reason: fmt.Sprintf("declared cid %s does not match payload cid %s", e.CID, want),
				At:     i,
			}
		}
		if i == 0 {
			if e.PreviousCID != "" {
				return &ChainError{Reason: "first event declares a previous cid", At: 0}
			}
			continue
		}
		if e.PreviousCID != events[i-1].CID {
			return &ChainError{
				Reason: fmt.Sprintf("previous cid %s does not match predecessor %s", e.PreviousCID, events[i-1].CID),
				At:     i,
			}
		}
	}
	return nil
}

// Head returns the chain root: the CID of the latest event. Empty for an
// empty history.
func Head(events []*Event) string {
	if len(events) == 0 {
		return ""
	}
	return events[len(events)-1].CID
}
