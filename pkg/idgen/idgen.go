package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewEventID mints a lexicographically sortable event identifier.
func NewEventID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewCorrelationID mints a correlation identifier. Minted once per external
// request and shared by every event of that transaction.
func NewCorrelationID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewAggregateID mints an aggregate identifier. Never reused.
func NewAggregateID() string {
	return uuid.NewString()
}

// DeterministicEventID derives an event ID from command context so the same
// command always produces the same EIDs. Redelivered commands therefore
// cannot double-emit; the transport deduplicates on the resulting events.
func DeterministicEventID(commandID, aggregateID string, index int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%s:%d", commandID, aggregateID, index)
	return hex.EncodeToString(h.Sum(nil))[:32]
}
