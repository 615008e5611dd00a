package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEventID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewEventID()
		assert.Len(t, id, 26)
		assert.False(t, seen[id], "duplicate event id %s", id)
		seen[id] = true
	}
}

func TestNewAggregateID_Unique(t *testing.T) {
	assert.NotEqual(t, NewAggregateID(), NewAggregateID())
}

func TestDeterministicEventID(t *testing.T) {
	a := DeterministicEventID("cmd-1", "agg-1", 0)
	b := DeterministicEventID("cmd-1", "agg-1", 0)
	assert.Equal(t, a, b, "same command context must yield the same id")
	assert.Len(t, a, 32)

	assert.NotEqual(t, a, DeterministicEventID("cmd-1", "agg-1", 1))
	assert.NotEqual(t, a, DeterministicEventID("cmd-2", "agg-1", 0))
	assert.NotEqual(t, a, DeterministicEventID("cmd-1", "agg-2", 0))
}
