package sequencer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldloom/mcmot-sync/internal/model"
)

func group(key float64) model.Group {
	return model.Group{ID: uuid.New(), GroupingKey: key}
}

// R1 — a Sequence pass over an empty buffer is a no-op: nothing appears
// on the output queue.
func TestSequencer_EmptyPassIsNoOp(t *testing.T) {
	s := New()
	s.Sequence()
	_, ok := s.Next()
	assert.False(t, ok)
}

// Groups complete out of order but must be delivered in ascending
// grouping-key order once a Sequence pass runs.
func TestSequencer_DeliversInAscendingKeyOrder(t *testing.T) {
	s := New()
	s.Collect(group(3.0))
	s.Collect(group(1.0))
	s.Collect(group(2.0))

	s.Sequence()

	var keys []float64
	for {
		g, ok := s.Next()
		if !ok {
			break
		}
		keys = append(keys, g.GroupingKey)
	}
	assert.Equal(t, []float64{1.0, 2.0, 3.0}, keys)
}

// A second Sequence pass only reorders what was collected since the
// first pass; already-delivered groups are not re-emitted.
func TestSequencer_SuccessivePassesAreIndependent(t *testing.T) {
	s := New()
	s.Collect(group(2.0))
	s.Sequence()
	g, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, 2.0, g.GroupingKey)

	s.Collect(group(1.0))
	s.Sequence()
	g2, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, 1.0, g2.GroupingKey)

	_, ok = s.Next()
	assert.False(t, ok)
}
