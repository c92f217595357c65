package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldloom/mcmot-sync/internal/model"
)

func rec(cameraID string, n int) model.FrameRecord {
	return model.FrameRecord{CameraID: cameraID, FrameNumber: n}
}

// P4 — bounded size: the oldest entry is evicted once max_size is exceeded.
func TestFrameCache_BoundedSize(t *testing.T) {
	c := newFrameCache(3)
	c.AddFrame(1.0, rec("cam1", 1))
	c.AddFrame(2.0, rec("cam1", 2))
	c.AddFrame(3.0, rec("cam1", 3))
	require.Equal(t, 3, c.Len())

	c.AddFrame(4.0, rec("cam1", 4))
	assert.Equal(t, 3, c.Len(), "oldest entry must be evicted once over max_size")

	before := c.TakeBefore(10.0)
	require.Len(t, before, 3)
	assert.Equal(t, []int{2, 3, 4}, frameNumbers(before), "entry at ts=1.0 should have been evicted")
}

// P5 / R3 — TakeBefore returns strictly-less-than matches in ascending
// timestamp order and removes them from the cache.
func TestFrameCache_TakeBefore_AscendingAndExclusive(t *testing.T) {
	c := newFrameCache(0)
	c.AddFrame(3.0, rec("cam1", 3))
	c.AddFrame(1.0, rec("cam1", 1))
	c.AddFrame(2.0, rec("cam1", 2))
	c.AddFrame(5.0, rec("cam1", 5))

	out := c.TakeBefore(3.0)
	assert.Equal(t, []int{1, 2}, frameNumbers(out))
	assert.Equal(t, 2, c.Len(), "taken entries must be removed from the cache")

	rest := c.TakeBefore(10.0)
	assert.Equal(t, []int{3, 5}, frameNumbers(rest))
	assert.Equal(t, 0, c.Len())
}

// R2 — a re-insertion at an existing timestamp replaces the entry rather
// than leaving a stale duplicate behind (the Open Question this
// implementation resolves via an explicit sorted slice, not an
// insertion-order-dependent map).
func TestFrameCache_ReinsertionAtExistingTimestamp(t *testing.T) {
	c := newFrameCache(0)
	c.AddFrame(1.0, rec("cam1", 1))
	c.AddFrame(1.0, rec("cam1", 99)) // re-insertion at the same timestamp

	require.Equal(t, 1, c.Len())
	out := c.TakeBefore(10.0)
	require.Len(t, out, 1)
	assert.Equal(t, 99, out[0].FrameNumber)
}

// R3 — take_before(t) immediately followed by take_before(t) again
// returns empty the second time; the first call already removed
// everything matching.
func TestFrameCache_TakeBeforeTwiceReturnsEmptySecondTime(t *testing.T) {
	c := newFrameCache(0)
	c.AddFrame(1.0, rec("cam1", 1))
	c.AddFrame(2.0, rec("cam1", 2))

	first := c.TakeBefore(5.0)
	assert.Len(t, first, 2)

	second := c.TakeBefore(5.0)
	assert.Empty(t, second)
}

func TestFrameCache_TakeBetween(t *testing.T) {
	c := newFrameCache(0)
	for i, ts := range []float64{1.0, 2.0, 3.0, 4.0, 5.0} {
		c.AddFrame(ts, rec("cam1", i+1))
	}
	out := c.TakeBetween(1.0, 4.0)
	assert.Equal(t, []int{2, 3}, frameNumbers(out))
	// entries at or after `to` remain; those at or below `from` are taken
	// along with the window and dropped.
	assert.Equal(t, 2, c.Len())
}

func TestMultiCameraCache_UnknownCameraReturnsEmpty(t *testing.T) {
	m := NewMultiCameraCache(0)
	assert.Empty(t, m.TakeBefore("ghost", 100.0))
	assert.Empty(t, m.TakeBetween("ghost", 0, 100.0))
}

func TestMultiCameraCache_PerCameraIsolation(t *testing.T) {
	m := NewMultiCameraCache(0)
	m.AddFrame("cam1", 1.0, rec("cam1", 1))
	m.AddFrame("cam2", 1.0, rec("cam2", 1))

	out1 := m.TakeBefore("cam1", 10.0)
	require.Len(t, out1, 1)
	assert.Equal(t, "cam1", out1[0].CameraID)

	out2 := m.TakeBefore("cam2", 10.0)
	require.Len(t, out2, 1)
	assert.Equal(t, "cam2", out2[0].CameraID)
}

func TestMultiCameraCache_AddCameraIdempotent(t *testing.T) {
	m := NewMultiCameraCache(0)
	assert.True(t, m.AddCamera("cam1"))
	assert.False(t, m.AddCamera("cam1"))
}

func frameNumbers(recs []model.FrameRecord) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.FrameNumber
	}
	return out
}
