package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldloom/mcmot-sync/internal/clock"
	"github.com/fieldloom/mcmot-sync/internal/model"
)

func numberRecord(cam string, num int, ts float64, fps int) model.FrameRecord {
	return model.FrameRecord{CameraID: cam, FrameNumber: num, FrameTimestamp: ts, FPS: fps}
}

// Boundary case — fps=0 at construction adopts the first collected
// message's fps.
func TestNumberSynchronizer_AdoptsFPSFromFirstFrame(t *testing.T) {
	clk := clock.NewFake(0)
	n := NewNumberSynchronizer(NumberConfig{FPS: 0, RetentionTime: 60}, clk)
	n.Collect(numberRecord("cam1", 0, 100.0, 10))
	assert.Equal(t, 10, n.fps)
}

// P2 / E1 — two cameras at the same frame_number form a complete group
// with one record per camera.
func TestNumberSynchronizer_GroupsByFrameNumber(t *testing.T) {
	clk := clock.NewFake(0)
	n := NewNumberSynchronizer(NumberConfig{FPS: 10, RetentionTime: 60}, clk)
	n.Collect(numberRecord("cam1", 5, 100.5, 10))
	n.Collect(numberRecord("cam2", 5, 100.6, 10))

	var delivered []model.Group
	n.Synchronize(func(g model.Group) { delivered = append(delivered, g) })

	require.Len(t, delivered, 1)
	assert.ElementsMatch(t, []string{"cam1", "cam2"}, delivered[0].CameraIDs())
	assert.Equal(t, float64(5), delivered[0].GroupingKey)
}

// P2 — every emitted group's camera_ids are pairwise distinct.
func TestNumberSynchronizer_GroupCameraIDsArePairwiseDistinct(t *testing.T) {
	clk := clock.NewFake(0)
	n := NewNumberSynchronizer(NumberConfig{FPS: 10, RetentionTime: 60}, clk)
	n.Collect(numberRecord("cam1", 1, 100.0, 10))
	n.Collect(numberRecord("cam2", 1, 100.0, 10))
	n.Collect(numberRecord("cam3", 1, 100.0, 10))

	var delivered []model.Group
	n.Synchronize(func(g model.Group) { delivered = append(delivered, g) })

	require.Len(t, delivered, 1)
	ids := delivered[0].CameraIDs()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		assert.False(t, seen[id], "camera_id %q appeared twice in one group", id)
		seen[id] = true
	}
}

// A single configured camera still produces size-1 groups (boundary case
// called out in SPEC_FULL.md §10).
func TestNumberSynchronizer_SingleCameraProducesSizeOneGroups(t *testing.T) {
	clk := clock.NewFake(0)
	n := NewNumberSynchronizer(NumberConfig{FPS: 10, RetentionTime: 60}, clk)
	n.Collect(numberRecord("cam1", 1, 100.0, 10))

	var delivered []model.Group
	n.Synchronize(func(g model.Group) { delivered = append(delivered, g) })

	require.Len(t, delivered, 1)
	assert.Len(t, delivered[0].Records, 1)
}

// P6 — Sampling returns Wait iff the camera is ahead of its expected
// frame_number (delta < 0); otherwise Skip(delta), with delta==0 as Skip(0).
func TestNumberSynchronizer_Sampling(t *testing.T) {
	clk := clock.NewFake(0)
	n := NewNumberSynchronizer(NumberConfig{FPS: 10, RetentionTime: 60}, clk)

	// start_time = 100.0 (first frame's timestamp); elapsed=1.0s at 10fps
	// => expected_frame=10. Collected frame_number=10 => delta=0 => Skip(0).
	n.Collect(numberRecord("cam1", 0, 100.0, 10))
	n.Collect(numberRecord("cam1", 10, 101.0, 10))
	action, err := n.Sampling("cam1")
	require.NoError(t, err)
	assert.Equal(t, model.Skip, action.Kind)
	assert.Equal(t, 0, action.Count)

	// Camera behind (frame_number=5 when expected=10) => Skip(5).
	n.Collect(numberRecord("cam1", 5, 101.0, 10))
	action, err = n.Sampling("cam1")
	require.NoError(t, err)
	assert.Equal(t, model.Skip, action.Kind)
	assert.Equal(t, 5, action.Count)

	// Camera ahead (frame_number=20 when expected=10) => Wait.
	n.Collect(numberRecord("cam1", 20, 101.0, 10))
	action, err = n.Sampling("cam1")
	require.NoError(t, err)
	assert.Equal(t, model.Wait, action.Kind)
	assert.Greater(t, action.Wait, 0.0)
}

// Unknown camera_id is a keying-contract violation (spec.md §7, kind 3).
func TestNumberSynchronizer_SamplingUnknownCamera(t *testing.T) {
	clk := clock.NewFake(0)
	n := NewNumberSynchronizer(NumberConfig{FPS: 10, RetentionTime: 60}, clk)
	_, err := n.Sampling("ghost")
	require.Error(t, err)
	var notFound *model.KeyNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

// Cameras that never complete a group are evicted by retention once
// their entry_time ages past retention_time (intentional per spec.md §4.3).
func TestNumberSynchronizer_RetentionEvictsIncompleteGroups(t *testing.T) {
	clk := clock.NewFake(0)
	n := NewNumberSynchronizer(NumberConfig{FPS: 10, RetentionTime: 5}, clk)
	// Two cameras known, but cam1's frame_number=1 has no cam2 counterpart
	// yet, so it cannot complete a group of size 2.
	n.Collect(numberRecord("cam1", 1, 100.0, 10))
	n.Collect(numberRecord("cam2", 2, 100.0, 10))

	var delivered []model.Group
	n.Synchronize(func(g model.Group) { delivered = append(delivered, g) })
	assert.Empty(t, delivered, "neither frame_number has one record per camera yet")

	// A pass after the records age past retention_time evicts them; a
	// pass groups before it evicts, so this one must run before cam2's
	// matching frame arrives.
	clk.Advance(6)
	n.Synchronize(func(g model.Group) { delivered = append(delivered, g) })
	n.Collect(numberRecord("cam2", 1, 106.0, 10))
	n.Synchronize(func(g model.Group) { delivered = append(delivered, g) })
	assert.Empty(t, delivered, "cam1's buffered frame_number=1 record should have aged out before cam2 matched it")
}
