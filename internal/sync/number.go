package sync

import (
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fieldloom/mcmot-sync/internal/clock"
	"github.com/fieldloom/mcmot-sync/internal/model"
	"github.com/fieldloom/mcmot-sync/internal/sequencer"
)

// NumberSynchronizer implements spec.md §4.3: frames from different
// cameras bearing the same frame_number are considered simultaneous.
// Grounded directly on
// original_source/mcmot/framework/frame_synchronization/frame_sync_number_service.py.
type NumberSynchronizer struct {
	mu sync.Mutex

	clock clock.Clock
	seq   *sequencer.Sequencer

	fps           int
	retentionTime float64

	cameras []string // insertion order, used to size complete groups
	states  map[string]*model.CameraState
	current map[string]model.FrameRecord // most recent collected frame per camera

	buffer []model.FrameRecord
}

// NumberConfig is the subset of SyncConfig the number policy consumes.
type NumberConfig struct {
	FPS           int
	RetentionTime float64
}

func NewNumberSynchronizer(cfg NumberConfig, clk clock.Clock) *NumberSynchronizer {
	return &NumberSynchronizer{
		clock:         clk,
		seq:           sequencer.New(),
		fps:           cfg.FPS,
		retentionTime: cfg.RetentionTime,
		states:        make(map[string]*model.CameraState),
		current:       make(map[string]model.FrameRecord),
	}
}

func (n *NumberSynchronizer) Collect(rec model.FrameRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fps == 0 {
		n.fps = rec.FPS
	}

	if _, ok := n.states[rec.CameraID]; !ok {
		n.states[rec.CameraID] = &model.CameraState{
			CameraID:  rec.CameraID,
			StartTime: rec.FrameTimestamp,
		}
		n.cameras = append(n.cameras, rec.CameraID)
	}

	rec.EntryTime = n.clock.Now()
	n.current[rec.CameraID] = rec
	n.buffer = append(n.buffer, rec)

	st := n.states[rec.CameraID]
	st.LastFrameNumber = rec.FrameNumber
	st.LastFrameTimestamp = rec.FrameTimestamp
}

// Sampling implements spec.md §4.3's rate control: expected_frame =
// floor(elapsed*fps); delta>0 => Skip(delta); delta<0 => Wait(|delta|/fps);
// delta==0 => Skip(0) (P6: Wait iff the camera is ahead of its expected
// frame, i.e. delta < 0).
func (n *NumberSynchronizer) Sampling(cameraID string) (model.SamplingAction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	st, ok := n.states[cameraID]
	rec, recOK := n.current[cameraID]
	if !ok || !recOK {
		return model.SamplingAction{}, &model.KeyNotFoundError{CameraID: cameraID}
	}

	elapsed := rec.FrameTimestamp - st.StartTime
	expected := int(math.Floor(elapsed * float64(n.fps)))
	delta := expected - rec.FrameNumber

	if delta < 0 {
		waitSeconds := math.Abs(float64(delta)) / float64(n.fps)
		return model.WaitAction(waitSeconds), nil
	}
	return model.SkipAction(delta), nil
}

// Synchronize implements spec.md §4.3's 5-step grouping pass.
func (n *NumberSynchronizer) Synchronize(deliver func(model.Group)) {
	n.mu.Lock()

	byNumber := make(map[int][]int) // frame_number -> indices into n.buffer
	for i, rec := range n.buffer {
		byNumber[rec.FrameNumber] = append(byNumber[rec.FrameNumber], i)
	}

	numbers := make([]int, 0, len(byNumber))
	for num := range byNumber {
		numbers = append(numbers, num)
	}
	sort.Ints(numbers)

	cameraCount := len(n.cameras)
	now := n.clock.Now()

	for _, num := range numbers {
		idxs := byNumber[num]
		distinct := make(map[string]bool, len(idxs))
		for _, idx := range idxs {
			distinct[n.buffer[idx].CameraID] = true
		}
		if len(idxs) != cameraCount || len(distinct) != cameraCount {
			continue
		}
		records := make([]model.FrameRecord, len(idxs))
		for j, idx := range idxs {
			n.buffer[idx].Grouped = true
			records[j] = n.buffer[idx]
		}
		n.seq.Collect(model.Group{
			ID:          uuid.New(),
			Records:     records,
			GroupingKey: float64(num),
			GroupedAt:   now,
		})
	}

	kept := n.buffer[:0]
	for _, rec := range n.buffer {
		if rec.Grouped {
			continue
		}
		if now-rec.EntryTime > n.retentionTime {
			continue
		}
		kept = append(kept, rec)
	}
	n.buffer = kept

	n.mu.Unlock()

	n.seq.Sequence()
	for {
		g, ok := n.seq.Next()
		if !ok {
			break
		}
		deliver(g)
	}
}
