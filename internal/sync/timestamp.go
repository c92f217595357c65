package sync

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/fieldloom/mcmot-sync/internal/clock"
	"github.com/fieldloom/mcmot-sync/internal/model"
	"github.com/fieldloom/mcmot-sync/internal/sequencer"
)

// TimestampSynchronizer implements spec.md §4.4: frames from different
// cameras whose timestamps fall within tolerance τ=1/fps of each other
// are considered simultaneous. Grounded directly on
// original_source/mcmot/framework/frame_synchronization/frame_sync_timestamp_service.py.
type TimestampSynchronizer struct {
	mu sync.Mutex

	clock clock.Clock
	seq   *sequencer.Sequencer

	fps              int
	tolerance        float64 // τ, fixed at first-seen fps (spec.md §4.4 edge policy)
	retentionTime    float64
	latencyThreshold float64

	cameras []string
	states  map[string]*model.CameraState
	current map[string]currentFrame

	buffer []model.FrameRecord
}

type currentFrame struct {
	frameTimestamp float64
	delay          float64
}

// TimestampConfig is the subset of SyncConfig the timestamp policy
// consumes.
type TimestampConfig struct {
	FPS              int
	RetentionTime    float64
	LatencyThreshold float64
}

func NewTimestampSynchronizer(cfg TimestampConfig, clk clock.Clock) *TimestampSynchronizer {
	return &TimestampSynchronizer{
		clock:            clk,
		seq:              sequencer.New(),
		fps:              cfg.FPS,
		retentionTime:    cfg.RetentionTime,
		latencyThreshold: cfg.LatencyThreshold,
		states:           make(map[string]*model.CameraState),
		current:          make(map[string]currentFrame),
	}
}

func (t *TimestampSynchronizer) Collect(rec model.FrameRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fps == 0 && rec.FPS != 0 {
		t.fps = rec.FPS
	}
	if t.tolerance == 0 && t.fps != 0 {
		t.tolerance = 1.0 / float64(t.fps)
	}

	now := t.clock.Now()

	st, ok := t.states[rec.CameraID]
	if !ok {
		initialDelay := now - rec.FrameTimestamp
		if initialDelay > t.latencyThreshold {
			initialDelay = t.latencyThreshold
		}
		st = &model.CameraState{
			CameraID:     rec.CameraID,
			StartTime:    now,
			InitialDelay: initialDelay,
		}
		t.states[rec.CameraID] = st
		t.cameras = append(t.cameras, rec.CameraID)
	}

	delay := now - rec.FrameTimestamp - st.InitialDelay
	t.current[rec.CameraID] = currentFrame{frameTimestamp: rec.FrameTimestamp, delay: delay}

	rec.EntryTime = now
	t.buffer = append(t.buffer, rec)

	st.LastFrameNumber = rec.FrameNumber
	st.LastFrameTimestamp = rec.FrameTimestamp
}

// Sampling implements spec.md §4.4's rate control: delay<0 => Wait(|delay|);
// otherwise Skip(max(floor(delay*fps), 0)).
func (t *TimestampSynchronizer) Sampling(cameraID string) (model.SamplingAction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.current[cameraID]
	if !ok {
		return model.SamplingAction{}, &model.KeyNotFoundError{CameraID: cameraID}
	}

	if cur.delay < 0 {
		return model.WaitAction(math.Abs(cur.delay)), nil
	}
	skip := int(math.Floor(cur.delay * float64(t.fps)))
	return model.SkipAction(skip), nil
}

// Synchronize implements spec.md §4.4's grouping pass: forward scan from
// each un-grouped record, absorbing any un-grouped record within τ whose
// camera isn't already in the candidate, freezing once the candidate
// reaches one member per camera seen so far (P7: no two members may ever
// differ by more than τ since every addition is τ-checked against each
// member already in the candidate, the anchor included).
func (t *TimestampSynchronizer) Synchronize(deliver func(model.Group)) {
	t.mu.Lock()

	cameraCount := len(t.cameras)
	now := t.clock.Now()

	for i := range t.buffer {
		anchor := &t.buffer[i]
		if anchor.Grouped {
			continue
		}
		candidateIdx := []int{i}
		seenCameras := map[string]bool{anchor.CameraID: true}

		for j := i + 1; j < len(t.buffer); j++ {
			cand := &t.buffer[j]
			if cand.Grouped || seenCameras[cand.CameraID] {
				continue
			}
			tooFar := false
			for _, idx := range candidateIdx {
				if math.Abs(cand.FrameTimestamp-t.buffer[idx].FrameTimestamp) > t.tolerance {
					tooFar = true
					break
				}
			}
			if tooFar {
				continue
			}
			candidateIdx = append(candidateIdx, j)
			seenCameras[cand.CameraID] = true
			if len(candidateIdx) == cameraCount {
				break
			}
		}

		if len(candidateIdx) != cameraCount {
			continue
		}

		records := make([]model.FrameRecord, len(candidateIdx))
		for k, idx := range candidateIdx {
			t.buffer[idx].Grouped = true
			records[k] = t.buffer[idx]
		}
		t.seq.Collect(model.Group{
			ID:          uuid.New(),
			Records:     records,
			GroupingKey: anchor.FrameTimestamp,
			GroupedAt:   now,
		})
	}

	kept := t.buffer[:0]
	for _, rec := range t.buffer {
		if rec.Grouped {
			continue
		}
		if now-rec.EntryTime > t.retentionTime {
			continue
		}
		kept = append(kept, rec)
	}
	t.buffer = kept

	t.mu.Unlock()

	t.seq.Sequence()
	for {
		g, ok := t.seq.Next()
		if !ok {
			break
		}
		deliver(g)
	}
}
