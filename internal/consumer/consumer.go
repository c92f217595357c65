// Package consumer implements the control core from spec.md §4.6: one
// long-running loop per pipeline stage that polls the bus, decodes
// frame and control envelopes, drives a Synchronizer, enforces rate
// control, and delivers downstream. Grounded on the teacher's
// startFetcher/fetchFrame ticker-driven loop in main.go, generalized
// from a fixed fetch interval into the spec's poll-decode-collect-
// deliver-commit cycle.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldloom/mcmot-sync/internal/bus"
	"github.com/fieldloom/mcmot-sync/internal/clock"
	"github.com/fieldloom/mcmot-sync/internal/deliver"
	"github.com/fieldloom/mcmot-sync/internal/model"
	framesync "github.com/fieldloom/mcmot-sync/internal/sync"
)

// errTerminated unwinds Run cleanly when a TERMINATE control signal is
// received; it is never surfaced to the caller as a failure.
var errTerminated = errors.New("terminate signal received")

// Config is the subset of config.SyncConfig and config.StageConfig the
// loop needs, kept independent of the config package the way sync.Facade
// is, to avoid an import cycle.
type Config struct {
	BacklogCheckInterval float64
	IgnoreInitialDelay   bool
	EnableSequencing     bool
	SeekToEnd            bool
	Unify                bool
	// ExpectedKey, if non-empty, filters inbound messages to only those
	// whose bus key matches (spec.md §4.6 step 2).
	ExpectedKey string
}

// Loop is one Consumer Loop (spec.md §4.6): exactly one per stage, per
// spec.md §5's "one Consumer Loop goroutine per stage."
type Loop struct {
	bus          bus.Bus
	synchronizer framesync.Synchronizer // nil when sequencing is fully disabled
	deliverer    deliver.Deliverer
	clock        clock.Clock
	cfg          Config
	log          *zap.Logger

	pool  *pool
	stats *stats

	skipCounts map[string]int
	paused     bool
	seekDone   bool // ignore_initial_delay's one-shot latch

	lastSequencePass float64
	lastBacklogCheck float64
}

func New(cfg Config, b bus.Bus, synchronizer framesync.Synchronizer, d deliver.Deliverer, clk clock.Clock, log *zap.Logger) *Loop {
	return &Loop{
		bus:          b,
		synchronizer: synchronizer,
		deliverer:    d,
		clock:        clk,
		cfg:          cfg,
		log:          log,
		pool:         newPool(),
		stats:        newStats(),
		skipCounts:   make(map[string]int),
	}
}

// Run drives the loop until ctx is cancelled, a TERMINATE control
// signal arrives, or a fatal error occurs (a bus error or an unknown
// camera_id reaching Sampling — spec.md §4.6's failure semantics).
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.close()
	defer l.bus.Close()

	now := l.clock.Now()
	l.lastSequencePass = now
	l.lastBacklogCheck = now

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := l.bus.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("consumer loop: %w", err)
		}

		if err := l.handle(ctx, msg); err != nil {
			if errors.Is(err, errTerminated) {
				return nil
			}
			return err
		}
	}
}

func (l *Loop) handle(ctx context.Context, msg bus.Message) error {
	var probe struct {
		Signal *string `json:"signal"`
	}
	_ = json.Unmarshal(msg.Value, &probe)
	if probe.Signal != nil {
		return l.handleControl(ctx, msg, model.ControlSignal(*probe.Signal))
	}

	if l.paused {
		return l.commit(ctx, msg)
	}

	if l.cfg.ExpectedKey != "" && string(msg.Key) != l.cfg.ExpectedKey {
		return l.commit(ctx, msg)
	}

	var env model.FrameEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		l.log.Warn("discarding undecodable frame", zap.Error(err))
		return l.commit(ctx, msg)
	}

	now := l.clock.Now()
	rec := model.FrameRecord{
		CameraID:       env.CameraMetadata.CameraID,
		FrameNumber:    env.FrameNumber,
		FrameTimestamp: env.FrameTimestamp,
		FPS:            env.FrameMetadata.FPS,
		Payload:        append(json.RawMessage(nil), msg.Value...),
	}

	if l.synchronizer != nil && l.cfg.EnableSequencing {
		l.synchronizer.Collect(rec)
		if l.cfg.BacklogCheckInterval > 0 && now-l.lastSequencePass >= l.cfg.BacklogCheckInterval {
			l.lastSequencePass = now
			l.pool.trigger("sequence", func() { l.synchronizer.Synchronize(l.deliverGroup(ctx)) })
		}
	}

	delivered := false
	if l.skipCounts[rec.CameraID] > 0 {
		l.skipCounts[rec.CameraID]--
	} else if !l.cfg.Unify {
		g := model.Group{
			ID:          uuid.New(),
			Records:     []model.FrameRecord{rec},
			GroupingKey: rec.FrameTimestamp,
			GroupedAt:   now,
		}
		if err := l.deliverer.Deliver(ctx, g); err != nil {
			l.log.Warn("delivery failed", zap.String("camera_id", rec.CameraID), zap.Error(err))
		} else {
			delivered = true
		}
	}

	obs := l.stats.observe(rec.CameraID, now, delivered)
	l.log.Debug("throughput",
		zap.String("camera_id", rec.CameraID),
		zap.Int("processed", obs.Processed),
		zap.Int("delivered", obs.Delivered),
		zap.Float64("instantaneous_fps", obs.InstantaneousFPS),
		zap.Int("set_fps", env.FrameMetadata.FPS),
		zap.Int("actual_fps", env.FrameMetadata.ActualFPS),
	)

	if err := l.applySeekToEnd(ctx, msg); err != nil {
		return err
	}

	if l.cfg.BacklogCheckInterval > 0 && now-l.lastBacklogCheck >= l.cfg.BacklogCheckInterval {
		l.lastBacklogCheck = now
		l.sampleBacklog(ctx)
		if l.cfg.Unify && l.synchronizer != nil {
			l.pool.trigger("sync", func() { l.synchronizer.Synchronize(l.deliverGroup(ctx)) })
		}
	}

	if !l.cfg.IgnoreInitialDelay && !l.cfg.Unify && l.synchronizer != nil {
		action, err := l.synchronizer.Sampling(rec.CameraID)
		if err != nil {
			return fmt.Errorf("sampling: %w", err)
		}
		switch action.Kind {
		case model.Skip:
			l.skipCounts[rec.CameraID] += action.Count
		case model.Wait:
			if err := l.sleep(ctx, action.Wait); err != nil {
				return err
			}
		}
	}

	return l.commit(ctx, msg)
}

func (l *Loop) handleControl(ctx context.Context, msg bus.Message, signal model.ControlSignal) error {
	switch signal {
	case model.SignalHold:
		l.paused = true
		l.log.Info("pipeline held")
	case model.SignalResume:
		l.paused = false
		l.log.Info("pipeline resumed")
	case model.SignalTerminate:
		l.log.Info("terminate signal received")
		if err := l.commit(ctx, msg); err != nil {
			return err
		}
		return errTerminated
	default:
		l.log.Info("control signal received", zap.String("signal", string(signal)))
	}
	return l.commit(ctx, msg)
}

// applySeekToEnd implements spec.md §4.6's two seek-to-end policies.
// seek_to_end (permanent) fires on every sync-relevant message;
// ignore_initial_delay fires once, on the first qualifying message,
// then latches off.
func (l *Loop) applySeekToEnd(ctx context.Context, msg bus.Message) error {
	switch {
	case l.cfg.SeekToEnd:
		if err := l.commit(ctx, msg); err != nil {
			return err
		}
		if err := l.bus.SeekToEnd(ctx); err != nil {
			return fmt.Errorf("seek to end: %w", err)
		}
	case l.cfg.IgnoreInitialDelay && !l.seekDone:
		if err := l.commit(ctx, msg); err != nil {
			return err
		}
		if err := l.bus.SeekToEnd(ctx); err != nil {
			return fmt.Errorf("seek to end: %w", err)
		}
		l.seekDone = true
	}
	return nil
}

func (l *Loop) sampleBacklog(ctx context.Context) {
	parts, err := l.bus.Assignment(ctx)
	if err != nil {
		l.log.Warn("assignment query failed", zap.Error(err))
		return
	}
	for _, p := range parts {
		lag, err := bus.Backlog(ctx, l.bus, p)
		if err != nil {
			l.log.Warn("backlog query failed", zap.String("topic", p.Topic), zap.Int("partition", p.ID), zap.Error(err))
			continue
		}
		l.log.Debug("backlog", zap.String("topic", p.Topic), zap.Int("partition", p.ID), zap.Int64("lag", lag))
	}
}

func (l *Loop) deliverGroup(ctx context.Context) func(model.Group) {
	return func(g model.Group) {
		if err := l.deliverer.Deliver(ctx, g); err != nil {
			l.log.Warn("group delivery failed", zap.String("group_id", g.ID.String()), zap.Error(err))
		}
	}
}

func (l *Loop) commit(ctx context.Context, msg bus.Message) error {
	if err := l.bus.Commit(ctx, msg); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (l *Loop) sleep(ctx context.Context, seconds float64) error {
	if seconds <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
