// Command mcmot-sync runs one pipeline stage's frame synchronization
// core: it polls a bus topic, optionally groups frames across cameras,
// enforces per-camera rate control, and delivers completed groups
// downstream. Wiring follows the teacher's main.go (config, client,
// then a bounded run loop) generalized from an MJPEG server to the
// synchronizer's consumer loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fieldloom/mcmot-sync/internal/bus"
	"github.com/fieldloom/mcmot-sync/internal/clock"
	"github.com/fieldloom/mcmot-sync/internal/config"
	"github.com/fieldloom/mcmot-sync/internal/consumer"
	"github.com/fieldloom/mcmot-sync/internal/deliver"
	"github.com/fieldloom/mcmot-sync/internal/logging"
	"github.com/fieldloom/mcmot-sync/internal/model"
	framesync "github.com/fieldloom/mcmot-sync/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	base, err := logging.New(cfg.Stage.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer base.Sync() //nolint:errcheck
	log := logging.ForStage(base, cfg.Stage.Name)

	clk := clock.NewReal()

	var synchronizer framesync.Synchronizer
	if cfg.Sync.EnableSequencing {
		facade, err := framesync.NewFacade(framesync.FacadeConfig{
			FrameSyncType:    cfg.Sync.FrameSyncType,
			FPS:              cfg.Sync.FPS,
			RetentionTime:    cfg.Sync.RetentionTime,
			LatencyThreshold: cfg.Sync.LatencyThreshold,
		}, clk)
		if err != nil {
			return fmt.Errorf("build synchronizer: %w", err)
		}
		synchronizer = facade
		log.Info("synchronizer ready", zap.String("frame_sync_type", facade.Type()))
	}

	offsetReset := bus.OffsetEarliest
	if cfg.Bus.OffsetReset == string(bus.OffsetLatest) {
		offsetReset = bus.OffsetLatest
	}
	kafkaBus, err := bus.NewKafkaBus(bus.KafkaConfig{
		Brokers:     cfg.Bus.Brokers,
		Topic:       cfg.Bus.Topic,
		GroupID:     cfg.Bus.GroupID,
		OffsetReset: offsetReset,
	}, log)
	if err != nil {
		return fmt.Errorf("build bus: %w", err)
	}

	var deliverer deliver.Deliverer
	if cfg.Stage.DeliverURL != "" {
		deliverer = deliver.NewHTTPDeliverer(cfg.Stage.DeliverURL)
	} else {
		log.Warn("no deliver_url configured, groups will be logged and dropped")
		deliverer = deliver.Func(func(_ context.Context, g model.Group) error {
			log.Info("group ready (no downstream configured)", zap.String("group_id", g.ID.String()), zap.Int("members", len(g.Records)))
			return nil
		})
	}

	loop := consumer.New(consumer.Config{
		BacklogCheckInterval: cfg.Sync.BacklogCheckInterval,
		IgnoreInitialDelay:   cfg.Sync.IgnoreInitialDelay,
		EnableSequencing:     cfg.Sync.EnableSequencing,
		SeekToEnd:            cfg.Sync.SeekToEnd,
		Unify:                cfg.Sync.Unify,
	}, kafkaBus, synchronizer, deliverer, clk, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("consumer loop starting", zap.String("topic", cfg.Bus.Topic), zap.String("group_id", cfg.Bus.GroupID))
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("consumer loop: %w", err)
	}
	log.Info("consumer loop stopped")
	return nil
}
