package sync

import (
	"github.com/fieldloom/mcmot-sync/internal/clock"
	"github.com/fieldloom/mcmot-sync/internal/model"
)

// FacadeConfig is the subset of config.SyncConfig the facade needs to
// pick and build a concrete policy. Kept independent of the config
// package to avoid an import cycle (config validates using model errors
// only).
type FacadeConfig struct {
	FrameSyncType    string // "timestamp" or "number"
	FPS              int
	RetentionTime    float64
	LatencyThreshold float64
}

// Facade selects NumberSynchronizer or TimestampSynchronizer at
// construction based on frame_sync_type (spec.md §4.5). Any other value
// is a fatal ConfigurationError.
type Facade struct {
	syncType string
	inner    Synchronizer
}

func NewFacade(cfg FacadeConfig, clk clock.Clock) (*Facade, error) {
	switch cfg.FrameSyncType {
	case "timestamp":
		return &Facade{
			syncType: cfg.FrameSyncType,
			inner: NewTimestampSynchronizer(TimestampConfig{
				FPS:              cfg.FPS,
				RetentionTime:    cfg.RetentionTime,
				LatencyThreshold: cfg.LatencyThreshold,
			}, clk),
		}, nil
	case "number":
		return &Facade{
			syncType: cfg.FrameSyncType,
			inner: NewNumberSynchronizer(NumberConfig{
				FPS:           cfg.FPS,
				RetentionTime: cfg.RetentionTime,
			}, clk),
		}, nil
	default:
		return nil, &model.ConfigurationError{
			Field:  "frame_sync_type",
			Reason: "must be 'timestamp' or 'number'",
		}
	}
}

func (f *Facade) Type() string { return f.syncType }

func (f *Facade) Collect(rec model.FrameRecord) { f.inner.Collect(rec) }

func (f *Facade) Sampling(cameraID string) (model.SamplingAction, error) {
	return f.inner.Sampling(cameraID)
}

func (f *Facade) Synchronize(deliver func(model.Group)) { f.inner.Synchronize(deliver) }
