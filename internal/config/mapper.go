package config

// Parameters is the coarser, millisecond-denominated, operator-facing
// knob set from original_source/mcmot/.../frame_sync_parameters.py,
// reproduced here so a caller need not hand-derive fps/retention_time/
// backlog_check_interval from the original's units.
type Parameters struct {
	SyncWindowMS        int
	MaxBufferSize       int
	BufferTimeoutMS     int
	OrderingKey         string // "timestamp" or "number"
	LatencyThresholdMS  int
	DiscardPolicy       string // "discard_oldest", "discard_newest", "allow_partial"
	CheckpointIntervalMS int
}

// MapParameters translates Parameters into a SyncConfig exactly the way
// original_source/mcmot/.../frame_sync_mapper.py's FrameSyncMapper.map
// does: sync_window_ms -> fps, max_buffer_size -> backlog_threshold,
// checkpoint_interval_ms -> backlog_check_interval (seconds),
// discard_oldest + a positive check interval -> ignore_initial_delay,
// buffer_timeout -> retention_time (seconds), latency_threshold_ms ->
// latency_threshold (seconds, default 10s when unset).
func MapParameters(p Parameters) (SyncConfig, error) {
	fps := 0
	if p.SyncWindowMS > 0 {
		fps = int(round(1.0 / (float64(p.SyncWindowMS) / 1000.0)))
	}

	backlogThreshold := 0
	if p.MaxBufferSize > 0 {
		backlogThreshold = p.MaxBufferSize
	}

	backlogCheckInterval := 0.0
	if p.CheckpointIntervalMS > 0 {
		backlogCheckInterval = float64(p.CheckpointIntervalMS) / 1000.0
	}

	var frameSyncType string
	if p.OrderingKey == "timestamp" || p.OrderingKey == "number" {
		frameSyncType = p.OrderingKey
	}

	ignoreInitialDelay := p.DiscardPolicy == "discard_oldest" && backlogCheckInterval > 0

	latencyThreshold := 10.0
	if p.LatencyThresholdMS > 0 {
		latencyThreshold = float64(p.LatencyThresholdMS) / 1000.0
	}

	retentionTime := 60.0
	if p.BufferTimeoutMS > 0 {
		retentionTime = float64(p.BufferTimeoutMS) / 1000.0
	}

	cfg := SyncConfig{
		BacklogThreshold:     backlogThreshold,
		BacklogCheckInterval: backlogCheckInterval,
		FrameSyncType:        frameSyncType,
		EnableSequencing:     true,
		FPS:                  fps,
		RetentionTime:        retentionTime,
		LatencyThreshold:     latencyThreshold,
		IgnoreInitialDelay:   ignoreInitialDelay,
	}
	if err := cfg.Validate(); err != nil {
		return SyncConfig{}, err
	}
	return cfg, nil
}

func round(f float64) float64 {
	if f < 0 {
		return float64(int(f - 0.5))
	}
	return float64(int(f + 0.5))
}
