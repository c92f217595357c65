// Package cache implements FrameCache (spec.md §4.1): a bounded,
// per-camera time-indexed buffer used to bridge two asynchronous streams
// (e.g. raw capture frames vs. detections arriving later) so a later
// stage can look up past frames by timestamp.
//
// The source's OrderedDict-backed implementation relies on insertion
// order matching timestamp order, which a re-insertion at an existing
// timestamp silently breaks (spec.md §9 Open Question). This
// implementation instead keeps an explicit slice sorted by timestamp on
// every insert, so TakeBefore's early-stop scan is always safe.
package cache

import (
	"sort"
	"sync"

	"github.com/fieldloom/mcmot-sync/internal/model"
)

const defaultMaxSize = 1000

// entry pairs a timestamp with its record for one camera's sorted buffer.
type entry struct {
	ts     float64
	record model.FrameRecord
}

// FrameCache is the single-camera sorted buffer.
type FrameCache struct {
	mu      sync.Mutex
	entries []entry
	maxSize int
}

func newFrameCache(maxSize int) *FrameCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &FrameCache{maxSize: maxSize}
}

// AddFrame upserts a record at frame_timestamp. A re-insertion at an
// existing timestamp replaces the earlier record in place (R2). Entries
// are kept in timestamp order only; insertion recency is not tracked, so
// when the cache exceeds max_size the entry with the smallest timestamp
// is evicted (P4), even if it was the most recently re-inserted one.
func (c *FrameCache) AddFrame(ts float64, record model.FrameRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeTimestampLocked(ts)

	idx := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].ts >= ts })
	c.entries = append(c.entries, entry{})
	copy(c.entries[idx+1:], c.entries[idx:])
	c.entries[idx] = entry{ts: ts, record: record}

	if len(c.entries) > c.maxSize {
		c.entries = c.entries[1:]
	}
}

// removeTimestampLocked drops any existing entry at exactly ts so a
// re-insertion doesn't leave a stale duplicate behind. Caller holds mu.
func (c *FrameCache) removeTimestampLocked(ts float64) {
	for i, e := range c.entries {
		if e.ts == ts {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// TakeBefore returns and removes all records with frame_timestamp < t, in
// ascending timestamp order (P5, R3).
func (c *FrameCache) TakeBefore(t float64) []model.FrameRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	cut := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].ts >= t })
	out := make([]model.FrameRecord, cut)
	for i := 0; i < cut; i++ {
		out[i] = c.entries[i].record
	}
	c.entries = c.entries[cut:]
	return out
}

// TakeBetween returns records with from < frame_timestamp < to, in
// ascending timestamp order. Like TakeBefore(to), it removes every entry
// below to; entries at or below from are removed without being returned.
func (c *FrameCache) TakeBetween(from, to float64) []model.FrameRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	cut := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].ts >= to })
	var out []model.FrameRecord
	for i := 0; i < cut; i++ {
		if c.entries[i].ts > from {
			out = append(out, c.entries[i].record)
		}
	}
	c.entries = c.entries[cut:]
	return out
}

// Len reports the current entry count, mainly for tests (P4 assertions).
func (c *FrameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MultiCameraCache is the per-camera cache table owned by the tracker
// stage (spec.md §3's "FrameCache (per-camera)" entity, indexed by
// camera_id). Safe for concurrent use by the two parallel ConsumerLoops
// (capture-feed and detection-feed) the tracker stage runs (spec.md §5).
type MultiCameraCache struct {
	mu      sync.Mutex
	caches  map[string]*FrameCache
	maxSize int
}

// NewMultiCameraCache builds an empty cache table with the given
// per-camera max_size (0 selects the spec default of 1000).
func NewMultiCameraCache(maxSize int) *MultiCameraCache {
	return &MultiCameraCache{caches: make(map[string]*FrameCache), maxSize: maxSize}
}

// AddCamera is idempotent; it reports whether a new per-camera cache was
// created.
func (m *MultiCameraCache) AddCamera(cameraID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caches[cameraID]; ok {
		return false
	}
	m.caches[cameraID] = newFrameCache(m.maxSize)
	return true
}

func (m *MultiCameraCache) get(cameraID string) *FrameCache {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caches[cameraID]
}

// AddFrame upserts a frame into cameraID's cache, creating the cache on
// first use of that camera_id.
func (m *MultiCameraCache) AddFrame(cameraID string, ts float64, record model.FrameRecord) {
	m.AddCamera(cameraID)
	m.get(cameraID).AddFrame(ts, record)
}

// TakeBefore returns empty (not an error) for an unknown camera_id.
func (m *MultiCameraCache) TakeBefore(cameraID string, t float64) []model.FrameRecord {
	c := m.get(cameraID)
	if c == nil {
		return nil
	}
	return c.TakeBefore(t)
}

// TakeBetween returns empty (not an error) for an unknown camera_id.
func (m *MultiCameraCache) TakeBetween(cameraID string, from, to float64) []model.FrameRecord {
	c := m.get(cameraID)
	if c == nil {
		return nil
	}
	return c.TakeBetween(from, to)
}
