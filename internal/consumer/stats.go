package consumer

import "sync"

// stats tracks per-camera throughput counters for the logging-only
// reporting spec.md §4.6 calls for: processed_count/actual_count,
// instantaneous FPS, and the frame's own set/actual fps. None of this
// feeds back into control flow.
type stats struct {
	mu sync.Mutex

	processed   map[string]int
	delivered   map[string]int
	lastArrival map[string]float64
}

func newStats() *stats {
	return &stats{
		processed:   make(map[string]int),
		delivered:   make(map[string]int),
		lastArrival: make(map[string]float64),
	}
}

// observation is a throughput snapshot for one message, taken after the
// delivery decision, used purely for logging.
type observation struct {
	Processed        int
	Delivered        int
	InstantaneousFPS float64
}

// observe records one processed message for cameraID and returns the
// running counters plus the instantaneous FPS implied by the gap since
// the camera's previous message.
func (s *stats) observe(cameraID string, now float64, wasDelivered bool) observation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[cameraID]++
	if wasDelivered {
		s.delivered[cameraID]++
	}

	var fps float64
	if last, ok := s.lastArrival[cameraID]; ok && now > last {
		fps = 1.0 / (now - last)
	}
	s.lastArrival[cameraID] = now

	return observation{
		Processed:        s.processed[cameraID],
		Delivered:        s.delivered[cameraID],
		InstantaneousFPS: fps,
	}
}
