// Package sequencer implements the Sequencer (spec.md §4.2): it delivers
// completed groups to the downstream callback in chronological order of
// the group's key, regardless of the order in which they were completed.
//
// Grounded on original_source/mcmot/.../frame_sequencing_service.py's
// collect/sequence/next split, flattened into a single top-level critical
// section per spec.md §9's redesign note calling out the source's nested
// locking inside sequence_groups — no recursive locks here.
package sequencer

import (
	"sort"
	"sync"

	"github.com/fieldloom/mcmot-sync/internal/model"
)

// Sequencer buffers completed groups and releases them in ascending
// grouping-key order on each Sequence pass.
type Sequencer struct {
	mu     sync.Mutex
	buffer []model.Group
	output []model.Group
}

func New() *Sequencer {
	return &Sequencer{}
}

// Collect appends a completed group to the in-buffer list.
func (s *Sequencer) Collect(group model.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, group)
}

// Sequence sorts the in-buffer list by grouping key, moves it to the
// output queue, and clears the in-buffer list. A pass that finds nothing
// collected is a no-op (R1).
func (s *Sequencer) Sequence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffer) == 0 {
		return
	}
	sort.SliceStable(s.buffer, func(i, j int) bool {
		return s.buffer[i].GroupingKey < s.buffer[j].GroupingKey
	})
	s.output = append(s.output, s.buffer...)
	s.buffer = s.buffer[:0]
}

// Next pops and returns the next group from the output queue.
func (s *Sequencer) Next() (model.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.output) == 0 {
		return model.Group{}, false
	}
	g := s.output[0]
	s.output = s.output[1:]
	return g, true
}
