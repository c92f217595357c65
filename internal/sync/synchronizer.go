// Package sync implements the two grouping policies from spec.md §4.3–4.5:
// NumberSynchronizer (group-by-frame-number), TimestampSynchronizer
// (group-by-timestamp with tolerance), and SynchronizationFacade, which
// selects between them at construction.
package sync

import (
	"github.com/fieldloom/mcmot-sync/internal/model"
)

// Synchronizer is the shape both concrete policies and the facade expose
// to the consumer loop and sequencer.
type Synchronizer interface {
	// Collect buffers one camera's frame for later grouping.
	Collect(rec model.FrameRecord)
	// Sampling returns the rate-control decision for cameraID, computed
	// from its most recently collected frame. Returns a KeyNotFoundError
	// if the camera has never been collected.
	Sampling(cameraID string) (model.SamplingAction, error)
	// Synchronize runs one grouping pass, evicts grouped/expired buffered
	// records, then sequences the newly completed groups and invokes
	// deliver for each in ascending grouping-key order.
	Synchronize(deliver func(model.Group))
}
