package consumer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Repeated triggers fired before a job starts running are coalesced into
// a single run, per the "one pending job per key" design.
func TestPool_CoalescesRepeatTriggers(t *testing.T) {
	p := newPool()
	started := make(chan struct{})
	release := make(chan struct{})
	var runs int32

	p.trigger("k", func() {
		atomic.AddInt32(&runs, 1)
		close(started)
		<-release
	})

	<-started
	// Fired while the first run is still in flight; must coalesce into
	// at most one more pending run, not one per call.
	for i := 0; i < 5; i++ {
		p.trigger("k", func() { atomic.AddInt32(&runs, 1) })
	}
	close(release)

	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&runs), int32(2))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(1))
}

func TestPool_DistinctKeysRunIndependently(t *testing.T) {
	p := newPool()
	var runsA, runsB int32
	done := make(chan struct{}, 2)

	p.trigger("a", func() { atomic.AddInt32(&runsA, 1); done <- struct{}{} })
	p.trigger("b", func() { atomic.AddInt32(&runsB, 1); done <- struct{}{} })

	<-done
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&runsA))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runsB))
}
