// Package busfake is an in-memory Bus used by consumer loop tests. It
// reproduces offset/commit/seek-to-end semantics without a broker,
// mirroring how the teacher's tests substitute a fake HTTP transport
// for resty rather than hitting the network.
package busfake

import (
	"context"
	"sync"

	"github.com/fieldloom/mcmot-sync/internal/bus"
	"github.com/fieldloom/mcmot-sync/internal/model"
)

// Bus is a single-partition, single-topic in-memory broker. Safe for
// concurrent use; Poll blocks until a message is Pushed or ctx ends.
type Bus struct {
	mu sync.Mutex

	partition bus.Partition
	log       []bus.Message
	pos       int // next offset Poll will return
	committed int64

	notify chan struct{}
	closed bool
}

func New(topic string) *Bus {
	return &Bus{
		partition: bus.Partition{Topic: topic, ID: 0},
		notify:    make(chan struct{}, 1),
	}
}

// Push appends a message to the log, assigning it the next offset.
func (b *Bus) Push(value []byte) bus.Message {
	b.mu.Lock()
	m := bus.Message{
		Partition: b.partition,
		Offset:    int64(len(b.log)),
		Value:     value,
	}
	b.log = append(b.log, m)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return m
}

func (b *Bus) Poll(ctx context.Context) (bus.Message, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return bus.Message{}, &model.BusError{Op: "poll", Err: context.Canceled}
		}
		if b.pos < len(b.log) {
			m := b.log[b.pos]
			b.pos++
			b.mu.Unlock()
			return m, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return bus.Message{}, ctx.Err()
		case <-b.notify:
		}
	}
}

func (b *Bus) Commit(ctx context.Context, msg bus.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg.Offset+1 > b.committed {
		b.committed = msg.Offset + 1
	}
	return nil
}

func (b *Bus) SeekToEnd(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pos = len(b.log)
	b.committed = int64(len(b.log))
	return nil
}

func (b *Bus) EndOffset(ctx context.Context, p bus.Partition) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.log)), nil
}

func (b *Bus) Committed(ctx context.Context, p bus.Partition) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed, nil
}

func (b *Bus) Assignment(ctx context.Context) ([]bus.Partition, error) {
	return []bus.Partition{b.partition}, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

var _ bus.Bus = (*Bus)(nil)
