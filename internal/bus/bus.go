// Package bus abstracts the message transport spec.md §6 treats as an
// external collaborator: "any ordered, partitioned, offset-committed
// message transport suffices (Kafka-style semantics assumed)." Only the
// interface matters to the synchronization core; this package also
// provides a segmentio/kafka-go-backed implementation (internal/bus) and
// an in-memory fake (internal/bus/busfake) used by ConsumerLoop tests.
package bus

import (
	"context"
	"time"
)

// Partition identifies one partition of one topic.
type Partition struct {
	Topic string
	ID    int
}

// Message is one bus record, decoded as far as the transport goes —
// the synchronization core decodes Value into a model.FrameRecord or
// model.ControlEnvelope itself.
type Message struct {
	Partition Partition
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// OffsetReset selects where a new consumer group starts reading.
type OffsetReset string

const (
	OffsetEarliest OffsetReset = "earliest"
	OffsetLatest   OffsetReset = "latest"
)

// Bus is the narrow capability spec.md §6 requires: subscribe (at
// construction), poll, commit, seek-to-end, end-offset query,
// committed-offset query, partition assignment, and close.
type Bus interface {
	// Poll blocks until the next message is available, ctx is
	// cancelled, or the consumer is closed.
	Poll(ctx context.Context) (Message, error)
	// Commit advances the committed offset past msg. auto_commit is
	// always off at the transport level; every commit is explicit.
	Commit(ctx context.Context, msg Message) error
	// SeekToEnd commits the current position and repositions every
	// assigned partition to its end offset, intentionally discarding
	// any buffered-but-unread backlog.
	SeekToEnd(ctx context.Context) error
	// EndOffset reports a partition's current end (high-water) offset.
	EndOffset(ctx context.Context, p Partition) (int64, error)
	// Committed reports a partition's last committed offset.
	Committed(ctx context.Context, p Partition) (int64, error)
	// Assignment reports the partitions currently assigned to this
	// consumer.
	Assignment(ctx context.Context) ([]Partition, error)
	Close() error
}

// Backlog computes the generic "uncommitted messages behind the end of
// the partition" quantity spec.md §9's redesign note asks to abstract:
// Backlog(partition) = end_offset - committed_offset.
func Backlog(ctx context.Context, b Bus, p Partition) (int64, error) {
	end, err := b.EndOffset(ctx, p)
	if err != nil {
		return 0, err
	}
	committed, err := b.Committed(ctx, p)
	if err != nil {
		return 0, err
	}
	lag := end - committed
	if lag < 0 {
		lag = 0
	}
	return lag, nil
}
