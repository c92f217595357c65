package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fieldloom/mcmot-sync/internal/model"
)

// KafkaBus is the production Bus implementation, grounded on the
// teacher's client.go pattern of wrapping one well-configured
// third-party client behind a narrow interface. It pairs a
// consumer-group *kafka.Reader (hot path: Poll/Commit) with a
// per-partition *kafka.Conn pool (control path: SeekToEnd/EndOffset)
// because kafka-go's group-managed Reader does not expose manual
// per-partition seeking once a group is active.
type KafkaBus struct {
	mu sync.Mutex

	reader    *kafka.Reader
	conns     map[Partition]*kafka.Conn
	committed map[Partition]int64

	brokers []string
	topic   string
	groupID string

	log *zap.Logger
}

// KafkaConfig mirrors the fields of config.BusConfig.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	OffsetReset OffsetReset
}

func NewKafkaBus(cfg KafkaConfig, log *zap.Logger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, &model.ConfigurationError{Field: "bus_brokers", Reason: "must not be empty"}
	}
	if cfg.Topic == "" {
		return nil, &model.ConfigurationError{Field: "bus_topic", Reason: "must not be empty"}
	}

	start := kafka.FirstOffset
	if cfg.OffsetReset == OffsetLatest {
		start = kafka.LastOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    start,
		CommitInterval: 0, // explicit commits only, spec.md §6 "auto_commit off"
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        500 * time.Millisecond,
	})

	return &KafkaBus{
		reader:    reader,
		conns:     make(map[Partition]*kafka.Conn),
		committed: make(map[Partition]int64),
		brokers:   cfg.Brokers,
		topic:     cfg.Topic,
		groupID:   cfg.GroupID,
		log:       log,
	}, nil
}

func (k *KafkaBus) Poll(ctx context.Context) (Message, error) {
	m, err := k.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Message{}, err
		}
		return Message{}, &model.BusError{Op: "poll", Err: err}
	}
	return Message{
		Partition: Partition{Topic: m.Topic, ID: m.Partition},
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
	}, nil
}

func (k *KafkaBus) Commit(ctx context.Context, msg Message) error {
	err := k.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Partition.Topic,
		Partition: msg.Partition.ID,
		Offset:    msg.Offset,
	})
	if err != nil {
		return &model.BusError{Op: "commit", Err: err}
	}

	k.mu.Lock()
	if msg.Offset+1 > k.committed[msg.Partition] {
		k.committed[msg.Partition] = msg.Offset + 1
	}
	k.mu.Unlock()
	return nil
}

// SeekToEnd implements spec.md §4.6's seek_to_end policy: reposition
// every assigned partition to its current end offset, discarding the
// backlog. kafka-go's group-managed Reader cannot seek directly, so
// this dials a low-level Conn per partition, asks for the last offset,
// and commits it through the group coordinator.
func (k *KafkaBus) SeekToEnd(ctx context.Context) error {
	parts, err := k.Assignment(ctx)
	if err != nil {
		return err
	}
	for _, p := range parts {
		end, err := k.EndOffset(ctx, p)
		if err != nil {
			return err
		}
		if end == 0 {
			continue
		}
		if err := k.reader.CommitMessages(ctx, kafka.Message{
			Topic:     p.Topic,
			Partition: p.ID,
			Offset:    end - 1,
		}); err != nil {
			return &model.BusError{Op: "seek_to_end", Err: err}
		}

		k.mu.Lock()
		k.committed[p] = end
		k.mu.Unlock()
	}
	k.log.Info("seeked to end", zap.Int("partitions", len(parts)))
	return nil
}

func (k *KafkaBus) EndOffset(ctx context.Context, p Partition) (int64, error) {
	conn, err := k.connFor(ctx, p)
	if err != nil {
		return 0, err
	}
	last, err := conn.ReadLastOffset()
	if err != nil {
		return 0, &model.BusError{Op: "end_offset", Err: err}
	}
	return last, nil
}

// Committed reports the partition's last offset this bus has itself
// committed. kafka-go's low-level Conn has no group-committed-offset
// read (ReadFirstOffset/ReadLastOffset only report the partition's
// retained range, not group progress), so KafkaBus tracks its own
// commits here, the same way busfake.Bus tracks committed — the
// group coordinator has no richer view than what this process has
// already committed through Commit/SeekToEnd.
func (k *KafkaBus) Committed(ctx context.Context, p Partition) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.committed[p], nil
}

func (k *KafkaBus) Assignment(ctx context.Context) ([]Partition, error) {
	conn, err := kafka.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return nil, &model.BusError{Op: "assignment", Err: err}
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(k.topic)
	if err != nil {
		return nil, &model.BusError{Op: "assignment", Err: err}
	}
	out := make([]Partition, len(partitions))
	for i, p := range partitions {
		out[i] = Partition{Topic: p.Topic, ID: p.ID}
	}
	return out, nil
}

func (k *KafkaBus) connFor(ctx context.Context, p Partition) (*kafka.Conn, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if c, ok := k.conns[p]; ok {
		return c, nil
	}
	conn, err := kafka.DialLeader(ctx, "tcp", k.brokers[0], p.Topic, p.ID)
	if err != nil {
		return nil, &model.BusError{Op: fmt.Sprintf("dial(%s/%d)", p.Topic, p.ID), Err: err}
	}
	k.conns[p] = conn
	return conn, nil
}

func (k *KafkaBus) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var firstErr error
	for _, c := range k.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := k.reader.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

var _ Bus = (*KafkaBus)(nil)
