package ingest

import (
	"context"
	"fmt"
	"net"

	"github.com/segmentio/kafka-go"
)

// Record is one fetched broker record, decoupled from the client library so
// the consumer loop can be tested without a broker.
type Record struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
}

// Fetcher abstracts the broker. Fetch blocks until a record arrives or ctx is
// cancelled. Commit marks the record as processed for the consumer group.
type Fetcher interface {
	// Probe reports whether the broker is currently reachable.
	Probe(ctx context.Context) error
	Fetch(ctx context.Context) (Record, error)
	Commit(ctx context.Context, rec Record) error
	Close() error
}

// KafkaFetcher reads the catalog event topic through a consumer group
// reader. Offsets are committed explicitly after each record is handled.
type KafkaFetcher struct {
	brokers  []string
	reader   *kafka.Reader
	messages map[recordKey]kafka.Message
}

type recordKey struct {
	partition int
	offset    int64
}

var _ Fetcher = (*KafkaFetcher)(nil)

func NewKafkaFetcher(brokers []string, topic, groupID string) *KafkaFetcher {
	return &KafkaFetcher{
		brokers: brokers,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: kafka.FirstOffset,
		}),
		messages: make(map[recordKey]kafka.Message),
	}
}

func (f *KafkaFetcher) Probe(ctx context.Context) error {
	if len(f.brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", f.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka: broker unreachable: %w", err)
	}
	return conn.Close()
}

func (f *KafkaFetcher) Fetch(ctx context.Context) (Record, error) {
	msg, err := f.reader.FetchMessage(ctx)
	if err != nil {
		return Record{}, err
	}
	// FetchMessage does not commit; keep the original message around so the
	// later Commit call can reference it.
	f.messages[recordKey{msg.Partition, msg.Offset}] = msg
	return Record{
		Key:       msg.Key,
		Value:     msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}, nil
}

func (f *KafkaFetcher) Commit(ctx context.Context, rec Record) error {
	key := recordKey{rec.Partition, rec.Offset}
	msg, ok := f.messages[key]
	if !ok {
		return fmt.Errorf("kafka: commit of unknown record %d/%d", rec.Partition, rec.Offset)
	}
	delete(f.messages, key)
	return f.reader.CommitMessages(ctx, msg)
}

func (f *KafkaFetcher) Close() error {
	return f.reader.Close()
}
