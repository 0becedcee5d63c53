package publish

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Broker delivers payloads to a durable queue. Send returns only after the
// broker acknowledged the message. Implementations must be safe for
// concurrent use; Flush serializes with in-flight sends.
type Broker interface {
	Send(ctx context.Context, key string, payload []byte) error
	Flush(ctx context.Context) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used by KafkaBroker.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a KafkaBroker.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaBroker publishes to a Kafka topic through one shared writer.
type KafkaBroker struct {
	writer messageWriter
	topic  string

	// Sends hold the read lock so Flush waits for every acknowledgment.
	mu sync.RWMutex
}

// NewKafkaBroker creates a broker writing to cfg.Topic. Messages are keyed by
// entity so all messages for one partner land on the same partition.
func NewKafkaBroker(cfg KafkaConfig) (*KafkaBroker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, eris.New("publish: kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, eris.New("publish: kafka topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaBroker(w, cfg.Topic), nil
}

func newKafkaBroker(w messageWriter, topic string) *KafkaBroker {
	return &KafkaBroker{writer: w, topic: topic}
}

// Send writes one message and waits for the acknowledgment.
func (b *KafkaBroker) Send(ctx context.Context, key string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	err := b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return eris.Wrapf(err, "publish: kafka write to %s", b.topic)
	}
	return nil
}

// Flush waits for in-flight sends. Writes are synchronous, so nothing is
// buffered once they return.
func (b *KafkaBroker) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.mu.Lock()
		b.mu.Unlock() //nolint:staticcheck // empty critical section waits for sends
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "publish: kafka flush")
	}
}

// Close flushes and closes the writer.
func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writer.Close(); err != nil {
		return eris.Wrap(err, "publish: close kafka writer")
	}
	return nil
}

// LogBroker is a dry-run broker that logs payloads instead of sending them.
type LogBroker struct {
	mu   sync.Mutex
	sent int
}

// NewLogBroker creates a LogBroker.
func NewLogBroker() *LogBroker { return &LogBroker{} }

func (b *LogBroker) Send(_ context.Context, key string, payload []byte) error {
	b.mu.Lock()
	b.sent++
	b.mu.Unlock()
	zap.L().Info("publish: dry run",
		zap.String("key", key),
		zap.ByteString("payload", payload),
	)
	return nil
}

func (b *LogBroker) Flush(_ context.Context) error { return nil }

func (b *LogBroker) Close() error { return nil }

// Sent returns the number of logged messages.
func (b *LogBroker) Sent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}
