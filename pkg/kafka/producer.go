package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/pkg/config"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Producer publishes settlement lifecycle events
type Producer interface {
	ProduceJSON(ctx context.Context, key string, value interface{}) error
	Close() error
}

// KafkaProducer implements Producer on top of a kafka-go writer
type KafkaProducer struct {
	logger *logger.Logger
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer. Returns a no-op producer when no
// brokers are configured so event publishing stays optional.
func NewProducer(cfg config.KafkaConfig, log *logger.Logger) Producer {
	if len(cfg.Brokers) == 0 {
		return &NopProducer{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: timeout,
		BatchTimeout: time.Second,
	}

	return &KafkaProducer{
		logger: log.Named("kafka-producer"),
		writer: writer,
	}
}

// ProduceJSON marshals the value and publishes it under the given key
func (p *KafkaProducer) ProduceJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Published event", zap.String("key", key))
	return nil
}

// Close closes the underlying writer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// NopProducer discards all events
type NopProducer struct{}

func (*NopProducer) ProduceJSON(context.Context, string, interface{}) error { return nil }
func (*NopProducer) Close() error                                           { return nil }

// MockProducer records events for tests
type MockProducer struct {
	mu       sync.Mutex
	Messages []MockMessage
}

// MockMessage represents a recorded event
type MockMessage struct {
	Key   string
	Value string
}

// ProduceJSON records the event in memory
func (m *MockProducer) ProduceJSON(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, MockMessage{Key: key, Value: string(data)})
	return nil
}

// Close is a no-op
func (m *MockProducer) Close() error { return nil }
