package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes raw messages to a topic.
type Producer interface {
	SendMessage(ctx context.Context, topic string, key []byte, value []byte) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer returns a producer that hashes keys to partitions, so
// records of one correlation id stay ordered.
func NewKafkaProducer(brokers []string) Producer {
	return &kafkaProducer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (p *kafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: value})
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaSink publishes each entry keyed by correlation id. The producer is
// shared between channels and closed by its owner, not by the sink.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Emit(ctx context.Context, channel, message string, fields map[string]any) error {
	payload, err := json.Marshal(newEntry(channel, message, fields))
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	var key []byte
	if id, ok := fields["id"].(string); ok {
		key = []byte(id)
	}
	if err := s.producer.SendMessage(ctx, s.topic, key, payload); err != nil {
		return fmt.Errorf("kafka publish %s: %w", s.topic, err)
	}
	return nil
}

