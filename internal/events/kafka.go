package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"UserService/internal/utils"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to a single topic keyed by user id, so all
// events of one user land on the same partition in order.
type KafkaPublisher struct {
	writer   *kafka.Writer
	attempts uint64
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			MaxAttempts:  1,
		},
		attempts: 3,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.UserID.String()),
		Value: payload,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	return utils.Retry(ctx, p.attempts, 50*time.Millisecond, func(ctx context.Context) error {
		return p.writer.WriteMessages(ctx, msg)
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
