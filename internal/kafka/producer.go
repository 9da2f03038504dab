package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// Producer publishes position mutation events to kafka for downstream
// consumers. Messages are keyed by holder id so one holder's events stay
// ordered within a partition.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a kafka producer for position events.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishPositionEvent writes one position event.
func (p *Producer) PublishPositionEvent(ctx context.Context, event models.PositionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal position event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.HolderID, 10)),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the kafka producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
