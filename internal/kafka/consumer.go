package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// Publisher is the in-process channel registry boundary.
type Publisher interface {
	Publish(holderID int64, event models.Event)
}

// Reader abstracts the kafka reader for testing.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer bridges position events written by other services into the local
// hub, so externally committed mutations still reach connected holders.
type Consumer struct {
	reader Reader
	pub    Publisher
	logger *zap.Logger
}

// NewConsumer creates a kafka consumer for position events.
func NewConsumer(brokers []string, topic, groupID string, pub Publisher, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{reader: reader, pub: pub, logger: logger}
}

// NewConsumerWithReader creates a consumer over an existing reader.
func NewConsumerWithReader(reader Reader, pub Publisher, logger *zap.Logger) *Consumer {
	return &Consumer{reader: reader, pub: pub, logger: logger}
}

// Start consumes messages until ctx is cancelled. Malformed messages are
// logged and skipped; they never stop the bridge.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("position event consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("position event consumer shutting down")
				return c.reader.Close()
			}
			c.logger.Error("failed to read message", zap.Error(err))
			continue
		}

		if err := c.processMessage(msg); err != nil {
			c.logger.Warn("skipping message", zap.Error(err))
		}
	}
}

func (c *Consumer) processMessage(msg kafka.Message) error {
	var wire models.PositionEvent
	if err := json.Unmarshal(msg.Value, &wire); err != nil {
		return fmt.Errorf("failed to unmarshal position event: %w", err)
	}

	if wire.HolderID <= 0 {
		return fmt.Errorf("position event missing holder id")
	}

	event, ok := wire.ToEvent()
	if !ok {
		return fmt.Errorf("unsupported or inconsistent event type %q", wire.EventType)
	}

	c.pub.Publish(wire.HolderID, event)
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
