package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	retryBackoff    = time.Second
	maxSendAttempts = 3
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads order events and hands the rendered message to a Sender.
// A send is attempted up to maxSendAttempts times; after that the event is
// logged and committed so one bad order cannot stall the partition.
type Consumer struct {
	reader         messageReader
	sender         Sender
	whatsappNumber string
	backoff        time.Duration
	logger         *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, sender Sender, whatsappNumber string, logger *zap.Logger) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, sender, whatsappNumber, logger)
}

func newConsumer(r messageReader, sender Sender, whatsappNumber string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:         r,
		sender:         sender,
		whatsappNumber: whatsappNumber,
		backoff:        retryBackoff,
		logger:         logger,
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("notification consumer started")
	for {
		if ctx.Err() != nil {
			c.logger.Info("notification consumer stopped")
			return nil
		}

		if err := c.processMessage(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to process order event", zap.Error(err))
			c.wait(ctx)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) processMessage(ctx context.Context) error {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}

	if eventType(msg) != EventTypeOrderPlaced {
		c.logger.Debug("skipping event", zap.String("event_type", eventType(msg)))
		return c.commit(ctx, msg)
	}

	var event orderPlacedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("dropping malformed order event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return c.commit(ctx, msg)
	}

	out := Render(event.Order, c.whatsappNumber)
	if err := c.send(ctx, out); err != nil {
		if ctx.Err() != nil {
			return err
		}
		c.logger.Error("giving up on order notification",
			zap.String("order_id", event.Order.OrderID),
			zap.Int("attempts", maxSendAttempts),
			zap.Error(err),
		)
		return c.commit(ctx, msg)
	}

	c.logger.Info("order notification sent",
		zap.String("order_id", event.Order.OrderID),
		zap.String("order_number", event.Order.OrderNumber),
	)
	return c.commit(ctx, msg)
}

func (c *Consumer) send(ctx context.Context, out Message) error {
	var err error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if err = c.sender.Send(ctx, out); err == nil {
			return nil
		}
		c.logger.Warn("notification send failed",
			zap.String("order_id", out.OrderID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < maxSendAttempts {
			c.wait(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return err
}

func (c *Consumer) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.backoff):
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}

func eventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == headerEventType {
			return string(h.Value)
		}
	}
	return ""
}
