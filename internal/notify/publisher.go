package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/pkg/circuitbreaker"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	DefaultTopic         = "order-placed"
	EventTypeOrderPlaced = "order_placed"
	headerEventType      = "event_type"
)

// orderPlacedEvent is the payload written to the order-placed topic.
type orderPlacedEvent struct {
	Type       string              `json:"type"`
	Order      domain.OrderSummary `json:"order"`
	OccurredAt time.Time           `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes placed orders for the notifier worker to deliver.
type KafkaNotifier struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *zap.Logger
}

func NewKafkaNotifier(brokers []string, topic string, logger *zap.Logger) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaNotifier(writer, circuitbreaker.DefaultSettings(), logger)
}

func newKafkaNotifier(w messageWriter, s circuitbreaker.Settings, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer:  w,
		breaker: circuitbreaker.New[struct{}]("kafka-notifier", s, logger),
		logger:  logger,
	}
}

// Notify publishes summary keyed by order id so redeliveries of the same
// order land on one partition.
func (n *KafkaNotifier) Notify(ctx context.Context, summary domain.OrderSummary) error {
	payload, err := json.Marshal(orderPlacedEvent{
		Type:       EventTypeOrderPlaced,
		Order:      summary,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(summary.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(EventTypeOrderPlaced)},
		},
	}

	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return &domain.DependencyError{Dependency: "notification broker", Err: err}
	}

	n.logger.Debug("order event published", zap.String("order_id", summary.OrderID))
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
