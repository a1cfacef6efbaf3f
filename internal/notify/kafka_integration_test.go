package notify

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

func setupKafka(t *testing.T) string {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(kafkaContainer); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func TestKafkaRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	broker := setupKafka(t)
	topic := "order-placed-test"
	logger := zap.NewNop()

	publisher := NewKafkaNotifier([]string{broker}, topic, logger)
	t.Cleanup(func() { publisher.Close() })

	createTopic(t, broker, topic)
	require.NoError(t, publisher.Notify(context.Background(), sampleSummary()))

	sender := &recordingSender{}
	consumer := NewConsumer([]string{broker}, topic, "moridam-test", sender, "2348161637306", logger)
	t.Cleanup(func() { consumer.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sender.messages()) >= 1 }, 60*time.Second, 200*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	msg := sender.messages()[0]
	assert.Equal(t, sampleSummary().OrderID, msg.OrderID)
	assert.Contains(t, msg.Text, "Order: MD-000042")
}
