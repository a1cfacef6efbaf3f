package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// mockReader serves queued messages, then blocks until the context ends.
type mockReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (m *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	return nil
}

func (m *mockReader) Close() error { return nil }

func (m *mockReader) commits() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.committed...)
}

type recordingSender struct {
	mu       sync.Mutex
	sent     []Message
	failures int
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("smtp down")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func orderMessage(t *testing.T, offset int64) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(orderPlacedEvent{Type: EventTypeOrderPlaced, Order: sampleSummary()})
	require.NoError(t, err)
	return kafka.Message{
		Offset:  offset,
		Value:   payload,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(EventTypeOrderPlaced)}},
	}
}

func runConsumer(t *testing.T, c *Consumer, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, until, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerSendsAndCommits(t *testing.T) {
	reader := &mockReader{queue: []kafka.Message{orderMessage(t, 7)}}
	sender := &recordingSender{}
	c := newConsumer(reader, sender, "2348161637306", zap.NewNop())

	runConsumer(t, c, func() bool { return len(reader.commits()) == 1 })

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "New Order ₦6,750", sent[0].Subject)
	assert.Contains(t, sent[0].WhatsAppLink, "https://wa.me/2348161637306?text=")
	assert.Equal(t, []int64{7}, reader.commits())
}

func TestConsumerCommitsUndeliverableEvents(t *testing.T) {
	other := kafka.Message{Offset: 1, Value: []byte(`{}`), Headers: []kafka.Header{{Key: headerEventType, Value: []byte("order_cancelled")}}}
	garbage := kafka.Message{Offset: 2, Value: []byte(`not json`), Headers: []kafka.Header{{Key: headerEventType, Value: []byte(EventTypeOrderPlaced)}}}
	reader := &mockReader{queue: []kafka.Message{other, garbage, orderMessage(t, 3)}}
	sender := &recordingSender{}
	c := newConsumer(reader, sender, "2348161637306", zap.NewNop())

	runConsumer(t, c, func() bool { return len(reader.commits()) == 3 })

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	assert.Len(t, sender.messages(), 1)
}

func TestConsumerRetriesSend(t *testing.T) {
	reader := &mockReader{queue: []kafka.Message{orderMessage(t, 4)}}
	sender := &recordingSender{failures: 2}
	c := newConsumer(reader, sender, "2348161637306", zap.NewNop())
	c.backoff = time.Millisecond

	runConsumer(t, c, func() bool { return len(reader.commits()) == 1 })

	assert.Len(t, sender.messages(), 1)
}

func TestConsumerGivesUpAfterMaxAttempts(t *testing.T) {
	reader := &mockReader{queue: []kafka.Message{orderMessage(t, 5), orderMessage(t, 6)}}
	sender := &recordingSender{failures: maxSendAttempts}
	c := newConsumer(reader, sender, "2348161637306", zap.NewNop())
	c.backoff = time.Millisecond

	runConsumer(t, c, func() bool { return len(reader.commits()) == 2 })

	assert.Equal(t, []int64{5, 6}, reader.commits())
	assert.Len(t, sender.messages(), 1)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	msg := Render(sampleSummary(), "2348161637306")
	require.NoError(t, s.Send(context.Background(), msg))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "order notification", entry.Message)
	assert.Equal(t, msg.OrderID, entry.ContextMap()["order_id"])
	assert.Equal(t, msg.WhatsAppLink, entry.ContextMap()["whatsapp_link"])
}

func TestDirectNotifier(t *testing.T) {
	sender := &recordingSender{}
	n := NewDirectNotifier(sender, "2348161637306")

	require.NoError(t, n.Notify(context.Background(), sampleSummary()))
	require.Len(t, sender.messages(), 1)
	assert.Equal(t, "New Order ₦6,750", sender.messages()[0].Subject)

	sender.failures = 1
	assert.Error(t, n.Notify(context.Background(), sampleSummary()))
}
