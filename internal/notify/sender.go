package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a rendered message to the shop staff.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log. It is the default when no outbound
// channel is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("order notification",
		zap.String("order_id", msg.OrderID),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
		zap.String("whatsapp_link", msg.WhatsAppLink),
	)
	return nil
}
