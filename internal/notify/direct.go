package notify

import (
	"context"

	"github.com/aderut/moridam/internal/domain"
)

// DirectNotifier renders and sends in the calling goroutine, skipping the
// broker. Used when no Kafka cluster is configured.
type DirectNotifier struct {
	sender         Sender
	whatsappNumber string
}

func NewDirectNotifier(sender Sender, whatsappNumber string) *DirectNotifier {
	return &DirectNotifier{sender: sender, whatsappNumber: whatsappNumber}
}

func (n *DirectNotifier) Notify(ctx context.Context, summary domain.OrderSummary) error {
	return n.sender.Send(ctx, Render(summary, n.whatsappNumber))
}
