package notify

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aderut/moridam/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() domain.OrderSummary {
	return domain.OrderSummary{
		OrderID:     "9c5b94b1-35ad-49bb-b118-8e8fc24abf80",
		OrderNumber: "MD-000042",
		FullName:    "Ada Obi",
		Phone:       "08030000000",
		Method:      domain.MethodDelivery,
		Address:     "12 Allen Avenue, Ikeja",
		Subtotal:    5500,
		DeliveryFee: 1250,
		Total:       6750,
		Items: []domain.SummaryItem{
			{Title: "Milkshake", Qty: 2, UnitPrice: 2000, Options: "Extras: Oreo, Extra Cream; Flavor: Vanilla"},
			{Title: "Water", Qty: 1, UnitPrice: 1500},
		},
		PlacedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNaira(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "₦0"},
		{500, "₦500"},
		{2000, "₦2,000"},
		{1250000, "₦1,250,000"},
		{1250.5, "₦1,250.5"},
		{99.999, "₦100"},
		{-1500, "-₦1,500"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Naira(tt.amount))
	}
}

func TestRender(t *testing.T) {
	msg := Render(sampleSummary(), "+234 816 163 7306")

	assert.Equal(t, "9c5b94b1-35ad-49bb-b118-8e8fc24abf80", msg.OrderID)
	assert.Equal(t, "New Order ₦6,750", msg.Subject)

	assert.True(t, strings.HasPrefix(msg.Text, "New order received\n"))
	assert.Contains(t, msg.Text, "Order: MD-000042\n")
	assert.Contains(t, msg.Text, "Name: Ada Obi\n")
	assert.Contains(t, msg.Text, "Method: delivery\n")
	assert.Contains(t, msg.Text, "Address: 12 Allen Avenue, Ikeja\n")
	assert.Contains(t, msg.Text, "Note: -\n")
	assert.Contains(t, msg.Text, "• Milkshake x2: ₦4,000\n")
	assert.Contains(t, msg.Text, "  Extras: Oreo, Extra Cream; Flavor: Vanilla\n")
	assert.Contains(t, msg.Text, "• Water x1: ₦1,500\n")
	assert.Contains(t, msg.Text, "Subtotal: ₦5,500\n")
	assert.Contains(t, msg.Text, "Delivery: ₦1,250\n")
	assert.Contains(t, msg.Text, "Total: ₦6,750\n")
}

func TestRenderWhatsAppLink(t *testing.T) {
	msg := Render(sampleSummary(), "+234 816 163 7306")

	u, err := url.Parse(msg.WhatsAppLink)
	require.NoError(t, err)
	assert.Equal(t, "wa.me", u.Host)
	assert.Equal(t, "/2348161637306", u.Path)

	text := u.Query().Get("text")
	assert.Equal(t, "Hi Moridam Catering, I placed an order.\nOrder: MD-000042\nMethod: delivery\nTotal: ₦6,750", text)
}

func TestRenderFallsBackToOrderID(t *testing.T) {
	s := sampleSummary()
	s.OrderNumber = ""
	s.Method = domain.MethodPickup
	s.Address = ""
	s.Note = "No onions"

	msg := Render(s, "2348161637306")

	assert.NotContains(t, msg.Text, "Order: MD")
	assert.Contains(t, msg.Text, "Address: -\n")
	assert.Contains(t, msg.Text, "Note: No onions\n")

	u, err := url.Parse(msg.WhatsAppLink)
	require.NoError(t, err)
	assert.Contains(t, u.Query().Get("text"), "Order: "+s.OrderID)
}
