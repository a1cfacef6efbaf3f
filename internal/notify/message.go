package notify

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/aderut/moridam/internal/domain"
)

// Message is a rendered order notification ready for a Sender.
type Message struct {
	OrderID      string
	Subject      string
	Text         string
	WhatsAppLink string
}

// Render builds the staff notification for an order plus a click-to-chat
// link the customer can use to confirm it over WhatsApp.
func Render(s domain.OrderSummary, whatsappNumber string) Message {
	var b strings.Builder
	b.WriteString("New order received\n\n")
	if s.OrderNumber != "" {
		fmt.Fprintf(&b, "Order: %s\n", s.OrderNumber)
	}
	fmt.Fprintf(&b, "Order ID: %s\n", s.OrderID)
	fmt.Fprintf(&b, "Name: %s\n", s.FullName)
	fmt.Fprintf(&b, "Phone: %s\n", s.Phone)
	fmt.Fprintf(&b, "Method: %s\n", s.Method)
	fmt.Fprintf(&b, "Address: %s\n", orDash(s.Address))
	fmt.Fprintf(&b, "Note: %s\n", orDash(s.Note))

	b.WriteString("\nItems:\n")
	for _, it := range s.Items {
		fmt.Fprintf(&b, "• %s x%d: %s\n", it.Title, it.Qty, Naira(it.UnitPrice*float64(it.Qty)))
		if it.Options != "" {
			fmt.Fprintf(&b, "  %s\n", it.Options)
		}
	}

	fmt.Fprintf(&b, "\nSubtotal: %s\n", Naira(s.Subtotal))
	fmt.Fprintf(&b, "Delivery: %s\n", Naira(s.DeliveryFee))
	fmt.Fprintf(&b, "Total: %s\n", Naira(s.Total))

	return Message{
		OrderID:      s.OrderID,
		Subject:      "New Order " + Naira(s.Total),
		Text:         b.String(),
		WhatsAppLink: WhatsAppLink(whatsappNumber, customerText(s)),
	}
}

func customerText(s domain.OrderSummary) string {
	ref := s.OrderNumber
	if ref == "" {
		ref = s.OrderID
	}
	if ref == "" {
		ref = "N/A"
	}
	return fmt.Sprintf("Hi Moridam Catering, I placed an order.\nOrder: %s\nMethod: %s\nTotal: %s",
		ref, s.Method, Naira(s.Total))
}

// WhatsAppLink returns a wa.me click-to-chat URL. Non-digits are stripped
// from number.
func WhatsAppLink(number, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(text)
}

// Naira formats an amount with thousands separators and at most two
// decimals, e.g. ₦12,500 or ₦1,250.5.
func Naira(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	fixed := strconv.FormatFloat(math.Round(amount*100)/100, 'f', 2, 64)
	whole, frac, _ := strings.Cut(fixed, ".")
	frac = strings.TrimRight(frac, "0")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + "₦" + b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
