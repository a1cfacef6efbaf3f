package domain

import (
	"time"

	"github.com/google/uuid"
)

type FulfillmentMethod string

const (
	MethodDelivery FulfillmentMethod = "delivery"
	MethodPickup   FulfillmentMethod = "pickup"
)

// DraftLine is the client's snapshot of one cart line at checkout time.
type DraftLine struct {
	Title                 string           `json:"title"`
	Qty                   int              `json:"qty"`
	UnitPrice             float64          `json:"unit_price"`
	SelectedOptionDetails []SelectedDetail `json:"selected_options,omitempty"`
}

type OrderDraft struct {
	FullName        string            `json:"full_name"`
	Phone           string            `json:"phone"`
	Method          FulfillmentMethod `json:"method"`
	Address         string            `json:"address,omitempty"`
	Note            string            `json:"note,omitempty"`
	Lines           []DraftLine       `json:"items"`
	Total           float64           `json:"total"`
	DeliveryFee     float64           `json:"delivery_fee,omitempty"`
	PaymentProvider string            `json:"payment_provider,omitempty"`
}

type OrderLine struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	OrderID         uuid.UUID        `db:"order_id" json:"order_id"`
	Title           string           `db:"title" json:"title"`
	Qty             int              `db:"qty" json:"qty"`
	UnitPrice       float64          `db:"unit_price" json:"unit_price"`
	SelectedOptions []SelectedDetail `db:"-" json:"selected_options"`
	Checked         bool             `db:"checked" json:"checked"`
}

type Order struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	OrderNumber      string            `db:"order_number" json:"order_number"`
	Status           OrderStatus       `db:"status" json:"status"`
	FullName         string            `db:"full_name" json:"full_name"`
	Phone            string            `db:"phone" json:"phone"`
	Method           FulfillmentMethod `db:"method" json:"method"`
	Address          string            `db:"address" json:"address,omitempty"`
	Note             string            `db:"note" json:"note,omitempty"`
	Subtotal         float64           `db:"subtotal" json:"subtotal"`
	DeliveryFee      float64           `db:"delivery_fee" json:"delivery_fee"`
	Total            float64           `db:"total" json:"total"`
	Paid             bool              `db:"paid" json:"paid"`
	PaymentProvider  string            `db:"payment_provider" json:"payment_provider"`
	PaymentReference string            `db:"payment_reference" json:"payment_reference"`
	Lines            []OrderLine       `db:"-" json:"items"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}

// OrderRef is what checkout hands back to the customer.
// Created is false when the reference already had an order.
type OrderRef struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Created     bool      `json:"-"`
}

func (o *Order) Ref() *OrderRef {
	return &OrderRef{OrderID: o.ID, OrderNumber: o.OrderNumber}
}

// OrderSummary is the payload handed to the notification channel.
type OrderSummary struct {
	OrderID     string            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	FullName    string            `json:"full_name"`
	Phone       string            `json:"phone"`
	Method      FulfillmentMethod `json:"method"`
	Address     string            `json:"address,omitempty"`
	Note        string            `json:"note,omitempty"`
	Subtotal    float64           `json:"subtotal"`
	DeliveryFee float64           `json:"delivery_fee"`
	Total       float64           `json:"total"`
	Items       []SummaryItem     `json:"items"`
	PlacedAt    time.Time         `json:"placed_at"`
}

type SummaryItem struct {
	Title     string  `json:"title"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	Options   string  `json:"options,omitempty"`
}
