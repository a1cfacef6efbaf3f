package domain

import "fmt"

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusPrepping  OrderStatus = "prepping"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:      {OrderStatusPrepping, OrderStatusCancelled},
	OrderStatusPrepping: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:    {OrderStatusCompleted, OrderStatusCancelled},
}

// ParseOrderStatus rejects anything outside the fulfillment enum.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusNew, OrderStatusPrepping, OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return st, nil
	}
	return "", NewValidationError("status", fmt.Sprintf("invalid status %q", s))
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
