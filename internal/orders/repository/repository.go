package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aderut/moridam/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound             = fmt.Errorf("order %w", domain.ErrNotFound)
	ErrLineNotFound              = fmt.Errorf("order line %w", domain.ErrNotFound)
	ErrDuplicatePaymentReference = errors.New("order for this payment reference already exists")
	// ErrStatusChanged means the order left the expected status before the update landed.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// OrderRepository stores order headers and their lines. CreateOrder fills in
// OrderNumber and CreatedAt.
type OrderRepository interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order *domain.Order) error
	CreateOrderLines(ctx context.Context, orderID uuid.UUID, lines []domain.OrderLine) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByPaymentReference(ctx context.Context, ref string) (*domain.Order, error)
	ListOrders(ctx context.Context, limit int) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	SetLineChecked(ctx context.Context, lineID uuid.UUID, checked bool) error
}

func formatOrderNumber(seq int64) string {
	return fmt.Sprintf("MD-%06d", seq)
}
