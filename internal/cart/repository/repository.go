package repository

import (
	"context"
	"errors"

	"github.com/aderut/moridam/internal/cart"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository is the durable store behind the cart cache.
type CartRepository interface {
	GetCart(ctx context.Context, sessionID string) (*cart.Document, error)
	UpsertCart(ctx context.Context, doc *cart.Document) error
	DeleteCart(ctx context.Context, sessionID string) error
}
