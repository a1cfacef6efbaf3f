package cache

import (
	"context"
	"errors"

	"github.com/aderut/moridam/internal/cart"
)

type CartCache interface {
	Get(ctx context.Context, sessionID string) (*cart.Cart, error)
	Set(ctx context.Context, sessionID string, doc *cart.Document) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
