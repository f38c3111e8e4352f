package cache

import (
	"context"
	"errors"

	"github.com/fjod/cart-manager/internal/domain"
)

// CartCache holds cart lines only. Product data is never cached: stock must
// be read live on every request.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
