package cache

import (
	"context"

	"github.com/fjod/cart-manager/internal/domain"
)

// NopCache always misses. Used when no Redis address is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.Cart, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Set(context.Context, string, *domain.Cart) error {
	return nil
}

func (NopCache) Delete(context.Context, string) error {
	return nil
}
