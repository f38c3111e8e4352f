package repository

import (
	"context"
	"errors"

	"github.com/fjod/cart-manager/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrConflict     = errors.New("cart was modified concurrently")
)

// CartRepository defines the interface for cart data operations.
//
// Save is conditional: it succeeds only when the stored version still equals
// cart.Version, bumps the version on success, and returns ErrConflict
// otherwise. It never overwrites a cart it did not read.
type CartRepository interface {
	FindByUser(ctx context.Context, userID string) (*domain.Cart, error)
	// FindOrCreate returns the user's cart, atomically inserting an empty one
	// if none exists.
	FindOrCreate(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Ping(ctx context.Context) error
}
