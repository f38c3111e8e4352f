package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/cart-manager/internal/domain"
)

// MemoryRepository implements CartRepository with in-memory storage. Carts
// are copied on the way in and out so callers never share state.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart // userID -> cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (s *MemoryRepository) FindByUser(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (s *MemoryRepository) FindOrCreate(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[userID]
	if !ok {
		now := time.Now().UTC()
		cart = &domain.Cart{
			UserID:    userID,
			Items:     []domain.CartLine{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.carts[userID] = cart
	}
	return cart.Clone(), nil
}

func (s *MemoryRepository) Save(_ context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.carts[cart.UserID]
	if !ok || stored.Version != cart.Version {
		return ErrConflict
	}

	cart.Version++
	cart.UpdatedAt = time.Now().UTC()
	s.carts[cart.UserID] = cart.Clone()
	return nil
}

func (s *MemoryRepository) Ping(context.Context) error {
	return nil
}
