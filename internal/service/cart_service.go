package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/cart-manager/internal/cache"
	"github.com/fjod/cart-manager/internal/catalog"
	"github.com/fjod/cart-manager/internal/domain"
	"github.com/fjod/cart-manager/internal/logger"
	"github.com/fjod/cart-manager/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProductCatalog is the read-only product lookup the cart depends on.
// FindByID returns catalog.ErrProductNotFound for unknown ids; FindByIDs
// skips them.
type ProductCatalog interface {
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error)
}

// AddResult reports the line after AddItem and whether it was newly created.
type AddResult struct {
	Line    domain.CartLine
	Created bool
}

type CartService struct {
	products ProductCatalog
	repo     repository.CartRepository
	cache    cache.CartCache
	log      *zap.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(products ProductCatalog, repo repository.CartRepository, cache cache.CartCache, log *zap.Logger) *CartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{
		products: products,
		repo:     repo,
		cache:    cache,
		log:      log,
	}
}

// AddItem puts one unit of productID into the user's cart, creating the cart
// on first use.
func (s *CartService) AddItem(ctx context.Context, userID string, productID int64) (AddResult, error) {
	product, err := s.product(ctx, "add_item", productID)
	if err != nil {
		return AddResult{}, err
	}
	if !product.InStock() {
		return AddResult{}, s.reject(ctx, "add_item", userID, domain.InsufficientStock(productID))
	}

	cart, err := s.repo.FindOrCreate(ctx, userID)
	if err != nil {
		return AddResult{}, s.fail(ctx, "add_item", userID, err)
	}

	var result AddResult
	if i := cart.FindLine(productID); i >= 0 {
		line := &cart.Items[i]
		if line.Quantity >= product.Stock {
			return AddResult{}, s.reject(ctx, "add_item", userID, domain.StockLimitReached(line.Quantity, product.Stock))
		}
		line.Quantity++
		result.Line = *line
	} else {
		line := domain.CartLine{ProductID: productID, Quantity: 1, AddedAt: time.Now().UTC()}
		cart.Items = append(cart.Items, line)
		result = AddResult{Line: line, Created: true}
	}

	if err := s.save(ctx, "add_item", cart); err != nil {
		return AddResult{}, err
	}
	return result, nil
}

// GetCart returns the cart lines joined with live product data. Lines whose
// product no longer exists are dropped.
func (s *CartService) GetCart(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, s.reject(ctx, "get_cart", userID, domain.CartEmpty())
	}

	products, err := s.products.FindByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return nil, s.fail(ctx, "get_cart", userID, err)
	}
	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	entries := make([]domain.CartEntry, 0, len(cart.Items))
	for _, line := range cart.Items {
		p, ok := byID[line.ProductID]
		if !ok {
			continue
		}
		entries = append(entries, domain.CartEntry{Product: *p, Quantity: line.Quantity})
	}
	if len(entries) == 0 {
		return nil, s.reject(ctx, "get_cart", userID, domain.NoValidProducts())
	}
	return entries, nil
}

func (s *CartService) IncrementQuantity(ctx context.Context, userID string, productID int64) (domain.CartLine, error) {
	product, err := s.product(ctx, "increment", productID)
	if err != nil {
		return domain.CartLine{}, err
	}

	cart, i, err := s.findLine(ctx, "increment", userID, productID)
	if err != nil {
		return domain.CartLine{}, err
	}

	line := &cart.Items[i]
	if line.Quantity >= product.Stock {
		return domain.CartLine{}, s.reject(ctx, "increment", userID, domain.StockLimitReached(line.Quantity, product.Stock))
	}
	line.Quantity++

	if err := s.save(ctx, "increment", cart); err != nil {
		return domain.CartLine{}, err
	}
	return cart.Items[i], nil
}

func (s *CartService) DecrementQuantity(ctx context.Context, userID string, productID int64) (domain.CartLine, error) {
	if _, err := s.product(ctx, "decrement", productID); err != nil {
		return domain.CartLine{}, err
	}

	cart, i, err := s.findLine(ctx, "decrement", userID, productID)
	if err != nil {
		return domain.CartLine{}, err
	}

	line := &cart.Items[i]
	if line.Quantity <= 1 {
		return domain.CartLine{}, s.reject(ctx, "decrement", userID, domain.MinimumQuantityReached())
	}
	line.Quantity--

	if err := s.save(ctx, "decrement", cart); err != nil {
		return domain.CartLine{}, err
	}
	return cart.Items[i], nil
}

// RemoveLine deletes the line for productID whatever its quantity. The
// product does not have to exist in the catalog any more.
func (s *CartService) RemoveLine(ctx context.Context, userID string, productID int64) error {
	cart, i, err := s.findLine(ctx, "remove_line", userID, productID)
	if err != nil {
		return err
	}

	cart.RemoveLine(i)
	return s.save(ctx, "remove_line", cart)
}

// ClearCart empties the cart but keeps the cart record. Clearing an already
// empty cart is an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	cart, err := s.findCart(ctx, "clear_cart", userID)
	if err != nil {
		return err
	}

	cart.Items = []domain.CartLine{}
	return s.save(ctx, "clear_cart", cart)
}

// loadCart serves reads from the cache and falls back to the store,
// collapsing concurrent misses for the same user into one store call.
func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithContext(ctx, s.log).Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		cart, err = s.repo.FindByUser(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, domain.CartNotFound()
		}
		if err != nil {
			return nil, err
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.cache.Set(setCtx, userID, cart); err != nil {
			logger.WithContext(ctx, s.log).Warn("cache set failed", zap.String("user_id", userID), zap.Error(err))
		}
		return cart, nil
	})
	if err != nil {
		var cartErr *domain.CartError
		if errors.As(err, &cartErr) {
			return nil, s.reject(ctx, "get_cart", userID, cartErr)
		}
		return nil, s.fail(ctx, "get_cart", userID, err)
	}

	// singleflight hands the same pointer to every waiter
	return v.(*domain.Cart).Clone(), nil
}

// findCart reads the cart straight from the store, so the version used by
// the following save is the current one.
func (s *CartService) findCart(ctx context.Context, op, userID string) (*domain.Cart, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, s.reject(ctx, op, userID, domain.CartNotFound())
	}
	if err != nil {
		return nil, s.fail(ctx, op, userID, err)
	}
	if cart.IsEmpty() {
		return nil, s.reject(ctx, op, userID, domain.CartEmpty())
	}
	return cart, nil
}

func (s *CartService) findLine(ctx context.Context, op, userID string, productID int64) (*domain.Cart, int, error) {
	cart, err := s.findCart(ctx, op, userID)
	if err != nil {
		return nil, -1, err
	}
	i := cart.FindLine(productID)
	if i < 0 {
		return nil, -1, s.reject(ctx, op, userID, domain.LineNotFound(productID))
	}
	return cart, i, nil
}

func (s *CartService) product(ctx context.Context, op string, productID int64) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, s.reject(ctx, op, "", domain.ProductNotFound(productID))
	}
	if err != nil {
		return nil, s.fail(ctx, op, "", err)
	}
	return p, nil
}

func (s *CartService) save(ctx context.Context, op string, cart *domain.Cart) error {
	err := s.repo.Save(ctx, cart)
	if errors.Is(err, repository.ErrConflict) {
		return s.reject(ctx, op, cart.UserID, domain.Conflict(err))
	}
	if err != nil {
		return s.fail(ctx, op, cart.UserID, err)
	}

	s.invalidateCache(ctx, cart.UserID)
	return nil
}

func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(delCtx, userID); err != nil {
		logger.WithContext(ctx, s.log).Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *CartService) reject(ctx context.Context, op, userID string, err *domain.CartError) error {
	logger.WithContext(ctx, s.log).Debug("cart operation rejected",
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.String("kind", string(err.Kind)),
	)
	return err
}

// fail hides a collaborator error behind the Internal kind. The cause stays
// reachable through Unwrap for logging only.
func (s *CartService) fail(ctx context.Context, op, userID string, err error) error {
	logger.WithContext(ctx, s.log).Error("cart operation failed",
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	return domain.Internal(err)
}
