package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cart-manager/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	maxAttempts  = 3
	retryBackoff = 50 * time.Millisecond
)

// CartClearer empties a user's cart after a completed checkout.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

type checkoutEvent struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

type Poller struct {
	carts  CartClearer
	reader *kafka.Reader
	log    *zap.Logger
}

func NewPoller(carts CartClearer, cfg Config, log *zap.Logger) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader, log: log}
}

// Run consumes checkout events until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Error("error reading message", zap.Error(err))
			}
			continue
		}
		if err := p.handle(ctx, m.Value); err != nil {
			p.log.Error("checkout event not applied",
				zap.Int64("offset", m.Offset),
				zap.Int("partition", m.Partition),
				zap.Error(err),
			)
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", zap.Error(err))
	}
}

// handle clears the purchaser's cart. A cart that is already gone or empty
// is the expected state after a checkout and is not an error.
func (p *Poller) handle(ctx context.Context, value []byte) error {
	var ev checkoutEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("parse checkout event: %w", err)
	}
	if ev.UserID == "" {
		return errors.New("missing or invalid user_id")
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = p.carts.ClearCart(ctx, ev.UserID)
		switch {
		case err == nil:
			p.log.Info("cart cleared after checkout",
				zap.String("checkout_id", ev.CheckoutID),
				zap.String("user_id", ev.UserID),
			)
			return nil
		case errors.Is(err, domain.ErrCartNotFound), errors.Is(err, domain.ErrCartEmpty):
			return nil
		case !errors.Is(err, domain.ErrConflict):
			return fmt.Errorf("clear cart for user %s: %w", ev.UserID, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("clear cart for user %s after %d attempts: %w", ev.UserID, maxAttempts, err)
}
