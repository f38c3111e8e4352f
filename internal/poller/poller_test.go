package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/cart-manager/internal/cache"
	"github.com/fjod/cart-manager/internal/domain"
	"github.com/fjod/cart-manager/internal/repository"
	"github.com/fjod/cart-manager/internal/service"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gotest.tools/v3/assert"
)

type mockClearer struct {
	m     sync.Mutex
	errs  []error
	calls []string
}

func (c *mockClearer) ClearCart(_ context.Context, userID string) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.calls = append(c.calls, userID)
	if len(c.errs) == 0 {
		return nil
	}
	err := c.errs[0]
	c.errs = c.errs[1:]
	return err
}

func (c *mockClearer) callCount() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.calls)
}

func newTestPoller(t *testing.T, carts CartClearer) *Poller {
	return &Poller{carts: carts, log: zaptest.NewLogger(t)}
}

func TestHandle_ClearsCart(t *testing.T) {
	clearer := &mockClearer{}
	p := newTestPoller(t, clearer)

	err := p.handle(context.Background(), []byte(`{"checkout_id":"ch1","user_id":"123"}`))
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"123"}, clearer.calls)
}

func TestHandle_AlreadyClearIsNotAnError(t *testing.T) {
	for _, cause := range []error{domain.CartNotFound(), domain.CartEmpty()} {
		clearer := &mockClearer{errs: []error{cause}}
		p := newTestPoller(t, clearer)

		err := p.handle(context.Background(), []byte(`{"user_id":"123"}`))
		assert.NilError(t, err)
		assert.Equal(t, 1, clearer.callCount())
	}
}

func TestHandle_RetriesConflict(t *testing.T) {
	clearer := &mockClearer{errs: []error{domain.Conflict(nil), domain.Conflict(nil)}}
	p := newTestPoller(t, clearer)

	err := p.handle(context.Background(), []byte(`{"user_id":"123"}`))
	assert.NilError(t, err)
	assert.Equal(t, 3, clearer.callCount())
}

func TestHandle_GivesUpAfterMaxAttempts(t *testing.T) {
	clearer := &mockClearer{errs: []error{domain.Conflict(nil), domain.Conflict(nil), domain.Conflict(nil), nil}}
	p := newTestPoller(t, clearer)

	err := p.handle(context.Background(), []byte(`{"user_id":"123"}`))
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Assert(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, maxAttempts, clearer.callCount())
}

func TestHandle_OtherErrorNotRetried(t *testing.T) {
	clearer := &mockClearer{errs: []error{domain.Internal(errors.New("db down"))}}
	p := newTestPoller(t, clearer)

	err := p.handle(context.Background(), []byte(`{"user_id":"123"}`))
	assert.ErrorContains(t, err, "clear cart for user 123")
	assert.Equal(t, 1, clearer.callCount())
}

func TestHandle_BadPayload(t *testing.T) {
	clearer := &mockClearer{}
	p := newTestPoller(t, clearer)

	assert.ErrorContains(t, p.handle(context.Background(), []byte(`not json`)), "parse checkout event")
	assert.ErrorContains(t, p.handle(context.Background(), []byte(`{"user_id":42}`)), "parse checkout event")
	assert.ErrorContains(t, p.handle(context.Background(), []byte(`{"checkout_id":"x"}`)), "missing or invalid user_id")
	assert.Equal(t, 0, clearer.callCount())
}

type stockCatalog map[int64]int

func (c stockCatalog) FindByID(_ context.Context, id int64) (*domain.Product, error) {
	return &domain.Product{ID: id, Stock: c[id]}, nil
}

func (c stockCatalog) FindByIDs(_ context.Context, ids []int64) ([]*domain.Product, error) {
	out := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, &domain.Product{ID: id, Stock: c[id]})
	}
	return out, nil
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestPoller_ClearsCartOnCheckout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokers, cleanupKafka := setupKafka(t)
	defer cleanupKafka()
	topic := "checkout-outbox"
	createTopic(t, brokers, topic)

	repo := repository.NewMemoryRepository()
	carts := service.NewCartService(stockCatalog{1: 5}, repo, cache.NopCache{}, zap.NewNop())
	_, err := carts.AddItem(ctx, "123", 1)
	require.NoError(t, err)

	p := NewPoller(carts, Config{
		Brokers: []string{brokers},
		Topic:   topic,
		GroupID: "cart-service-consumer",
	}, zaptest.NewLogger(t))
	defer p.Close()

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers),
		Topic:                  topic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	payload, err := json.Marshal(map[string]interface{}{
		"checkout_id":  "chId",
		"user_id":      "123",
		"completed_at": time.Time{},
	})
	require.NoError(t, err)
	err = w.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte("chId"),
		Value: payload,
		Headers: []kafkaGo.Header{
			{Key: "event_type", Value: []byte("checkout")},
		},
	})
	require.NoError(t, err)
	w.Close()

	go p.Run(ctx)
	require.Eventually(t, func() bool {
		cart, err := repo.FindByUser(ctx, "123")
		return err == nil && cart.IsEmpty()
	}, 15*time.Second, 500*time.Millisecond)

	err = carts.ClearCart(ctx, "123")
	assert.Assert(t, errors.Is(err, domain.ErrCartEmpty))
}
