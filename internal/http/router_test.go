package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/cart-manager/internal/cache"
	"github.com/fjod/cart-manager/internal/catalog"
	"github.com/fjod/cart-manager/internal/domain"
	"github.com/fjod/cart-manager/internal/repository"
	"github.com/fjod/cart-manager/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stockCatalog map[int64]int

func (c stockCatalog) FindByID(_ context.Context, id int64) (*domain.Product, error) {
	stock, ok := c[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &domain.Product{ID: id, Name: "p", Stock: stock}, nil
}

func (c stockCatalog) FindByIDs(_ context.Context, ids []int64) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, id := range ids {
		if stock, ok := c[id]; ok {
			out = append(out, &domain.Product{ID: id, Name: "p", Stock: stock})
		}
	}
	return out, nil
}

func newTestRouter() http.Handler {
	carts := service.NewCartService(stockCatalog{1: 2}, repository.NewMemoryRepository(), cache.NopCache{}, zap.NewNop())
	return NewRouter(NewCartHandler(carts, 5*time.Second), RouterConfig{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := do(t, newTestRouter(), "GET", "/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_RequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()

	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestRouter_MissingUserHeader(t *testing.T) {
	rec := do(t, newTestRouter(), "GET", "/api/v1/cart", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_CartLifecycle(t *testing.T) {
	r := newTestRouter()

	rec := do(t, r, "GET", "/api/v1/cart", "", "u1")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, "POST", "/api/v1/cart/items", `{"product_id":1}`, "u1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, "POST", "/api/v1/cart/items", `{"product_id":1}`, "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, "PATCH", "/api/v1/cart/items/1/increment", "", "u1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, "PATCH", "/api/v1/cart/items/1/decrement", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, "GET", "/api/v1/cart", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []domain.CartEntry `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, 1, body.Data[0].Quantity)

	rec = do(t, r, "DELETE", "/api/v1/cart/items/1", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, "DELETE", "/api/v1/cart", "", "u1")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_BodyTooLarge(t *testing.T) {
	carts := service.NewCartService(stockCatalog{1: 2}, repository.NewMemoryRepository(), cache.NopCache{}, zap.NewNop())
	r := NewRouter(NewCartHandler(carts, 5*time.Second), RouterConfig{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 16,
	}, zap.NewNop())

	rec := do(t, r, "POST", "/api/v1/cart/items", `{"product_id":1,"padding":"xxxxxxxxxxxxxxxx"}`, "u1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
