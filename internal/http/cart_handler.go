package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/cart-manager/internal/domain"
	"github.com/fjod/cart-manager/internal/service"
	"github.com/go-chi/chi/v5"
)

// CartManager is the set of cart operations served over HTTP.
type CartManager interface {
	AddItem(ctx context.Context, userID string, productID int64) (service.AddResult, error)
	GetCart(ctx context.Context, userID string) ([]domain.CartEntry, error)
	IncrementQuantity(ctx context.Context, userID string, productID int64) (domain.CartLine, error)
	DecrementQuantity(ctx context.Context, userID string, productID int64) (domain.CartLine, error)
	RemoveLine(ctx context.Context, userID string, productID int64) error
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	carts   CartManager
	timeout time.Duration
}

func NewCartHandler(carts CartManager, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type LineDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid Request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid Request", "product_id must be a positive integer")
		return
	}

	res, err := h.carts.AddItem(ctx, userID, req.ProductID)
	if err != nil {
		respondCartError(w, err)
		return
	}

	line := LineDTO{ProductID: res.Line.ProductID, Quantity: res.Line.Quantity}
	if res.Created {
		respondSuccess(w, http.StatusCreated, "Product added to cart successfully", line)
		return
	}
	respondSuccess(w, http.StatusOK, "Product quantity updated in cart successfully", line)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entries, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		respondCartError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, "", entries)
}

func (h *CartHandler) IncrementQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	line, err := h.carts.IncrementQuantity(ctx, userID, productID)
	if err != nil {
		respondCartError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, "Incremented product quantity successfully",
		LineDTO{ProductID: line.ProductID, Quantity: line.Quantity})
}

func (h *CartHandler) DecrementQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	line, err := h.carts.DecrementQuantity(ctx, userID, productID)
	if err != nil {
		respondCartError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, "Decremented product quantity successfully",
		LineDTO{ProductID: line.ProductID, Quantity: line.Quantity})
}

func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	if err := h.carts.RemoveLine(ctx, userID, productID); err != nil {
		respondCartError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, "Deleted cart item successfully", nil)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, userID); err != nil {
		respondCartError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, "Your cart has been cleared successfully.", nil)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", "missing user authentication")
		return "", false
	}
	return userID, true
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid Request", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
