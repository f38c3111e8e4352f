package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/cart-manager/internal/domain"
	"go.uber.org/zap"
)

type SuccessResponse struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode"`
	Error      ErrorBody `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	respondJSON(w, status, SuccessResponse{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func respondError(w http.ResponseWriter, status int, code, title, message string) {
	respondJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error: ErrorBody{
			Code:    code,
			Title:   title,
			Message: message,
		},
	})
}

// respondCartError renders a cart failure. Anything that is not a
// *domain.CartError is reported as an opaque internal error.
func respondCartError(w http.ResponseWriter, err error) {
	var cartErr *domain.CartError
	if !errors.As(err, &cartErr) {
		cartErr = domain.Internal(err)
	}
	respondError(w, statusFor(cartErr.Kind), string(cartErr.Kind), cartErr.Title, cartErr.Message)
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindProductNotFound, domain.KindCartNotFound, domain.KindCartEmpty, domain.KindLineNotFound, domain.KindNoValidProducts:
		return http.StatusNotFound
	case domain.KindInsufficientStock, domain.KindStockLimitReached, domain.KindMinimumQuantityReached:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
