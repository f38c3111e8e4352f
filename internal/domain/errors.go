package domain

import "fmt"

// ErrorKind classifies a cart failure. The HTTP boundary maps it to a status.
type ErrorKind string

const (
	KindProductNotFound        ErrorKind = "ProductNotFound"
	KindInsufficientStock      ErrorKind = "InsufficientStock"
	KindStockLimitReached      ErrorKind = "StockLimitReached"
	KindCartNotFound           ErrorKind = "CartNotFound"
	KindCartEmpty              ErrorKind = "CartEmpty"
	KindLineNotFound           ErrorKind = "LineNotFound"
	KindNoValidProducts        ErrorKind = "NoValidProducts"
	KindMinimumQuantityReached ErrorKind = "MinimumQuantityReached"
	KindConflict               ErrorKind = "CartConflict"
	KindInternal               ErrorKind = "Internal"
)

// CartError is returned by every failing cart operation. Title and Message
// are safe to show to the caller; Err holds the collaborator cause, if any,
// and is never rendered.
type CartError struct {
	Kind    ErrorKind
	Title   string
	Message string
	Err     error
}

func (e *CartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CartError) Unwrap() error {
	return e.Err
}

// Is matches on kind only, so errors.Is(err, ErrCartEmpty) holds for any
// CartEmpty error regardless of its message.
func (e *CartError) Is(target error) bool {
	t, ok := target.(*CartError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable reports whether repeating the operation may succeed.
func (e *CartError) Retryable() bool {
	return e.Kind == KindConflict
}

// Sentinels for errors.Is checks.
var (
	ErrProductNotFound        = &CartError{Kind: KindProductNotFound, Title: "Product Not Found"}
	ErrInsufficientStock      = &CartError{Kind: KindInsufficientStock, Title: "Insufficient Stock"}
	ErrStockLimitReached      = &CartError{Kind: KindStockLimitReached, Title: "Stock Limit Reached"}
	ErrCartNotFound           = &CartError{Kind: KindCartNotFound, Title: "Cart Not Found"}
	ErrCartEmpty              = &CartError{Kind: KindCartEmpty, Title: "Cart Empty"}
	ErrLineNotFound           = &CartError{Kind: KindLineNotFound, Title: "Product Not Found"}
	ErrNoValidProducts        = &CartError{Kind: KindNoValidProducts, Title: "No Products Found"}
	ErrMinimumQuantityReached = &CartError{Kind: KindMinimumQuantityReached, Title: "Minimum Quantity Reached"}
	ErrConflict               = &CartError{Kind: KindConflict, Title: "Cart Conflict"}
	ErrInternal               = &CartError{Kind: KindInternal, Title: "Internal Server Error"}
)

func ProductNotFound(productID int64) *CartError {
	return &CartError{
		Kind:    KindProductNotFound,
		Title:   ErrProductNotFound.Title,
		Message: fmt.Sprintf("The product with ID '%d' does not exist.", productID),
	}
}

func InsufficientStock(productID int64) *CartError {
	return &CartError{
		Kind:    KindInsufficientStock,
		Title:   ErrInsufficientStock.Title,
		Message: fmt.Sprintf("The product with ID '%d' is out of stock. Please try again later.", productID),
	}
}

func StockLimitReached(quantity, stock int) *CartError {
	return &CartError{
		Kind:    KindStockLimitReached,
		Title:   ErrStockLimitReached.Title,
		Message: fmt.Sprintf("Current quantity in cart: %d, stock available: %d.", quantity, stock),
	}
}

func CartNotFound() *CartError {
	return &CartError{
		Kind:    KindCartNotFound,
		Title:   ErrCartNotFound.Title,
		Message: "You don't have a cart yet. Please add items to create cart first.",
	}
}

func CartEmpty() *CartError {
	return &CartError{
		Kind:    KindCartEmpty,
		Title:   ErrCartEmpty.Title,
		Message: "Your cart is empty. Please add items to your cart first.",
	}
}

func LineNotFound(productID int64) *CartError {
	return &CartError{
		Kind:    KindLineNotFound,
		Title:   ErrLineNotFound.Title,
		Message: fmt.Sprintf("The product with ID '%d' does not exist in your cart.", productID),
	}
}

func NoValidProducts() *CartError {
	return &CartError{
		Kind:    KindNoValidProducts,
		Title:   ErrNoValidProducts.Title,
		Message: "Your cart does not contain any valid products.",
	}
}

func MinimumQuantityReached() *CartError {
	return &CartError{
		Kind:    KindMinimumQuantityReached,
		Title:   ErrMinimumQuantityReached.Title,
		Message: "Cannot decrease quantity, minimum quantity is 1.",
	}
}

func Conflict(err error) *CartError {
	return &CartError{
		Kind:    KindConflict,
		Title:   ErrConflict.Title,
		Message: "Your cart was changed by another request. Please retry.",
		Err:     err,
	}
}

func Internal(err error) *CartError {
	return &CartError{
		Kind:    KindInternal,
		Title:   ErrInternal.Title,
		Message: "Something went wrong. Please try again later.",
		Err:     err,
	}
}
