package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrItemNotFound            = errors.New("item not found")
	ErrCartNotFound            = errors.New("cart not found")
	ErrCartItemNotFound        = errors.New("cart item not found")
	ErrClaimNotFound           = errors.New("claim not found")
	ErrCartNotActive           = errors.New("cart is not active")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidID               = errors.New("invalid id")
	ErrHasNoPrice              = errors.New("item has no price")
	ErrHasNoDefaultPrice       = errors.New("item has no default price")
	ErrNotEnoughStock          = errors.New("not enough stock")
	ErrNotEnoughAvailable      = errors.New("not enough available items")
	ErrInvalidDateRange        = errors.New("invalid date range")
	ErrInvalidOperation        = errors.New("invalid operation for item kind")
	ErrMultiplePurchaseOptions = errors.New("multiple purchase options")
	ErrCartNotReady            = errors.New("cart is not ready for checkout")
)

// CartNotReadyError carries the per-item validation problems that block a
// checkout. Matches ErrCartNotReady under errors.Is.
type CartNotReadyError struct {
	Problems []string
}

func (e *CartNotReadyError) Error() string {
	if len(e.Problems) == 0 {
		return ErrCartNotReady.Error()
	}
	return fmt.Sprintf("cart is not ready for checkout: %s", e.Problems[0])
}

func (e *CartNotReadyError) Unwrap() error { return ErrCartNotReady }

// NotEnoughStockError reports a rejected claim or booking with enough context
// for user-facing validation messages. Matches ErrNotEnoughStock under
// errors.Is.
type NotEnoughStockError struct {
	ItemName  string
	Requested int
	Available int
	From      *time.Time
	Until     *time.Time
}

func (e *NotEnoughStockError) Error() string {
	if e.From != nil && e.Until != nil {
		return fmt.Sprintf("%s is not available for the requested period (%d available, %d requested)",
			e.ItemName, e.Available, e.Requested)
	}
	return fmt.Sprintf("%s has not enough stock (%d available, %d requested)",
		e.ItemName, e.Available, e.Requested)
}

func (e *NotEnoughStockError) Unwrap() error { return ErrNotEnoughStock }

// NotEnoughAvailableError is the pool-specific counterpart: the pool cannot
// supply the requested number of member items. Matches ErrNotEnoughAvailable.
type NotEnoughAvailableError struct {
	ItemName  string
	Requested int
	Available int
}

func (e *NotEnoughAvailableError) Error() string {
	return fmt.Sprintf("%d available, %d requested, %s does not have enough available items",
		e.Available, e.Requested, e.ItemName)
}

func (e *NotEnoughAvailableError) Unwrap() error { return ErrNotEnoughAvailable }

// InvalidOperationError marks an operation invoked on the wrong item kind,
// e.g. pool allocation on a simple item. Matches ErrInvalidOperation.
type InvalidOperationError struct {
	ItemName string
	Kind     ItemKind
	Op       string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("%s: %s is not valid for a %s item", e.Op, e.ItemName, e.Kind)
}

func (e *InvalidOperationError) Unwrap() error { return ErrInvalidOperation }
