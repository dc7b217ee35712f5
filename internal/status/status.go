package status

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("status: record not found")
	ErrEmptyOrder      = errors.New("status: order has no items")
	ErrInvalidQuantity = errors.New("status: quantity must be positive")
	ErrAccessDenied    = errors.New("status: access denied")
)

// InsufficientInventoryError reports which ticket type could not cover a
// reservation, so callers can tell the buyer which line is short.
type InsufficientInventoryError struct {
	TicketTypeID string
	Requested    int
	Available    int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("inventory: ticket type %s has %d available, requested %d",
		e.TicketTypeID, e.Available, e.Requested)
}

// InvalidTransitionError reports an order status change that is not in the
// lifecycle table.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order: transition %s -> %s is not allowed", e.From, e.To)
}

func IsInsufficientInventory(err error) bool {
	var target *InsufficientInventoryError
	return errors.As(err, &target)
}

func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}
