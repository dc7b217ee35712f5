package models

import (
	"time"

	"github.com/shopspring/decimal"

	"concert-tix/internal/status"
)

// Order statuses. An order starts in pending and only moves along the
// transition table in CanTransition.
const (
	OrderPending          = "pending"
	OrderPaymentSubmitted = "payment_submitted"
	OrderPaid             = "paid"
	OrderCancelled        = "cancelled"
)

// Actor roles as stored on the users auth collection.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Order struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Status             string          `json:"status"`
	PaymentMethod      string          `json:"payment_method,omitempty"`
	AdminNotes         string          `json:"admin_notes,omitempty"`
	PaymentSubmittedAt *time.Time      `json:"payment_submitted_at,omitempty"`
	PaymentVerifiedAt  *time.Time      `json:"payment_verified_at,omitempty"`
	Created            time.Time       `json:"created"`
	Updated            time.Time       `json:"updated"`
	Items              []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	TicketTypeID   string          `json:"ticket_type_id"`
	TicketTypeName string          `json:"ticket_type_name,omitempty"`
	Quantity       int             `json:"quantity"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

// OrderLine is a single requested line of a new order.
type OrderLine struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}

// DraftItem is a validated order line with the unit price snapshotted at
// build time. The snapshot stays immutable even if the ticket type's price
// changes later.
type DraftItem struct {
	TicketTypeID string
	Quantity     int
	PricePerUnit decimal.Decimal
	Subtotal     decimal.Decimal
}

// OrderDraft is a priced order before it is persisted. Building a draft has
// no inventory side effects; reservations happen in the workflow service.
type OrderDraft struct {
	Items []DraftItem
	Total decimal.Decimal
}

// BuildOrder validates the requested lines and prices them through priceOf.
// The total always equals the sum of the item subtotals.
func BuildOrder(lines []OrderLine, priceOf func(ticketTypeID string) (decimal.Decimal, error)) (*OrderDraft, error) {
	if len(lines) == 0 {
		return nil, status.ErrEmptyOrder
	}

	draft := &OrderDraft{Total: decimal.Zero}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, status.ErrInvalidQuantity
		}

		price, err := priceOf(line.TicketTypeID)
		if err != nil {
			return nil, err
		}

		subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		draft.Items = append(draft.Items, DraftItem{
			TicketTypeID: line.TicketTypeID,
			Quantity:     line.Quantity,
			PricePerUnit: price,
			Subtotal:     subtotal,
		})
		draft.Total = draft.Total.Add(subtotal)
	}

	return draft, nil
}

// CanTransition reports whether the actor role may move an order from one
// status to another. paid<->cancelled both ways are admin overrides used to
// correct verification mistakes; everything else follows the normal
// lifecycle.
func CanTransition(role, from, to string) bool {
	switch to {
	case OrderPaymentSubmitted:
		return from == OrderPending
	case OrderPaid:
		if role != RoleAdmin {
			return false
		}
		return from == OrderPending || from == OrderPaymentSubmitted || from == OrderCancelled
	case OrderCancelled:
		if from == OrderPending || from == OrderPaymentSubmitted {
			return true
		}
		return from == OrderPaid && role == RoleAdmin
	default:
		return false
	}
}

// ReservesInventory reports whether a transition needs ticket quantities
// reserved again (cancelled -> paid override).
func ReservesInventory(from, to string) bool {
	return from == OrderCancelled && to == OrderPaid
}

// ReleasesInventory reports whether a transition gives the order's hold back
// to the ticket types.
func ReleasesInventory(from, to string) bool {
	return to == OrderCancelled && (from == OrderPending || from == OrderPaymentSubmitted || from == OrderPaid)
}
