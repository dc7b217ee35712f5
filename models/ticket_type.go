package models

import (
	"github.com/shopspring/decimal"
)

// TicketType is the inventory unit. quantity_available never goes negative
// and never exceeds quantity_total; both bounds are enforced by the
// inventory ledger's SQL updates.
type TicketType struct {
	ID                string          `json:"id"`
	ConcertID         string          `json:"concert_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	QuantityTotal     int             `json:"quantity_total"`
	QuantityAvailable int             `json:"quantity_available"`
}

// Sold is the number of units currently held by active orders.
func (t TicketType) Sold() int {
	return t.QuantityTotal - t.QuantityAvailable
}
