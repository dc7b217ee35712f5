package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"

	"concert-tix/internal/status"
	"concert-tix/monitoring"
)

// InventoryService is the ledger for ticket type quantities. Every method
// runs against the dbx.Builder it is given, so reserve/release compose into
// whatever transaction the caller holds; the check-then-decrement is a single
// conditional UPDATE whose affected-row count detects lost races.
type InventoryService struct{}

func NewInventoryService() *InventoryService {
	return &InventoryService{}
}

// Reserve holds qty units of a ticket type for an order. It fails with
// InsufficientInventoryError when availability cannot cover the request and
// never lets quantity_available go negative.
func (s *InventoryService) Reserve(ctx context.Context, db dbx.Builder, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return status.ErrInvalidQuantity
	}

	res, err := db.NewQuery(`
		UPDATE ticket_types
		SET quantity_available = quantity_available - {:qty}, updated = {:now}
		WHERE id = {:id} AND quantity_available >= {:qty}
	`).Bind(dbx.Params{
		"qty": qty,
		"id":  ticketTypeID,
		"now": types.NowDateTime().String(),
	}).WithContext(ctx).Execute()
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		available, err := s.availability(ctx, db, ticketTypeID)
		if err != nil {
			return err
		}
		monitoring.ObserveReservation("insufficient")
		return &status.InsufficientInventoryError{
			TicketTypeID: ticketTypeID,
			Requested:    qty,
			Available:    available,
		}
	}

	monitoring.ObserveReservation("reserved")
	return nil
}

// Release gives qty units back, clamped so availability never exceeds the
// total.
func (s *InventoryService) Release(ctx context.Context, db dbx.Builder, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return status.ErrInvalidQuantity
	}

	res, err := db.NewQuery(`
		UPDATE ticket_types
		SET quantity_available = MIN(quantity_total, quantity_available + {:qty}), updated = {:now}
		WHERE id = {:id}
	`).Bind(dbx.Params{
		"qty": qty,
		"id":  ticketTypeID,
		"now": types.NowDateTime().String(),
	}).WithContext(ctx).Execute()
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return status.ErrNotFound
	}

	monitoring.ObserveReservation("released")
	return nil
}

// Resize changes quantity_total and rebalances availability against units
// already sold: sold = total - available, available = max(0, new - sold).
// Both columns change in one statement so no intermediate state is visible.
func (s *InventoryService) Resize(ctx context.Context, db dbx.Builder, ticketTypeID string, newTotal int) error {
	if newTotal <= 0 {
		return status.ErrInvalidQuantity
	}

	res, err := db.NewQuery(`
		UPDATE ticket_types
		SET quantity_available = MAX(0, {:total} - (quantity_total - quantity_available)),
			quantity_total = {:total},
			updated = {:now}
		WHERE id = {:id}
	`).Bind(dbx.Params{
		"total": newTotal,
		"id":    ticketTypeID,
		"now":   types.NowDateTime().String(),
	}).WithContext(ctx).Execute()
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return status.ErrNotFound
	}

	return nil
}

func (s *InventoryService) availability(ctx context.Context, db dbx.Builder, ticketTypeID string) (int, error) {
	var available int
	err := db.NewQuery(`
		SELECT quantity_available FROM ticket_types WHERE id = {:id}
	`).Bind(dbx.Params{"id": ticketTypeID}).WithContext(ctx).Row(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, status.ErrNotFound
		}
		return 0, err
	}
	return available, nil
}
