package handlers

import (
	"net/http"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"concert-tix/internal/services"
)

type TicketHandler struct {
	app          *pocketbase.PocketBase
	orderService *services.OrderService
	cache        *services.CacheService
}

func NewTicketHandler(app *pocketbase.PocketBase, orderService *services.OrderService, cache *services.CacheService) *TicketHandler {
	return &TicketHandler{
		app:          app,
		orderService: orderService,
		cache:        cache,
	}
}

// GetTicketType - public ticket type detail with live availability
func (h *TicketHandler) GetTicketType(e *core.RequestEvent) error {
	rec, err := h.app.FindRecordById("ticket_types", e.Request.PathValue("ticketTypeId"))
	if err != nil {
		return apis.NewNotFoundError("Ticket type not found", nil)
	}

	ticketType := services.TicketTypeFromRecord(rec)

	ctx := e.Request.Context()
	if available, ok := h.cache.GetAvailability(ctx, ticketType.ID); ok {
		ticketType.QuantityAvailable = available
	} else {
		h.cache.SetAvailability(ctx, ticketType.ID, ticketType.QuantityAvailable)
	}

	return e.JSON(http.StatusOK, ticketType)
}

// CreateTicketType - admin adds a ticket type to an existing concert
func (h *TicketHandler) CreateTicketType(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	var req struct {
		Name          string  `json:"name"`
		Price         float64 `json:"price"`
		QuantityTotal int     `json:"quantity_total"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Name == "" {
		return apis.NewBadRequestError("Ticket type name is required", nil)
	}
	if req.Price <= 0 || req.QuantityTotal <= 0 {
		return apis.NewBadRequestError("Ticket type price and quantity must be greater than 0", nil)
	}

	ticketType, err := h.orderService.CreateTicketType(
		e.Request.Context(),
		e.Request.PathValue("concertId"),
		req.Name,
		req.Price,
		req.QuantityTotal,
	)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, ticketType)
}

// UpdateTicketType - admin renames, reprices or resizes a ticket type.
// Resizing rebalances availability against units already sold.
func (h *TicketHandler) UpdateTicketType(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	ticketTypeID := e.Request.PathValue("ticketTypeId")

	rec, err := h.app.FindRecordById("ticket_types", ticketTypeID)
	if err != nil {
		return apis.NewNotFoundError("Ticket type not found", nil)
	}

	var req struct {
		Name          *string  `json:"name"`
		Price         *float64 `json:"price"`
		QuantityTotal *int     `json:"quantity_total"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if req.Name != nil {
		rec.Set("name", *req.Name)
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return apis.NewBadRequestError("Price must be greater than 0", nil)
		}
		rec.Set("price", *req.Price)
	}
	if req.Name != nil || req.Price != nil {
		if err := h.app.Save(rec); err != nil {
			return apis.NewBadRequestError("Failed to update ticket type", err)
		}
	}

	if req.QuantityTotal != nil {
		ticketType, err := h.orderService.ResizeTicketType(e.Request.Context(), ticketTypeID, *req.QuantityTotal)
		if err != nil {
			return apiError(err)
		}
		return e.JSON(http.StatusOK, ticketType)
	}

	return e.JSON(http.StatusOK, services.TicketTypeFromRecord(rec))
}

// DeleteTicketType - admin deletes a ticket type unless order items
// reference it.
func (h *TicketHandler) DeleteTicketType(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	rec, err := h.app.FindRecordById("ticket_types", e.Request.PathValue("ticketTypeId"))
	if err != nil {
		return apis.NewNotFoundError("Ticket type not found", nil)
	}

	var referenced int
	err = h.app.DB().NewQuery(`
		SELECT COUNT(*) FROM order_items WHERE ticket_type = {:ticketType}
	`).Bind(dbx.Params{"ticketType": rec.Id}).Row(&referenced)
	if err != nil {
		return apis.NewBadRequestError("Failed to check ticket type orders", err)
	}
	if referenced > 0 {
		return apis.NewBadRequestError("Cannot delete ticket type with existing orders", nil)
	}

	if err := h.app.Delete(rec); err != nil {
		return apis.NewBadRequestError("Failed to delete ticket type", err)
	}

	h.cache.InvalidateAvailability(e.Request.Context(), rec.Id)

	return e.JSON(http.StatusOK, map[string]any{"deleted": rec.Id})
}
