package handlers

import (
	"net/http"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"concert-tix/internal/services"
	"concert-tix/models"
)

type ConcertHandler struct {
	app   *pocketbase.PocketBase
	cache *services.CacheService
}

func NewConcertHandler(app *pocketbase.PocketBase, cache *services.CacheService) *ConcertHandler {
	return &ConcertHandler{app: app, cache: cache}
}

// GetConcerts - list concerts with their ticket types
func (h *ConcertHandler) GetConcerts(e *core.RequestEvent) error {
	query := e.Request.URL.Query()

	filter := "id != ''"
	params := dbx.Params{}
	if s := query.Get("status"); s != "" {
		filter += " && status = {:status}"
		params["status"] = s
	}

	concerts, err := h.app.FindRecordsByFilter("concerts", filter, "+start_time", -1, 0, params)
	if err != nil {
		return apis.NewBadRequestError("Failed to get concerts", err)
	}

	result := make([]models.Concert, 0, len(concerts))
	for _, rec := range concerts {
		concert, err := h.concertFromRecord(e, rec, true)
		if err != nil {
			return apiError(err)
		}
		result = append(result, concert)
	}

	return e.JSON(http.StatusOK, result)
}

// GetConcert - concert detail with ticket types and live availability
func (h *ConcertHandler) GetConcert(e *core.RequestEvent) error {
	rec, err := h.app.FindRecordById("concerts", e.Request.PathValue("concertId"))
	if err != nil {
		return apis.NewNotFoundError("Concert not found", nil)
	}

	concert, err := h.concertFromRecord(e, rec, true)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, concert)
}

type concertFieldsRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Venue       string `json:"venue"`
	StartTime   string `json:"start_time"`
	BannerImage string `json:"banner_image"`
	Status      string `json:"status"`
}

type concertCreateRequest struct {
	concertFieldsRequest
	TicketTypes []struct {
		Name          string  `json:"name"`
		Price         float64 `json:"price"`
		QuantityTotal int     `json:"quantity_total"`
	} `json:"ticket_types"`
}

// CreateConcert - admin creates a concert, optionally with its ticket types
func (h *ConcertHandler) CreateConcert(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	var req concertCreateRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Title == "" || req.Venue == "" {
		return apis.NewBadRequestError("Title and venue are required", nil)
	}
	for _, tt := range req.TicketTypes {
		if tt.Price <= 0 || tt.QuantityTotal <= 0 {
			return apis.NewBadRequestError("Ticket price and quantity must be positive", nil)
		}
	}

	var created *core.Record
	err := h.app.RunInTransaction(func(txApp core.App) error {
		concertsCol, err := txApp.FindCollectionByNameOrId("concerts")
		if err != nil {
			return err
		}
		ticketsCol, err := txApp.FindCollectionByNameOrId("ticket_types")
		if err != nil {
			return err
		}

		rec := core.NewRecord(concertsCol)
		rec.Set("title", req.Title)
		rec.Set("description", req.Description)
		rec.Set("venue", req.Venue)
		rec.Set("banner_image", req.BannerImage)
		if req.StartTime != "" {
			startTime, err := types.ParseDateTime(req.StartTime)
			if err != nil {
				return err
			}
			rec.Set("start_time", startTime)
		}
		concertStatus := req.Status
		if concertStatus == "" {
			concertStatus = "upcoming"
		}
		rec.Set("status", concertStatus)
		if err := txApp.Save(rec); err != nil {
			return err
		}

		for _, tt := range req.TicketTypes {
			ticketRec := core.NewRecord(ticketsCol)
			ticketRec.Set("concert", rec.Id)
			ticketRec.Set("name", tt.Name)
			ticketRec.Set("price", tt.Price)
			ticketRec.Set("quantity_total", tt.QuantityTotal)
			ticketRec.Set("quantity_available", tt.QuantityTotal)
			if err := txApp.Save(ticketRec); err != nil {
				return err
			}
		}

		created = rec
		return nil
	})
	if err != nil {
		return apis.NewBadRequestError("Failed to create concert", err)
	}

	concert, err := h.concertFromRecord(e, created, true)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, concert)
}

// UpdateConcert - admin updates concert fields. Ticket types are managed
// through the ticket endpoints.
func (h *ConcertHandler) UpdateConcert(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	rec, err := h.app.FindRecordById("concerts", e.Request.PathValue("concertId"))
	if err != nil {
		return apis.NewNotFoundError("Concert not found", nil)
	}

	var req concertFieldsRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if req.Title != "" {
		rec.Set("title", req.Title)
	}
	if req.Description != "" {
		rec.Set("description", req.Description)
	}
	if req.Venue != "" {
		rec.Set("venue", req.Venue)
	}
	if req.BannerImage != "" {
		rec.Set("banner_image", req.BannerImage)
	}
	if req.StartTime != "" {
		startTime, err := types.ParseDateTime(req.StartTime)
		if err != nil {
			return apis.NewBadRequestError("Invalid start_time", err)
		}
		rec.Set("start_time", startTime)
	}
	if req.Status != "" {
		rec.Set("status", req.Status)
	}

	if err := h.app.Save(rec); err != nil {
		return apis.NewBadRequestError("Failed to update concert", err)
	}

	concert, err := h.concertFromRecord(e, rec, true)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, concert)
}

// DeleteConcert - admin deletes a concert; blocked while any of its ticket
// types is referenced by an order item.
func (h *ConcertHandler) DeleteConcert(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	rec, err := h.app.FindRecordById("concerts", e.Request.PathValue("concertId"))
	if err != nil {
		return apis.NewNotFoundError("Concert not found", nil)
	}

	var referenced int
	err = h.app.DB().NewQuery(`
		SELECT COUNT(*) FROM order_items oi
		JOIN ticket_types tt ON tt.id = oi.ticket_type
		WHERE tt.concert = {:concert}
	`).Bind(dbx.Params{"concert": rec.Id}).Row(&referenced)
	if err != nil {
		return apis.NewBadRequestError("Failed to check concert orders", err)
	}
	if referenced > 0 {
		return apis.NewBadRequestError("Cannot delete concert with existing orders", nil)
	}

	if err := h.app.Delete(rec); err != nil {
		return apis.NewBadRequestError("Failed to delete concert", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"deleted": rec.Id})
}

func (h *ConcertHandler) concertFromRecord(e *core.RequestEvent, rec *core.Record, withTickets bool) (models.Concert, error) {
	concert := models.Concert{
		ID:          rec.Id,
		Title:       rec.GetString("title"),
		Description: rec.GetString("description"),
		Venue:       rec.GetString("venue"),
		StartTime:   rec.GetDateTime("start_time").Time(),
		BannerImage: rec.GetString("banner_image"),
		Status:      rec.GetString("status"),
	}

	if !withTickets {
		return concert, nil
	}

	ticketRecs, err := h.app.FindRecordsByFilter(
		"ticket_types",
		"concert = {:concert}",
		"+price",
		-1,
		0,
		dbx.Params{"concert": rec.Id},
	)
	if err != nil {
		return concert, err
	}

	ctx := e.Request.Context()
	for _, ticketRec := range ticketRecs {
		ticketType := services.TicketTypeFromRecord(ticketRec)
		if available, ok := h.cache.GetAvailability(ctx, ticketType.ID); ok {
			ticketType.QuantityAvailable = available
		} else {
			h.cache.SetAvailability(ctx, ticketType.ID, ticketType.QuantityAvailable)
		}
		concert.TicketTypes = append(concert.TicketTypes, ticketType)
	}

	return concert, nil
}
