package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"concert-tix/config"
	"concert-tix/internal/services"
	"concert-tix/models"
	"concert-tix/pdf"
	"concert-tix/security"
)

type OrderHandler struct {
	app          *pocketbase.PocketBase
	orderService *services.OrderService
	renderer     *pdf.TicketRenderer
	limiter      *security.RateLimiter
	cfg          *config.Config
}

func NewOrderHandler(app *pocketbase.PocketBase, orderService *services.OrderService, renderer *pdf.TicketRenderer, limiter *security.RateLimiter, cfg *config.Config) *OrderHandler {
	return &OrderHandler{
		app:          app,
		orderService: orderService,
		renderer:     renderer,
		limiter:      limiter,
		cfg:          cfg,
	}
}

// CreateOrder - place a new order for the authenticated user
func (h *OrderHandler) CreateOrder(e *core.RequestEvent) error {
	auth, err := requireAuth(e)
	if err != nil {
		return err
	}

	ctx := e.Request.Context()

	if !h.limiter.Allow(ctx, fmt.Sprintf("orders:%s", auth.Id), h.cfg.OrderRateLimit, h.cfg.OrderRateWindow) {
		return apis.NewApiError(http.StatusTooManyRequests, "Too many orders, slow down", nil)
	}

	var req services.PlaceOrderRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	order, err := h.orderService.PlaceOrder(ctx, auth.Id, req)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, order)
}

// GetOrders - list the authenticated user's orders
func (h *OrderHandler) GetOrders(e *core.RequestEvent) error {
	auth, err := requireAuth(e)
	if err != nil {
		return err
	}

	query := e.Request.URL.Query()
	page := intQuery(query.Get("page"), 1)
	perPage := intQuery(query.Get("per_page"), 10)
	statusFilter := query.Get("status")

	orders, total, err := h.orderService.ListOrders(e.Request.Context(), auth.Id, statusFilter, page, perPage)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"items":    orders,
		"page":     page,
		"per_page": perPage,
		"total":    total,
	})
}

// GetOrder - fetch one of the user's orders with its items
func (h *OrderHandler) GetOrder(e *core.RequestEvent) error {
	auth, err := requireAuth(e)
	if err != nil {
		return err
	}

	orderID := e.Request.PathValue("orderId")

	order, err := h.orderService.GetOrder(e.Request.Context(), orderID, auth.Id, roleOf(auth))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, order)
}

// SubmitPayment - the buyer reports a completed transfer for verification
func (h *OrderHandler) SubmitPayment(e *core.RequestEvent) error {
	auth, err := requireAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		PaymentMethod string `json:"payment_method"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	orderID := e.Request.PathValue("orderId")

	order, err := h.orderService.SubmitPayment(e.Request.Context(), orderID, auth.Id, req.PaymentMethod)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, order)
}

// CancelOrder - cancel a pending or payment_submitted order
func (h *OrderHandler) CancelOrder(e *core.RequestEvent) error {
	auth, err := requireAuth(e)
	if err != nil {
		return err
	}

	orderID := e.Request.PathValue("orderId")

	order, err := h.orderService.Cancel(e.Request.Context(), orderID, auth.Id, roleOf(auth))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, order)
}

// DownloadTicket - render the PDF ticket for a paid order
func (h *OrderHandler) DownloadTicket(e *core.RequestEvent) error {
	auth, err := requireAuth(e)
	if err != nil {
		return err
	}

	orderID := e.Request.PathValue("orderId")

	order, err := h.orderService.GetOrder(e.Request.Context(), orderID, auth.Id, roleOf(auth))
	if err != nil {
		return apiError(err)
	}

	if order.Status != models.OrderPaid {
		return apis.NewBadRequestError("Only paid orders have tickets", nil)
	}

	data := pdf.TicketData{Order: *order}

	if owner, err := h.app.FindRecordById("users", order.UserID); err == nil {
		data.CustomerName = owner.GetString("name")
		data.CustomerEmail = owner.GetString("email")
	}
	if len(order.Items) > 0 {
		if ticketType, err := h.app.FindRecordById("ticket_types", order.Items[0].TicketTypeID); err == nil {
			if concert, err := h.app.FindRecordById("concerts", ticketType.GetString("concert")); err == nil {
				data.ConcertTitle = concert.GetString("title")
				data.Venue = concert.GetString("venue")
				data.ConcertDate = concert.GetDateTime("start_time").Time()
			}
		}
	}

	ticket, err := h.renderer.Render(data)
	if err != nil {
		slog.Error("ticket render failed", "orderId", orderID, "error", err)
		return apis.NewApiError(http.StatusInternalServerError, "Failed to render ticket", nil)
	}

	e.Response.Header().Set("Content-Type", "application/pdf")
	e.Response.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=ticket-%s.pdf", orderID))
	e.Response.WriteHeader(http.StatusOK)
	_, err = e.Response.Write(ticket)
	return err
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
