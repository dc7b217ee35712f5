package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"concert-tix/internal/status"
	"concert-tix/models"
	"concert-tix/monitoring"
	"concert-tix/utils"
)

// OrderService runs the order lifecycle. Every mutation happens inside a
// single RunInTransaction unit of work together with its inventory effects;
// the order's current status is re-read inside that transaction before any
// transition decision.
type OrderService struct {
	app       core.App
	inventory *InventoryService
	cache     *CacheService
	notify    *NotifyService
}

func NewOrderService(app core.App, inventory *InventoryService, cache *CacheService, notify *NotifyService) *OrderService {
	return &OrderService{
		app:       app,
		inventory: inventory,
		cache:     cache,
		notify:    notify,
	}
}

type PlaceOrderRequest struct {
	Items         []models.OrderLine `json:"items"`
	PaymentMethod string             `json:"payment_method"`
}

type TransitionOptions struct {
	PaymentMethod string
	AdminNotes    string
}

// PlaceOrder creates a pending order. Ticket quantities are reserved line by
// line inside the same transaction that persists the order and its items, so
// concurrent placements cannot oversell: the first insufficient line aborts
// the whole order.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest) (*models.Order, error) {
	var placed *models.Order

	err := s.app.RunInTransaction(func(txApp core.App) error {
		draft, err := models.BuildOrder(req.Items, func(ticketTypeID string) (decimal.Decimal, error) {
			rec, err := txApp.FindRecordById("ticket_types", ticketTypeID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return decimal.Zero, status.ErrNotFound
				}
				return decimal.Zero, err
			}
			return decimal.NewFromFloat(rec.GetFloat("price")), nil
		})
		if err != nil {
			return err
		}

		ordersCol, err := txApp.FindCollectionByNameOrId("orders")
		if err != nil {
			return err
		}
		itemsCol, err := txApp.FindCollectionByNameOrId("order_items")
		if err != nil {
			return err
		}

		orderRec := core.NewRecord(ordersCol)
		orderRec.Set("user", userID)
		orderRec.Set("total_amount", draft.Total.InexactFloat64())
		orderRec.Set("status", models.OrderPending)
		orderRec.Set("payment_method", req.PaymentMethod)
		if err := txApp.Save(orderRec); err != nil {
			return err
		}

		itemRecs := make([]*core.Record, 0, len(draft.Items))
		for _, item := range draft.Items {
			if err := s.inventory.Reserve(ctx, txApp.DB(), item.TicketTypeID, item.Quantity); err != nil {
				return err
			}

			itemRec := core.NewRecord(itemsCol)
			itemRec.Set("order", orderRec.Id)
			itemRec.Set("ticket_type", item.TicketTypeID)
			itemRec.Set("quantity", item.Quantity)
			itemRec.Set("price_per_unit", item.PricePerUnit.InexactFloat64())
			itemRec.Set("subtotal", item.Subtotal.InexactFloat64())
			if err := txApp.Save(itemRec); err != nil {
				return err
			}
			itemRecs = append(itemRecs, itemRec)
		}

		placed = s.orderFromRecords(txApp, orderRec, itemRecs)
		return nil
	})
	if err != nil {
		monitoring.ObserveOrderPlaced("rejected")
		return nil, err
	}

	monitoring.ObserveOrderPlaced("created")
	for _, item := range placed.Items {
		s.cache.InvalidateAvailability(ctx, item.TicketTypeID)
	}
	s.notify.OrderStatusChanged(placed.UserID, placed.ID, models.OrderPending)

	slog.Info("order placed",
		"orderId", placed.ID,
		"userId", placed.UserID,
		"total", placed.TotalAmount.String(),
		"items", len(placed.Items),
	)

	return placed, nil
}

// Transition moves an order to the target status with the inventory coupling
// the lifecycle table demands. When the order becomes paid a one-time access
// code is generated; only its bcrypt hash is stored and the plaintext is
// returned once to the caller.
func (s *OrderService) Transition(ctx context.Context, orderID, actorID, actorRole, target string, opts TransitionOptions) (*models.Order, string, error) {
	var (
		result       *models.Order
		plainCode    string
		fromStatus   string
		touchedTypes []string
	)

	err := s.app.RunInTransaction(func(txApp core.App) error {
		// reset in case the transaction retries
		plainCode = ""
		touchedTypes = nil

		orderRec, err := txApp.FindRecordById("orders", orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return status.ErrNotFound
			}
			return err
		}

		// non-admin callers only see their own orders
		if actorRole != models.RoleAdmin && orderRec.GetString("user") != actorID {
			return status.ErrNotFound
		}

		fromStatus = orderRec.GetString("status")
		if !models.CanTransition(actorRole, fromStatus, target) {
			return &status.InvalidTransitionError{From: fromStatus, To: target}
		}

		itemRecs, err := txApp.FindRecordsByFilter(
			"order_items",
			"order = {:order}",
			"+created",
			-1,
			0,
			dbx.Params{"order": orderID},
		)
		if err != nil {
			return err
		}

		if models.ReservesInventory(fromStatus, target) {
			for _, item := range itemRecs {
				ticketTypeID := item.GetString("ticket_type")
				if err := s.inventory.Reserve(ctx, txApp.DB(), ticketTypeID, item.GetInt("quantity")); err != nil {
					return err
				}
				touchedTypes = append(touchedTypes, ticketTypeID)
			}
		}
		if models.ReleasesInventory(fromStatus, target) {
			for _, item := range itemRecs {
				ticketTypeID := item.GetString("ticket_type")
				if err := s.inventory.Release(ctx, txApp.DB(), ticketTypeID, item.GetInt("quantity")); err != nil {
					return err
				}
				touchedTypes = append(touchedTypes, ticketTypeID)
			}
		}

		orderRec.Set("status", target)
		switch target {
		case models.OrderPaymentSubmitted:
			orderRec.Set("payment_submitted_at", types.NowDateTime())
			if opts.PaymentMethod != "" {
				orderRec.Set("payment_method", opts.PaymentMethod)
			}
		case models.OrderPaid:
			orderRec.Set("payment_verified_at", types.NowDateTime())
			if opts.AdminNotes != "" {
				orderRec.Set("admin_notes", opts.AdminNotes)
			}

			code, err := utils.GenerateCode(6)
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			orderRec.Set("access_code_hash", string(hash))
			plainCode = code
		case models.OrderCancelled:
			if opts.AdminNotes != "" {
				orderRec.Set("admin_notes", opts.AdminNotes)
			}
		}

		if err := txApp.Save(orderRec); err != nil {
			return err
		}

		result = s.orderFromRecords(txApp, orderRec, itemRecs)
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	monitoring.ObserveTransition(fromStatus, target)
	for _, ticketTypeID := range touchedTypes {
		s.cache.InvalidateAvailability(ctx, ticketTypeID)
	}
	s.notify.OrderStatusChanged(result.UserID, result.ID, target)

	slog.Info("order transition",
		"orderId", result.ID,
		"from", fromStatus,
		"to", target,
		"actorRole", actorRole,
	)

	return result, plainCode, nil
}

// SubmitPayment records the buyer's payment proof submission.
func (s *OrderService) SubmitPayment(ctx context.Context, orderID, userID, paymentMethod string) (*models.Order, error) {
	order, _, err := s.Transition(ctx, orderID, userID, models.RoleUser, models.OrderPaymentSubmitted, TransitionOptions{
		PaymentMethod: paymentMethod,
	})
	return order, err
}

// Cancel releases the order's hold and marks it cancelled.
func (s *OrderService) Cancel(ctx context.Context, orderID, actorID, actorRole string) (*models.Order, error) {
	order, _, err := s.Transition(ctx, orderID, actorID, actorRole, models.OrderCancelled, TransitionOptions{})
	return order, err
}

// GetOrder loads an order with its items. Non-admin callers only see their
// own orders.
func (s *OrderService) GetOrder(ctx context.Context, orderID, actorID, actorRole string) (*models.Order, error) {
	orderRec, err := s.app.FindRecordById("orders", orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrNotFound
		}
		return nil, err
	}

	if actorRole != models.RoleAdmin && orderRec.GetString("user") != actorID {
		return nil, status.ErrNotFound
	}

	itemRecs, err := s.app.FindRecordsByFilter(
		"order_items",
		"order = {:order}",
		"+created",
		-1,
		0,
		dbx.Params{"order": orderID},
	)
	if err != nil {
		return nil, err
	}

	return s.orderFromRecords(s.app, orderRec, itemRecs), nil
}

// ListOrders returns a page of orders, newest first. An empty userID lists
// all orders (admin listing); statusFilter narrows by order status.
func (s *OrderService) ListOrders(ctx context.Context, userID, statusFilter string, page, perPage int) ([]models.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	countExp := dbx.HashExp{}
	filter := "id != ''"
	params := dbx.Params{}
	if userID != "" {
		filter += " && user = {:user}"
		params["user"] = userID
		countExp["user"] = userID
	}
	if statusFilter != "" {
		filter += " && status = {:status}"
		params["status"] = statusFilter
		countExp["status"] = statusFilter
	}

	total, err := s.app.CountRecords("orders", countExp)
	if err != nil {
		return nil, 0, err
	}

	orderRecs, err := s.app.FindRecordsByFilter(
		"orders",
		filter,
		"-created",
		perPage,
		(page-1)*perPage,
		params,
	)
	if err != nil {
		return nil, 0, err
	}

	orders := make([]models.Order, 0, len(orderRecs))
	for _, rec := range orderRecs {
		itemRecs, err := s.app.FindRecordsByFilter(
			"order_items",
			"order = {:order}",
			"+created",
			-1,
			0,
			dbx.Params{"order": rec.Id},
		)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *s.orderFromRecords(s.app, rec, itemRecs))
	}

	return orders, int(total), nil
}

// CreateTicketType adds a new ticket type to an existing concert. The full
// allocation starts available.
func (s *OrderService) CreateTicketType(ctx context.Context, concertID, name string, price float64, total int) (*models.TicketType, error) {
	if total <= 0 {
		return nil, status.ErrInvalidQuantity
	}

	var created models.TicketType
	err := s.app.RunInTransaction(func(txApp core.App) error {
		if _, err := txApp.FindRecordById("concerts", concertID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return status.ErrNotFound
			}
			return err
		}

		col, err := txApp.FindCollectionByNameOrId("ticket_types")
		if err != nil {
			return err
		}

		rec := core.NewRecord(col)
		rec.Set("concert", concertID)
		rec.Set("name", name)
		rec.Set("price", price)
		rec.Set("quantity_total", total)
		rec.Set("quantity_available", total)
		if err := txApp.Save(rec); err != nil {
			return err
		}

		created = TicketTypeFromRecord(rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("ticket type created",
		"ticketTypeId", created.ID,
		"concertId", concertID,
		"total", total,
	)

	return &created, nil
}

// ResizeTicketType changes a ticket type's total allocation, keeping
// availability consistent with units already sold.
func (s *OrderService) ResizeTicketType(ctx context.Context, ticketTypeID string, newTotal int) (*models.TicketType, error) {
	err := s.app.RunInTransaction(func(txApp core.App) error {
		return s.inventory.Resize(ctx, txApp.DB(), ticketTypeID, newTotal)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateAvailability(ctx, ticketTypeID)

	rec, err := s.app.FindRecordById("ticket_types", ticketTypeID)
	if err != nil {
		return nil, err
	}

	ticketType := TicketTypeFromRecord(rec)
	return &ticketType, nil
}

// VerifyAccessCode checks a presented check-in code against the bcrypt hash
// stored when the order was verified. Only paid orders can check in.
func (s *OrderService) VerifyAccessCode(ctx context.Context, orderID, code string) (bool, error) {
	orderRec, err := s.app.FindRecordById("orders", orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, status.ErrNotFound
		}
		return false, err
	}

	if orderRec.GetString("status") != models.OrderPaid {
		return false, nil
	}

	hash := orderRec.GetString("access_code_hash")
	if hash == "" {
		return false, nil
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil, nil
}

// TicketTypeFromRecord maps a ticket_types record to its model.
func TicketTypeFromRecord(rec *core.Record) models.TicketType {
	return models.TicketType{
		ID:                rec.Id,
		ConcertID:         rec.GetString("concert"),
		Name:              rec.GetString("name"),
		Price:             decimal.NewFromFloat(rec.GetFloat("price")),
		QuantityTotal:     rec.GetInt("quantity_total"),
		QuantityAvailable: rec.GetInt("quantity_available"),
	}
}

func (s *OrderService) orderFromRecords(app core.App, orderRec *core.Record, itemRecs []*core.Record) *models.Order {
	order := &models.Order{
		ID:            orderRec.Id,
		UserID:        orderRec.GetString("user"),
		TotalAmount:   decimal.NewFromFloat(orderRec.GetFloat("total_amount")),
		Status:        orderRec.GetString("status"),
		PaymentMethod: orderRec.GetString("payment_method"),
		AdminNotes:    orderRec.GetString("admin_notes"),
		Created:       orderRec.GetDateTime("created").Time(),
		Updated:       orderRec.GetDateTime("updated").Time(),
	}

	if dt := orderRec.GetDateTime("payment_submitted_at"); !dt.IsZero() {
		t := dt.Time()
		order.PaymentSubmittedAt = &t
	}
	if dt := orderRec.GetDateTime("payment_verified_at"); !dt.IsZero() {
		t := dt.Time()
		order.PaymentVerifiedAt = &t
	}

	for _, itemRec := range itemRecs {
		item := models.OrderItem{
			ID:           itemRec.Id,
			OrderID:      orderRec.Id,
			TicketTypeID: itemRec.GetString("ticket_type"),
			Quantity:     itemRec.GetInt("quantity"),
			PricePerUnit: decimal.NewFromFloat(itemRec.GetFloat("price_per_unit")),
			Subtotal:     decimal.NewFromFloat(itemRec.GetFloat("subtotal")),
		}
		if ticketType, err := app.FindRecordById("ticket_types", item.TicketTypeID); err == nil {
			item.TicketTypeName = ticketType.GetString("name")
		}
		order.Items = append(order.Items, item)
	}

	return order
}
