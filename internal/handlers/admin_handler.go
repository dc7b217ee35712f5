package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"concert-tix/internal/services"
	"concert-tix/models"
	"concert-tix/pdf"
)

type AdminHandler struct {
	app          *pocketbase.PocketBase
	orderService *services.OrderService
	cache        *services.CacheService
	renderer     *pdf.TicketRenderer
}

func NewAdminHandler(app *pocketbase.PocketBase, orderService *services.OrderService, cache *services.CacheService, renderer *pdf.TicketRenderer) *AdminHandler {
	return &AdminHandler{
		app:          app,
		orderService: orderService,
		cache:        cache,
		renderer:     renderer,
	}
}

// GetDashboard - aggregate store statistics, cached in Redis with a short
// TTL since every count is a full-table aggregate.
func (h *AdminHandler) GetDashboard(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	ctx := e.Request.Context()

	if cached, ok := h.cache.GetDashboard(ctx); ok {
		return e.Blob(http.StatusOK, "application/json", []byte(cached))
	}

	totalUsers, err := h.app.CountRecords("users", dbx.HashExp{"role": models.RoleUser})
	if err != nil {
		return apis.NewBadRequestError("Failed to load dashboard", err)
	}
	totalConcerts, err := h.app.CountRecords("concerts")
	if err != nil {
		return apis.NewBadRequestError("Failed to load dashboard", err)
	}
	totalOrders, err := h.app.CountRecords("orders")
	if err != nil {
		return apis.NewBadRequestError("Failed to load dashboard", err)
	}

	var totalRevenue float64
	if err := h.app.DB().NewQuery(`
		SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = {:paid}
	`).Bind(dbx.Params{"paid": models.OrderPaid}).Row(&totalRevenue); err != nil {
		return apis.NewBadRequestError("Failed to load dashboard", err)
	}

	sevenDaysAgo := time.Now().UTC().AddDate(0, 0, -7).Format(types.DefaultDateLayout)
	recentOrders, err := h.app.CountRecords("orders", dbx.NewExp("created >= {:since}", dbx.Params{"since": sevenDaysAgo}))
	if err != nil {
		return apis.NewBadRequestError("Failed to load dashboard", err)
	}

	now := time.Now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var monthlyRevenue float64
	if err := h.app.DB().NewQuery(`
		SELECT COALESCE(SUM(total_amount), 0) FROM orders
		WHERE status = {:paid} AND created >= {:since}
	`).Bind(dbx.Params{
		"paid":  models.OrderPaid,
		"since": startOfMonth.Format(types.DefaultDateLayout),
	}).Row(&monthlyRevenue); err != nil {
		return apis.NewBadRequestError("Failed to load dashboard", err)
	}

	var topConcerts []struct {
		Title       string  `db:"title"`
		Venue       string  `db:"venue"`
		TicketsSold int     `db:"tickets_sold"`
		Revenue     float64 `db:"revenue"`
	}
	if err := h.app.DB().NewQuery(`
		SELECT c.title AS title, c.venue AS venue,
			COALESCE(SUM(oi.quantity), 0) AS tickets_sold,
			COALESCE(SUM(oi.subtotal), 0) AS revenue
		FROM concerts c
		JOIN ticket_types tt ON tt.concert = c.id
		JOIN order_items oi ON oi.ticket_type = tt.id
		JOIN orders o ON o.id = oi.` + "`order`" + `
		WHERE o.status = {:paid}
		GROUP BY c.id
		ORDER BY tickets_sold DESC
		LIMIT 5
	`).Bind(dbx.Params{"paid": models.OrderPaid}).All(&topConcerts); err != nil {
		return apis.NewBadRequestError("Failed to load dashboard", err)
	}

	topList := make([]map[string]any, 0, len(topConcerts))
	for _, c := range topConcerts {
		topList = append(topList, map[string]any{
			"title":        c.Title,
			"venue":        c.Venue,
			"tickets_sold": c.TicketsSold,
			"revenue":      c.Revenue,
		})
	}

	stats := map[string]any{
		"total_users":     totalUsers,
		"total_concerts":  totalConcerts,
		"total_orders":    totalOrders,
		"total_revenue":   totalRevenue,
		"recent_orders":   recentOrders,
		"monthly_revenue": monthlyRevenue,
		"top_concerts":    topList,
	}

	if payload, err := json.Marshal(stats); err == nil {
		h.cache.SetDashboard(ctx, string(payload))
	}

	return e.JSON(http.StatusOK, stats)
}

// GetOrders - list every order, filterable by status
func (h *AdminHandler) GetOrders(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	query := e.Request.URL.Query()
	page := intQuery(query.Get("page"), 1)
	perPage := intQuery(query.Get("per_page"), 10)

	orders, total, err := h.orderService.ListOrders(e.Request.Context(), "", query.Get("status"), page, perPage)
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

// VerifyOrder - the admin payment decision: mark paid or cancelled,
// including the paid<->cancelled override corrections.
func (h *AdminHandler) VerifyOrder(e *core.RequestEvent) error {
	admin, err := requireAdmin(e)
	if err != nil {
		return err
	}

	var req struct {
		Status     string `json:"status"`
		AdminNotes string `json:"admin_notes"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Status != models.OrderPaid && req.Status != models.OrderCancelled {
		return apis.NewBadRequestError("Status must be paid or cancelled", nil)
	}

	orderID := e.Request.PathValue("orderId")

	order, accessCode, err := h.orderService.Transition(
		e.Request.Context(),
		orderID,
		admin.Id,
		models.RoleAdmin,
		req.Status,
		services.TransitionOptions{AdminNotes: req.AdminNotes},
	)
	if err != nil {
		return apiError(err)
	}

	h.cache.InvalidateDashboard(e.Request.Context())

	response := map[string]any{"order": order}
	if accessCode != "" {
		// shown once; only the hash is stored
		response["access_code"] = accessCode
	}

	return e.JSON(http.StatusOK, response)
}

// CheckInOrder - venue staff validates a buyer by access code or by the
// ticket QR payload.
func (h *AdminHandler) CheckInOrder(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	var req struct {
		AccessCode string `json:"access_code"`
		QRPayload  string `json:"qr_payload"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	orderID := e.Request.PathValue("orderId")

	if req.QRPayload != "" {
		claims, ok := h.renderer.Verify(req.QRPayload)
		if !ok || claims.OrderID != orderID {
			return e.JSON(http.StatusOK, map[string]any{"valid": false})
		}
		order, err := h.orderService.GetOrder(e.Request.Context(), orderID, "", models.RoleAdmin)
		if err != nil {
			return apiError(err)
		}
		return e.JSON(http.StatusOK, map[string]any{"valid": order.Status == models.OrderPaid})
	}

	valid, err := h.orderService.VerifyAccessCode(e.Request.Context(), orderID, req.AccessCode)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"valid": valid})
}

// GetUsers - list registered users with optional role filter and search
func (h *AdminHandler) GetUsers(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	query := e.Request.URL.Query()
	page := intQuery(query.Get("page"), 1)
	perPage := intQuery(query.Get("per_page"), 10)

	filter := "id != ''"
	params := dbx.Params{}
	if role := query.Get("role"); role == models.RoleUser || role == models.RoleAdmin {
		filter += " && role = {:role}"
		params["role"] = role
	}
	if search := query.Get("search"); search != "" {
		filter += " && (name ~ {:search} || email ~ {:search})"
		params["search"] = search
	}

	users, err := h.app.FindRecordsByFilter("users", filter, "-created", perPage, (page-1)*perPage, params)
	if err != nil {
		return apis.NewBadRequestError("Failed to get users", err)
	}

	result := make([]map[string]any, 0, len(users))
	for _, user := range users {
		result = append(result, map[string]any{
			"id":      user.Id,
			"name":    user.GetString("name"),
			"email":   user.GetString("email"),
			"role":    user.GetString("role"),
			"phone":   user.GetString("phone"),
			"created": user.GetDateTime("created"),
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"items":    result,
		"page":     page,
		"per_page": perPage,
	})
}

// GetUser - user detail with order statistics
func (h *AdminHandler) GetUser(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	user, err := h.app.FindRecordById("users", e.Request.PathValue("userId"))
	if err != nil {
		return apis.NewNotFoundError("User not found", nil)
	}

	totalOrders, err := h.app.CountRecords("orders", dbx.HashExp{"user": user.Id})
	if err != nil {
		return apis.NewBadRequestError("Failed to get user statistics", err)
	}

	var totalSpent float64
	if err := h.app.DB().NewQuery(`
		SELECT COALESCE(SUM(total_amount), 0) FROM orders
		WHERE user = {:user} AND status = {:paid}
	`).Bind(dbx.Params{"user": user.Id, "paid": models.OrderPaid}).Row(&totalSpent); err != nil {
		return apis.NewBadRequestError("Failed to get user statistics", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"id":    user.Id,
		"name":  user.GetString("name"),
		"email": user.GetString("email"),
		"role":  user.GetString("role"),
		"phone": user.GetString("phone"),
		"statistics": map[string]any{
			"total_orders": totalOrders,
			"total_spent":  totalSpent,
		},
	})
}

// UpdateUser - admin edits name, phone or role
func (h *AdminHandler) UpdateUser(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	user, err := h.app.FindRecordById("users", e.Request.PathValue("userId"))
	if err != nil {
		return apis.NewNotFoundError("User not found", nil)
	}

	var req struct {
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
		Role  *string `json:"role"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if req.Name != nil {
		user.Set("name", *req.Name)
	}
	if req.Phone != nil {
		user.Set("phone", *req.Phone)
	}
	if req.Role != nil {
		if *req.Role != models.RoleUser && *req.Role != models.RoleAdmin {
			return apis.NewBadRequestError("Invalid role", nil)
		}
		user.Set("role", *req.Role)
	}

	if err := h.app.Save(user); err != nil {
		return apis.NewBadRequestError("Failed to update user", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"id":    user.Id,
		"name":  user.GetString("name"),
		"email": user.GetString("email"),
		"role":  user.GetString("role"),
		"phone": user.GetString("phone"),
	})
}

// GetSalesReport - per ticket type sales for paid orders, filterable by
// date range and concert
func (h *AdminHandler) GetSalesReport(e *core.RequestEvent) error {
	if _, err := requireAdmin(e); err != nil {
		return err
	}

	query := e.Request.URL.Query()

	sql := `
		SELECT c.title AS concert_title, c.venue AS venue, c.start_time AS concert_date,
			tt.name AS ticket_name, tt.price AS price,
			COALESCE(SUM(oi.quantity), 0) AS total_sold,
			COALESCE(SUM(oi.subtotal), 0) AS total_revenue
		FROM orders o
		JOIN order_items oi ON oi.` + "`order`" + ` = o.id
		JOIN ticket_types tt ON tt.id = oi.ticket_type
		JOIN concerts c ON c.id = tt.concert
		WHERE o.status = {:paid}
	`
	params := dbx.Params{"paid": models.OrderPaid}

	if startDate := query.Get("start_date"); startDate != "" {
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return apis.NewBadRequestError("Invalid start_date format. Use YYYY-MM-DD", nil)
		}
		sql += " AND o.created >= {:start}"
		params["start"] = start.Format(types.DefaultDateLayout)
	}
	if endDate := query.Get("end_date"); endDate != "" {
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return apis.NewBadRequestError("Invalid end_date format. Use YYYY-MM-DD", nil)
		}
		sql += " AND o.created <= {:end}"
		params["end"] = end.Add(24*time.Hour - time.Second).Format(types.DefaultDateLayout)
	}
	if concertID := query.Get("concert_id"); concertID != "" {
		sql += " AND c.id = {:concert}"
		params["concert"] = concertID
	}

	sql += `
		GROUP BY c.id, tt.id
		ORDER BY c.start_time DESC, c.title, tt.name
	`

	var rows []struct {
		ConcertTitle string  `db:"concert_title"`
		Venue        string  `db:"venue"`
		ConcertDate  string  `db:"concert_date"`
		TicketName   string  `db:"ticket_name"`
		Price        float64 `db:"price"`
		TotalSold    int     `db:"total_sold"`
		TotalRevenue float64 `db:"total_revenue"`
	}
	if err := h.app.DB().NewQuery(sql).Bind(params).All(&rows); err != nil {
		return apis.NewBadRequestError("Failed to generate sales report", err)
	}

	details := make([]map[string]any, 0, len(rows))
	totalRevenue := 0.0
	totalTickets := 0
	concertTitles := map[string]struct{}{}
	for _, row := range rows {
		details = append(details, map[string]any{
			"concert_title": row.ConcertTitle,
			"venue":         row.Venue,
			"concert_date":  row.ConcertDate,
			"ticket_name":   row.TicketName,
			"price":         row.Price,
			"total_sold":    row.TotalSold,
			"total_revenue": row.TotalRevenue,
		})
		totalRevenue += row.TotalRevenue
		totalTickets += row.TotalSold
		concertTitles[row.ConcertTitle] = struct{}{}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"summary": map[string]any{
			"total_revenue":      totalRevenue,
			"total_tickets_sold": totalTickets,
			"total_concerts":     len(concertTitles),
		},
		"details": details,
	})
}
