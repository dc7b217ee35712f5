package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/stretchr/testify/require"

	"concert-tix/models"
	"concert-tix/utils"
)

// newTestApp builds an isolated app instance with the store schema loaded.
func newTestApp(t *testing.T) *tests.TestApp {
	t.Helper()

	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	setupSchema(t, app)
	return app
}

func setupSchema(t *testing.T, app core.App) {
	t.Helper()

	users, err := app.FindCollectionByNameOrId("users")
	require.NoError(t, err)
	users.Fields.Add(
		&core.TextField{Name: "phone", Max: 30},
		&core.SelectField{
			Name:      "role",
			MaxSelect: 1,
			Values:    []string{models.RoleUser, models.RoleAdmin},
		},
	)
	require.NoError(t, app.Save(users))

	concerts := core.NewBaseCollection("concerts")
	concerts.Fields.Add(
		&core.TextField{Name: "title", Required: true, Max: 200},
		&core.TextField{Name: "description", Max: 5000},
		&core.TextField{Name: "venue", Required: true, Max: 200},
		&core.DateField{Name: "start_time", Required: true},
		&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"upcoming", "ongoing", "completed", "cancelled"},
		},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	require.NoError(t, app.Save(concerts))

	ticketTypes := core.NewBaseCollection("ticket_types")
	ticketTypes.Fields.Add(
		&core.RelationField{Name: "concert", Required: true, MaxSelect: 1, CollectionId: concerts.Id, CascadeDelete: true},
		&core.TextField{Name: "name", Required: true, Max: 100},
		&core.NumberField{Name: "price", Required: true, Min: types.Pointer(0.0)},
		&core.NumberField{Name: "quantity_total", Required: true, OnlyInt: true, Min: types.Pointer(0.0)},
		&core.NumberField{Name: "quantity_available", OnlyInt: true, Min: types.Pointer(0.0)},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	require.NoError(t, app.Save(ticketTypes))

	orders := core.NewBaseCollection("orders")
	orders.Fields.Add(
		&core.RelationField{Name: "user", Required: true, MaxSelect: 1, CollectionId: users.Id, CascadeDelete: true},
		&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{models.OrderPending, models.OrderPaymentSubmitted, models.OrderPaid, models.OrderCancelled},
		},
		&core.NumberField{Name: "total_amount", Required: true, Min: types.Pointer(0.0)},
		&core.TextField{Name: "payment_method", Max: 50},
		&core.DateField{Name: "payment_submitted_at"},
		&core.DateField{Name: "payment_verified_at"},
		&core.TextField{Name: "admin_notes", Max: 1000},
		&core.TextField{Name: "access_code_hash", Max: 100},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	require.NoError(t, app.Save(orders))

	orderItems := core.NewBaseCollection("order_items")
	orderItems.Fields.Add(
		&core.RelationField{Name: "order", Required: true, MaxSelect: 1, CollectionId: orders.Id, CascadeDelete: true},
		&core.RelationField{Name: "ticket_type", Required: true, MaxSelect: 1, CollectionId: ticketTypes.Id},
		&core.NumberField{Name: "quantity", Required: true, OnlyInt: true, Min: types.Pointer(1.0)},
		&core.NumberField{Name: "price_per_unit", Required: true, Min: types.Pointer(0.0)},
		&core.NumberField{Name: "subtotal", Required: true, Min: types.Pointer(0.0)},
		&core.AutodateField{Name: "created", OnCreate: true},
	)
	require.NoError(t, app.Save(orderItems))
}

func createUser(t *testing.T, app core.App, role string) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("users")
	require.NoError(t, err)

	suffix, err := utils.GenerateCode(4)
	require.NoError(t, err)

	rec := core.NewRecord(col)
	rec.Set("email", fmt.Sprintf("%s-%s@example.com", role, suffix))
	rec.SetRandomPassword()
	rec.Set("role", role)
	require.NoError(t, app.Save(rec))
	return rec
}

func createConcert(t *testing.T, app core.App) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("concerts")
	require.NoError(t, err)

	rec := core.NewRecord(col)
	rec.Set("title", "Night of Strings")
	rec.Set("venue", "Grand Hall")
	rec.Set("start_time", time.Now().UTC().Add(30*24*time.Hour))
	rec.Set("status", "upcoming")
	require.NoError(t, app.Save(rec))
	return rec
}

func createTicketType(t *testing.T, app core.App, concertID, name string, price float64, total int) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("ticket_types")
	require.NoError(t, err)

	rec := core.NewRecord(col)
	rec.Set("concert", concertID)
	rec.Set("name", name)
	rec.Set("price", price)
	rec.Set("quantity_total", total)
	rec.Set("quantity_available", total)
	require.NoError(t, app.Save(rec))
	return rec
}

func availabilityOf(t *testing.T, app core.App, ticketTypeID string) int {
	t.Helper()

	rec, err := app.FindRecordById("ticket_types", ticketTypeID)
	require.NoError(t, err)
	return rec.GetInt("quantity_available")
}

func newOrderService(app core.App) *OrderService {
	return NewOrderService(app, NewInventoryService(), nil, nil)
}
