package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		ticketTypes, err := app.FindCollectionByNameOrId("ticket_types")
		if err != nil {
			return err
		}

		orders := core.NewBaseCollection("orders")
		orders.Fields.Add(
			&core.RelationField{
				Name:          "user",
				Required:      true,
				MaxSelect:     1,
				CollectionId:  users.Id,
				CascadeDelete: true,
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "payment_submitted", "paid", "cancelled"},
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
		orders.AddIndex("idx_orders_user", false, "user", "")
		orders.AddIndex("idx_orders_status", false, "status", "")
		if err := app.Save(orders); err != nil {
			return err
		}

		orderItems := core.NewBaseCollection("order_items")
		orderItems.Fields.Add(
			&core.RelationField{
				Name:          "order",
				Required:      true,
				MaxSelect:     1,
				CollectionId:  orders.Id,
				CascadeDelete: true,
			},
			&core.RelationField{
				Name:         "ticket_type",
				Required:     true,
				MaxSelect:    1,
				CollectionId: ticketTypes.Id,
			},
			&core.NumberField{Name: "quantity", Required: true, OnlyInt: true, Min: types.Pointer(1.0)},
			&core.NumberField{Name: "price_per_unit", Required: true, Min: types.Pointer(0.0)},
			&core.NumberField{Name: "subtotal", Required: true, Min: types.Pointer(0.0)},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		orderItems.AddIndex("idx_order_items_order", false, "`order`", "")
		orderItems.AddIndex("idx_order_items_ticket_type", false, "ticket_type", "")
		return app.Save(orderItems)
	}, func(app core.App) error {
		for _, name := range []string{"order_items", "orders"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				return err
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
