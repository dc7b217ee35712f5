package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		concerts := core.NewBaseCollection("concerts")
		concerts.Fields.Add(
			&core.TextField{Name: "title", Required: true, Max: 200},
			&core.TextField{Name: "description", Max: 5000},
			&core.TextField{Name: "venue", Required: true, Max: 200},
			&core.DateField{Name: "start_time", Required: true},
			&core.URLField{Name: "banner_image"},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"upcoming", "ongoing", "completed", "cancelled"},
			},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		if err := app.Save(concerts); err != nil {
			return err
		}

		ticketTypes := core.NewBaseCollection("ticket_types")
		ticketTypes.Fields.Add(
			&core.RelationField{
				Name:          "concert",
				Required:      true,
				MaxSelect:     1,
				CollectionId:  concerts.Id,
				CascadeDelete: true,
			},
			&core.TextField{Name: "name", Required: true, Max: 100},
			&core.NumberField{Name: "price", Required: true, Min: types.Pointer(0.0)},
			&core.NumberField{Name: "quantity_total", Required: true, OnlyInt: true, Min: types.Pointer(0.0)},
			&core.NumberField{Name: "quantity_available", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		ticketTypes.AddIndex("idx_ticket_types_concert", false, "concert", "")
		return app.Save(ticketTypes)
	}, func(app core.App) error {
		for _, name := range []string{"ticket_types", "concerts"} {
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
