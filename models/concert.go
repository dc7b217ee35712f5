package models

import (
	"time"
)

type Concert struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Venue       string       `json:"venue"`
	StartTime   time.Time    `json:"start_time"`
	BannerImage string       `json:"banner_image,omitempty"`
	Status      string       `json:"status"` // upcoming, ongoing, completed
	TicketTypes []TicketType `json:"ticket_types,omitempty"`
}
