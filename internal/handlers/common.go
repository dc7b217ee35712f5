package handlers

import (
	"errors"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"concert-tix/internal/status"
	"concert-tix/models"
)

// requireAuth returns the authenticated record or an unauthorized error.
func requireAuth(e *core.RequestEvent) (*core.Record, error) {
	if e.Auth == nil {
		return nil, apis.NewUnauthorizedError("Unauthorized", nil)
	}
	return e.Auth, nil
}

// requireAdmin additionally checks the role field on the users collection.
func requireAdmin(e *core.RequestEvent) (*core.Record, error) {
	auth, err := requireAuth(e)
	if err != nil {
		return nil, err
	}
	if auth.GetString("role") != models.RoleAdmin {
		return nil, apis.NewForbiddenError("Admin access required", nil)
	}
	return auth, nil
}

func roleOf(auth *core.Record) string {
	if auth.GetString("role") == models.RoleAdmin {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// apiError maps business error kinds onto HTTP responses. Infrastructure
// errors stay generic; the transaction they aborted has already rolled back.
func apiError(err error) error {
	var insufficient *status.InsufficientInventoryError
	if errors.As(err, &insufficient) {
		return apis.NewBadRequestError("Not enough tickets available", map[string]any{
			"ticket_type_id": insufficient.TicketTypeID,
			"requested":      insufficient.Requested,
			"available":      insufficient.Available,
		})
	}

	var transition *status.InvalidTransitionError
	if errors.As(err, &transition) {
		return apis.NewBadRequestError("Status change not allowed", map[string]any{
			"from": transition.From,
			"to":   transition.To,
		})
	}

	switch {
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Not found", nil)
	case errors.Is(err, status.ErrEmptyOrder):
		return apis.NewBadRequestError("Order items are required", nil)
	case errors.Is(err, status.ErrInvalidQuantity):
		return apis.NewBadRequestError("Invalid quantity", nil)
	default:
		return apis.NewApiError(500, "Something went wrong", nil)
	}
}
