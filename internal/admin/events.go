package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rescuebite/rescuebite/internal/listing"
)

// EventsHandler serves the audit trail for a single listing.
type EventsHandler struct {
	Store *listing.Store
}

// GET /admin/listings/:id/events
func (h *EventsHandler) Events(c echo.Context) error {
	listingID := c.Param("id")
	if listingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing listing id"})
	}

	if _, err := h.Store.Get(c.Request().Context(), listingID); err != nil {
		return listing.WriteError(c, err)
	}

	events, err := h.Store.Events(c.Request().Context(), listingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list events"})
	}
	return c.JSON(http.StatusOK, echo.Map{"listing_id": listingID, "events": events})
}
