package dispatch

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rescuebite/rescuebite/internal/alerts"
	"github.com/rescuebite/rescuebite/internal/db"
	"github.com/rescuebite/rescuebite/internal/karma"
	"github.com/rescuebite/rescuebite/internal/listing"
	"github.com/rescuebite/rescuebite/internal/messaging"
	"github.com/rescuebite/rescuebite/internal/metrics"
)

func caller(c echo.Context) (string, bool) {
	id, ok := c.Get("user_id").(string)
	return id, ok && id != ""
}

type claimRequest struct {
	ExpectedVersion int64            `json:"expected_version"`
	DropLocation    listing.Location `json:"drop_location"`
}

// HandleClaim is the NGO claim endpoint. Responds with the listing and
// the freshly minted pickup code.
func (co *Coordinator) HandleClaim(c echo.Context) error {
	ngoID, ok := caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req claimRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	l, code, err := co.Claim(c.Request().Context(), c.Param("id"), ngoID, req.ExpectedVersion, req.DropLocation)
	if err != nil {
		if errors.Is(err, listing.ErrConflict) {
			metrics.ClaimConflicts.Inc()
		}
		return listing.WriteError(c, err)
	}

	metrics.Claims.Inc()
	messaging.BroadcastStatus(l.ID, string(l.Status))
	notifyDonor(l, code)
	return c.JSON(http.StatusOK, echo.Map{"listing": l, "otp": code})
}

type acceptRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

// HandleAccept is the rider assignment endpoint. Exactly one of two
// racing riders wins; the loser gets a 409 and re-polls the feed.
func (co *Coordinator) HandleAccept(c echo.Context) error {
	riderID, ok := caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req acceptRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	l, err := co.Accept(c.Request().Context(), c.Param("id"), riderID, req.ExpectedVersion)
	if err != nil {
		if errors.Is(err, listing.ErrConflict) {
			metrics.ClaimConflicts.Inc()
		}
		return listing.WriteError(c, err)
	}

	messaging.BroadcastStatus(l.ID, string(l.Status))
	notifyNgoAssigned(l)
	return c.JSON(http.StatusOK, echo.Map{"listing": l, "route_waypoints": l.RouteWaypoints})
}

type verifyRequest struct {
	OTP string `json:"otp"`
}

// HandleVerifyPickup checks the pickup code at the physical handoff.
func (co *Coordinator) HandleVerifyPickup(c echo.Context) error {
	riderID, ok := caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req verifyRequest
	if err := c.Bind(&req); err != nil || req.OTP == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "otp required"})
	}

	l, remaining, err := co.VerifyPickup(c.Request().Context(), c.Param("id"), riderID, req.OTP)
	if errors.Is(err, listing.ErrOtpMismatch) {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error":              "invalid pickup code",
			"attempts_remaining": remaining,
		})
	}
	if err != nil {
		return listing.WriteError(c, err)
	}
	messaging.BroadcastStatus(l.ID, string(l.Status))
	return c.JSON(http.StatusOK, echo.Map{"listing": l})
}

// HandleConfirmDelivery completes the rescue and credits rider karma.
func (co *Coordinator) HandleConfirmDelivery(c echo.Context) error {
	riderID, ok := caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	l, err := co.ConfirmDelivery(c.Request().Context(), c.Param("id"), riderID)
	if err != nil {
		return listing.WriteError(c, err)
	}

	messaging.BroadcastStatus(l.ID, string(l.Status))
	notifyDelivered(l)
	return c.JSON(http.StatusOK, echo.Map{
		"listing":       l,
		"karma_awarded": karma.DeliveryPoints,
	})
}

// Notification fan-out is best-effort, as in the order flow it replaced:
// an unreachable queue never fails the transition that already committed.

func userEmail(id string) string {
	if id == "" || db.Conn == nil {
		return ""
	}
	var email string
	_ = db.Conn.QueryRow(context.Background(), `SELECT email FROM users WHERE id = $1`, id).Scan(&email)
	return email
}

func notifyDonor(l *listing.Listing, code string) {
	if email := userEmail(l.DonorID); email != "" {
		_ = alerts.EnqueueListingClaimed(l.ID, l.DonorID, l.NgoID, email, code)
	}
}

func notifyNgoAssigned(l *listing.Listing) {
	if email := userEmail(l.NgoID); email != "" {
		_ = alerts.EnqueueRiderAssigned(l.ID, l.NgoID, l.RiderID, email)
	}
}

func notifyDelivered(l *listing.Listing) {
	if email := userEmail(l.DonorID); email != "" {
		_ = alerts.EnqueueDeliveryCompleted(l.ID, l.DonorID, l.RiderID, email, l.Quantity.Value)
	}
	if email := userEmail(l.NgoID); email != "" {
		_ = alerts.EnqueueDeliveryCompleted(l.ID, l.NgoID, l.RiderID, email, l.Quantity.Value)
	}
}
