package listing

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rescuebite/rescuebite/internal/metrics"
)

// Vision is the safety oracle as the handlers consume it. The concrete
// Gemini client lives in internal/oracle.
type Vision interface {
	Assess(ctx context.Context, image []byte, category string, hoursOld float64, answers SafetyAnswers) (AIAssessment, error)
}

// Handler serves the listing read/create/match surface.
type Handler struct {
	Store  *Store
	Vision Vision
}

func NewHandler(store *Store, vision Vision) *Handler {
	return &Handler{Store: store, Vision: vision}
}

type createRequest struct {
	Category      string        `json:"category"`
	Quantity      Quantity      `json:"quantity"`
	PreparedAt    time.Time     `json:"prepared_at"`
	SafetyAnswers SafetyAnswers `json:"safety_answers"`
	Location      Location      `json:"location"`
	ImageBase64   string        `json:"image_base64,omitempty"`
	// Assessment may be supplied when the client already ran the vision
	// check; otherwise the core calls the oracle itself.
	Assessment *AIAssessment `json:"ai_assessment,omitempty"`
}

// Create lists a donation. The vision verdict is obtained exactly once,
// at or before creation; an unreachable oracle blocks creation rather
// than waving the food through.
func (h *Handler) Create(c echo.Context) error {
	donorID, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req createRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	assessment, err := h.resolveAssessment(c.Request().Context(), &req)
	if err != nil {
		return WriteError(c, err)
	}

	l, err := h.Store.Create(c.Request().Context(), CreateInput{
		DonorID:       donorID,
		Category:      req.Category,
		Quantity:      req.Quantity,
		PreparedAt:    req.PreparedAt,
		SafetyAnswers: req.SafetyAnswers,
		Assessment:    assessment,
		Location:      req.Location,
	})
	if errors.Is(err, ErrUnsafeFood) {
		metrics.ListingsRejected.Inc()
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"listing": l,
			"error":   "not eligible for donation",
			"reason":  l.AIAssessment.Message,
		})
	}
	if err != nil {
		return WriteError(c, err)
	}

	metrics.ListingsCreated.Inc()
	return c.JSON(http.StatusCreated, echo.Map{"listing": l})
}

func (h *Handler) resolveAssessment(ctx context.Context, req *createRequest) (AIAssessment, error) {
	if req.Assessment != nil {
		return *req.Assessment, nil
	}
	if h.Vision == nil {
		return AIAssessment{}, ErrOracleUnavailable
	}
	var image []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return AIAssessment{}, invalidf("image_base64", "not valid base64")
		}
		image = decoded
	}
	hoursOld := time.Since(req.PreparedAt).Hours()
	return h.Vision.Assess(ctx, image, req.Category, hoursOld, req.SafetyAnswers)
}

// List browses listings with live-recomputed priority scores.
func (h *Handler) List(c echo.Context) error {
	status := Status(c.QueryParam("status"))
	listings, err := h.Store.List(c.Request().Context(), status)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}

// Get fetches one listing.
func (h *Handler) Get(c echo.Context) error {
	l, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"listing": l})
}

// Match ranks available listings against an NGO's demand. Read-only; the
// NGO claims separately through the dispatch endpoints.
func (h *Handler) Match(c echo.Context) error {
	if _, ok := callerID(c); !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var demand Demand
	if err := c.Bind(&demand); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if demand.MealsRequired <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "meals_required must be positive"})
	}

	pool, err := h.Store.ListMatchable(c.Request().Context())
	if err != nil {
		return WriteError(c, err)
	}
	ranked := Rank(pool, demand, time.Now())
	return c.JSON(http.StatusOK, echo.Map{"listings": ranked})
}

// Route returns the stored waypoints for an assigned listing.
func (h *Handler) Route(c echo.Context) error {
	l, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return WriteError(c, err)
	}
	if len(l.RouteWaypoints) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no route assigned yet"})
	}
	return c.JSON(http.StatusOK, echo.Map{"waypoints": l.RouteWaypoints})
}

// WriteError maps the core error taxonomy onto HTTP responses. Used by
// every handler package so conflicts, state errors and oracle outages
// look the same everywhere.
func WriteError(c echo.Context, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error()})
	case errors.Is(err, ErrExpiredAtCreation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "food exceeds the 4-hour limit and is not eligible for donation"})
	case errors.Is(err, ErrUnsafeFood):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "food is not eligible for donation"})
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
	case errors.Is(err, ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "someone else just updated this listing, refresh and retry"})
	case errors.Is(err, ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "listing is not in the required state"})
	case errors.Is(err, ErrOtpMismatch):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid pickup code"})
	case errors.Is(err, ErrOtpLocked):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many wrong codes, verification is temporarily locked"})
	case errors.Is(err, ErrOracleUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "safety/routing service unavailable, try again"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// callerID pulls the authenticated user set by the JWT middleware.
func callerID(c echo.Context) (string, bool) {
	id, ok := c.Get("user_id").(string)
	return id, ok && id != ""
}
