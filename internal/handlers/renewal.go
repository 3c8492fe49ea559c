package handlers

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/renewal"
	"github.com/Ramsey-B/laurel/pkg/repositories"
)

// RenewalHandler handles engagement renewal API requests
type RenewalHandler struct {
	tracker  *renewal.Tracker
	renewals repositories.EngagementRenewalRepo
}

// NewRenewalHandler creates a new renewal handler
func NewRenewalHandler(tracker *renewal.Tracker, renewals repositories.EngagementRenewalRepo) *RenewalHandler {
	return &RenewalHandler{tracker: tracker, renewals: renewals}
}

// RenewRequest is the request body for renewing an engagement
type RenewRequest struct {
	StartDate time.Time `json:"start_date" validate:"required"`
}

// RegisterRoutes registers the renewal routes
func (h *RenewalHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/renewals", h.ListActive)
	g.POST("/renewals/:id/renew", h.Renew)
	g.GET("/requests/:id/renewal", h.GetByRequest)
}

// ListActive handles GET /renewals
func (h *RenewalHandler) ListActive(c echo.Context) error {
	ctx := c.Request().Context()

	renewals, err := h.renewals.ListActive(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, renewals)
}

// GetByRequest handles GET /requests/:id/renewal
func (h *RenewalHandler) GetByRequest(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	r, err := h.renewals.GetByRequestID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, r)
}

// Renew handles POST /renewals/:id/renew
func (h *RenewalHandler) Renew(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req RenewRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	renewed, err := h.tracker.Renew(ctx, id, req.StartDate)
	if err != nil {
		return err
	}

	return SuccessResponse(c, renewed)
}
