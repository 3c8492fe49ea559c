package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/repositories"
	"github.com/Ramsey-B/laurel/pkg/staleness"
)

// StalenessHandler handles stale-prospect and stale-proposal API requests
type StalenessHandler struct {
	detector *staleness.Detector
	events   repositories.FunnelEventRepo
}

// NewStalenessHandler creates a new staleness handler
func NewStalenessHandler(detector *staleness.Detector, events repositories.FunnelEventRepo) *StalenessHandler {
	return &StalenessHandler{detector: detector, events: events}
}

// MarkLostRequest is the request body for marking a prospect as lost
type MarkLostRequest struct {
	Reason string `json:"reason" validate:"required"`
	Stage  string `json:"stage"`
}

// RegisterRoutes registers the staleness routes
func (h *StalenessHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/prospects/stale", h.ListStaleProspects)
	g.GET("/prospects/follow-up", h.ListProspectsNeedingFollowup)
	g.GET("/requests/stale-proposals", h.ListStaleProposals)
	g.POST("/prospects/:id/lost", h.MarkLost)
	g.POST("/prospects/:id/activity", h.TouchProspect)
	g.POST("/requests/:id/activity", h.TouchRequest)
	g.GET("/prospects/:id/funnel", h.ListProspectFunnel)
	g.GET("/requests/:id/funnel", h.ListRequestFunnel)
}

// ListStaleProspects handles GET /prospects/stale
func (h *StalenessHandler) ListStaleProspects(c echo.Context) error {
	ctx := c.Request().Context()

	prospects, err := h.detector.DetectStaleProspects(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, prospects)
}

// ListProspectsNeedingFollowup handles GET /prospects/follow-up
func (h *StalenessHandler) ListProspectsNeedingFollowup(c echo.Context) error {
	ctx := c.Request().Context()

	prospects, err := h.detector.DetectProspectsNeedingFollowup(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, prospects)
}

// ListStaleProposals handles GET /requests/stale-proposals
func (h *StalenessHandler) ListStaleProposals(c echo.Context) error {
	ctx := c.Request().Context()

	requests, err := h.detector.DetectStaleProposals(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, requests)
}

// MarkLost handles POST /prospects/:id/lost
func (h *StalenessHandler) MarkLost(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req MarkLostRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.detector.MarkProspectLost(ctx, id, req.Reason, req.Stage); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// TouchProspect handles POST /prospects/:id/activity
func (h *StalenessHandler) TouchProspect(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.detector.UpdateProspectActivity(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// TouchRequest handles POST /requests/:id/activity
func (h *StalenessHandler) TouchRequest(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.detector.UpdateRequestActivity(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// ListProspectFunnel handles GET /prospects/:id/funnel
func (h *StalenessHandler) ListProspectFunnel(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	events, err := h.events.ListByProspect(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, events)
}

// ListRequestFunnel handles GET /requests/:id/funnel
func (h *StalenessHandler) ListRequestFunnel(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	events, err := h.events.ListByRequest(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, events)
}
