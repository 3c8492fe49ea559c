package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/monitoring"
	"github.com/Ramsey-B/laurel/pkg/renewal"
	"github.com/Ramsey-B/laurel/pkg/staleness"
)

// SweepHandler exposes the periodic sweeps as on-demand endpoints, for
// operators who need a run outside the scheduled cadence.
type SweepHandler struct {
	monitoring *monitoring.Engine
	renewals   *renewal.Tracker
	staleness  *staleness.Detector
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(engine *monitoring.Engine, renewals *renewal.Tracker, detector *staleness.Detector) *SweepHandler {
	return &SweepHandler{
		monitoring: engine,
		renewals:   renewals,
		staleness:  detector,
	}
}

// RegisterRoutes registers the sweep routes
func (h *SweepHandler) RegisterRoutes(g *echo.Group) {
	sweeps := g.Group("/sweeps")
	sweeps.POST("/monitoring-days", h.RunMonitoringDays)
	sweeps.POST("/monitoring-alerts", h.RunMonitoringAlerts)
	sweeps.POST("/renewal-alerts", h.RunRenewalAlerts)
	sweeps.POST("/stale-detection", h.RunStaleDetection)
}

// RunMonitoringDays handles POST /sweeps/monitoring-days
func (h *SweepHandler) RunMonitoringDays(c echo.Context) error {
	ctx := c.Request().Context()

	updated, err := h.monitoring.UpdateMonitoringDays(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, map[string]int{"updated": updated})
}

// RunMonitoringAlerts handles POST /sweeps/monitoring-alerts
func (h *SweepHandler) RunMonitoringAlerts(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.monitoring.SendIntervalAlerts(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, summary)
}

// RunRenewalAlerts handles POST /sweeps/renewal-alerts
func (h *SweepHandler) RunRenewalAlerts(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.renewals.CheckRenewalAlerts(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, summary)
}

// RunStaleDetection handles POST /sweeps/stale-detection
func (h *SweepHandler) RunStaleDetection(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.staleness.RunDetectionJob(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, summary)
}
