package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/repositories"
)

// MonitoringHandler handles monitoring-alert API requests
type MonitoringHandler struct {
	alerts repositories.MonitoringAlertRepo
}

// NewMonitoringHandler creates a new monitoring handler
func NewMonitoringHandler(alerts repositories.MonitoringAlertRepo) *MonitoringHandler {
	return &MonitoringHandler{alerts: alerts}
}

// RegisterRoutes registers the monitoring routes
func (h *MonitoringHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/requests/:id/alerts", h.ListAlerts)
}

// ListAlerts handles GET /requests/:id/alerts
func (h *MonitoringHandler) ListAlerts(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	alerts, err := h.alerts.ListByRequest(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, alerts)
}
