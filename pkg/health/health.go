// Package health provides liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/redis"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the result of a single component check
type CheckResult struct {
	Status  Status `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the full health check response
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Checker performs health checks against the service dependencies
type Checker struct {
	db    database.DB
	redis *redis.Client
	ready atomic.Bool
}

// NewChecker creates a new health checker
func NewChecker(db database.DB, redisClient *redis.Client) *Checker {
	return &Checker{
		db:    db,
		redis: redisClient,
	}
}

// SetReady marks the service as ready to receive traffic
func (h *Checker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Liveness returns 200 as long as the process is up
func (h *Checker) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness returns 200 only once the service has finished starting up
// and its dependencies are reachable
func (h *Checker) Readiness(c echo.Context) error {
	if !h.ready.Load() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "starting"})
	}

	resp := h.check(c.Request().Context())
	code := http.StatusOK
	if resp.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// Health returns the detailed health of all dependencies
func (h *Checker) Health(c echo.Context) error {
	resp := h.check(c.Request().Context())
	code := http.StatusOK
	if resp.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

func (h *Checker) check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp := Response{
		Status: StatusHealthy,
		Checks: map[string]CheckResult{},
	}

	resp.Checks["postgres"] = h.checkComponent(ctx, h.db.PingContext)
	resp.Checks["redis"] = h.checkComponent(ctx, h.redis.Ping)

	for _, check := range resp.Checks {
		if check.Status != StatusHealthy {
			resp.Status = StatusUnhealthy
			break
		}
	}

	return resp
}

func (h *Checker) checkComponent(ctx context.Context, ping func(context.Context) error) CheckResult {
	start := time.Now()
	if err := ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Latency: time.Since(start).String(),
			Error:   err.Error(),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Latency: time.Since(start).String(),
	}
}

// RegisterRoutes registers the health endpoints
func (h *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/health/live", h.Liveness)
	e.GET("/health/ready", h.Readiness)
	e.GET("/health", h.Health)
}
