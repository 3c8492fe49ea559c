// Package server wires the echo HTTP server, its middleware stack, and
// the API routes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/laurel/config"
	"github.com/Ramsey-B/laurel/pkg/health"
	"github.com/Ramsey-B/laurel/pkg/middleware"
)

// RouteRegistrar registers a handler's routes on the API group
type RouteRegistrar interface {
	RegisterRoutes(g *echo.Group)
}

// Server is the laurel HTTP server
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger ectologger.Logger
}

// New builds the echo server with the full middleware stack and routes
func New(cfg *config.Config, logger ectologger.Logger, checker *health.Checker, registrars ...RouteRegistrar) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	for _, r := range registrars {
		r.RegisterRoutes(api)
	}

	return &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	s.echo.Server.ReadTimeout = time.Duration(s.cfg.HttpServerReadTimeoutSeconds) * time.Second
	s.echo.Server.WriteTimeout = time.Duration(s.cfg.HttpServerWriteTimeoutSeconds) * time.Second
	s.echo.Server.IdleTimeout = time.Duration(s.cfg.HttpServerIdleTimeoutSeconds) * time.Second

	s.logger.Infof("Starting HTTP server on %s", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
