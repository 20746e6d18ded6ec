package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the fulfillment service.
type Server struct {
	port    int
	service *fulfillment.Service
	logger  *otelzap.Logger
	echo    *echo.Echo
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance. Metrics are served from gatherer.
func New(cfg Config, service *fulfillment.Service, gatherer prometheus.Gatherer, logger *otelzap.Logger) *Server {
	s := &Server{
		port:    cfg.Port,
		service: service,
		logger:  logger,
		echo:    echo.New(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Ctx(c.Request().Context()).Debug("Request handled",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/v1")
	v1.POST("/rates", s.handleShopRates)
	v1.POST("/orders", s.handleCheckout)
	v1.GET("/orders/:id", s.handleGetOrder)
	v1.POST("/orders/:id/fulfill", s.handleFulfill)
	v1.POST("/orders/:id/status", s.handleUpdateStatus)
	v1.POST("/orders/:id/void", s.handleVoid)
	v1.GET("/orders/:id/tracking", s.handleTracking)
	v1.POST("/fulfillments/bulk", s.handleBulk)

	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.echo,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // bulk runs buy many labels
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
