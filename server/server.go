// Package server exposes the reminder lifecycle over a small JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/remindbot/internal/profile"
	"github.com/hrygo/remindbot/plugin/reminder"
	apimiddleware "github.com/hrygo/remindbot/server/middleware"
)

const (
	// apiRequestsPerSecond and apiBurst bound API calls per client address.
	apiRequestsPerSecond = 20
	apiBurst             = 40
)

type Server struct {
	Profile *profile.Profile
	Service *reminder.Service
	// Health is nil when no scheduler runs in this process.
	Health *reminder.HealthCheck

	echoServer *echo.Echo
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(profile *profile.Profile, service *reminder.Service, health *reminder.HealthCheck) *Server {
	s := &Server{
		Profile: profile,
		Service: service,
		Health:  health,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("http request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/healthz", s.healthz)
	v1 := e.Group("/api/v1/reminders", apimiddleware.RateLimit(apimiddleware.NewRateLimiter(apiRequestsPerSecond, apiBurst)))
	v1.POST("/parse", s.parseReminder)
	v1.POST("", s.createReminder)
	v1.POST("/commands", s.executeCommand)
	v1.GET("/:id", s.getReminder)
	v1.DELETE("/:id", s.deleteReminder)

	s.echoServer = e
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("start HTTP server", slog.String("addr", addr))
		errCh <- s.echoServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shutdown http server")
	}
	return nil
}

func (s *Server) healthz(c echo.Context) error {
	resp := map[string]any{
		"status":  "ok",
		"version": s.Profile.Version,
	}
	if s.Health == nil {
		return c.JSON(http.StatusOK, resp)
	}
	status := s.Health.Check()
	resp["scheduler"] = status
	if !status.Healthy {
		resp["status"] = "degraded"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}
