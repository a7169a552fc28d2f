// Package server is the HTTP surface: event ingest, the channel control
// API, dashboard websockets, and health/metrics endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mugummy/chzzkbot/internal/config"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
	"github.com/mugummy/chzzkbot/internal/session"
	"github.com/mugummy/chzzkbot/internal/websocket"
)

// Pinger is the minimal interface for backend health checks. Both the
// pgx pool and the Redis client wrapper satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries the server's collaborators. Postgres and Redis are nil when
// the process runs on the in-memory backends; their health checks are then
// skipped.
type Deps struct {
	Config   *config.Config
	Registry *session.Registry
	Hub      *websocket.Hub
	Logger   *slog.Logger
	Postgres Pinger
	Redis    Pinger
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	registry  *session.Registry
	hub       *websocket.Hub
	logger    *slog.Logger
	postgres  Pinger
	redis     Pinger
	startTime time.Time
}

func NewServer(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    deps.Config,
		registry:  deps.Registry,
		hub:       deps.Hub,
		logger:    deps.Logger,
		postgres:  deps.Postgres,
		redis:     deps.Redis,
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	s.logger.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
