package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/aggregator"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/cache"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/config"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/hub"
)

type Server struct {
	echo       *echo.Echo
	config     *config.Config
	aggregator *aggregator.Aggregator
	provider   domain.QuoteProvider
	hub        *hub.Hub
	redis      *cache.Client
	clock      clockwork.Clock
	limits     *ConnectionLimits
	startTime  time.Time
}

func NewServer(cfg *config.Config, agg *aggregator.Aggregator, p domain.QuoteProvider, h *hub.Hub, redis *cache.Client, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:       e,
		config:     cfg,
		aggregator: agg,
		provider:   p,
		hub:        h,
		redis:      redis,
		clock:      clock,
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRateLimit,
			cfg.ConnectionRateBurst,
		),
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	log.Printf("Starting server on port %s", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
