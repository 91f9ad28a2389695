package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// REST API
	s.echo.GET("/api/market/symbols", s.handleSymbols)
	s.echo.GET("/api/market/latest/:symbol", s.handleLatest)
	s.echo.GET("/api/market/historical/:symbol", s.handleHistorical)
	s.echo.GET("/api/market/status", s.handleMarketStatus)

	// WebSocket stream
	s.echo.GET("/ws", s.handleWebSocket)
}
