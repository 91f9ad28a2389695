package server

import (
	"context"
	"log/slog"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/market"
)

func (s *Server) handleSymbols(c echo.Context) error {
	symbols := s.aggregator.Symbols()
	sort.Strings(symbols)
	return c.JSON(200, map[string]any{"symbols": symbols})
}

func (s *Server) handleLatest(c echo.Context) error {
	symbol := market.Normalize(c.Param("symbol"))
	if symbol == "" {
		return c.JSON(400, map[string]string{"error": "symbol is required"})
	}

	record, err := s.aggregator.GetLatest(c.Request().Context(), symbol)
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "failed to fetch latest record", "symbol", symbol, "error", err)
		return c.JSON(503, map[string]string{"error": "data temporarily unavailable"})
	}

	return c.JSON(200, record)
}

func (s *Server) handleHistorical(c echo.Context) error {
	symbol := market.Normalize(c.Param("symbol"))
	if symbol == "" {
		return c.JSON(400, map[string]string{"error": "symbol is required"})
	}

	period := c.QueryParam("period")
	interval := c.QueryParam("interval")

	data, err := s.provider.FetchHistorical(c.Request().Context(), symbol, period, interval)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "historical fetch failed", "symbol", symbol, "error", err)
		return c.JSON(502, map[string]string{"error": "historical data unavailable"})
	}

	return c.JSONBlob(200, data)
}

// handleMarketStatus reports the current trading session. Falls back to
// the locally computed session when the upstream status source is down,
// so this endpoint always answers.
func (s *Server) handleMarketStatus(c echo.Context) error {
	ctx, cancel := s.statusContext(c)
	defer cancel()

	status, err := s.provider.FetchMarketStatus(ctx)
	if err != nil {
		slog.DebugContext(c.Request().Context(), "upstream market status failed, using local session", "error", err)
		status = market.LocalStatus(s.clock.Now())
	}

	return c.JSON(200, status)
}

func (s *Server) statusContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.config.StatusTimeout)
}
