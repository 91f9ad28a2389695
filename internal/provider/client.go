// Package provider fetches market, technical and sentiment data from the
// upstream analysis services, with per-source circuit breaking and a
// synthetic fallback generator for when every source is down.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/market"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/metrics"
)

// Source labels used in logs and metrics.
const (
	SourceMarket    = "market"
	SourceTechnical = "technical"
	SourceSentiment = "sentiment"
)

// Client talks to the upstream data services over HTTP. Each source gets
// its own circuit breaker so a dead sentiment service cannot poison
// market quotes.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

var _ domain.QuoteProvider = (*Client)(nil)

// New creates a provider client against the given base URL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, source := range []string{SourceMarket, SourceTechnical, SourceSentiment} {
		c.breakers[source] = newBreaker(source, logger)
	}
	return c
}

func newBreaker(source string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    source,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logger.Warn("circuit breaker state changed",
				"source", name,
				"from", from.String(),
				"to", to.String())
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// FetchQuote retrieves the current OHLCV quote for a symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.MarketSample, error) {
	body, err := c.fetch(ctx, SourceMarket, "/api/market/realtime/"+url.PathEscape(symbol), nil)
	if err != nil {
		return nil, err
	}

	var sample domain.MarketSample
	if err := json.Unmarshal(body, &sample); err != nil {
		metrics.SourceFetches.WithLabelValues(SourceMarket, "error").Inc()
		return nil, fmt.Errorf("failed to decode quote for %s: %w", symbol, err)
	}
	sample.Symbol = market.Normalize(symbol)
	return &sample, nil
}

// FetchTechnical retrieves the technical analysis facet for a symbol. The
// payload passes through untouched.
func (c *Client) FetchTechnical(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.fetch(ctx, SourceTechnical, "/api/technical/analyze/"+url.PathEscape(symbol), nil)
}

// FetchSentiment retrieves the sentiment facet for a symbol.
func (c *Client) FetchSentiment(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.fetch(ctx, SourceSentiment, "/api/sentiment/analyze/"+url.PathEscape(symbol), nil)
}

// FetchHistorical retrieves historical candles for a symbol.
func (c *Client) FetchHistorical(ctx context.Context, symbol, period, interval string) (json.RawMessage, error) {
	query := url.Values{}
	if period != "" {
		query.Set("period", period)
	}
	if interval != "" {
		query.Set("interval", interval)
	}
	return c.fetch(ctx, SourceMarket, "/api/market/historical/"+url.PathEscape(symbol), query)
}

// FetchMarketStatus asks the upstream which trading session is active.
func (c *Client) FetchMarketStatus(ctx context.Context) (*domain.MarketStatus, error) {
	body, err := c.fetch(ctx, SourceMarket, "/api/market/market-status", nil)
	if err != nil {
		return nil, err
	}

	var status domain.MarketStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to decode market status: %w", err)
	}
	return &status, nil
}

func (c *Client) fetch(ctx context.Context, source, path string, query url.Values) (json.RawMessage, error) {
	result, err := c.breakers[source].Execute(func() (any, error) {
		return c.get(ctx, path, query)
	})
	if err != nil {
		metrics.SourceFetches.WithLabelValues(source, "error").Inc()
		return nil, err
	}

	metrics.SourceFetches.WithLabelValues(source, "ok").Inc()
	return result.(json.RawMessage), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("upstream returned malformed JSON for %s", path)
	}
	return json.RawMessage(body), nil
}
