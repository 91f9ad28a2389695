package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchQuoteDecodesUpstreamPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/market/realtime/NIFTY", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"NIFTY","close_price":21150.5,"volume":1200000,"is_market_open":true}`))
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, testLogger())

	sample, err := client.FetchQuote(context.Background(), "nifty")
	require.NoError(t, err)
	assert.Equal(t, "NIFTY", sample.Symbol)
	assert.Equal(t, 21150.5, sample.Close)
	assert.Equal(t, int64(1_200_000), sample.Volume)
	assert.True(t, sample.IsMarketOpen)
	assert.False(t, sample.Synthetic)
}

func TestFetchRejectsNon2xxAndMalformedBodies(t *testing.T) {
	var status int
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, testLogger())

	status, body = http.StatusInternalServerError, `{}`
	_, err := client.FetchTechnical(context.Background(), "NIFTY")
	assert.Error(t, err)

	status, body = http.StatusOK, `{"broken`
	_, err = client.FetchSentiment(context.Background(), "NIFTY")
	assert.Error(t, err)
}

func TestFetchHistoricalForwardsQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/market/historical/SENSEX", r.URL.Path)
		assert.Equal(t, "1mo", r.URL.Query().Get("period"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"candles":[]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, testLogger())

	data, err := client.FetchHistorical(context.Background(), "SENSEX", "1mo", "1d")
	require.NoError(t, err)
	assert.JSONEq(t, `{"candles":[]}`, string(data))
}

func TestFetchMarketStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/market/market-status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "regular",
			"market_hours": map[string]any{"regular": map[string]string{"start": "09:15", "end": "15:30"}},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, testLogger())

	status, err := client.FetchMarketStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "regular", status.Status)
	assert.Equal(t, "09:15", status.MarketHours["regular"].Start)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, testLogger())

	for i := 0; i < 5; i++ {
		_, err := client.FetchTechnical(context.Background(), "NIFTY")
		require.Error(t, err)
	}
	seen := requests

	// Circuit is open: further calls fail fast without hitting upstream.
	_, err := client.FetchTechnical(context.Background(), "NIFTY")
	assert.Error(t, err)
	assert.Equal(t, seen, requests)
}

func TestBreakersAreIndependentPerSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/market/realtime/NIFTY" {
			_, _ = w.Write([]byte(`{"symbol":"NIFTY","close_price":21000}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, testLogger())

	for i := 0; i < 6; i++ {
		_, _ = client.FetchSentiment(context.Background(), "NIFTY")
	}

	_, err := client.FetchQuote(context.Background(), "NIFTY")
	assert.NoError(t, err, "a tripped sentiment breaker must not block market fetches")
}
