package domain

import (
	"context"
	"encoding/json"
	"time"
)

// --- Model types ---

// MarketSample is one OHLCV quote for a symbol, produced once per
// aggregation cycle. Samples are immutable; the next cycle supersedes
// rather than mutates. Synthetic marks samples generated by the fallback
// path when no upstream quote was available - consumers must be able to
// tell these apart from real data.
type MarketSample struct {
	Symbol        string    `json:"symbol"`
	Timestamp     time.Time `json:"timestamp"`
	Open          float64   `json:"open_price"`
	High          float64   `json:"high_price"`
	Low           float64   `json:"low_price"`
	Close         float64   `json:"close_price"`
	Volume        int64     `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	IsMarketOpen  bool      `json:"is_market_open"`
	Synthetic     bool      `json:"synthetic"`
}

// AggregatedRecord merges the market, technical and sentiment facets for
// one symbol at one point in time. Any facet may be nil when its upstream
// fetch failed - absence is an expected state, never an error. The record
// is the unit stored in the cache and published on the bus.
type AggregatedRecord struct {
	Symbol      string          `json:"symbol"`
	Timestamp   time.Time       `json:"timestamp"`
	Market      *MarketSample   `json:"market,omitempty"`
	Technical   json.RawMessage `json:"technical,omitempty"`
	Sentiment   json.RawMessage `json:"sentiment,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Age returns how long ago the record was written.
func (r *AggregatedRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.LastUpdated)
}

// SessionWindow is a trading session expressed as wall-clock "HH:MM" bounds.
type SessionWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarketStatus reports which trading session the market is currently in.
type MarketStatus struct {
	Status      string                   `json:"status"`
	Timestamp   time.Time                `json:"timestamp"`
	MarketHours map[string]SessionWindow `json:"market_hours"`
}

// --- Interfaces ---

// RecordStore is the TTL-bounded key/value store for aggregated records.
// A get after the entry's TTL elapsed returns ErrNotFound, never stale data.
type RecordStore interface {
	PutRecord(ctx context.Context, record AggregatedRecord, ttl time.Duration) error
	GetRecord(ctx context.Context, symbol string) (*AggregatedRecord, error)
}

// RecordBus is the at-most-once broadcast channel between the aggregation
// process and the delivery process. Messages published with no subscriber
// are lost; the RecordStore holds the latest state for late joiners.
type RecordBus interface {
	Publish(ctx context.Context, record AggregatedRecord) error
}

// QuoteProvider fetches the per-symbol facets from upstream data sources.
// The contract is "return a JSON body or fail within the deadline";
// callers absorb every failure locally.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string) (*MarketSample, error)
	FetchTechnical(ctx context.Context, symbol string) (json.RawMessage, error)
	FetchSentiment(ctx context.Context, symbol string) (json.RawMessage, error)
	FetchHistorical(ctx context.Context, symbol, period, interval string) (json.RawMessage, error)
	FetchMarketStatus(ctx context.Context) (*MarketStatus, error)
}

// SnapshotSource answers point-in-time "give me what you have now"
// requests and accepts new symbols for tracking. Implemented by the
// aggregator, consumed by the hub for initial snapshot pushes.
type SnapshotSource interface {
	GetLatest(ctx context.Context, symbol string) (*AggregatedRecord, error)
	Track(symbol string)
}
