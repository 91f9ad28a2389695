package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/market"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/metrics"
)

const keyPrefix = "market_data:"

// RecordStore keeps the latest aggregated record per symbol in Redis,
// bounded by a TTL. Expired entries read back as domain.ErrNotFound so
// callers never see stale data.
type RecordStore struct {
	rdb *goredis.Client
}

var _ domain.RecordStore = (*RecordStore)(nil)

func NewRecordStore(client *Client) *RecordStore {
	return &RecordStore{rdb: client.rdb}
}

func recordKey(symbol string) string {
	return keyPrefix + market.Normalize(symbol)
}

// PutRecord stores the record as JSON under its symbol key with the given
// TTL. The write replaces any previous record for the symbol.
func (s *RecordStore) PutRecord(ctx context.Context, record domain.AggregatedRecord, ttl time.Duration) error {
	start := time.Now()
	defer func() {
		metrics.CacheOpDuration.WithLabelValues("put").Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record for %s: %w", record.Symbol, err)
	}

	if err := s.rdb.Set(ctx, recordKey(record.Symbol), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store record for %s: %w", record.Symbol, err)
	}
	return nil
}

// GetRecord fetches the latest record for a symbol. Returns
// domain.ErrNotFound when no live entry exists.
func (s *RecordStore) GetRecord(ctx context.Context, symbol string) (*domain.AggregatedRecord, error) {
	start := time.Now()
	defer func() {
		metrics.CacheOpDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	data, err := s.rdb.Get(ctx, recordKey(symbol)).Bytes()
	if errors.Is(err, goredis.Nil) {
		metrics.CacheMisses.Inc()
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record for %s: %w", symbol, err)
	}

	var record domain.AggregatedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record for %s: %w", symbol, err)
	}

	metrics.CacheHits.Inc()
	return &record, nil
}
