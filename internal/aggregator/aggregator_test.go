package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/market"
)

var errUpstreamDown = errors.New("upstream down")

// fakeProvider counts calls and returns configurable results per facet.
type fakeProvider struct {
	quoteCalls atomic.Int64
	quoteErr   bool
	facetErr   bool
}

func (p *fakeProvider) FetchQuote(_ context.Context, symbol string) (*domain.MarketSample, error) {
	p.quoteCalls.Add(1)
	if p.quoteErr {
		return nil, errUpstreamDown
	}
	return &domain.MarketSample{Symbol: symbol, Close: 21150, Volume: 1_000_000}, nil
}

func (p *fakeProvider) FetchTechnical(context.Context, string) (json.RawMessage, error) {
	if p.facetErr {
		return nil, errUpstreamDown
	}
	return json.RawMessage(`{"rsi":61.4}`), nil
}

func (p *fakeProvider) FetchSentiment(context.Context, string) (json.RawMessage, error) {
	if p.facetErr {
		return nil, errUpstreamDown
	}
	return json.RawMessage(`{"score":0.3}`), nil
}

func (p *fakeProvider) FetchHistorical(context.Context, string, string, string) (json.RawMessage, error) {
	return nil, errUpstreamDown
}

func (p *fakeProvider) FetchMarketStatus(context.Context) (*domain.MarketStatus, error) {
	return nil, errUpstreamDown
}

// memStore is an in-memory RecordStore without TTL expiry.
type memStore struct {
	mu      sync.Mutex
	records map[string]domain.AggregatedRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.AggregatedRecord)}
}

func (s *memStore) PutRecord(_ context.Context, record domain.AggregatedRecord, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Symbol] = record
	return nil
}

func (s *memStore) GetRecord(_ context.Context, symbol string) (*domain.AggregatedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[symbol]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

// memBus collects published records.
type memBus struct {
	mu        sync.Mutex
	published []domain.AggregatedRecord
}

func (b *memBus) Publish(_ context.Context, record domain.AggregatedRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, record)
	return nil
}

func (b *memBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func testAggregator(p domain.QuoteProvider, clock clockwork.Clock) (*Aggregator, *memStore, *memBus) {
	store := newMemStore()
	bus := &memBus{}
	agg := New(p, store, bus, market.DefaultTable(), clock, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		RefreshInterval: 5 * time.Second,
		CacheTTL:        30 * time.Second,
		FreshnessWindow: 30 * time.Second,
		FetchTimeout:    time.Second,
	}, []string{"NIFTY", "SENSEX"})
	return agg, store, bus
}

func TestRefreshSymbolMergesAllFacets(t *testing.T) {
	agg, store, bus := testAggregator(&fakeProvider{}, clockwork.NewFakeClock())

	record := agg.RefreshSymbol(context.Background(), "nifty")

	require.NotNil(t, record.Market)
	assert.Equal(t, "NIFTY", record.Symbol)
	assert.False(t, record.Market.Synthetic)
	assert.JSONEq(t, `{"rsi":61.4}`, string(record.Technical))
	assert.JSONEq(t, `{"score":0.3}`, string(record.Sentiment))

	stored, err := store.GetRecord(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, record.Symbol, stored.Symbol)
	assert.Equal(t, 1, bus.count())
}

func TestRefreshSymbolFallsBackWhenEverySourceFails(t *testing.T) {
	agg, store, bus := testAggregator(&fakeProvider{quoteErr: true, facetErr: true}, clockwork.NewFakeClock())

	record := agg.RefreshSymbol(context.Background(), "NIFTY")

	require.NotNil(t, record.Market, "a record is produced even with every source down")
	assert.True(t, record.Market.Synthetic)
	assert.Nil(t, record.Technical)
	assert.Nil(t, record.Sentiment)

	_, err := store.GetRecord(context.Background(), "NIFTY")
	assert.NoError(t, err, "synthetic records are cached like real ones")
	assert.Equal(t, 1, bus.count(), "synthetic records are published like real ones")
}

func TestGetLatestServesFreshCacheWithoutRefetching(t *testing.T) {
	p := &fakeProvider{}
	clock := clockwork.NewFakeClock()
	agg, _, _ := testAggregator(p, clock)

	agg.RefreshSymbol(context.Background(), "NIFTY")
	calls := p.quoteCalls.Load()

	record, err := agg.GetLatest(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.NotNil(t, record.Market)
	assert.Equal(t, calls, p.quoteCalls.Load(), "fresh cache hit must not refetch")
}

func TestGetLatestRefreshesStaleRecords(t *testing.T) {
	p := &fakeProvider{}
	clock := clockwork.NewFakeClock()
	agg, _, _ := testAggregator(p, clock)

	agg.RefreshSymbol(context.Background(), "NIFTY")
	calls := p.quoteCalls.Load()

	clock.Advance(31 * time.Second)

	_, err := agg.GetLatest(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, calls+1, p.quoteCalls.Load(), "stale records trigger a refresh")
}

func TestGetLatestRefreshesOnMiss(t *testing.T) {
	p := &fakeProvider{}
	agg, store, _ := testAggregator(p, clockwork.NewFakeClock())

	record, err := agg.GetLatest(context.Background(), "BANKNIFTY")
	require.NoError(t, err)
	assert.Equal(t, "BANKNIFTY", record.Symbol)

	_, err = store.GetRecord(context.Background(), "BANKNIFTY")
	assert.NoError(t, err)
}

func TestRefreshAllCoversEveryTrackedSymbol(t *testing.T) {
	agg, store, _ := testAggregator(&fakeProvider{}, clockwork.NewFakeClock())
	agg.Track("BANKNIFTY")

	agg.RefreshAll(context.Background())

	for _, symbol := range []string{"NIFTY", "SENSEX", "BANKNIFTY"} {
		_, err := store.GetRecord(context.Background(), symbol)
		assert.NoError(t, err, symbol)
	}
}

func TestTrackIsIdempotent(t *testing.T) {
	agg, _, _ := testAggregator(&fakeProvider{}, clockwork.NewFakeClock())

	agg.Track("nifty")
	agg.Track("NIFTY")

	assert.Len(t, agg.Symbols(), 2)
}

func TestRunRefreshesOnTick(t *testing.T) {
	p := &fakeProvider{}
	clock := clockwork.NewFakeClock()
	agg, _, bus := testAggregator(p, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go agg.Run(ctx)

	// Initial refresh fires immediately.
	require.Eventually(t, func() bool { return bus.count() >= 2 }, 2*time.Second, 10*time.Millisecond)

	clock.BlockUntil(1)
	before := bus.count()
	clock.Advance(5 * time.Second)

	require.Eventually(t, func() bool { return bus.count() >= before+2 }, 2*time.Second, 10*time.Millisecond)
}
