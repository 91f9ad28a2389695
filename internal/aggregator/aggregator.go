// Package aggregator merges the market, technical and sentiment facets
// for each tracked symbol into one record per cycle, writes it to the
// cache and publishes it on the bus.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/market"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/metrics"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/platform/correlation"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/provider"
)

// Aggregator drives the periodic refresh cycle. Each cycle fetches all
// facets for all tracked symbols concurrently, absorbs per-source
// failures, and always produces a record per symbol. A cycle never
// fails as a whole.
type Aggregator struct {
	provider domain.QuoteProvider
	store    domain.RecordStore
	bus      domain.RecordBus
	table    *market.Table
	clock    clockwork.Clock
	logger   *slog.Logger

	refreshInterval time.Duration
	cacheTTL        time.Duration
	freshnessWindow time.Duration
	fetchTimeout    time.Duration

	group singleflight.Group

	mu      sync.Mutex
	symbols map[string]struct{}
}

var _ domain.SnapshotSource = (*Aggregator)(nil)

// Options bundles the cycle timings.
type Options struct {
	RefreshInterval time.Duration
	CacheTTL        time.Duration
	FreshnessWindow time.Duration
	FetchTimeout    time.Duration
}

func New(p domain.QuoteProvider, store domain.RecordStore, bus domain.RecordBus, table *market.Table, clock clockwork.Clock, logger *slog.Logger, opts Options, symbols []string) *Aggregator {
	a := &Aggregator{
		provider:        p,
		store:           store,
		bus:             bus,
		table:           table,
		clock:           clock,
		logger:          logger,
		refreshInterval: opts.RefreshInterval,
		cacheTTL:        opts.CacheTTL,
		freshnessWindow: opts.FreshnessWindow,
		fetchTimeout:    opts.FetchTimeout,
		symbols:         make(map[string]struct{}),
	}
	for _, s := range symbols {
		a.symbols[market.Normalize(s)] = struct{}{}
	}
	metrics.TrackedSymbols.Set(float64(len(a.symbols)))
	return a
}

// Track adds a symbol to the refresh set. Idempotent.
func (a *Aggregator) Track(symbol string) {
	symbol = market.Normalize(symbol)
	if symbol == "" {
		return
	}
	a.mu.Lock()
	if _, ok := a.symbols[symbol]; !ok {
		a.symbols[symbol] = struct{}{}
		metrics.TrackedSymbols.Set(float64(len(a.symbols)))
	}
	a.mu.Unlock()
}

// Symbols returns the current refresh set.
func (a *Aggregator) Symbols() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.symbols))
	for s := range a.symbols {
		out = append(out, s)
	}
	return out
}

// Run starts the periodic refresh loop. It blocks until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := a.clock.NewTicker(a.refreshInterval)
	defer ticker.Stop()

	a.RefreshAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			a.RefreshAll(ctx)
		}
	}
}

// RefreshAll refreshes every tracked symbol concurrently and waits for
// all of them to settle.
func (a *Aggregator) RefreshAll(ctx context.Context) {
	cycleCtx := correlation.WithID(ctx, correlation.NewID())
	start := a.clock.Now()

	var wg sync.WaitGroup
	for _, symbol := range a.Symbols() {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			a.RefreshSymbol(cycleCtx, symbol)
		}(symbol)
	}
	wg.Wait()

	elapsed := a.clock.Since(start)
	metrics.CycleDuration.Observe(elapsed.Seconds())
	a.logger.DebugContext(cycleCtx, "refresh cycle complete", "duration", elapsed)
}

// RefreshSymbol fetches all facets for one symbol, assembles the record,
// stores and publishes it. Source failures are absorbed: a failed facet
// is simply absent, and a failed market fetch falls back to a synthetic
// sample. Store and publish failures are logged and the refresh
// continues, so one broken sink cannot stop the cycle.
func (a *Aggregator) RefreshSymbol(ctx context.Context, symbol string) *domain.AggregatedRecord {
	symbol = market.Normalize(symbol)
	now := a.clock.Now()

	record := &domain.AggregatedRecord{
		Symbol:      symbol,
		Timestamp:   now,
		LastUpdated: now,
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
		sample, err := a.provider.FetchQuote(fetchCtx, symbol)
		if err != nil {
			a.logger.WarnContext(ctx, "market fetch failed, using synthetic sample", "symbol", symbol, "error", err)
			sample = provider.SyntheticSample(symbol, a.table.Lookup(symbol), now)
		}
		record.Market = sample
	}()

	go func() {
		defer wg.Done()
		fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
		technical, err := a.provider.FetchTechnical(fetchCtx, symbol)
		if err != nil {
			a.logger.DebugContext(ctx, "technical fetch failed", "symbol", symbol, "error", err)
			return
		}
		record.Technical = technical
	}()

	go func() {
		defer wg.Done()
		fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
		sentiment, err := a.provider.FetchSentiment(fetchCtx, symbol)
		if err != nil {
			a.logger.DebugContext(ctx, "sentiment fetch failed", "symbol", symbol, "error", err)
			return
		}
		record.Sentiment = sentiment
	}()

	wg.Wait()

	if err := a.store.PutRecord(ctx, *record, a.cacheTTL); err != nil {
		a.logger.WarnContext(ctx, "failed to cache record", "symbol", symbol, "error", err)
	}
	if err := a.bus.Publish(ctx, *record); err != nil {
		a.logger.WarnContext(ctx, "failed to publish record", "symbol", symbol, "error", err)
	}

	return record
}

// GetLatest serves the freshest record for a symbol. Cache hits within
// the freshness window are returned as-is; misses and stale hits trigger
// a refresh, collapsed across concurrent callers for the same symbol.
func (a *Aggregator) GetLatest(ctx context.Context, symbol string) (*domain.AggregatedRecord, error) {
	symbol = market.Normalize(symbol)

	record, err := a.store.GetRecord(ctx, symbol)
	if err == nil && record.Age(a.clock.Now()) <= a.freshnessWindow {
		return record, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	fresh, err, _ := a.group.Do(symbol, func() (any, error) {
		return a.RefreshSymbol(ctx, symbol), nil
	})
	if err != nil {
		return nil, err
	}
	return fresh.(*domain.AggregatedRecord), nil
}
