package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/market"
)

func TestSyntheticSampleStaysWithinBounds(t *testing.T) {
	info := market.SymbolInfo{BasePrice: 21000, BaseVolume: 1_000_000}
	now := time.Date(2024, 3, 15, 11, 0, 0, 0, time.Local)

	for i := 0; i < 200; i++ {
		sample := SyntheticSample("nifty", info, now)

		assert.Equal(t, "NIFTY", sample.Symbol)
		assert.Equal(t, now, sample.Timestamp)
		assert.True(t, sample.Synthetic)

		assert.GreaterOrEqual(t, sample.Close, 20580.0)
		assert.LessOrEqual(t, sample.Close, 21420.0)

		assert.GreaterOrEqual(t, sample.Volume, int64(960_000))
		assert.LessOrEqual(t, sample.Volume, int64(1_440_000))

		assert.GreaterOrEqual(t, sample.ChangePercent, -2.0)
		assert.LessOrEqual(t, sample.ChangePercent, 2.0)

		assert.GreaterOrEqual(t, sample.High, sample.Close)
		assert.GreaterOrEqual(t, sample.High, sample.Open)
		assert.LessOrEqual(t, sample.Low, sample.Close)
		assert.LessOrEqual(t, sample.Low, sample.Open)

		assert.InDelta(t, sample.Close-info.BasePrice, sample.Change, 1e-9)
	}
}

func TestSyntheticSampleMarketOpenFlag(t *testing.T) {
	info := market.SymbolInfo{BasePrice: 45000, BaseVolume: 600_000}

	open := SyntheticSample("BANKNIFTY", info, time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local))
	assert.True(t, open.IsMarketOpen)

	closed := SyntheticSample("BANKNIFTY", info, time.Date(2024, 3, 15, 20, 0, 0, 0, time.Local))
	assert.False(t, closed.IsMarketOpen)
}
