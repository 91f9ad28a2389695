package provider

import (
	"math/rand"
	"time"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/market"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/metrics"
)

// SyntheticSample generates a plausible quote from the symbol's base info.
// Used when the market source failed for a cycle so viewers keep receiving
// updates. The sample is marked Synthetic so consumers can tell it apart
// from real data.
//
// Close jitters within 2% of the base price, volume within 20% of the base
// volume scaled by 1.2.
func SyntheticSample(symbol string, info market.SymbolInfo, now time.Time) *domain.MarketSample {
	changePct := (rand.Float64()*2 - 1) * 0.02
	closePrice := info.BasePrice * (1 + changePct)
	open := info.BasePrice * (1 + (rand.Float64()*2-1)*0.01)

	high := closePrice
	low := closePrice
	if open > high {
		high = open
	}
	if open < low {
		low = open
	}
	high *= 1 + rand.Float64()*0.005
	low *= 1 - rand.Float64()*0.005

	volume := float64(info.BaseVolume) * (0.8 + rand.Float64()*0.4) * 1.2

	metrics.FallbackSamples.Inc()

	return &domain.MarketSample{
		Symbol:        market.Normalize(symbol),
		Timestamp:     now,
		Open:          open,
		High:          high,
		Low:           low,
		Close:         closePrice,
		Volume:        int64(volume),
		Change:        closePrice - info.BasePrice,
		ChangePercent: changePct * 100,
		IsMarketOpen:  market.IsOpen(now),
		Synthetic:     true,
	}
}
