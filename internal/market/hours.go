// Package market holds pure market-session functions and the per-symbol
// base table used by the synthetic fallback generator.
package market

import (
	"time"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
)

// Session status values, matching the upstream market-status contract.
const (
	StatusPreMarket  = "pre_market"
	StatusRegular    = "regular"
	StatusPostMarket = "post_market"
	StatusClosed     = "closed"
)

type window struct {
	start, end int // minutes since midnight, inclusive
}

func minutes(h, m int) int { return h*60 + m }

// NSE session windows. Regular session 09:15-15:30 drives is_market_open.
// The regular window is checked first so the shared 09:15 boundary
// resolves to it rather than to pre-market.
var sessions = []struct {
	name string
	window
}{
	{StatusRegular, window{minutes(9, 15), minutes(15, 30)}},
	{StatusPreMarket, window{minutes(9, 0), minutes(9, 15)}},
	{StatusPostMarket, window{minutes(15, 40), minutes(16, 0)}},
}

// Status returns which trading session the local time falls in.
func Status(now time.Time) string {
	cur := minutes(now.Hour(), now.Minute())
	for _, s := range sessions {
		if cur >= s.start && cur <= s.end {
			return s.name
		}
	}
	return StatusClosed
}

// IsOpen reports whether the regular trading session is in progress.
func IsOpen(now time.Time) bool {
	return Status(now) == StatusRegular
}

// Hours returns the session windows in the wire format used by the
// market-status endpoint.
func Hours() map[string]domain.SessionWindow {
	return map[string]domain.SessionWindow{
		StatusPreMarket:  {Start: "09:00", End: "09:15"},
		StatusRegular:    {Start: "09:15", End: "15:30"},
		StatusPostMarket: {Start: "15:40", End: "16:00"},
	}
}

// LocalStatus builds a market-status response from local time alone. Used
// as the fallback when the upstream status source is unreachable.
func LocalStatus(now time.Time) *domain.MarketStatus {
	return &domain.MarketStatus{
		Status:      Status(now),
		Timestamp:   now,
		MarketHours: Hours(),
	}
}
