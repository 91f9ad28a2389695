package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 15, hour, minute, 0, 0, time.Local)
}

func TestStatusSessionBoundaries(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		want string
	}{
		{"before pre-market", at(8, 59), StatusClosed},
		{"pre-market opens", at(9, 0), StatusPreMarket},
		{"last pre-market minute", at(9, 14), StatusPreMarket},
		{"regular opens", at(9, 15), StatusRegular},
		{"midday", at(12, 0), StatusRegular},
		{"regular closes", at(15, 30), StatusRegular},
		{"gap before post-market", at(15, 35), StatusClosed},
		{"post-market opens", at(15, 40), StatusPostMarket},
		{"post-market closes", at(16, 0), StatusPostMarket},
		{"after post-market", at(16, 1), StatusClosed},
		{"midnight", at(0, 0), StatusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.time))
		})
	}
}

func TestIsOpenOnlyDuringRegularSession(t *testing.T) {
	assert.False(t, IsOpen(at(9, 5)), "pre-market is not open")
	assert.True(t, IsOpen(at(10, 0)))
	assert.False(t, IsOpen(at(15, 45)), "post-market is not open")
	assert.False(t, IsOpen(at(20, 0)))
}

func TestLocalStatus(t *testing.T) {
	now := at(11, 30)
	status := LocalStatus(now)

	assert.Equal(t, StatusRegular, status.Status)
	assert.Equal(t, now, status.Timestamp)
	assert.Equal(t, "09:15", status.MarketHours[StatusRegular].Start)
	assert.Equal(t, "15:30", status.MarketHours[StatusRegular].End)
	assert.Len(t, status.MarketHours, 3)
}
