package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalLimitRejectsAtCapacity(t *testing.T) {
	limits := NewConnectionLimits(2, 10, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	limits.Release("10.0.0.1")
	ok, _ = limits.Acquire("10.0.0.3")
	assert.True(t, ok, "released slot becomes available again")
}

func TestPerIPLimitIsIndependentOfGlobal(t *testing.T) {
	limits := NewConnectionLimits(100, 2, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.1")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok, "other IPs are unaffected")

	assert.Equal(t, int64(3), limits.Current(), "rejected acquire must not leak a global slot")
}

func TestRateLimitBurst(t *testing.T) {
	limits := NewConnectionLimits(1000, 1000, 1, 3)

	for i := 0; i < 3; i++ {
		ok, _ := limits.Acquire("10.0.0.1")
		assert.True(t, ok, "burst connection %d", i)
	}

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}

func TestReleaseDropsEmptyIPEntries(t *testing.T) {
	limits := NewConnectionLimits(100, 5, 1000, 1000)

	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	for _, ip := range ips {
		ok, _ := limits.Acquire(ip)
		assert.True(t, ok, fmt.Sprintf("acquire %s", ip))
	}
	for _, ip := range ips {
		limits.Release(ip)
	}

	assert.Equal(t, int64(0), limits.Current())
	assert.Empty(t, limits.perIP.ips)
}
