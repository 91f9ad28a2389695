package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "http://localhost:8000", cfg.ProviderBaseURL)
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.FreshnessWindow)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, []string{"NIFTY", "SENSEX", "BANKNIFTY"}, cfg.SymbolList())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SYMBOLS", " nifty, finnifty ,,")
	t.Setenv("REFRESH_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"NIFTY", "FINNIFTY"}, cfg.SymbolList())
	assert.Equal(t, 2*time.Second, cfg.RefreshInterval)
}

func TestLoadRejectsEmptySymbolList(t *testing.T) {
	t.Setenv("SYMBOLS", " , ,")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "0s")

	_, err := Load()
	assert.Error(t, err)
}
