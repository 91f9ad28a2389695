package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv          string `env:"APP_ENV" default:"development"`
	Port            string `env:"PORT" default:"8080"`
	RedisURL        string `env:"REDIS_URL" default:"redis://localhost:6379"`
	ProviderBaseURL string `env:"PROVIDER_BASE_URL" default:"http://localhost:8000"`
	LogLevel        string `env:"LOG_LEVEL" default:"info"`
	LogFormat       string `env:"LOG_FORMAT" default:"text"`

	Symbols         string `env:"SYMBOLS" default:"NIFTY,SENSEX,BANKNIFTY"`
	SymbolTableFile string `env:"SYMBOL_TABLE_FILE"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" default:"5s"`
	CacheTTL        time.Duration `env:"CACHE_TTL" default:"30s"`
	FreshnessWindow time.Duration `env:"FRESHNESS_WINDOW" default:"30s"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" default:"10s"`
	StatusTimeout   time.Duration `env:"STATUS_TIMEOUT" default:"5s"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" default:"30m"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"50"`
	ConnectionRateLimit     float64 `env:"CONNECTION_RATE_LIMIT" default:"100"`
	ConnectionRateBurst     int     `env:"CONNECTION_RATE_BURST" default:"200"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.SymbolList()) == 0 {
		return fmt.Errorf("SYMBOLS must list at least one symbol")
	}
	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	return nil
}

// SymbolList returns the configured symbols, uppercased and trimmed.
func (c *Config) SymbolList() []string {
	var symbols []string
	for _, s := range strings.Split(c.Symbols, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
