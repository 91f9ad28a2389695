package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/aggregator"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/cache"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/config"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/hub"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/logging"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/market"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/metrics"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/provider"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/server"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *cache.Client {
	client, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupSymbolTable(cfg *config.Config) *market.Table {
	if cfg.SymbolTableFile == "" {
		return market.DefaultTable()
	}

	table, err := market.LoadTable(cfg.SymbolTableFile)
	if err != nil {
		slog.Error("Failed to load symbol table", "file", cfg.SymbolTableFile, "error", err)
		os.Exit(1)
	}
	return table
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, cancelWorkers context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelWorkers()
		h.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	info := version.Get()
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.BuildTime, info.GoVersion).Set(1)

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	store := cache.NewRecordStore(redisClient)
	bus := cache.NewBus(redisClient, logging.Logger)
	table := setupSymbolTable(cfg)

	quotes := provider.New(cfg.ProviderBaseURL, cfg.FetchTimeout, logging.Logger)

	agg := aggregator.New(quotes, store, bus, table, clock, logging.Logger, aggregator.Options{
		RefreshInterval: cfg.RefreshInterval,
		CacheTTL:        cfg.CacheTTL,
		FreshnessWindow: cfg.FreshnessWindow,
		FetchTimeout:    cfg.FetchTimeout,
	}, cfg.SymbolList())

	h := hub.New(agg, clock, logging.Logger, cfg.HeartbeatInterval, cfg.IdleTimeout)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	go agg.Run(workerCtx)

	// Bridge the bus to the hub: every published record fans out to the
	// viewers subscribed to its symbol.
	sub := bus.Subscribe(workerCtx)
	defer sub.Close()
	go func() {
		for record := range sub.Ch {
			h.Route(record)
		}
	}()

	srv := server.NewServer(cfg, agg, quotes, h, redisClient, clock)

	done := runGracefulShutdown(srv, h, cancelWorkers)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
