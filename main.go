package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/surge-intraday-bot/pkg/broker"
	"github.com/surge-intraday-bot/pkg/config"
	"github.com/surge-intraday-bot/pkg/feed"
	"github.com/surge-intraday-bot/pkg/report"
	"github.com/surge-intraday-bot/pkg/session"
)

func main() {
	fmt.Println("Surge Intraday Bot - Starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(!cfg.Paper); err != nil {
		fmt.Fprintf(os.Stderr, "Config validation failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Paper)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("window", string(cfg.Window)),
		zap.Bool("paper", cfg.Paper),
		zap.Float64("buy_amount", cfg.BuyAmount),
		zap.Int("max_tracked", cfg.MaxTrackedTickers))

	// Market data: HTTP feed wrapped in a per-poll bar cache.
	marketFeed := feed.NewCachedFeed(
		feed.NewHTTPFeed(cfg.FeedBaseURL, cfg.FeedAPIKey),
		cfg.PollInterval,
	)

	// Broker: remote sidecar when configured, in-memory paper gateway
	// otherwise.
	var gateway broker.Gateway
	if cfg.BrokerBaseURL != "" {
		gateway = broker.NewRemoteGateway(cfg.BrokerBaseURL)
	} else {
		gateway = broker.NewPaperGateway(0)
	}
	logger.Info("broker gateway selected", zap.String("gateway", gateway.Name()))

	// Reporting: postgres when DATABASE_URL is set, in-memory otherwise.
	var store report.Store
	if cfg.DatabaseURL != "" {
		gs, err := report.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connect failed", zap.Error(err))
		}
		store = gs
	} else {
		logger.Info("no DATABASE_URL set, reporting to memory only")
		store = report.NewMemoryStore()
	}

	// Prometheus endpoint.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	sess, err := session.New(cfg, marketFeed, gateway, store, logger)
	if err != nil {
		logger.Fatal("session setup failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := sess.Run(ctx); err != nil {
		logger.Fatal("session failed", zap.Error(err))
	}
	logger.Info("session complete")
}

func newLogger(paper bool) (*zap.Logger, error) {
	if paper {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
