// Command rebalancer runs the portfolio-rebalancing market maker described
// in spec.md: it keeps a two-asset portfolio at a 50/50 value split by
// placing one buy and one sell limit order symmetrically around a computed
// center price, and re-places them whenever one side fills.
//
// Architecture:
//
//	main.go                    — entry point: loads config, builds the engine, waits for SIGINT/SIGTERM
//	engine/engine.go           — orchestrator: wires client -> stream -> book/wallet -> rebalancer (spec §4)
//	rebalancer/rebalancer.go   — check_trades state machine (spec §4.E)
//	pricing/pricing.go         — pure center/step/fee/protection/forced-price formulas (spec §4.D)
//	book/book.go, wallet/wallet.go — order book + wallet projections (spec §4.C)
//	exchange/{auth,client,stream,ratelimit}.go — signed HTTP caller + streaming client (spec §4.A/§4.B)
//	risk/manager.go            — minimum-balance watcher (logging only; the rebalancer enforces the halt)
//	store/store.go             — JSON persistence of strategy state across restarts
//	api/server.go, api/tradelog.go — health/status/control HTTP surface + CSV trade log (spec §6)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rebalancer/internal/config"
	"rebalancer/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("REBAL_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng.Start(ctx)

	logger.Info("rebalancer started",
		"pair", cfg.Pair.Base+"/"+cfg.Pair.Quote,
		"venue", cfg.Venue.Name,
		"simulate", cfg.Simulate,
		"distance", cfg.Strategy.Distance,
		"distance_sell", cfg.Strategy.DistanceSell,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
