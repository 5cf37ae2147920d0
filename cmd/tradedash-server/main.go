package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwpark-dev/tradedash/internal/clients/kis"
	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/server"
	"github.com/jwpark-dev/tradedash/internal/services/market"
	"github.com/jwpark-dev/tradedash/internal/services/poller"
	"github.com/jwpark-dev/tradedash/internal/services/scheduler"
	"github.com/jwpark-dev/tradedash/internal/state"
)

func main() {
	// Resolve config path
	configPath := os.Getenv("TRADEDASH_CONFIG")

	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}

	cfg, err := common.LoadConfig(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLoggerFromConfig(cfg.Logging)

	client := kis.NewClient(
		kis.WithBaseURL(cfg.Backend.BaseURL),
		kis.WithLogger(logger),
		kis.WithRateLimit(cfg.Backend.RateLimit),
		kis.WithTimeout(cfg.Backend.GetTimeout()),
	)

	store := state.NewStore()
	toggle := scheduler.NewController(client, logger, cfg.Scheduler)
	orchestrator := poller.NewOrchestrator(client, toggle, store, logger, cfg)

	srv := server.NewServer(store, orchestrator, toggle, client, market.RenderSeriesChart, logger, cfg)

	// Start background polling
	orchestrator.Start()

	// Start HTTP server
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("backend", cfg.Backend.BaseURL).
		Msg("Dashboard server ready")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received")

	orchestrator.Stop()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}
