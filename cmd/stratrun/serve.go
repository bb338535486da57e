package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stratrun/stratrun/internal/config"
	"github.com/stratrun/stratrun/internal/engine"
	"github.com/stratrun/stratrun/internal/insight"
	httpx "github.com/stratrun/stratrun/internal/interfaces/http"
	"github.com/stratrun/stratrun/internal/marketdata"
	"github.com/stratrun/stratrun/internal/strategy"
	"github.com/stratrun/stratrun/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	setLogLevel(cfg.LogLevel)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	var provider marketdata.Provider = marketdata.NewYahooClient(cfg.Provider)
	if cfg.Cache.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			DB:       cfg.Cache.DB,
			Password: cfg.Cache.Password,
		})
		provider = marketdata.NewCachedProvider(provider, rdb, cfg.Cache.TTL)
		log.Info().Str("addr", cfg.Cache.Addr).Dur("ttl", cfg.Cache.TTL).Msg("history cache enabled")
	}

	runner := engine.NewRunner(strategy.NewRegistry(), provider, metrics)
	streamer := engine.NewStreamer(runner)
	if cfg.Stream.StepDelay >= 0 {
		streamer.StepDelay = cfg.Stream.StepDelay
	}

	var insights insight.Provider
	if cfg.Insight.APIKey != "" {
		insights = insight.NewClient(cfg.Insight)
	} else {
		log.Warn().Msg("no insight API key, /quant/ai-insight disabled")
	}

	server := httpx.NewServer(cfg.Server, runner, streamer, insights, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
