package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pendle-watch/apy-monitor/internal/config"
	"github.com/pendle-watch/apy-monitor/internal/dedup"
	"github.com/pendle-watch/apy-monitor/internal/handler"
	"github.com/pendle-watch/apy-monitor/internal/middleware"
	"github.com/pendle-watch/apy-monitor/internal/monitor"
	"github.com/pendle-watch/apy-monitor/internal/pendle"
	"github.com/pendle-watch/apy-monitor/internal/store"
	"github.com/pendle-watch/apy-monitor/internal/telegram"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	if cfg.TelegramToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}
	if cfg.ChatID == 0 {
		logger.Error("TELEGRAM_CHAT_ID is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracked pools: a malformed state file needs a manual fix, not a
	// silent reset
	st, err := store.Open(cfg.TrackedPoolsFile)
	if err != nil {
		logger.Error("failed to load tracked pools", "file", cfg.TrackedPoolsFile, "error", err)
		os.Exit(1)
	}
	logger.Info("tracked pools loaded", "file", cfg.TrackedPoolsFile, "count", st.Len())

	// Telegram bot
	bot := telegram.NewBot(cfg.TelegramToken, cfg.ChatID, st, logger)

	// Redis dedup (retry up to 30s for the container to come up)
	var dd *dedup.Deduplicator
	for i := 0; i < 6; i++ {
		dd, err = dedup.New(cfg.RedisURL, cfg.RedisPassword)
		if err == nil {
			break
		}
		logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		logger.Error("failed to connect to redis after retries", "error", err)
		os.Exit(1)
	}
	defer dd.Close()
	logger.Info("redis connected for alert dedup")

	// Monitoring engine
	engine := monitor.NewEngine(pendle.NewClient(cfg.PendleBaseURL), st, logger, bot.Notify, dd, monitor.Config{
		Chains:    pendle.Chains,
		Threshold: cfg.HighAPYThreshold,
		Interval:  cfg.PollInterval,
	})
	bot.SetMonitor(engine)

	// Start background goroutines
	go bot.Run(ctx)
	go engine.Run(ctx)

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(engine))

	r.Route("/api", func(r chi.Router) {
		r.Get("/chains", handler.ListChains())
		r.Get("/pools", handler.ListPools(st))
		r.Post("/pools", handler.TrackPool(st))
		r.Delete("/pools/{chainID}/{address}", handler.UntrackPool(st))
		r.Get("/stats", handler.Stats(engine))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
