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
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chainlens/market-pipeline/internal/auth"
	"github.com/chainlens/market-pipeline/internal/config"
	"github.com/chainlens/market-pipeline/internal/fetch"
	"github.com/chainlens/market-pipeline/internal/handler"
	"github.com/chainlens/market-pipeline/internal/middleware"
	"github.com/chainlens/market-pipeline/internal/pipeline"
	"github.com/chainlens/market-pipeline/internal/pipeline/sources"
	"github.com/chainlens/market-pipeline/internal/scrape"
	"github.com/chainlens/market-pipeline/internal/store"
	"github.com/chainlens/market-pipeline/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.SessionKey == "" {
		logger.Error("SESSION_KEY is required")
		os.Exit(1)
	}
	if cfg.TelegramToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected and migrated")

	// Redis passcode store (retry up to 30s for ExternalSecret to sync)
	var codes *auth.RedisCodes
	for i := 0; i < 6; i++ {
		codes, err = auth.NewRedisCodes(cfg.RedisURL, cfg.RedisPassword)
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
	defer codes.Close()
	logger.Info("redis connected for passcode store")

	bot := telegram.NewBot(cfg.TelegramToken, logger)
	signer := auth.NewSigner(cfg.SessionKey)

	// Aggregation engine
	client := fetch.New(5, 10)
	browser := scrape.NewChrome(logger)

	engine := pipeline.NewEngine(db, logger)
	engine.Register(sources.NewPrices(client))
	engine.Register(sources.NewStaking(client))
	engine.Register(sources.NewDefiLlama(client))
	engine.Register(sources.NewDerivatives(client))
	engine.Register(sources.NewSupply(client))
	engine.Register(sources.NewChain(client, cfg.EthRPCURL))
	engine.Register(sources.NewETFFlows(browser, logger, sources.DefaultFlowPages()))
	engine.Register(sources.NewTreasury(browser, logger, sources.DefaultHoldingsPages()))

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(db))

	r.Get("/cron", handler.Cron(engine, cfg.CronSecret))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/request-otp", handler.RequestOTP(codes, bot, cfg.AllowedOwners, logger))
		r.Post("/verify-otp", handler.VerifyOTP(codes, signer, logger))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireSession(signer))
		r.Post("/fetch", handler.AdminFetch(engine))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/keys", handler.MetricKeys())
		r.Get("/metrics/{key}", handler.MetricHistory(db))
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// A triggered run renders several pages headless; give it room.
		WriteTimeout: 5 * time.Minute,
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
