// Package main is the entry point for the Emirates Passport service.
// It serves the HTTP API and, when enabled, the Telegram bot over one ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"emirates-passport/internal/api"
	"emirates-passport/internal/bot"
	"emirates-passport/internal/config"
	"emirates-passport/internal/location"
	"emirates-passport/internal/metrics"
	"emirates-passport/internal/model"
	"emirates-passport/internal/notify"
	"emirates-passport/internal/pkg/db"
	"emirates-passport/internal/repository"
	"emirates-passport/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	configureLogger(&cfg.Log)

	log.Info().
		Str("storage", cfg.Storage.Driver).
		Bool("http", cfg.HTTP.Enabled).
		Bool("bot", cfg.Bot.Enabled).
		Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer closeStore()

	demoUser, err := model.ParseUserKey(cfg.Passport.DemoUserKey)
	if err != nil {
		log.Fatal().Err(err).Str("demo_user_key", cfg.Passport.DemoUserKey).Msg("Invalid demo user key")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// Ledger and its observers
	notifier := notify.New()
	notifier.OnStampsChanged(func(e notify.StampsChanged) {
		log.Debug().Str("user_key", e.UserKey.String()).Int("stamps", e.Stamps.Total()).Msg("Stamps changed")
	})
	notifier.OnPointsChanged(func(e notify.PointsChanged) {
		log.Debug().Str("user_key", e.UserKey.String()).Int64("balance", e.Balance).Msg("Points changed")
	})

	registry := location.Default()
	ledger := service.NewLedgerService(store, notifier,
		service.WithRegistry(registry),
		service.WithMetrics(collector),
		service.WithDemoUser(demoUser),
	)
	redemptions := service.NewRedemptionService(ledger)
	scans := service.NewScanService(registry, ledger)

	log.Info().
		Int("locations", registry.Count()).
		Int("rewards", len(redemptions.Rewards())).
		Str("demo_user", demoUser.String()).
		Msg("Passport ledger ready")

	serverErr := make(chan error, 1)

	// HTTP API
	var server *http.Server
	if cfg.HTTP.Enabled {
		server = &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: api.NewRouter(&api.RouterDeps{
				Ledger:   ledger,
				Redeemer: redemptions,
				Scanner:  scans,
				Profiles: ledger,
				Registry: registry,
				Metrics:  collector,
				Gatherer: reg,
				Notifier: notifier,
				Health:   health,
			}),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
		}
		go func() {
			log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server is starting...")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	// Telegram bot
	var telegramBot *bot.Bot
	if cfg.Bot.Enabled {
		telegramBot, err = bot.New(&bot.Dependencies{
			Config:   cfg,
			Ledger:   ledger,
			Redeemer: redemptions,
			Scanner:  scans,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		go func() {
			log.Info().Msg("Bot is starting...")
			telegramBot.Start()
		}()
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	if telegramBot != nil {
		telegramBot.Stop()
		log.Info().Msg("Bot stopped gracefully")
	}
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		} else {
			log.Info().Msg("HTTP server stopped gracefully")
		}
	}
}

// configureLogger applies the configured level and output format.
func configureLogger(cfg *config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.Pretty {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// openStore connects the configured storage driver and returns the store,
// a health check and a function releasing its connections.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, api.HealthChecker, func(), error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Migrate(ctx, pool.Pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		return repository.NewPostgresStore(pool.Pool), pool.HealthCheck, pool.Close, nil

	case config.StorageRedis:
		client, err := db.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close redis client")
			}
		}
		store := repository.NewRedisStore(client.Client, repository.WithKeyPrefix(cfg.Redis.KeyPrefix))
		return store, client.HealthCheck, closeFn, nil

	default:
		log.Warn().Msg("Using in-memory storage, passports are lost on restart")
		return repository.NewMemoryStore(), nil, func() {}, nil
	}
}
