package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"tweet_fetcher/internal/config"
	"tweet_fetcher/internal/gazetteer"
	"tweet_fetcher/internal/metrics"
	"tweet_fetcher/internal/publisher"
	"tweet_fetcher/internal/scheduler"
	"tweet_fetcher/internal/service"
	"tweet_fetcher/internal/source/twitter"
	"tweet_fetcher/internal/storage/postgres"
)

const (
	modeSearch    = "search"
	modeLocations = "locations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	mode := flag.String("mode", modeSearch, "what to run: search or locations")
	once := flag.Bool("once", false, "run a single pass instead of scheduling")
	flag.Parse()

	logger := setupLogger("info")

	if *mode != modeSearch && *mode != modeLocations {
		logger.Error("unknown mode", "mode", *mode)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, *mode, *once, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("fetcher stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, mode string, once bool, logger *slog.Logger) error {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server started", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	recordStore := postgres.NewRecordStore(db)
	txManager := postgres.NewTransactionManager(db)

	client := twitter.NewClient(twitter.ClientConfig{
		SearchURL:      cfg.API.Search.URL,
		UsersURL:       cfg.API.Users.URL,
		BearerToken:    cfg.API.BearerToken,
		Timeout:        cfg.API.Timeout,
		MaxAttempts:    cfg.API.Retry.MaxAttempts,
		InitialBackoff: cfg.API.Retry.InitialBackoff,
		MaxBackoff:     cfg.API.Retry.MaxBackoff,
		SearchParams:   cfg.API.Search.Params,
		UsersParams:    cfg.API.Users.Params,
	}, logger)
	source := twitter.NewSource(client, cfg.Collect.GeoRequired(), logger)
	pacer := service.NewPacer(cfg.Collect.Pacing)

	var runner scheduler.Runner
	switch mode {
	case modeLocations:
		gz, err := gazetteer.LoadFile(cfg.Gazetteer.Path)
		if err != nil {
			return fmt.Errorf("load gazetteer: %w", err)
		}
		logger.Info("gazetteer loaded", "path", cfg.Gazetteer.Path, "entries", gz.Len())

		locationService := service.NewLocationService(
			source,
			recordStore,
			postgres.NewLocationStore(db),
			txManager,
			gazetteer.NewResolver(gz, logger),
			pacer,
			m,
			logger,
		)
		runner = scheduler.RunnerFunc(func(ctx context.Context) error {
			_, err := locationService.Run(ctx)
			return err
		})

	default:
		// A nil interface value, not a typed nil, when publishing is disabled.
		var pub service.Publisher
		if cfg.RabbitMQ.URL != "" {
			rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
				URL:        cfg.RabbitMQ.URL,
				Exchange:   cfg.RabbitMQ.Exchange,
				RoutingKey: cfg.RabbitMQ.RoutingKey,
				QueueName:  cfg.RabbitMQ.QueueName,
			}, logger)
			if err != nil {
				return err
			}
			defer rabbitMQ.Close()
			pub = rabbitMQ
		}

		collectService := service.NewCollectService(
			source,
			recordStore,
			postgres.NewRunStateStore(db),
			txManager,
			pub,
			pacer,
			m,
			logger,
			cfg.Collect,
			cfg.API.PageSize,
		)
		runner = scheduler.RunnerFunc(func(ctx context.Context) error {
			_, err := collectService.Run(ctx)
			return err
		})
	}

	sched := scheduler.NewScheduler(runner, cfg.Collect.Interval, cfg.Collect.RunTimeout, logger)

	logger.Info("starting tweet fetcher",
		"mode", mode,
		"once", once,
		"keyword", cfg.Collect.Keyword,
		"days", cfg.Collect.Days,
		"interval", cfg.Collect.Interval,
	)

	if once {
		return sched.RunOnce(ctx)
	}
	return sched.Start(ctx)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
