package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"car-scraper/api"
	"car-scraper/config"
	"car-scraper/filters"
	"car-scraper/lock"
	"car-scraper/pipeline"
	"car-scraper/scraper/leboncoin"
	"car-scraper/storage"
	"car-scraper/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.NewLogger("info").Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger := utils.NewLogger(cfg.LogLevel)

	logger.Info("=== Car scraper starting ===")
	logger.Info("Config: schedule %q | filters %s | snapshot %s | headless %v",
		cfg.Schedule, cfg.FiltersPath, cfg.SnapshotPath, cfg.Headless)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filterSvc := filters.NewService(cfg.FiltersPath, logger)
	if _, err := filterSvc.Default(); err != nil {
		logger.Warn("Default filters unavailable, scheduled runs will fail until fixed: %v", err)
	}

	store := storage.NewSnapshotStore(cfg.SnapshotPath, logger)
	sinks := openSinks(ctx, cfg, logger)
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Warn("Closing %s sink: %v", s.Name(), err)
			}
		}
	}()

	locker, closeLocker := newLocker(ctx, cfg, logger)
	defer closeLocker()

	session := leboncoin.NewSession(leboncoin.Options{
		ChromeBin:         cfg.ChromeBin,
		Headless:          cfg.Headless,
		NavigationTimeout: cfg.NavigationTimeout,
		SelectorTimeout:   cfg.SelectorTimeout,
	}, logger)

	p := pipeline.New(pipeline.Options{
		BaseURL:  cfg.SearchBaseURL,
		Category: cfg.SearchCategory,
	}, session, filterSvc, store, logger, sinks...)

	sup := pipeline.NewSupervisor(p, store, locker, pipeline.SupervisorOptions{
		RunTimeout:     cfg.RunTimeout,
		MaxAttempts:    cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		MinRunInterval: cfg.MinRunInterval,
	}, logger)

	snapshot := sup.Startup(ctx)
	logger.Info("Serving %d listings", len(snapshot))
	if ctx.Err() != nil {
		logger.Info("Interrupted during startup run")
		return
	}

	sched, err := pipeline.NewScheduler(cfg.Schedule, sup, logger)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	sched.Start()

	srv := api.New(store, filterSvc, sup, cfg.StaticDir, logger)
	listenErr := make(chan error, 1)
	go func() { listenErr <- srv.Listen(cfg.Addr()) }()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case err := <-listenErr:
		logger.Error("HTTP server stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	schedDone := sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown: %v", err)
	}
	if err := sup.Wait(shutdownCtx); err != nil {
		logger.Warn("Gave up waiting for the running scrape: %v", err)
	}
	select {
	case <-schedDone.Done():
	case <-shutdownCtx.Done():
		sched.Abort()
	}

	logger.Info("=== Car scraper stopped ===")
}

// openSinks returns the configured snapshot copies. A sink that cannot be
// opened is skipped.
func openSinks(ctx context.Context, cfg *config.Config, logger *utils.Logger) []storage.Sink {
	var sinks []storage.Sink

	if cfg.CSVExportPath != "" {
		sinks = append(sinks, storage.NewCSVWriter(cfg.CSVExportPath))
		logger.Info("CSV export enabled: %s", cfg.CSVExportPath)
	}

	if cfg.PostgresEnabled {
		pgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		pg, err := storage.NewPostgresWriter(pgCtx, cfg.DSN(), logger)
		if err != nil {
			logger.Error("PostgreSQL archive disabled: %v", err)
		} else {
			sinks = append(sinks, pg)
			logger.Info("PostgreSQL archive enabled (table: car_listings)")
		}
	}

	return sinks
}

// newLocker returns the Redis lock when REDIS_ADDR is set and reachable,
// the in-process lock otherwise.
func newLocker(ctx context.Context, cfg *config.Config, logger *utils.Logger) (lock.Locker, func()) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis %s unreachable, using in-process lock: %v", cfg.RedisAddr, err)
		_ = client.Close()
		return lock.NewLocal(), func() {}
	}

	logger.Info("Using Redis lock %s on %s", cfg.RedisLockKey, cfg.RedisAddr)
	return lock.NewRedis(client, cfg.RedisLockKey, cfg.RedisLockTTL, logger), func() { _ = client.Close() }
}
