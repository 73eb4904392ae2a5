package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iimb-synergy/synapse/internal/adapters/http/api"
	"github.com/iimb-synergy/synapse/internal/adapters/repository"
	service "github.com/iimb-synergy/synapse/internal/app"
	"github.com/iimb-synergy/synapse/internal/config"
	"github.com/iimb-synergy/synapse/internal/domain/model"
	"github.com/iimb-synergy/synapse/internal/domain/scoring"
	"github.com/iimb-synergy/synapse/pkg/logger"
	"github.com/iimb-synergy/synapse/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 5 * time.Minute // cycle runs are synchronous
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	// We collect our own custom system metrics instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("failed to open store: " + err.Error() + "\n")
		return
	}

	scorer := scoring.NewScorer(
		scoring.WithInterestWeight(cfg.InterestWeight),
		scoring.WithInterestCap(cfg.InterestCap),
		scoring.WithIntentBonus(cfg.IntentBonus),
		scoring.WithDiversityBonus(cfg.DiversityBonus),
		scoring.WithSectionPenalty(cfg.SectionPenalty),
		scoring.WithNoveltyBonus(cfg.NoveltyBonus),
		scoring.WithRepeatPenalty(cfg.RepeatPenalty),
	)

	cycleInterval := time.Duration(cfg.CycleIntervalHours) * time.Hour

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithStore(store),
		service.WithScorer(scorer),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.BucketQueueSize),
		service.WithStoreTimeout(time.Duration(cfg.StoreTimeoutMS)*time.Millisecond),
		service.WithCycleInterval(cycleInterval),
		service.WithCooldownCycles(cfg.CooldownCycles),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Background updaters and the weekly scheduler.
	go startSystemMetricsUpdater(ctx)
	go startCycleScheduler(ctx, svc, cycleInterval)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildStore opens the configured store backend.
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		logger.Get().Info(ctx, "opening sqlite store", logger.String("path", cfg.StorePath))
		return repository.NewSQLiteStore(cfg.StorePath,
			repository.WithBusyTimeout(time.Duration(cfg.StoreTimeoutMS)*time.Millisecond))
	default:
		return repository.NewMemoryStore(), nil
	}
}

// startCycleScheduler runs the matching cycle once per interval for the
// then-current ISO week. A manually triggered run for the same week makes
// the scheduled one a guarded no-op, and vice versa.
func startCycleScheduler(ctx context.Context, svc *service.Service, interval time.Duration) {
	log := logger.Get().Named("scheduler")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cycleID := model.CycleIDForTime(now)
			log.Info(ctx, "scheduled cycle starting", logger.String("cycleID", cycleID))
			if _, err := svc.RunCycle(ctx, cycleID); err != nil {
				log.Error(ctx, "scheduled cycle failed",
					logger.String("cycleID", cycleID), logger.Error(err))
			}
		}
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
