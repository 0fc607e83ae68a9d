package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/WasiullahSahito/analytics/internal/config"
	"github.com/WasiullahSahito/analytics/internal/event"
	"github.com/WasiullahSahito/analytics/internal/idempotency"
	"github.com/WasiullahSahito/analytics/internal/query"
	"github.com/WasiullahSahito/analytics/internal/rollup"
	"github.com/WasiullahSahito/analytics/pkg/iphash"
	"github.com/WasiullahSahito/analytics/pkg/logger"
	"github.com/WasiullahSahito/analytics/pkg/postgres"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log = logger.WithService(log, "analytics-api")
	log.Info("Starting Analytics API",
		zap.String("environment", cfg.Environment),
		zap.String("http_port", cfg.HTTPPort),
	)

	db, err := postgres.New(postgres.Config{
		DSN:             cfg.Postgres.PostgresDSN(),
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	migrationCtx, migrationCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.RunMigration(migrationCtx, filepath.Join("migrations", "0001_init.sql")); err != nil {
		migrationCancel()
		log.Fatal("Failed to apply migration", zap.Error(err))
	}
	migrationCancel()

	ledger := idempotency.NewLedger(db, cfg.IdempotencyWindow, log)
	hasher := iphash.New(cfg.IPHashSalt)

	eventRepo := event.NewRepository(db, ledger, log)
	ingestService := event.NewService(eventRepo, ledger, hasher, log)
	ingestHandler := event.NewHandler(ingestService, log)

	metricRepo := rollup.NewRepository(db, log)
	engine := rollup.NewEngine(eventRepo, metricRepo, log)
	scheduler := rollup.NewScheduler(engine, cfg.Rollup.Hour, cfg.Rollup.Minute, log)

	queryRepo := query.NewRepository(db, log)
	queryService := query.NewService(queryRepo, log)
	queryHandler := query.NewHandler(queryService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)

	// Expired tokens pile up otherwise; losing a purge cycle is harmless.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := ledger.PurgeExpired(ctx); err != nil {
					log.Warn("Token purge failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /api/analytics/events", ingestHandler.IngestEvents)
	mux.HandleFunc("GET /api/analytics/overview", queryHandler.Overview)
	mux.HandleFunc("GET /api/analytics/users/active", queryHandler.ActiveUsers)
	mux.HandleFunc("GET /api/analytics/retention", queryHandler.Retention)
	mux.HandleFunc("GET /api/analytics/posts/top", queryHandler.TopPosts)
	mux.HandleFunc("GET /api/analytics/posts/{postId}", queryHandler.PostDetails)
	mux.HandleFunc("GET /api/analytics/search/trending", queryHandler.TrendingSearches)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully")

	scheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown timeout, forcing stop", zap.Error(err))
	}

	log.Info("Analytics API stopped")
}
