// Command backfill re-runs the daily rollup for a historical date range,
// one day at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/WasiullahSahito/analytics/internal/config"
	"github.com/WasiullahSahito/analytics/internal/event"
	"github.com/WasiullahSahito/analytics/internal/idempotency"
	"github.com/WasiullahSahito/analytics/internal/rollup"
	"github.com/WasiullahSahito/analytics/pkg/logger"
	"github.com/WasiullahSahito/analytics/pkg/postgres"
	"go.uber.org/zap"
)

func main() {
	var fromFlag, toFlag string
	flag.StringVar(&fromFlag, "from", "", "first day to roll up (YYYY-MM-DD)")
	flag.StringVar(&toFlag, "to", "", "last day to roll up (YYYY-MM-DD, default: yesterday)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log = logger.WithService(log, "backfill")

	if fromFlag == "" {
		log.Fatal("-from is required")
	}
	from, err := time.ParseInLocation("2006-01-02", fromFlag, time.UTC)
	if err != nil {
		log.Fatal("Invalid -from", zap.Error(err))
	}

	to := rollup.DayStart(time.Now().UTC()).Add(-24 * time.Hour)
	if toFlag != "" {
		to, err = time.ParseInLocation("2006-01-02", toFlag, time.UTC)
		if err != nil {
			log.Fatal("Invalid -to", zap.Error(err))
		}
	}
	if to.Before(from) {
		log.Fatal("-to is before -from",
			zap.String("from", from.Format("2006-01-02")),
			zap.String("to", to.Format("2006-01-02")),
		)
	}

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

	ledger := idempotency.NewLedger(db, cfg.IdempotencyWindow, log)
	eventRepo := event.NewRepository(db, ledger, log)
	metricRepo := rollup.NewRepository(db, log)
	engine := rollup.NewEngine(eventRepo, metricRepo, log)

	log.Info("Backfill starting",
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")),
	)

	if err := engine.RunRange(context.Background(), from, to); err != nil {
		log.Fatal("Backfill failed", zap.Error(err))
	}

	log.Info("Backfill complete")
}
