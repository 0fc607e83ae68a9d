// Command seed populates the event store with ~60 days of randomized
// activity and rolls the history up, which gives the dashboard endpoints
// something to show in a fresh environment.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/WasiullahSahito/analytics/internal/config"
	"github.com/WasiullahSahito/analytics/internal/event"
	"github.com/WasiullahSahito/analytics/internal/idempotency"
	"github.com/WasiullahSahito/analytics/internal/rollup"
	"github.com/WasiullahSahito/analytics/pkg/logger"
	"github.com/WasiullahSahito/analytics/pkg/postgres"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const seedDays = 60

var searchTerms = []string{
	"go generics tutorial",
	"postgres upsert",
	"docker compose",
	"zap structured logging",
	"sqlx named queries",
}

var devices = []string{"mobile", "desktop", "tablet"}

var eventTypes = []string{
	event.EventTypeLogin,
	event.EventTypePostView,
	event.EventTypePostCreate,
	event.EventTypePostLike,
	event.EventTypeCommentCreate,
	event.EventTypeSearch,
}

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

	log = logger.WithService(log, "seed")

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

	ctx := context.Background()

	if err := db.RunMigration(ctx, filepath.Join("migrations", "0001_init.sql")); err != nil {
		log.Fatal("Failed to apply migration", zap.Error(err))
	}

	ledger := idempotency.NewLedger(db, cfg.IdempotencyWindow, log)
	repo := event.NewRepository(db, ledger, log)

	users := make([]uuid.UUID, 50)
	for i := range users {
		users[i] = uuid.New()
	}
	posts := make([]string, 20)
	for i := range posts {
		posts[i] = fmt.Sprintf("post_%s", uuid.NewString()[:10])
	}

	today := rollup.DayStart(time.Now().UTC())
	totalEvents := 0

	for day := seedDays; day >= 1; day-- {
		dayStart := today.AddDate(0, 0, -day)
		batch := seedDay(dayStart, users, posts)

		// Historical timestamps require the repository directly; the
		// ingestion coordinator would restamp everything to now.
		token := fmt.Sprintf("seed-%s", dayStart.Format("2006-01-02"))
		if err := repo.StoreBatch(ctx, batch, token); err != nil {
			log.Fatal("Failed to store seed batch",
				zap.String("day", dayStart.Format("2006-01-02")),
				zap.Error(err),
			)
		}
		totalEvents += len(batch)
	}

	log.Info("Events seeded", zap.Int("count", totalEvents))

	metricRepo := rollup.NewRepository(db, log)
	engine := rollup.NewEngine(repo, metricRepo, log)

	if err := engine.RunRange(ctx, today.AddDate(0, 0, -seedDays), today.AddDate(0, 0, -1)); err != nil {
		log.Fatal("Initial rollup failed", zap.Error(err))
	}

	log.Info("Seed complete")
}

func seedDay(dayStart time.Time, users []uuid.UUID, posts []string) []*event.Event {
	count := 100 + rand.Intn(400)
	batch := make([]*event.Event, 0, count+1)

	// A handful of registrations spread across the window keeps the
	// retention endpoint interesting.
	if rand.Intn(5) == 0 {
		newUser := uuid.New()
		batch = append(batch, &event.Event{
			ID:        uuid.New(),
			EventType: event.EventTypeRegister,
			UserID:    &newUser,
			SessionID: uuid.NewString(),
			Metadata:  event.Metadata{Device: "desktop", Path: "/register"},
			CreatedAt: dayStart.Add(time.Duration(rand.Intn(86400)) * time.Second),
		})
	}

	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		post := posts[rand.Intn(len(posts))]
		eventType := eventTypes[rand.Intn(len(eventTypes))]

		ev := &event.Event{
			ID:        uuid.New(),
			EventType: eventType,
			UserID:    &user,
			SessionID: uuid.NewString(),
			Metadata: event.Metadata{
				Device: devices[rand.Intn(len(devices))],
				Path:   "/posts/" + post,
			},
			CreatedAt: dayStart.Add(time.Duration(rand.Intn(86400)) * time.Second),
		}

		if event.RequiresPostID(eventType) {
			ev.PostID = &post
		}
		if eventType == event.EventTypeSearch {
			ev.Metadata.Query = searchTerms[rand.Intn(len(searchTerms))]
		}

		batch = append(batch, ev)
	}

	return batch
}
