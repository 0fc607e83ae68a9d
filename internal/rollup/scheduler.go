package rollup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler fires the engine once a day at a fixed wall-clock time,
// targeting the preceding day. It is owned by the process: started on
// boot, stopped on shutdown. A failed run is logged and left for the
// next invocation or a manual re-run; upsert overwrite makes that safe.
type Scheduler struct {
	engine *Engine
	hour   int
	minute int
	now    func() time.Time
	logger *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(engine *Engine, hour, minute int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		engine: engine,
		hour:   hour,
		minute: minute,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.loop(ctx)

	s.logger.Info("Rollup scheduler started",
		zap.Int("hour", s.hour),
		zap.Int("minute", s.minute),
	)
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Rollup scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	for {
		next := nextRun(s.now(), s.hour, s.minute)
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		target := DayStart(s.now()).Add(-24 * time.Hour)
		if err := s.engine.Run(ctx, target); err != nil {
			s.logger.Error("Scheduled rollup failed",
				zap.String("day", target.Format("2006-01-02")),
				zap.Error(err),
			)
		}
	}
}

// nextRun returns the first instant at hour:minute strictly after now.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
