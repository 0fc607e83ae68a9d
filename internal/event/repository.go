package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WasiullahSahito/analytics/internal/idempotency"
	"github.com/WasiullahSahito/analytics/pkg/postgres"
	"go.uber.org/zap"
)

type Repository interface {
	// StoreBatch inserts the batch and claims token inside one
	// transaction. Returns ErrDuplicateRequest when the token is held by
	// an unexpired prior claim; nothing is committed in that case.
	StoreBatch(ctx context.Context, events []*Event, token string) error
	EventsBetween(ctx context.Context, from, to time.Time) ([]*Event, error)
}

type repository struct {
	db     *postgres.DB
	ledger *idempotency.Ledger
	logger *zap.Logger
}

func NewRepository(db *postgres.DB, ledger *idempotency.Ledger, logger *zap.Logger) Repository {
	return &repository{
		db:     db,
		ledger: ledger,
		logger: logger,
	}
}

func (r *repository) StoreBatch(ctx context.Context, events []*Event, token string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStorageFailure, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO events (id, event_type, user_id, post_id, session_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ErrStorageFailure, err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.ExecContext(
			ctx,
			ev.ID,
			ev.EventType,
			ev.UserID,
			ev.PostID,
			ev.SessionID,
			ev.Metadata,
			ev.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to insert event in batch",
				zap.String("event_id", ev.ID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("%w: insert event: %v", ErrStorageFailure, err)
		}
	}

	// The claim rides the same transaction: either the whole batch and
	// its token become visible together, or neither does.
	if err := r.ledger.Claim(ctx, tx, token); err != nil {
		if errors.Is(err, idempotency.ErrAlreadyClaimed) {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("%w: claim token: %v", ErrStorageFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorageFailure, err)
	}

	r.logger.Debug("Event batch stored",
		zap.Int("count", len(events)),
	)

	return nil
}

func (r *repository) EventsBetween(ctx context.Context, from, to time.Time) ([]*Event, error) {
	query := `
		SELECT id, event_type, user_id, post_id, session_id, metadata, created_at
		FROM events
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`

	var events []*Event
	if err := r.db.SelectContext(ctx, &events, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	return events, nil
}
