// Package idempotency records ingestion tokens so that a retried
// submission is never applied twice within the retention window.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/WasiullahSahito/analytics/pkg/postgres"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Ledger is the durable token store. Claims older than the retention
// window count as expired: the token may legitimately be reused and is
// reclaimed in place rather than treated as a duplicate.
type Ledger struct {
	db     *postgres.DB
	window time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewLedger(db *postgres.DB, window time.Duration, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:     db,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Exists reports whether an unexpired claim is on record for token.
func (l *Ledger) Exists(ctx context.Context, token string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM idempotency_keys
			WHERE key = $1 AND created_at > $2
		)
	`

	var found bool
	if err := l.db.GetContext(ctx, &found, query, token, l.cutoff()); err != nil {
		return false, fmt.Errorf("failed to look up idempotency token: %w", err)
	}

	return found, nil
}

// Claim records the token on ext, which is expected to be the ingestion
// transaction so the claim commits or rolls back together with the event
// batch. An expired prior claim is overwritten; a live one returns
// ErrAlreadyClaimed.
func (l *Ledger) Claim(ctx context.Context, ext sqlx.ExtContext, token string) error {
	query := `
		INSERT INTO idempotency_keys (key, created_at)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET created_at = EXCLUDED.created_at
		WHERE idempotency_keys.created_at <= $3
	`

	result, err := ext.ExecContext(ctx, query, token, l.now(), l.cutoff())
	if err != nil {
		return fmt.Errorf("failed to claim idempotency token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyClaimed
	}

	return nil
}

// PurgeExpired deletes claims past the retention window. Called from a
// background ticker; losing expired rows is always safe since they are
// claimable again anyway.
func (l *Ledger) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := l.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE created_at <= $1`, l.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if purged > 0 {
		l.logger.Debug("Expired idempotency tokens purged", zap.Int64("count", purged))
	}

	return purged, nil
}

func (l *Ledger) cutoff() time.Time {
	return l.now().Add(-l.window)
}
