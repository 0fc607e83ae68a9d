package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WasiullahSahito/analytics/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger is the read side of the idempotency store used for the cheap
// pre-check; the authoritative claim happens inside Repository.StoreBatch.
type Ledger interface {
	Exists(ctx context.Context, token string) (bool, error)
}

// Hasher derives the stored one-way hash of a client address.
type Hasher interface {
	Hash(ip string) string
}

// Service is the ingestion coordinator: it validates a batch, stamps
// server-side metadata and hands the batch plus its token to the
// repository for the atomic write.
type Service struct {
	repo   Repository
	ledger Ledger
	hasher Hasher
	now    func() time.Time
	logger *zap.Logger
}

func NewService(repo Repository, ledger Ledger, hasher Hasher, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// IngestBatch applies one logical submission and returns the number of
// stored events. A retry with the same token yields ErrDuplicateRequest,
// which signals prior success rather than a failure.
func (s *Service) IngestBatch(ctx context.Context, token string, batch []*Event, sourceIP string) (int, error) {
	if token == "" {
		metrics.BatchesRejected.WithLabelValues("missing_token").Inc()
		return 0, ErrMissingToken
	}
	if len(batch) == 0 {
		metrics.BatchesRejected.WithLabelValues("empty_batch").Inc()
		return 0, ErrEmptyBatch
	}

	for _, ev := range batch {
		if err := ev.Validate(); err != nil {
			metrics.BatchesRejected.WithLabelValues("validation").Inc()
			s.logger.Warn("Invalid event in batch",
				zap.String("event_type", ev.EventType),
				zap.Error(err),
			)
			return 0, fmt.Errorf("invalid event: %w", err)
		}
	}

	seen, err := s.ledger.Exists(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("%w: token lookup: %v", ErrStorageFailure, err)
	}
	if seen {
		metrics.DuplicateRequests.Inc()
		s.logger.Debug("Duplicate submission refused", zap.String("token", token))
		return 0, ErrDuplicateRequest
	}

	// One timestamp for the whole batch; whatever the client sent is
	// discarded so events cannot be backdated.
	stampedAt := s.now()
	ipHash := s.hasher.Hash(sourceIP)

	for _, ev := range batch {
		ev.ID = uuid.New()
		ev.CreatedAt = stampedAt
		ev.Metadata.IPHash = ipHash
	}

	if err := s.repo.StoreBatch(ctx, batch, token); err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			// Concurrent retry won the race between pre-check and commit.
			metrics.DuplicateRequests.Inc()
			return 0, ErrDuplicateRequest
		}
		s.logger.Error("Failed to store event batch",
			zap.Int("count", len(batch)),
			zap.Error(err),
		)
		return 0, err
	}

	metrics.BatchesAccepted.Inc()
	metrics.EventsStored.Add(float64(len(batch)))

	s.logger.Info("Event batch ingested",
		zap.Int("count", len(batch)),
		zap.Time("stamped_at", stampedAt),
	)

	return len(batch), nil
}
