package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres"
)

// ReviewStore persists a scheduled review atomically.
type ReviewStore struct {
	tx *postgres.Transactor
}

// NewReviewStore creates a new ReviewStore.
func NewReviewStore(tx *postgres.Transactor) *ReviewStore {
	return &ReviewStore{tx: tx}
}

// SaveReview writes the new state and its log entry in one transaction.
// ErrOptimisticLock means nothing was written.
func (s *ReviewStore) SaveReview(ctx context.Context, state *entities.ReviewState, log *entities.ReviewLog) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := NewReviewStateRepository(tx).Save(ctx, state); err != nil {
			return err
		}
		return NewReviewLogRepository(tx).Insert(ctx, log)
	})
}
