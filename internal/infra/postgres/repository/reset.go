package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atharva0712/revision-app/internal/infra/postgres"
)

// ResetRepository wipes a learner's study history for a topic.
type ResetRepository struct {
	tx *postgres.Transactor
}

func NewResetRepository(tx *postgres.Transactor) *ResetRepository {
	return &ResetRepository{tx: tx}
}

// ResetTopic deletes review logs, review states and the progress aggregate in
// one transaction, so every flashcard of the topic becomes new again.
func (r *ResetRepository) ResetTopic(ctx context.Context, learnerID, topicID uuid.UUID) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM review_logs
			WHERE learner_id = $1
				AND flashcard_id IN (SELECT id FROM flashcards WHERE topic_id = $2)
		`, learnerID, topicID); err != nil {
			return fmt.Errorf("delete review_logs: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM review_states WHERE learner_id = $1 AND topic_id = $2`, learnerID, topicID); err != nil {
			return fmt.Errorf("delete review_states: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM topic_progress WHERE learner_id = $1 AND topic_id = $2`, learnerID, topicID); err != nil {
			return fmt.Errorf("delete topic_progress: %w", err)
		}
		return nil
	})
}
