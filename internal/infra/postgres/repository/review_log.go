package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres"
)

// ReviewLogRepository stores the append-only history of ratings.
type ReviewLogRepository struct {
	db postgres.DBTX
}

// NewReviewLogRepository creates a new ReviewLogRepository.
func NewReviewLogRepository(db postgres.DBTX) *ReviewLogRepository {
	return &ReviewLogRepository{db: db}
}

// Insert appends a log entry and sets its ID.
func (r *ReviewLogRepository) Insert(ctx context.Context, log *entities.ReviewLog) error {
	query := `
		INSERT INTO review_logs (
			learner_id, flashcard_id, rating, state, due, stability, difficulty,
			elapsed_days, scheduled_days, reviewed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := r.db.QueryRow(
		ctx,
		query,
		log.LearnerID,
		log.FlashcardID,
		int16(log.Rating),
		log.State.Code(),
		log.Due,
		log.Stability,
		log.Difficulty,
		log.ElapsedDays,
		log.ScheduledDays,
		log.ReviewedAt,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("insert review log: %w", err)
	}

	return nil
}

// ListByFlashcard returns the learner's ratings of a flashcard, oldest first.
func (r *ReviewLogRepository) ListByFlashcard(ctx context.Context, learnerID, flashcardID uuid.UUID) ([]*entities.ReviewLog, error) {
	query := `
		SELECT id, learner_id, flashcard_id, rating, state, due, stability, difficulty,
		       elapsed_days, scheduled_days, reviewed_at
		FROM review_logs
		WHERE learner_id = $1 AND flashcard_id = $2
		ORDER BY reviewed_at, id
	`

	rows, err := r.db.Query(ctx, query, learnerID, flashcardID)
	if err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	defer rows.Close()

	var logs []*entities.ReviewLog
	for rows.Next() {
		var (
			l      entities.ReviewLog
			rating int16
			code   int16
		)
		if err := rows.Scan(
			&l.ID, &l.LearnerID, &l.FlashcardID, &rating, &code, &l.Due, &l.Stability,
			&l.Difficulty, &l.ElapsedDays, &l.ScheduledDays, &l.ReviewedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review log: %w", err)
		}

		if l.Rating, err = entities.ParseRating(int(rating)); err != nil {
			return nil, fmt.Errorf("scan review log: %w", err)
		}
		if l.State, err = entities.StateFromCode(code); err != nil {
			return nil, fmt.Errorf("scan review log: %w", err)
		}

		logs = append(logs, &l)
	}

	return logs, rows.Err()
}
