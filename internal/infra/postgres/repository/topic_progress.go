package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres"
)

// TopicProgressRepository stores per-topic progress aggregates.
type TopicProgressRepository struct {
	db postgres.DBTX
}

// NewTopicProgressRepository creates a new TopicProgressRepository.
func NewTopicProgressRepository(db postgres.DBTX) *TopicProgressRepository {
	return &TopicProgressRepository{db: db}
}

// Get retrieves the aggregate for a learner and topic.
func (r *TopicProgressRepository) Get(ctx context.Context, learnerID, topicID uuid.UUID) (*entities.TopicProgress, error) {
	query := `
		SELECT learner_id, topic_id, total, started, mastered, learning, new_count,
		       topic_started_at, flashcards_mastered_at, mastery_achieved_at, last_studied_at,
		       assessment_attempts, best_assessment_score
		FROM topic_progress
		WHERE learner_id = $1 AND topic_id = $2
	`

	var p entities.TopicProgress
	err := r.db.QueryRow(ctx, query, learnerID, topicID).Scan(
		&p.LearnerID,
		&p.TopicID,
		&p.FlashcardStats.Total,
		&p.FlashcardStats.Started,
		&p.FlashcardStats.Mastered,
		&p.FlashcardStats.Learning,
		&p.FlashcardStats.New,
		&p.TopicStartedAt,
		&p.FlashcardsMasteredAt,
		&p.MasteryAchievedAt,
		&p.LastStudiedAt,
		&p.AssessmentAttempts,
		&p.BestAssessmentScore,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("get topic progress: %w", err)
	}

	return &p, nil
}

// Upsert writes the flashcard stats of p. Milestone timestamps are
// first-write-wins in the database as well, and the stored milestones and
// assessment fields are read back into p.
func (r *TopicProgressRepository) Upsert(ctx context.Context, p *entities.TopicProgress) error {
	query := `
		INSERT INTO topic_progress (
			learner_id, topic_id, total, started, mastered, learning, new_count,
			topic_started_at, flashcards_mastered_at, mastery_achieved_at, last_studied_at,
			assessment_attempts, best_assessment_score, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (learner_id, topic_id) DO UPDATE SET
			total = EXCLUDED.total,
			started = EXCLUDED.started,
			mastered = EXCLUDED.mastered,
			learning = EXCLUDED.learning,
			new_count = EXCLUDED.new_count,
			topic_started_at = COALESCE(topic_progress.topic_started_at, EXCLUDED.topic_started_at),
			flashcards_mastered_at = COALESCE(topic_progress.flashcards_mastered_at, EXCLUDED.flashcards_mastered_at),
			mastery_achieved_at = COALESCE(topic_progress.mastery_achieved_at, EXCLUDED.mastery_achieved_at),
			last_studied_at = EXCLUDED.last_studied_at,
			updated_at = NOW()
		RETURNING topic_started_at, flashcards_mastered_at, mastery_achieved_at,
		          assessment_attempts, best_assessment_score
	`

	err := r.db.QueryRow(
		ctx,
		query,
		p.LearnerID,
		p.TopicID,
		p.FlashcardStats.Total,
		p.FlashcardStats.Started,
		p.FlashcardStats.Mastered,
		p.FlashcardStats.Learning,
		p.FlashcardStats.New,
		p.TopicStartedAt,
		p.FlashcardsMasteredAt,
		p.MasteryAchievedAt,
		p.LastStudiedAt,
		p.AssessmentAttempts,
		p.BestAssessmentScore,
	).Scan(
		&p.TopicStartedAt,
		&p.FlashcardsMasteredAt,
		&p.MasteryAchievedAt,
		&p.AssessmentAttempts,
		&p.BestAssessmentScore,
	)
	if err != nil {
		return fmt.Errorf("upsert topic progress: %w", err)
	}

	return nil
}

// RecordAssessment counts one assessment attempt and keeps the best score.
// Concurrent attempts are applied atomically.
func (r *TopicProgressRepository) RecordAssessment(ctx context.Context, learnerID, topicID uuid.UUID, score int, at time.Time) error {
	query := `
		INSERT INTO topic_progress (learner_id, topic_id, assessment_attempts, best_assessment_score, updated_at)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT (learner_id, topic_id) DO UPDATE SET
			assessment_attempts = topic_progress.assessment_attempts + 1,
			best_assessment_score = GREATEST(topic_progress.best_assessment_score, EXCLUDED.best_assessment_score),
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Exec(ctx, query, learnerID, topicID, score, at); err != nil {
		return fmt.Errorf("record assessment: %w", err)
	}

	return nil
}
