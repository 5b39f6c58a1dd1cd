package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres"
)

const reviewStateColumns = `
	learner_id, flashcard_id, topic_id, due, stability, difficulty,
	elapsed_days, scheduled_days, reps, lapses, learning_steps, state,
	last_review, version, created_at, updated_at
`

// ReviewStateRepository provides access to per-flashcard scheduling memory.
type ReviewStateRepository struct {
	db postgres.DBTX
}

// NewReviewStateRepository creates a new ReviewStateRepository.
func NewReviewStateRepository(db postgres.DBTX) *ReviewStateRepository {
	return &ReviewStateRepository{db: db}
}

// Get retrieves the review state of one learner for one flashcard.
func (r *ReviewStateRepository) Get(ctx context.Context, learnerID, flashcardID uuid.UUID) (*entities.ReviewState, error) {
	query := `SELECT ` + reviewStateColumns + `
		FROM review_states
		WHERE learner_id = $1 AND flashcard_id = $2
	`

	state, err := scanReviewState(r.db.QueryRow(ctx, query, learnerID, flashcardID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewStateNotFound
		}
		return nil, fmt.Errorf("get review state: %w", err)
	}

	return state, nil
}

// ListByLearnerAndTopic returns every review state the learner has in a topic.
func (r *ReviewStateRepository) ListByLearnerAndTopic(ctx context.Context, learnerID, topicID uuid.UUID) ([]*entities.ReviewState, error) {
	query := `SELECT ` + reviewStateColumns + `
		FROM review_states
		WHERE learner_id = $1 AND topic_id = $2
		ORDER BY due, flashcard_id
	`

	rows, err := r.db.Query(ctx, query, learnerID, topicID)
	if err != nil {
		return nil, fmt.Errorf("list review states: %w", err)
	}
	defer rows.Close()

	var states []*entities.ReviewState
	for rows.Next() {
		state, err := scanReviewState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review state: %w", err)
		}
		states = append(states, state)
	}

	return states, rows.Err()
}

// Save inserts a state that has never been stored (Version 0) or updates an
// existing one when its version still matches. Either way a concurrent writer
// produces ErrOptimisticLock.
func (r *ReviewStateRepository) Save(ctx context.Context, state *entities.ReviewState) error {
	if state.Version == 0 {
		return r.insert(ctx, state)
	}
	return r.update(ctx, state)
}

func (r *ReviewStateRepository) insert(ctx context.Context, s *entities.ReviewState) error {
	query := `
		INSERT INTO review_states (` + reviewStateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14, $15)
		ON CONFLICT (learner_id, flashcard_id) DO NOTHING
	`

	tag, err := r.db.Exec(
		ctx,
		query,
		s.LearnerID,
		s.FlashcardID,
		s.TopicID,
		s.Due,
		s.Stability,
		s.Difficulty,
		s.ElapsedDays,
		s.ScheduledDays,
		s.Reps,
		s.Lapses,
		s.LearningSteps,
		s.State.Code(),
		s.LastReview,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review state: %w", err)
	}

	// Another request created the row first.
	if tag.RowsAffected() == 0 {
		return ErrOptimisticLock
	}

	s.Version = 1
	return nil
}

func (r *ReviewStateRepository) update(ctx context.Context, s *entities.ReviewState) error {
	query := `
		UPDATE review_states
		SET due = $1,
		    stability = $2,
		    difficulty = $3,
		    elapsed_days = $4,
		    scheduled_days = $5,
		    reps = $6,
		    lapses = $7,
		    learning_steps = $8,
		    state = $9,
		    last_review = $10,
		    updated_at = $11,
		    version = version + 1
		WHERE learner_id = $12 AND flashcard_id = $13 AND version = $14
	`

	tag, err := r.db.Exec(
		ctx,
		query,
		s.Due,
		s.Stability,
		s.Difficulty,
		s.ElapsedDays,
		s.ScheduledDays,
		s.Reps,
		s.Lapses,
		s.LearningSteps,
		s.State.Code(),
		s.LastReview,
		s.UpdatedAt,
		s.LearnerID,
		s.FlashcardID,
		s.Version,
	)
	if err != nil {
		return fmt.Errorf("update review state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrOptimisticLock
	}

	s.Version++
	return nil
}

func scanReviewState(row pgx.Row) (*entities.ReviewState, error) {
	var s entities.ReviewState
	var code int16

	if err := row.Scan(
		&s.LearnerID,
		&s.FlashcardID,
		&s.TopicID,
		&s.Due,
		&s.Stability,
		&s.Difficulty,
		&s.ElapsedDays,
		&s.ScheduledDays,
		&s.Reps,
		&s.Lapses,
		&s.LearningSteps,
		&code,
		&s.LastReview,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	state, err := entities.StateFromCode(code)
	if err != nil {
		return nil, err
	}
	s.State = state

	return &s, nil
}
