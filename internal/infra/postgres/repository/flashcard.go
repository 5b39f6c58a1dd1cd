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

// FlashcardRepository provides read access to generated flashcards.
type FlashcardRepository struct {
	db postgres.DBTX
}

// NewFlashcardRepository creates a new FlashcardRepository.
func NewFlashcardRepository(db postgres.DBTX) *FlashcardRepository {
	return &FlashcardRepository{db: db}
}

// Get retrieves a flashcard by ID.
func (r *FlashcardRepository) Get(ctx context.Context, id uuid.UUID) (*entities.Flashcard, error) {
	query := `
		SELECT id, topic_id, sequence, front, back
		FROM flashcards
		WHERE id = $1
	`

	var f entities.Flashcard
	err := r.db.QueryRow(ctx, query, id).Scan(&f.ID, &f.TopicID, &f.Sequence, &f.Front, &f.Back)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFlashcardNotFound
		}
		return nil, fmt.Errorf("get flashcard: %w", err)
	}

	return &f, nil
}

// ListIDsByTopic returns the IDs of every flashcard in a topic, in deck order.
func (r *FlashcardRepository) ListIDsByTopic(ctx context.Context, topicID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM flashcards
		WHERE topic_id = $1
		ORDER BY sequence, id
	`

	rows, err := r.db.Query(ctx, query, topicID)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan flashcard id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
