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

// TopicRepository provides read access to topics.
type TopicRepository struct {
	db postgres.DBTX
}

// NewTopicRepository creates a new TopicRepository.
func NewTopicRepository(db postgres.DBTX) *TopicRepository {
	return &TopicRepository{db: db}
}

// Get retrieves a topic by ID.
func (r *TopicRepository) Get(ctx context.Context, id uuid.UUID) (*entities.Topic, error) {
	query := `
		SELECT id, user_id, name, status, created_at
		FROM topics
		WHERE id = $1
	`

	var t entities.Topic
	var status string
	err := r.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.UserID, &t.Name, &status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	t.Status = entities.TopicStatus(status)

	return &t, nil
}

// ListIDsByUser returns the IDs of all topics owned by a user.
func (r *TopicRepository) ListIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM topics
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan topic id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
