package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres"
)

// ReminderRepository provides access to learner reminder subscriptions.
type ReminderRepository struct {
	db postgres.DBTX
}

// NewRemindersRepository creates a new ReminderRepository.
func NewRemindersRepository(db postgres.DBTX) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Upsert creates or replaces a learner's subscription.
func (r *ReminderRepository) Upsert(ctx context.Context, n *entities.LearnerNotification) error {
	query := `
		INSERT INTO learner_notifications (learner_id, chat_id, timezone, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (learner_id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			timezone = EXCLUDED.timezone,
			enabled = EXCLUDED.enabled
	`

	if _, err := r.db.Exec(ctx, query, n.LearnerID, n.ChatID, n.Timezone, n.Enabled); err != nil {
		return fmt.Errorf("upsert reminder: %w", err)
	}

	return nil
}

// GetDueRemindersBatch retrieves enabled subscriptions whose learner has at
// least one card due at now and whose last reminder is not after sentBefore.
// Pages are keyed by learner id: pass the last id of the previous page as after
// (uuid.Nil for the first page).
func (r *ReminderRepository) GetDueRemindersBatch(ctx context.Context, now, sentBefore time.Time, after uuid.UUID, limit int) ([]*entities.DueReminder, error) {
	query := `
		SELECT
			ln.learner_id,
			ln.chat_id,
			ln.timezone,
			ln.last_sent_at,
			COUNT(*) AS due_count,
			COUNT(DISTINCT rs.topic_id) AS topic_count
		FROM learner_notifications ln
		INNER JOIN review_states rs ON rs.learner_id = ln.learner_id
		WHERE ln.enabled = TRUE
			AND (ln.last_sent_at IS NULL OR ln.last_sent_at <= $2)
			AND ln.learner_id > $3
			AND rs.due <= $1
		GROUP BY ln.learner_id, ln.chat_id, ln.timezone, ln.last_sent_at
		ORDER BY ln.learner_id
		LIMIT $4
	`

	rows, err := r.db.Query(ctx, query, now, sentBefore, after, limit)
	if err != nil {
		return nil, fmt.Errorf("get due reminders batch: %w", err)
	}
	defer rows.Close()

	var reminders []*entities.DueReminder
	for rows.Next() {
		var dr entities.DueReminder
		if err := rows.Scan(
			&dr.LearnerID,
			&dr.ChatID,
			&dr.Timezone,
			&dr.LastSentAt,
			&dr.DueCount,
			&dr.TopicCount,
		); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, &dr)
	}

	return reminders, rows.Err()
}

// MarkAsSent updates the last sent timestamp for a reminder.
func (r *ReminderRepository) MarkAsSent(ctx context.Context, learnerID uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE learner_notifications
		SET last_sent_at = $1
		WHERE learner_id = $2
	`

	result, err := r.db.Exec(ctx, query, sentAt, learnerID)
	if err != nil {
		return fmt.Errorf("mark as sent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrReminderNotFound
	}

	return nil
}
