package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atharva0712/revision-app/internal/domain/entities"
)

type ReviewStateRepository interface {
	Get(ctx context.Context, learnerID, flashcardID uuid.UUID) (*entities.ReviewState, error)
	ListByLearnerAndTopic(ctx context.Context, learnerID, topicID uuid.UUID) ([]*entities.ReviewState, error)
	// Save returns repository.ErrOptimisticLock when the stored version moved on.
	Save(ctx context.Context, state *entities.ReviewState) error
}

// ReviewStore persists a scheduled state together with its log entry.
// It returns repository.ErrOptimisticLock when the state changed since it was read.
type ReviewStore interface {
	SaveReview(ctx context.Context, state *entities.ReviewState, log *entities.ReviewLog) error
}

type ReviewLogRepository interface {
	ListByFlashcard(ctx context.Context, learnerID, flashcardID uuid.UUID) ([]*entities.ReviewLog, error)
}

type FlashcardRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entities.Flashcard, error)
	ListIDsByTopic(ctx context.Context, topicID uuid.UUID) ([]uuid.UUID, error)
}

type TopicRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entities.Topic, error)
	ListIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type TopicProgressRepository interface {
	Get(ctx context.Context, learnerID, topicID uuid.UUID) (*entities.TopicProgress, error)
	Upsert(ctx context.Context, p *entities.TopicProgress) error
	RecordAssessment(ctx context.Context, learnerID, topicID uuid.UUID, score int, at time.Time) error
}

// ReminderRepository manages reminder persistence.
type ReminderRepository interface {
	Upsert(ctx context.Context, n *entities.LearnerNotification) error
	GetDueRemindersBatch(ctx context.Context, now, sentBefore time.Time, after uuid.UUID, limit int) ([]*entities.DueReminder, error)
	MarkAsSent(ctx context.Context, learnerID uuid.UUID, sentAt time.Time) error
}

// ReminderNotifier sends reminder notifications to learners.
type ReminderNotifier interface {
	SendReminder(chatID int64, payload entities.ReminderPayload) error
}

// Locker serializes work per key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ProgressProjector refreshes a topic aggregate after its review states change.
type ProgressProjector interface {
	Recompute(ctx context.Context, learnerID, topicID uuid.UUID, now time.Time) (*entities.TopicProgress, error)
}

// ResetRepository removes a learner's study history for a topic atomically.
type ResetRepository interface {
	ResetTopic(ctx context.Context, learnerID, topicID uuid.UUID) error
}
