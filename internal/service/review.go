package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres/repository"
	"github.com/atharva0712/revision-app/internal/srs"
)

type ReviewConfig struct {
	MaxWriteAttempts int           // read → schedule → write attempts before giving up
	RetryBackoff     time.Duration // grows linearly with the attempt number
}

// ReviewOutcome is what the learner sees after rating a flashcard.
type ReviewOutcome struct {
	FlashcardID   uuid.UUID
	Rating        entities.Rating
	Due           time.Time
	State         entities.State
	Interval      time.Duration
	ScheduledDays float64
	Stability     float64
	Difficulty    float64
	Reps          int
	Lapses        int
}

func newReviewOutcome(res srs.Result, rating entities.Rating) *ReviewOutcome {
	return &ReviewOutcome{
		FlashcardID:   res.State.FlashcardID,
		Rating:        rating,
		Due:           res.Due,
		State:         res.State.State,
		Interval:      res.Interval,
		ScheduledDays: res.State.ScheduledDays,
		Stability:     res.State.Stability,
		Difficulty:    res.State.Difficulty,
		Reps:          res.State.Reps,
		Lapses:        res.State.Lapses,
	}
}

// ReviewService accepts ratings and keeps review states consistent under
// concurrent submissions.
type ReviewService struct {
	engine     *srs.Engine
	states     ReviewStateRepository
	store      ReviewStore
	logs       ReviewLogRepository
	flashcards FlashcardRepository
	topics     TopicRepository
	locker     Locker
	projector  ProgressProjector
	cfg        ReviewConfig
	logger     *zap.Logger
}

func NewReviewService(
	engine *srs.Engine,
	states ReviewStateRepository,
	store ReviewStore,
	logs ReviewLogRepository,
	flashcards FlashcardRepository,
	topics TopicRepository,
	locker Locker,
	projector ProgressProjector,
	cfg ReviewConfig,
	logger *zap.Logger,
) *ReviewService {
	if cfg.MaxWriteAttempts <= 0 {
		cfg.MaxWriteAttempts = 3
	}
	return &ReviewService{
		engine:     engine,
		states:     states,
		store:      store,
		logs:       logs,
		flashcards: flashcards,
		topics:     topics,
		locker:     locker,
		projector:  projector,
		cfg:        cfg,
		logger:     logger,
	}
}

// Submit schedules a rating for the learner's flashcard and persists it.
// A learner's first rating creates the review state. After the rating is stored
// the topic progress is recomputed; a failure there is logged, not returned.
func (s *ReviewService) Submit(ctx context.Context, learnerID, flashcardID uuid.UUID, rating entities.Rating, now time.Time) (*ReviewOutcome, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", entities.ErrInvalidRating, int(rating))
	}

	card, err := s.ownedFlashcard(ctx, learnerID, flashcardID)
	if err != nil {
		return nil, err
	}

	res, err := s.scheduleLocked(ctx, learnerID, card, rating, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("review recorded",
		zap.String("learner_id", learnerID.String()),
		zap.String("flashcard_id", flashcardID.String()),
		zap.Stringer("rating", rating),
		zap.Stringer("state", res.State.State),
		zap.Time("due", res.Due),
	)

	if _, err := s.projector.Recompute(ctx, learnerID, card.TopicID, now); err != nil {
		s.logger.Warn("failed to recompute topic progress",
			zap.String("learner_id", learnerID.String()),
			zap.String("topic_id", card.TopicID.String()),
			zap.Error(err),
		)
	}

	return newReviewOutcome(res, rating), nil
}

// scheduleLocked runs read → schedule → write under the per-card lock and
// retries the whole sequence when another writer got there first.
func (s *ReviewService) scheduleLocked(ctx context.Context, learnerID uuid.UUID, card *entities.Flashcard, rating entities.Rating, now time.Time) (srs.Result, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(learnerID, card.ID))
	if err != nil {
		return srs.Result{}, fmt.Errorf("lock review state: %w", err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		res, err := s.scheduleOnce(ctx, learnerID, card, rating, now)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, repository.ErrOptimisticLock) || attempt >= s.cfg.MaxWriteAttempts {
			return srs.Result{}, err
		}

		s.logger.Debug("review state modified concurrently, retrying",
			zap.String("learner_id", learnerID.String()),
			zap.String("flashcard_id", card.ID.String()),
			zap.Int("attempt", attempt),
		)

		select {
		case <-ctx.Done():
			return srs.Result{}, ctx.Err()
		case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
}

func (s *ReviewService) scheduleOnce(ctx context.Context, learnerID uuid.UUID, card *entities.Flashcard, rating entities.Rating, now time.Time) (srs.Result, error) {
	state, err := s.loadOrNew(ctx, learnerID, card, now)
	if err != nil {
		return srs.Result{}, err
	}

	res, err := s.engine.Schedule(*state, rating, now)
	if err != nil {
		return srs.Result{}, err
	}

	if err := s.store.SaveReview(ctx, &res.State, &res.Log); err != nil {
		return srs.Result{}, fmt.Errorf("save review: %w", err)
	}

	return res, nil
}

func (s *ReviewService) loadOrNew(ctx context.Context, learnerID uuid.UUID, card *entities.Flashcard, now time.Time) (*entities.ReviewState, error) {
	state, err := s.states.Get(ctx, learnerID, card.ID)
	if err != nil {
		if errors.Is(err, repository.ErrReviewStateNotFound) {
			return entities.NewReviewState(learnerID, card.ID, card.TopicID, now), nil
		}
		return nil, fmt.Errorf("get review state: %w", err)
	}
	return state, nil
}

// Preview returns what each rating would schedule without storing anything.
func (s *ReviewService) Preview(ctx context.Context, learnerID, flashcardID uuid.UUID, now time.Time) (map[entities.Rating]*ReviewOutcome, error) {
	card, err := s.ownedFlashcard(ctx, learnerID, flashcardID)
	if err != nil {
		return nil, err
	}

	state, err := s.loadOrNew(ctx, learnerID, card, now)
	if err != nil {
		return nil, err
	}

	out := make(map[entities.Rating]*ReviewOutcome, len(entities.Ratings))
	for rating, res := range s.engine.Preview(*state, now) {
		out[rating] = newReviewOutcome(res, rating)
	}
	return out, nil
}

// Get returns the stored review state. Unlike Submit it does not create one.
func (s *ReviewService) Get(ctx context.Context, learnerID, flashcardID uuid.UUID) (*entities.ReviewState, error) {
	if _, err := s.ownedFlashcard(ctx, learnerID, flashcardID); err != nil {
		return nil, err
	}

	state, err := s.states.Get(ctx, learnerID, flashcardID)
	if err != nil {
		return nil, fmt.Errorf("get review state: %w", err)
	}
	return state, nil
}

// History returns the learner's ratings of a flashcard, oldest first.
func (s *ReviewService) History(ctx context.Context, learnerID, flashcardID uuid.UUID) ([]*entities.ReviewLog, error) {
	if _, err := s.ownedFlashcard(ctx, learnerID, flashcardID); err != nil {
		return nil, err
	}

	logs, err := s.logs.ListByFlashcard(ctx, learnerID, flashcardID)
	if err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	return logs, nil
}

// Rebuild replays the learner's review log of a flashcard through the current
// scheduler configuration and stores the resulting state. Use it after the
// scheduler parameters change.
func (s *ReviewService) Rebuild(ctx context.Context, learnerID, flashcardID uuid.UUID, now time.Time) (*entities.ReviewState, error) {
	card, err := s.ownedFlashcard(ctx, learnerID, flashcardID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(learnerID, card.ID))
	if err != nil {
		return nil, fmt.Errorf("lock review state: %w", err)
	}
	defer unlock()

	stored, err := s.states.Get(ctx, learnerID, card.ID)
	if err != nil {
		return nil, fmt.Errorf("get review state: %w", err)
	}

	logs, err := s.logs.ListByFlashcard(ctx, learnerID, card.ID)
	if err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	history := make([]entities.ReviewLog, 0, len(logs))
	for _, l := range logs {
		history = append(history, *l)
	}

	start := entities.NewReviewState(learnerID, card.ID, card.TopicID, stored.CreatedAt)
	rebuilt, err := s.engine.Reschedule(*start, history)
	if err != nil {
		return nil, err
	}
	rebuilt.Version = stored.Version
	rebuilt.CreatedAt = stored.CreatedAt
	rebuilt.UpdatedAt = now

	if err := s.states.Save(ctx, &rebuilt); err != nil {
		return nil, fmt.Errorf("save review state: %w", err)
	}

	s.logger.Info("review state rebuilt",
		zap.String("learner_id", learnerID.String()),
		zap.String("flashcard_id", flashcardID.String()),
		zap.Int("reviews", len(history)),
		zap.Stringer("state", rebuilt.State),
	)

	if _, err := s.projector.Recompute(ctx, learnerID, card.TopicID, now); err != nil {
		s.logger.Warn("failed to recompute topic progress",
			zap.String("learner_id", learnerID.String()),
			zap.String("topic_id", card.TopicID.String()),
			zap.Error(err),
		)
	}

	return &rebuilt, nil
}

// Retrievability returns the current recall probability of a stored state.
func (s *ReviewService) Retrievability(state *entities.ReviewState, now time.Time) float64 {
	return s.engine.Retrievability(*state, now)
}

// ownedFlashcard loads a flashcard and hides it from learners who do not own its topic.
func (s *ReviewService) ownedFlashcard(ctx context.Context, learnerID, flashcardID uuid.UUID) (*entities.Flashcard, error) {
	card, err := s.flashcards.Get(ctx, flashcardID)
	if err != nil {
		return nil, fmt.Errorf("get flashcard: %w", err)
	}

	if err := ensureTopicOwner(ctx, s.topics, learnerID, card.TopicID); err != nil {
		if errors.Is(err, repository.ErrTopicNotFound) {
			return nil, fmt.Errorf("get flashcard: %w", repository.ErrFlashcardNotFound)
		}
		return nil, err
	}

	return card, nil
}

func lockKey(learnerID, flashcardID uuid.UUID) string {
	return learnerID.String() + ":" + flashcardID.String()
}

// ensureTopicOwner returns repository.ErrTopicNotFound unless learnerID owns topicID.
func ensureTopicOwner(ctx context.Context, topics TopicRepository, learnerID, topicID uuid.UUID) error {
	topic, err := topics.Get(ctx, topicID)
	if err != nil {
		return fmt.Errorf("get topic: %w", err)
	}
	if topic.UserID != learnerID {
		return fmt.Errorf("get topic: %w", repository.ErrTopicNotFound)
	}
	return nil
}
