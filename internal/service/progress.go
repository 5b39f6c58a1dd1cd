package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres/repository"
)

// maxConcurrentRecomputes bounds AllProgress fan-out.
const maxConcurrentRecomputes = 4

// ProgressService projects review states into per-topic progress aggregates.
type ProgressService struct {
	states     ReviewStateRepository
	flashcards FlashcardRepository
	topics     TopicRepository
	progress   TopicProgressRepository
	logger     *zap.Logger
}

func NewProgressService(
	states ReviewStateRepository,
	flashcards FlashcardRepository,
	topics TopicRepository,
	progress TopicProgressRepository,
	logger *zap.Logger,
) *ProgressService {
	return &ProgressService{
		states:     states,
		flashcards: flashcards,
		topics:     topics,
		progress:   progress,
		logger:     logger,
	}
}

// Recompute rebuilds the learner's aggregate for a topic from its review states.
// Milestone timestamps are set once and never moved. A topic the learner has
// never touched is returned without being stored.
func (s *ProgressService) Recompute(ctx context.Context, learnerID, topicID uuid.UUID, now time.Time) (*entities.TopicProgress, error) {
	ids, err := s.flashcards.ListIDsByTopic(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}

	states, err := s.states.ListByLearnerAndTopic(ctx, learnerID, topicID)
	if err != nil {
		return nil, fmt.Errorf("list review states: %w", err)
	}

	stored := true
	p, err := s.progress.Get(ctx, learnerID, topicID)
	if err != nil {
		if !errors.Is(err, repository.ErrProgressNotFound) {
			return nil, fmt.Errorf("get topic progress: %w", err)
		}
		p = entities.NewTopicProgress(learnerID, topicID)
		stored = false
	}

	stats := entities.ComputeFlashcardStats(len(ids), states)
	p.Apply(stats, lastStudiedAt(states), now)

	if !stored && stats.Started == 0 {
		return p, nil
	}

	if err := s.progress.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert topic progress: %w", err)
	}

	return p, nil
}

// TopicProgress is Recompute behind a topic ownership check.
func (s *ProgressService) TopicProgress(ctx context.Context, learnerID, topicID uuid.UUID, now time.Time) (*entities.TopicProgress, error) {
	if err := ensureTopicOwner(ctx, s.topics, learnerID, topicID); err != nil {
		return nil, err
	}
	return s.Recompute(ctx, learnerID, topicID, now)
}

// RecordAssessment stores one assessment attempt and refreshes the aggregate.
func (s *ProgressService) RecordAssessment(ctx context.Context, learnerID, topicID uuid.UUID, answers []entities.AssessmentAnswer, now time.Time) (*entities.TopicProgress, error) {
	if err := ensureTopicOwner(ctx, s.topics, learnerID, topicID); err != nil {
		return nil, err
	}

	score := entities.Score(answers)
	if err := s.progress.RecordAssessment(ctx, learnerID, topicID, score, now); err != nil {
		return nil, fmt.Errorf("record assessment: %w", err)
	}

	s.logger.Info("assessment recorded",
		zap.String("learner_id", learnerID.String()),
		zap.String("topic_id", topicID.String()),
		zap.Int("score", score),
		zap.Int("questions", len(answers)),
	)

	return s.Recompute(ctx, learnerID, topicID, now)
}

// AllProgress recomputes every topic of the learner and returns the
// completion percentage per topic.
func (s *ProgressService) AllProgress(ctx context.Context, learnerID uuid.UUID, now time.Time) (map[uuid.UUID]int, error) {
	topicIDs, err := s.topics.ListIDsByUser(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	var mu sync.Mutex
	out := make(map[uuid.UUID]int, len(topicIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRecomputes)

	for _, topicID := range topicIDs {
		g.Go(func() error {
			p, err := s.Recompute(ctx, learnerID, topicID, now)
			if err != nil {
				return fmt.Errorf("topic %s: %w", topicID, err)
			}
			mu.Lock()
			out[topicID] = p.Percent()
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func lastStudiedAt(states []*entities.ReviewState) *time.Time {
	var last *time.Time
	for _, st := range states {
		if st.LastReview == nil {
			continue
		}
		if last == nil || st.LastReview.After(*last) {
			t := *st.LastReview
			last = &t
		}
	}
	return last
}
