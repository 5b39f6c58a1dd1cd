package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ResetService struct {
	resets ResetRepository
	topics TopicRepository
	logger *zap.Logger
}

func NewResetService(resets ResetRepository, topics TopicRepository, logger *zap.Logger) *ResetService {
	return &ResetService{resets: resets, topics: topics, logger: logger}
}

// ResetTopic forgets everything the learner studied in a topic.
func (s *ResetService) ResetTopic(ctx context.Context, learnerID, topicID uuid.UUID) error {
	if err := ensureTopicOwner(ctx, s.topics, learnerID, topicID); err != nil {
		return err
	}

	if err := s.resets.ResetTopic(ctx, learnerID, topicID); err != nil {
		return fmt.Errorf("reset topic: %w", err)
	}

	s.logger.Info("topic progress reset",
		zap.String("learner_id", learnerID.String()),
		zap.String("topic_id", topicID.String()),
	)
	return nil
}
