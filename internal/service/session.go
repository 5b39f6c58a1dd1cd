package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atharva0712/revision-app/internal/domain/entities"
)

// StudySessionService answers which flashcards a learner should study now.
// It only reads; review states are created when a card is first rated.
type StudySessionService struct {
	states     ReviewStateRepository
	flashcards FlashcardRepository
	topics     TopicRepository
}

func NewStudySessionService(states ReviewStateRepository, flashcards FlashcardRepository, topics TopicRepository) *StudySessionService {
	return &StudySessionService{states: states, flashcards: flashcards, topics: topics}
}

// DueItems partitions the topic's flashcards into those due for review and
// those never studied. Cards scheduled for later appear in neither list.
func (s *StudySessionService) DueItems(ctx context.Context, learnerID, topicID uuid.UUID, now time.Time) (*entities.DueSet, error) {
	if err := ensureTopicOwner(ctx, s.topics, learnerID, topicID); err != nil {
		return nil, err
	}

	ids, err := s.flashcards.ListIDsByTopic(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}

	states, err := s.states.ListByLearnerAndTopic(ctx, learnerID, topicID)
	if err != nil {
		return nil, fmt.Errorf("list review states: %w", err)
	}

	return partitionDue(ids, states, now), nil
}

// Session returns up to limit flashcard IDs to study: due reviews first, then
// new cards in deck order. A non-positive limit returns everything.
func (s *StudySessionService) Session(ctx context.Context, learnerID, topicID uuid.UUID, now time.Time, limit int) ([]uuid.UUID, error) {
	set, err := s.DueItems(ctx, learnerID, topicID, now)
	if err != nil {
		return nil, err
	}

	items := make([]uuid.UUID, 0, len(set.Due)+len(set.New))
	items = append(items, set.Due...)
	items = append(items, set.New...)

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func partitionDue(ids []uuid.UUID, states []*entities.ReviewState, now time.Time) *entities.DueSet {
	set := &entities.DueSet{
		Due:        []uuid.UUID{},
		New:        []uuid.UUID{},
		TotalCount: len(ids),
	}

	inTopic := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		inTopic[id] = struct{}{}
	}

	studied := make(map[uuid.UUID]struct{}, len(states))
	for _, st := range states {
		if _, ok := inTopic[st.FlashcardID]; !ok {
			continue
		}
		studied[st.FlashcardID] = struct{}{}
		if st.IsDue(now) {
			set.Due = append(set.Due, st.FlashcardID)
		}
	}

	for _, id := range ids {
		if _, ok := studied[id]; !ok {
			set.New = append(set.New, id)
		}
	}

	return set
}
