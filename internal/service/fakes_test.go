package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres/repository"
)

type stateKey struct {
	learner, card uuid.UUID
}

// memReviews stores review states and logs with the same versioning rules as
// the postgres repositories.
type memReviews struct {
	mu     sync.Mutex
	states map[stateKey]entities.ReviewState
	logs   []entities.ReviewLog
	saves  int
}

func newMemReviews() *memReviews {
	return &memReviews{states: make(map[stateKey]entities.ReviewState)}
}

func (m *memReviews) Get(_ context.Context, learnerID, flashcardID uuid.UUID) (*entities.ReviewState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[stateKey{learnerID, flashcardID}]
	if !ok {
		return nil, repository.ErrReviewStateNotFound
	}
	return &s, nil
}

func (m *memReviews) ListByLearnerAndTopic(_ context.Context, learnerID, topicID uuid.UUID) ([]*entities.ReviewState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*entities.ReviewState
	for k, s := range m.states {
		if k.learner == learnerID && s.TopicID == topicID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Due.Equal(out[j].Due) {
			return out[i].FlashcardID.String() < out[j].FlashcardID.String()
		}
		return out[i].Due.Before(out[j].Due)
	})
	return out, nil
}

func (m *memReviews) SaveReview(_ context.Context, state *entities.ReviewState, log *entities.ReviewLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	k := stateKey{state.LearnerID, state.FlashcardID}
	stored, exists := m.states[k]
	switch {
	case state.Version == 0 && exists:
		return repository.ErrOptimisticLock
	case state.Version != 0 && (!exists || stored.Version != state.Version):
		return repository.ErrOptimisticLock
	}

	state.Version++
	m.states[k] = *state

	log.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memReviews) Save(_ context.Context, state *entities.ReviewState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := stateKey{state.LearnerID, state.FlashcardID}
	stored, exists := m.states[k]
	switch {
	case state.Version == 0 && exists:
		return repository.ErrOptimisticLock
	case state.Version != 0 && (!exists || stored.Version != state.Version):
		return repository.ErrOptimisticLock
	}

	state.Version++
	m.states[k] = *state
	return nil
}

func (m *memReviews) ListByFlashcard(_ context.Context, learnerID, flashcardID uuid.UUID) ([]*entities.ReviewLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*entities.ReviewLog
	for _, l := range m.logs {
		if l.LearnerID == learnerID && l.FlashcardID == flashcardID {
			l := l
			out = append(out, &l)
		}
	}
	return out, nil
}

func (m *memReviews) put(s *entities.ReviewState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[stateKey{s.LearnerID, s.FlashcardID}] = *s
}

func (m *memReviews) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// conflictingStore fails the first n saves as if another writer won the race.
type conflictingStore struct {
	*memReviews
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (c *conflictingStore) SaveReview(ctx context.Context, state *entities.ReviewState, log *entities.ReviewLog) error {
	c.mu.Lock()
	c.attempts++
	fail := c.conflicts != 0
	if c.conflicts > 0 {
		c.conflicts--
	}
	c.mu.Unlock()

	if fail {
		return repository.ErrOptimisticLock
	}
	return c.memReviews.SaveReview(ctx, state, log)
}

// memCatalog holds topics and their flashcards.
type memCatalog struct {
	topics map[uuid.UUID]*entities.Topic
	cards  map[uuid.UUID]*entities.Flashcard
	order  map[uuid.UUID][]uuid.UUID
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		topics: make(map[uuid.UUID]*entities.Topic),
		cards:  make(map[uuid.UUID]*entities.Flashcard),
		order:  make(map[uuid.UUID][]uuid.UUID),
	}
}

// addTopic creates a topic owned by userID with n flashcards.
func (c *memCatalog) addTopic(userID uuid.UUID, n int) (uuid.UUID, []uuid.UUID) {
	topicID := uuid.New()
	c.topics[topicID] = &entities.Topic{ID: topicID, UserID: userID, Name: "topic", Status: entities.TopicSuccess}

	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		c.cards[ids[i]] = &entities.Flashcard{ID: ids[i], TopicID: topicID, Sequence: i, Front: "q", Back: "a"}
	}
	c.order[topicID] = ids
	return topicID, ids
}

func (c *memCatalog) Get(_ context.Context, id uuid.UUID) (*entities.Flashcard, error) {
	card, ok := c.cards[id]
	if !ok {
		return nil, repository.ErrFlashcardNotFound
	}
	return card, nil
}

func (c *memCatalog) ListIDsByTopic(_ context.Context, topicID uuid.UUID) ([]uuid.UUID, error) {
	return append([]uuid.UUID(nil), c.order[topicID]...), nil
}

type memTopics struct{ *memCatalog }

func (t memTopics) Get(_ context.Context, id uuid.UUID) (*entities.Topic, error) {
	topic, ok := t.topics[id]
	if !ok {
		return nil, repository.ErrTopicNotFound
	}
	return topic, nil
}

func (t memTopics) ListIDsByUser(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, topic := range t.topics {
		if topic.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type progressKey struct {
	learner, topic uuid.UUID
}

// memProgress mirrors the first-write-wins upsert of the postgres repository.
type memProgress struct {
	mu   sync.Mutex
	rows map[progressKey]entities.TopicProgress
}

func newMemProgress() *memProgress {
	return &memProgress{rows: make(map[progressKey]entities.TopicProgress)}
}

func (m *memProgress) Get(_ context.Context, learnerID, topicID uuid.UUID) (*entities.TopicProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.rows[progressKey{learnerID, topicID}]
	if !ok {
		return nil, repository.ErrProgressNotFound
	}
	return &p, nil
}

func (m *memProgress) Upsert(_ context.Context, p *entities.TopicProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := progressKey{p.LearnerID, p.TopicID}
	if stored, ok := m.rows[k]; ok {
		p.TopicStartedAt = firstSet(stored.TopicStartedAt, p.TopicStartedAt)
		p.FlashcardsMasteredAt = firstSet(stored.FlashcardsMasteredAt, p.FlashcardsMasteredAt)
		p.MasteryAchievedAt = firstSet(stored.MasteryAchievedAt, p.MasteryAchievedAt)
		p.AssessmentAttempts = stored.AssessmentAttempts
		p.BestAssessmentScore = stored.BestAssessmentScore
	}
	m.rows[k] = *p
	return nil
}

func (m *memProgress) RecordAssessment(_ context.Context, learnerID, topicID uuid.UUID, score int, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := progressKey{learnerID, topicID}
	p, ok := m.rows[k]
	if !ok {
		p = *entities.NewTopicProgress(learnerID, topicID)
	}
	p.AssessmentAttempts++
	p.BestAssessmentScore = max(p.BestAssessmentScore, score)
	m.rows[k] = p
	return nil
}

func (m *memProgress) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func firstSet(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}
	return b
}

type failingProjector struct{}

func (failingProjector) Recompute(context.Context, uuid.UUID, uuid.UUID, time.Time) (*entities.TopicProgress, error) {
	return nil, errors.New("projection unavailable")
}

type memReminders struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]*entities.LearnerNotification
	due     []*entities.DueReminder
	sent    map[uuid.UUID]time.Time
	batches int
}

func newMemReminders(due ...*entities.DueReminder) *memReminders {
	return &memReminders{
		subs: make(map[uuid.UUID]*entities.LearnerNotification),
		due:  due,
		sent: make(map[uuid.UUID]time.Time),
	}
}

func (m *memReminders) Upsert(_ context.Context, n *entities.LearnerNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.subs[n.LearnerID] = &cp
	return nil
}

// GetDueRemindersBatch mirrors the SQL: the last_sent_at cutoff, then
// learner id order after the given key. MarkAsSent is visible to later pages.
func (m *memReminders) GetDueRemindersBatch(_ context.Context, _, sentBefore time.Time, after uuid.UUID, limit int) ([]*entities.DueReminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches++
	var eligible []*entities.DueReminder
	for _, d := range m.due {
		cp := *d
		if at, ok := m.sent[d.LearnerID]; ok {
			cp.LastSentAt = &at
		}
		if cp.LastSentAt != nil && cp.LastSentAt.After(sentBefore) {
			continue
		}
		if bytes.Compare(cp.LearnerID[:], after[:]) <= 0 {
			continue
		}
		eligible = append(eligible, &cp)
	}
	sort.Slice(eligible, func(i, j int) bool {
		return bytes.Compare(eligible[i].LearnerID[:], eligible[j].LearnerID[:]) < 0
	})
	return eligible[:min(limit, len(eligible))], nil
}

func (m *memReminders) MarkAsSent(_ context.Context, learnerID uuid.UUID, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[learnerID] = sentAt
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	chats []int64
	fail  map[int64]bool
}

func (n *recordingNotifier) SendReminder(chatID int64, _ entities.ReminderPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[chatID] {
		return errors.New("telegram unavailable")
	}
	n.chats = append(n.chats, chatID)
	return nil
}

// memResets clears the in-memory stores the way the postgres reset does.
type memResets struct {
	reviews  *memReviews
	progress *memProgress
}

func (r memResets) ResetTopic(_ context.Context, learnerID, topicID uuid.UUID) error {
	r.reviews.mu.Lock()
	cards := make(map[uuid.UUID]struct{})
	for k, s := range r.reviews.states {
		if k.learner == learnerID && s.TopicID == topicID {
			cards[k.card] = struct{}{}
			delete(r.reviews.states, k)
		}
	}
	kept := r.reviews.logs[:0]
	for _, l := range r.reviews.logs {
		if _, ok := cards[l.FlashcardID]; ok && l.LearnerID == learnerID {
			continue
		}
		kept = append(kept, l)
	}
	r.reviews.logs = kept
	r.reviews.mu.Unlock()

	r.progress.mu.Lock()
	delete(r.progress.rows, progressKey{learnerID, topicID})
	r.progress.mu.Unlock()
	return nil
}
