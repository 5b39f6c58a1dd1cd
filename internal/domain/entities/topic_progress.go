package entities

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// FlashcardStats are the per-topic counts derived from review states.
type FlashcardStats struct {
	Total    int `json:"total"`    // flashcards belonging to the topic
	Started  int `json:"started"`  // flashcards with a scheduled review state
	Mastered int `json:"mastered"` // flashcards in Review or Relearning
	Learning int `json:"learning"` // flashcards in Learning
	New      int `json:"new"`      // Total - Started
}

// TopicProgress is the learner's aggregate progress for one topic.
type TopicProgress struct {
	LearnerID uuid.UUID `json:"learnerId"`
	TopicID   uuid.UUID `json:"topicId"`

	FlashcardStats FlashcardStats `json:"flashcardStats"`

	// First-write-wins milestones.
	TopicStartedAt       *time.Time `json:"topicStartedAt,omitempty"`
	FlashcardsMasteredAt *time.Time `json:"flashcardsMasteredAt,omitempty"`
	MasteryAchievedAt    *time.Time `json:"masteryAchievedAt,omitempty"`

	LastStudiedAt       *time.Time `json:"lastStudiedAt,omitempty"`
	AssessmentAttempts  int        `json:"assessmentAttempts"`
	BestAssessmentScore int        `json:"bestAssessmentScore"`
}

// NewTopicProgress creates an empty aggregate for a learner and topic.
func NewTopicProgress(learnerID, topicID uuid.UUID) *TopicProgress {
	return &TopicProgress{LearnerID: learnerID, TopicID: topicID}
}

// ComputeFlashcardStats counts states against the number of flashcards in the topic.
func ComputeFlashcardStats(total int, states []*ReviewState) FlashcardStats {
	stats := FlashcardStats{Total: total}
	for _, s := range states {
		switch s.State {
		case StateNew:
			continue
		case StateLearning:
			stats.Learning++
		case StateReview, StateRelearning:
			stats.Mastered++
		}
		stats.Started++
	}
	stats.New = max(0, stats.Total-stats.Started)
	return stats
}

// Apply replaces the flashcard stats and sets any milestone that became true.
// Milestones that are already set are never overwritten.
func (p *TopicProgress) Apply(stats FlashcardStats, lastStudiedAt *time.Time, now time.Time) {
	p.FlashcardStats = stats
	p.LastStudiedAt = lastStudiedAt

	if p.TopicStartedAt == nil && stats.Started > 0 {
		p.TopicStartedAt = timePtr(now)
	}
	if p.FlashcardsMasteredAt == nil && stats.Total > 0 && stats.Mastered == stats.Total {
		p.FlashcardsMasteredAt = timePtr(now)
	}
	if p.MasteryAchievedAt == nil && p.Percent() >= 100 {
		p.MasteryAchievedAt = timePtr(now)
	}
}

// Percent returns the dashboard completion percentage.
// Flashcards contribute up to 50 points, any assessment attempt the other 50.
func (p *TopicProgress) Percent() int {
	if p.MasteryAchievedAt != nil {
		return 100
	}

	var flashcards float64
	if p.FlashcardStats.Total > 0 {
		flashcards = float64(p.FlashcardStats.Started) / float64(p.FlashcardStats.Total) * 50
	}

	var assessment float64
	if p.AssessmentAttempts > 0 {
		assessment = 50
	}

	return int(math.Round(flashcards + assessment))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
