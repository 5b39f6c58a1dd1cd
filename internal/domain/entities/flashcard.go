// Package entities contains domain entities used across the application.
package entities

import (
	"time"

	"github.com/google/uuid"
)

// TopicStatus is the content generation status of a topic.
type TopicStatus string

const (
	TopicProcessing TopicStatus = "processing"
	TopicSuccess    TopicStatus = "success"
	TopicFailed     TopicStatus = "failed"
)

// Topic is a unit of study extracted from scraped content.
type Topic struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Status    TopicStatus
	CreatedAt time.Time
}

// Flashcard is a single study item belonging to a topic.
type Flashcard struct {
	ID       uuid.UUID
	TopicID  uuid.UUID
	Sequence int
	Front    string
	Back     string
}

// DueSet partitions a topic's flashcards for one learner at a point in time.
type DueSet struct {
	Due        []uuid.UUID `json:"due"`        // review states with due <= now
	New        []uuid.UUID `json:"new"`        // flashcards never studied
	TotalCount int         `json:"totalCount"` // flashcards in the topic
}

// AssessmentAnswer is one answered question of an assessment attempt.
type AssessmentAnswer struct {
	QuestionID uuid.UUID `json:"questionId"`
	IsCorrect  bool      `json:"isCorrect"`
}

// Score counts correct answers.
func Score(answers []AssessmentAnswer) int {
	score := 0
	for _, a := range answers {
		if a.IsCorrect {
			score++
		}
	}
	return score
}
