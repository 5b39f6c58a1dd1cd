package entities

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRating = errors.New("invalid rating")
	ErrInvalidState  = errors.New("invalid review state")
)

// Rating represents the learner's assessment of recall quality.
type Rating int

const (
	RatingAgain Rating = iota + 1 // failed to recall
	RatingHard                    // recalled with significant difficulty
	RatingGood                    // recalled with some effort
	RatingEasy                    // recalled effortlessly
)

// Ratings lists every valid rating in ascending order.
var Ratings = [...]Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}

var ratingNames = [...]string{RatingAgain: "Again", RatingHard: "Hard", RatingGood: "Good", RatingEasy: "Easy"}

// ParseRating converts a raw rating value into a Rating.
// Values outside 1..4 are rejected with ErrInvalidRating.
func ParseRating(v int) (Rating, error) {
	r := Rating(v)
	if !r.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRating, v)
	}
	return r, nil
}

// IsValid reports whether r is one of Again, Hard, Good or Easy.
func (r Rating) IsValid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	for _, v := range Ratings {
		if ratingNames[v] == string(text) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidRating, text)
}

// State represents the learning stage of a review state.
// The numeric values are the persisted codes.
type State int16

const (
	StateNew        State = iota // never scheduled
	StateLearning                // walking the short-term step ladder
	StateReview                  // long-term review cycle
	StateRelearning              // forgotten, walking the relearning ladder
)

var stateNames = [...]string{StateNew: "New", StateLearning: "Learning", StateReview: "Review", StateRelearning: "Relearning"}

// StateFromCode converts a persisted state code into a State.
func StateFromCode(code int16) (State, error) {
	s := State(code)
	if !s.IsValid() {
		return 0, fmt.Errorf("%w: code %d", ErrInvalidState, code)
	}
	return s, nil
}

// IsValid reports whether s is one of the four known states.
func (s State) IsValid() bool {
	return s >= StateNew && s <= StateRelearning
}

// Code returns the persisted code of the state.
func (s State) Code() int16 {
	return int16(s)
}

func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidState, text)
}

// ReviewState stores the scheduling memory of one learner for one flashcard.
type ReviewState struct {
	LearnerID   uuid.UUID
	FlashcardID uuid.UUID
	TopicID     uuid.UUID

	// FSRS memory fields.
	Due           time.Time  // when the card should next be reviewed
	Stability     float64    // days until retrievability decays to the target retention
	Difficulty    float64    // intrinsic hardness in [1, 10]
	ElapsedDays   float64    // whole days between the previous review and the last one
	ScheduledDays float64    // interval in days chosen at the last review
	Reps          int        // successful reviews while in Review state
	Lapses        int        // Again ratings while in Review state
	LearningSteps int        // index into the learning or relearning ladder
	State         State      // governs which sub-algorithm applies
	LastReview    *time.Time // nil until the first review

	Version   int64 // optimistic concurrency token, 0 for unsaved states
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReviewState creates a never-studied review state that is due immediately.
func NewReviewState(learnerID, flashcardID, topicID uuid.UUID, now time.Time) *ReviewState {
	return &ReviewState{
		LearnerID:   learnerID,
		FlashcardID: flashcardID,
		TopicID:     topicID,
		Due:         now,
		State:       StateNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsDue reports whether the state is eligible for review at now.
func (s *ReviewState) IsDue(now time.Time) bool {
	return !s.Due.After(now)
}

// IsMastered reports whether the card has graduated into long-term review.
func (s *ReviewState) IsMastered() bool {
	return s.State == StateReview || s.State == StateRelearning
}

// ReviewLog records a single rating event and the memory it produced.
type ReviewLog struct {
	ID            int64
	LearnerID     uuid.UUID
	FlashcardID   uuid.UUID
	Rating        Rating
	State         State     // state before the review
	Due           time.Time // due date before the review
	Stability     float64   // stability after the review
	Difficulty    float64   // difficulty after the review
	ElapsedDays   float64
	ScheduledDays float64
	ReviewedAt    time.Time
}
