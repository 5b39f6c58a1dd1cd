// Package srs implements the FSRS-4 spaced-repetition scheduler.
//
// The engine is a pure function of (state, rating, now, fuzz seed). It never
// mutates its input and holds no mutable state, so one Engine can be shared by
// any number of goroutines.
package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/atharva0712/revision-app/internal/domain/entities"
)

const day = 24 * time.Hour

// Result is the outcome of scheduling one review.
type Result struct {
	State    entities.ReviewState
	Due      time.Time
	Interval time.Duration
	Log      entities.ReviewLog
}

// Engine schedules reviews with a fixed, validated configuration.
type Engine struct {
	algo             algo
	desiredRetention float64
	maximumInterval  int
	enableFuzz       bool
	enableShortTerm  bool
	learningSteps    []time.Duration
	relearningSteps  []time.Duration
}

// NewEngine validates cfg and builds an Engine from a private copy of it.
func NewEngine(cfg Config) (*Engine, error) {
	c, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	return &Engine{
		algo:             algo{w: c.Parameters},
		desiredRetention: c.DesiredRetention,
		maximumInterval:  c.MaximumInterval,
		enableFuzz:       c.EnableFuzz,
		enableShortTerm:  c.EnableShortTerm,
		learningSteps:    c.LearningSteps,
		relearningSteps:  c.RelearningSteps,
	}, nil
}

// MaximumInterval returns the configured interval cap.
func (e *Engine) MaximumInterval() time.Duration {
	return time.Duration(e.maximumInterval) * day
}

// Schedule applies rating to state at now. The fuzz seed is derived from the
// inputs, so identical calls produce identical results.
func (e *Engine) Schedule(state entities.ReviewState, rating entities.Rating, now time.Time) (Result, error) {
	return e.ScheduleSeeded(state, rating, now, FuzzSeed(state, now))
}

// ScheduleSeeded is Schedule with an explicit fuzz seed.
//
// An invalid rating returns an error wrapping entities.ErrInvalidRating.
// A state outside the four known values panics.
func (e *Engine) ScheduleSeeded(state entities.ReviewState, rating entities.Rating, now time.Time, seed uint64) (Result, error) {
	if !rating.IsValid() {
		return Result{}, fmt.Errorf("%w: %d", entities.ErrInvalidRating, int(rating))
	}
	if !state.State.IsValid() {
		panic(fmt.Sprintf("srs: malformed review state %d", int(state.State)))
	}

	c := state
	elapsed := elapsedDays(state.LastReview, now)

	var interval time.Duration
	switch state.State {
	case entities.StateNew:
		interval = e.reviewNew(&c, rating)
	case entities.StateLearning, entities.StateRelearning:
		interval = e.reviewShortTerm(&c, rating, elapsed)
	case entities.StateReview:
		interval = e.reviewLongTerm(&c, rating, elapsed)
	}

	if e.enableFuzz && c.State == entities.StateReview {
		if days := int(interval / day); days > 0 {
			interval = time.Duration(applyFuzz(days, e.maximumInterval, newFuzzRand(seed))) * day
		}
	}
	interval = min(max(interval, 0), e.MaximumInterval())

	mustBeSane(c)

	reviewedAt := now
	c.ElapsedDays = elapsed
	c.ScheduledDays = math.Floor(interval.Hours() / 24)
	c.Due = now.Add(interval)
	c.LastReview = &reviewedAt
	c.UpdatedAt = now

	log := entities.ReviewLog{
		LearnerID:     state.LearnerID,
		FlashcardID:   state.FlashcardID,
		Rating:        rating,
		State:         state.State,
		Due:           state.Due,
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   c.ElapsedDays,
		ScheduledDays: c.ScheduledDays,
		ReviewedAt:    now,
	}

	return Result{State: c, Due: c.Due, Interval: interval, Log: log}, nil
}

// Preview returns the result of reviewing state with each possible rating.
func (e *Engine) Preview(state entities.ReviewState, now time.Time) map[entities.Rating]Result {
	out := make(map[entities.Rating]Result, len(entities.Ratings))
	for _, r := range entities.Ratings {
		res, _ := e.Schedule(state, r, now)
		out[r] = res
	}
	return out
}

// Reschedule replays logs in order on top of state, as if every rating had
// been submitted again with the current configuration.
func (e *Engine) Reschedule(state entities.ReviewState, logs []entities.ReviewLog) (entities.ReviewState, error) {
	c := state
	for _, l := range logs {
		if l.FlashcardID != c.FlashcardID {
			return entities.ReviewState{}, fmt.Errorf("reschedule: log for flashcard %s applied to %s", l.FlashcardID, c.FlashcardID)
		}
		res, err := e.Schedule(c, l.Rating, l.ReviewedAt)
		if err != nil {
			return entities.ReviewState{}, fmt.Errorf("reschedule: %w", err)
		}
		c = res.State
	}
	return c, nil
}

// Retrievability returns the current probability of recall in [0, 1].
// Cards that were never reviewed have zero retrievability.
func (e *Engine) Retrievability(state entities.ReviewState, now time.Time) float64 {
	if state.LastReview == nil || state.Stability <= 0 {
		return 0
	}
	elapsed := max(now.Sub(*state.LastReview).Hours()/24, 0)
	return e.algo.retrievability(elapsed, state.Stability)
}

func (e *Engine) reviewNew(c *entities.ReviewState, rating entities.Rating) time.Duration {
	c.Difficulty = e.algo.initDifficulty(rating)
	c.Stability = e.algo.initStability(rating)
	c.LearningSteps = 0

	if rating == entities.RatingEasy {
		c.Stability = clampS(c.Stability * e.algo.w[16])
		return e.graduate(c)
	}

	steps := e.stepsFor(entities.StateLearning)
	if len(steps) == 0 {
		if rating == entities.RatingAgain {
			c.State = entities.StateLearning
			return e.longTermInterval(c)
		}
		return e.graduate(c)
	}

	c.State = entities.StateLearning
	return e.walkSteps(c, rating, steps)
}

func (e *Engine) reviewShortTerm(c *entities.ReviewState, rating entities.Rating, elapsed float64) time.Duration {
	if elapsed >= 1 {
		r := e.algo.retrievability(elapsed, c.Stability)
		if rating == entities.RatingAgain {
			c.Stability = e.algo.nextForgetStability(c.Difficulty, c.Stability, r)
		} else {
			c.Stability = e.algo.nextRecallStability(c.Difficulty, c.Stability, r, rating)
		}
	}
	c.Difficulty = e.algo.nextDifficulty(c.Difficulty, rating)

	steps := e.stepsFor(c.State)
	if len(steps) == 0 {
		if rating == entities.RatingAgain {
			return e.longTermInterval(c)
		}
		return e.graduate(c)
	}

	return e.walkSteps(c, rating, steps)
}

func (e *Engine) reviewLongTerm(c *entities.ReviewState, rating entities.Rating, elapsed float64) time.Duration {
	r := e.algo.retrievability(elapsed, c.Stability)
	d := c.Difficulty

	if rating == entities.RatingAgain {
		c.Lapses++
		c.Stability = e.algo.nextForgetStability(d, c.Stability, r)
		c.Difficulty = e.algo.nextDifficulty(d, rating)
		c.State = entities.StateRelearning
		c.LearningSteps = 0

		steps := e.stepsFor(entities.StateRelearning)
		if len(steps) == 0 {
			return e.longTermInterval(c)
		}
		return steps[0]
	}

	c.Reps++
	c.Stability = e.algo.nextRecallStability(d, c.Stability, r, rating)
	c.Difficulty = e.algo.nextDifficulty(d, rating)
	return e.longTermInterval(c)
}

// walkSteps moves c along a learning or relearning ladder.
func (e *Engine) walkSteps(c *entities.ReviewState, rating entities.Rating, steps []time.Duration) time.Duration {
	step := c.LearningSteps
	if step >= len(steps) && rating != entities.RatingAgain {
		// The ladder shrank since the card entered it.
		return e.graduate(c)
	}

	switch rating {
	case entities.RatingAgain:
		c.LearningSteps = 0
		return steps[0]
	case entities.RatingHard:
		switch {
		case step == 0 && len(steps) == 1:
			return steps[0] * 3 / 2
		case step == 0:
			return (steps[0] + steps[1]) / 2
		default:
			return steps[step]
		}
	case entities.RatingGood:
		if step+1 >= len(steps) {
			return e.graduate(c)
		}
		c.LearningSteps = step + 1
		return steps[step+1]
	default:
		return e.graduate(c)
	}
}

func (e *Engine) graduate(c *entities.ReviewState) time.Duration {
	c.State = entities.StateReview
	c.LearningSteps = 0
	return e.longTermInterval(c)
}

func (e *Engine) longTermInterval(c *entities.ReviewState) time.Duration {
	return time.Duration(e.algo.nextInterval(c.Stability, e.desiredRetention, e.maximumInterval)) * day
}

func (e *Engine) stepsFor(s entities.State) []time.Duration {
	if !e.enableShortTerm {
		return nil
	}
	if s == entities.StateRelearning {
		return e.relearningSteps
	}
	return e.learningSteps
}

// elapsedDays returns the whole days since last, never negative.
func elapsedDays(last *time.Time, now time.Time) float64 {
	if last == nil {
		return 0
	}
	return max(math.Floor(now.Sub(*last).Hours()/24), 0)
}

func mustBeSane(c entities.ReviewState) {
	if math.IsNaN(c.Stability) || math.IsInf(c.Stability, 0) || c.Stability <= 0 {
		panic(fmt.Sprintf("srs: stability %v for flashcard %s", c.Stability, c.FlashcardID))
	}
	if math.IsNaN(c.Difficulty) || c.Difficulty < minDifficulty || c.Difficulty > maxDifficulty {
		panic(fmt.Sprintf("srs: difficulty %v for flashcard %s", c.Difficulty, c.FlashcardID))
	}
}
