package srs

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atharva0712/revision-app/internal/domain/entities"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func noFuzzCfg() Config {
	cfg := DefaultConfig()
	cfg.EnableFuzz = false
	return cfg
}

func newCard() entities.ReviewState {
	return *entities.NewReviewState(uuid.New(), uuid.New(), uuid.New(), t0)
}

func reviewCard(stability, difficulty float64, last time.Time) entities.ReviewState {
	c := newCard()
	c.State = entities.StateReview
	c.Stability = stability
	c.Difficulty = difficulty
	c.Reps = 3
	c.LastReview = &last
	c.Due = last.Add(time.Duration(stability * float64(day)))
	return c
}

func mustSchedule(t *testing.T, e *Engine, c entities.ReviewState, r entities.Rating, now time.Time) Result {
	t.Helper()
	res, err := e.Schedule(c, r, now)
	if err != nil {
		t.Fatalf("Schedule(%s): %v", r, err)
	}
	return res
}

func assertPanics(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}

// --- NewEngine ---

func TestNewEngineDefaults(t *testing.T) {
	e := mustEngine(t, Config{})
	if e.desiredRetention != 0.9 {
		t.Errorf("desiredRetention = %v, want 0.9", e.desiredRetention)
	}
	if e.maximumInterval != 365 {
		t.Errorf("maximumInterval = %d, want 365", e.maximumInterval)
	}
	if len(e.learningSteps) != 2 || len(e.relearningSteps) != 1 {
		t.Errorf("steps = %v / %v, want default ladders", e.learningSteps, e.relearningSteps)
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	nan := DefaultConfig()
	nan.Parameters[3] = math.NaN()

	outOfBounds := DefaultConfig()
	outOfBounds.Parameters[4] = 11

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"NaN weight", nan, ErrInvalidParameters},
		{"weight out of bounds", outOfBounds, ErrInvalidParameters},
		{"retention above one", Config{DesiredRetention: 1}, ErrInvalidConfig},
		{"negative retention", Config{DesiredRetention: -0.1}, ErrInvalidConfig},
		{"negative maximum interval", Config{MaximumInterval: -1}, ErrInvalidConfig},
		{"zero step", Config{LearningSteps: []time.Duration{0}}, ErrInvalidConfig},
		{"step beyond maximum", Config{MaximumInterval: 1, RelearningSteps: []time.Duration{48 * time.Hour}}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewEngine error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewEngineCopiesSteps(t *testing.T) {
	steps := []time.Duration{time.Minute, 10 * time.Minute}
	cfg := noFuzzCfg()
	cfg.LearningSteps = steps
	e := mustEngine(t, cfg)

	steps[1] = time.Hour

	res := mustSchedule(t, e, newCard(), entities.RatingGood, t0)
	if res.Interval != 10*time.Minute {
		t.Errorf("Interval = %v, want 10m after mutating the caller's slice", res.Interval)
	}
}

// --- rating validation and loud failures ---

func TestScheduleInvalidRating(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	for _, r := range []entities.Rating{0, 5, -1} {
		_, err := e.Schedule(newCard(), r, t0)
		if !errors.Is(err, entities.ErrInvalidRating) {
			t.Errorf("Schedule(rating %d) error = %v, want ErrInvalidRating", int(r), err)
		}
	}
}

func TestScheduleMalformedStatePanics(t *testing.T) {
	e := mustEngine(t, DefaultConfig())

	bad := newCard()
	bad.State = entities.State(9)
	assertPanics(t, "malformed state", func() {
		_, _ = e.Schedule(bad, entities.RatingGood, t0)
	})

	nan := reviewCard(math.NaN(), 5, t0)
	assertPanics(t, "NaN stability", func() {
		_, _ = e.Schedule(nan, entities.RatingGood, t0.Add(3*day))
	})
}

func TestScheduleDoesNotMutateInput(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	c := reviewCard(10, 5, t0)
	last := *c.LastReview

	_ = mustSchedule(t, e, c, entities.RatingAgain, t0.Add(12*day))

	if c.State != entities.StateReview || c.Lapses != 0 || c.Stability != 10 {
		t.Errorf("input state mutated: %+v", c)
	}
	if !c.LastReview.Equal(last) {
		t.Errorf("input LastReview mutated: %v", c.LastReview)
	}
}

// --- concrete walkthrough ---

func TestScheduleScenarioNewGoodGoodAgain(t *testing.T) {
	e := mustEngine(t, DefaultConfig())

	// New → Good: first learning step done, 10 minutes to the next one.
	r1 := mustSchedule(t, e, newCard(), entities.RatingGood, t0)
	if r1.State.State != entities.StateLearning {
		t.Fatalf("after Good: State = %v, want Learning", r1.State.State)
	}
	if r1.State.LearningSteps != 1 {
		t.Errorf("after Good: LearningSteps = %d, want 1", r1.State.LearningSteps)
	}
	assertFloat(t, "Stability", r1.State.Stability, 2.4)
	assertFloat(t, "Difficulty", r1.State.Difficulty, 4.93)
	if want := t0.Add(10 * time.Minute); !r1.Due.Equal(want) {
		t.Errorf("after Good: Due = %v, want %v", r1.Due, want)
	}
	if r1.State.Reps != 0 || r1.State.Lapses != 0 {
		t.Errorf("after Good: reps/lapses = %d/%d, want 0/0", r1.State.Reps, r1.State.Lapses)
	}

	// Learning → Good: graduates with the Good seed stability, due in about S days.
	t1 := r1.Due
	r2 := mustSchedule(t, e, r1.State, entities.RatingGood, t1)
	if r2.State.State != entities.StateReview {
		t.Fatalf("after second Good: State = %v, want Review", r2.State.State)
	}
	assertFloat(t, "Stability", r2.State.Stability, DefaultParameters[2])
	if r2.Interval != 2*day {
		t.Errorf("after second Good: Interval = %v, want 48h", r2.Interval)
	}
	if r2.State.ScheduledDays != 2 {
		t.Errorf("ScheduledDays = %v, want 2", r2.State.ScheduledDays)
	}

	// Review → Again: lapse, relearning, short interval.
	t2 := r2.Due
	r3 := mustSchedule(t, e, r2.State, entities.RatingAgain, t2)
	if r3.State.State != entities.StateRelearning {
		t.Fatalf("after Again: State = %v, want Relearning", r3.State.State)
	}
	if r3.State.Lapses != 1 {
		t.Errorf("after Again: Lapses = %d, want 1", r3.State.Lapses)
	}
	if r3.Interval >= day {
		t.Errorf("after Again: Interval = %v, want < 24h", r3.Interval)
	}
	assertFloat(t, "Stability", r3.State.Stability, 1.155709)
	if r3.Log.State != entities.StateReview || r3.Log.Rating != entities.RatingAgain {
		t.Errorf("log = %+v, want Again from Review", r3.Log)
	}

	// Relearning → Good: back to Review.
	r4 := mustSchedule(t, e, r3.State, entities.RatingGood, r3.Due)
	if r4.State.State != entities.StateReview {
		t.Errorf("after relearning Good: State = %v, want Review", r4.State.State)
	}
	if r4.State.Lapses != 1 {
		t.Errorf("after relearning Good: Lapses = %d, want 1", r4.State.Lapses)
	}
}

// --- New state ---

func TestNewEasyGraduates(t *testing.T) {
	e := mustEngine(t, noFuzzCfg())
	res := mustSchedule(t, e, newCard(), entities.RatingEasy, t0)

	if res.State.State != entities.StateReview {
		t.Fatalf("State = %v, want Review", res.State.State)
	}
	// S₀(Easy) * easy bonus = 5.8 * 2.61
	assertFloat(t, "Stability", res.State.Stability, 15.138)
	if res.Interval != 15*day {
		t.Errorf("Interval = %v, want 15 days", res.Interval)
	}
}

func TestNewLearningSteps(t *testing.T) {
	e := mustEngine(t, noFuzzCfg())
	tests := []struct {
		rating entities.Rating
		want   time.Duration
		step   int
	}{
		{entities.RatingAgain, time.Minute, 0},
		{entities.RatingHard, 5*time.Minute + 30*time.Second, 0},
		{entities.RatingGood, 10 * time.Minute, 1},
	}
	for _, tt := range tests {
		t.Run(tt.rating.String(), func(t *testing.T) {
			res := mustSchedule(t, e, newCard(), tt.rating, t0)
			if res.State.State != entities.StateLearning {
				t.Errorf("State = %v, want Learning", res.State.State)
			}
			if res.Interval != tt.want {
				t.Errorf("Interval = %v, want %v", res.Interval, tt.want)
			}
			if res.State.LearningSteps != tt.step {
				t.Errorf("LearningSteps = %d, want %d", res.State.LearningSteps, tt.step)
			}
		})
	}
}

func TestSingleStepLadderHard(t *testing.T) {
	cfg := noFuzzCfg()
	cfg.LearningSteps = []time.Duration{10 * time.Minute}
	e := mustEngine(t, cfg)

	res := mustSchedule(t, e, newCard(), entities.RatingHard, t0)
	if res.Interval != 15*time.Minute {
		t.Errorf("Interval = %v, want 15m", res.Interval)
	}

	res = mustSchedule(t, e, newCard(), entities.RatingGood, t0)
	if res.State.State != entities.StateReview {
		t.Errorf("Good on a single-step ladder: State = %v, want Review", res.State.State)
	}
}

// --- Learning ladder ---

func TestLearningAgainResets(t *testing.T) {
	e := mustEngine(t, noFuzzCfg())
	r1 := mustSchedule(t, e, newCard(), entities.RatingGood, t0)
	r2 := mustSchedule(t, e, r1.State, entities.RatingAgain, r1.Due)

	if r2.State.State != entities.StateLearning {
		t.Errorf("State = %v, want Learning", r2.State.State)
	}
	if r2.State.LearningSteps != 0 {
		t.Errorf("LearningSteps = %d, want 0", r2.State.LearningSteps)
	}
	if r2.Interval != time.Minute {
		t.Errorf("Interval = %v, want 1m", r2.Interval)
	}
	if r2.State.Lapses != 0 {
		t.Errorf("Lapses = %d, want 0 outside Review", r2.State.Lapses)
	}
	if r2.State.Difficulty <= r1.State.Difficulty {
		t.Errorf("Difficulty %.4f should rise above %.4f after Again", r2.State.Difficulty, r1.State.Difficulty)
	}
	// Same-day ladder reviews leave stability alone.
	assertFloat(t, "Stability", r2.State.Stability, r1.State.Stability)
}

func TestLearningHardRepeatsStep(t *testing.T) {
	e := mustEngine(t, noFuzzCfg())
	r1 := mustSchedule(t, e, newCard(), entities.RatingGood, t0)
	r2 := mustSchedule(t, e, r1.State, entities.RatingHard, r1.Due)

	if r2.State.LearningSteps != 1 {
		t.Errorf("LearningSteps = %d, want 1", r2.State.LearningSteps)
	}
	if r2.Interval != 10*time.Minute {
		t.Errorf("Interval = %v, want 10m", r2.Interval)
	}
}

func TestLearningEasyGraduates(t *testing.T) {
	e := mustEngine(t, noFuzzCfg())
	r1 := mustSchedule(t, e, newCard(), entities.RatingAgain, t0)
	r2 := mustSchedule(t, e, r1.State, entities.RatingEasy, r1.Due)

	if r2.State.State != entities.StateReview {
		t.Errorf("State = %v, want Review", r2.State.State)
	}
	if r2.Interval < day {
		t.Errorf("Interval = %v, want at least a day", r2.Interval)
	}
}

func TestLearningCrossDayUpdatesStability(t *testing.T) {
	e := mustEngine(t, noFuzzCfg())
	r1 := mustSchedule(t, e, newCard(), entities.RatingGood, t0)
	r2 := mustSchedule(t, e, r1.State, entities.RatingGood, t0.Add(3*day))

	if r2.State.Stability <= r1.State.Stability {
		t.Errorf("Stability %.4f should grow above %.4f after a successful cross-day review",
			r2.State.Stability, r1.State.Stability)
	}
	if r2.State.ElapsedDays != 3 {
		t.Errorf("ElapsedDays = %v, want 3", r2.State.ElapsedDays)
	}
}

func TestShortTermDisabled(t *testing.T) {
	cfg := noFuzzCfg()
	cfg.EnableShortTerm = false
	e := mustEngine(t, cfg)

	good := mustSchedule(t, e, newCard(), entities.RatingGood, t0)
	if good.State.State != entities.StateReview || good.Interval != 2*day {
		t.Errorf("New Good = %v after %v, want Review after 48h", good.State.State, good.Interval)
	}

	again := mustSchedule(t, e, newCard(), entities.RatingAgain, t0)
	if again.State.State != entities.StateLearning || again.Interval != day {
		t.Errorf("New Again = %v after %v, want Learning after 24h", again.State.State, again.Interval)
	}

	lapse := mustSchedule(t, e, reviewCard(20, 5, t0), entities.RatingAgain, t0.Add(20*day))
	if lapse.State.State != entities.StateRelearning || lapse.Interval < day {
		t.Errorf("Review Again = %v after %v, want Relearning after at least 24h", lapse.State.State, lapse.Interval)
	}

	back := mustSchedule(t, e, lapse.State, entities.RatingGood, lapse.Due)
	if back.State.State != entities.StateReview {
		t.Errorf("Relearning Good = %v, want Review", back.State.State)
	}
}

// --- Review state ---

func TestReviewSuccessNeverDecreasesStability(t *testing.T) {
	e := mustEngine(t, noFuzzCfg())
	for _, s := range []float64{0.5, 2, 10, 100} {
		for _, d := range []float64{1, 5, 10} {
			for _, elapsed := range []int{0, 1, 10, 100} {
				c := reviewCard(s, d, t0)
				now := t0.Add(time.Duration(elapsed) * day)
				for _, r := range []entities.Rating{entities.RatingGood, entities.RatingEasy} {
					res := mustSchedule(t, e, c, r, now)
					if res.State.Stability < s {
						t.Errorf("S=%v D=%v t=%d %s: stability %v < %v", s, d, elapsed, r, res.State.Stability, s)
					}
					if res.State.Reps != c.Reps+1 {
						t.Errorf("Reps = %d, want %d", res.State.Reps, c.Reps+1)
					}
				}
			}
		}
	}
}

func TestReviewAgainLapses(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	c := reviewCard(30, 6, t0)
	c.Lapses = 2

	res := mustSchedule(t, e, c, entities.RatingAgain, t0.Add(25*day))
	if res.State.Lapses != 3 {
		t.Errorf("Lapses = %d, want 3", res.State.Lapses)
	}
	if res.State.Reps != c.Reps {
		t.Errorf("Reps = %d, want unchanged %d", res.State.Reps, c.Reps)
	}
	if res.State.State != entities.StateRelearning {
		t.Errorf("State = %v, want Relearning", res.State.State)
	}
	if res.State.Stability >= c.Stability {
		t.Errorf("Stability %.4f should shrink below %.4f", res.State.Stability, c.Stability)
	}
	if res.Interval != 10*time.Minute {
		t.Errorf("Interval = %v, want 10m", res.Interval)
	}
}

func TestReviewClockSkew(t *testing.T) {
	e := mustEngine(t, noFuzzCfg())
	c := reviewCard(10, 5, t0.Add(6*time.Hour))

	res := mustSchedule(t, e, c, entities.RatingGood, t0)
	if res.State.ElapsedDays != 0 {
		t.Errorf("ElapsedDays = %v, want 0", res.State.ElapsedDays)
	}
	if res.Interval < day {
		t.Errorf("Interval = %v, want at least a day", res.Interval)
	}
	if res.Due.Before(t0) {
		t.Errorf("Due %v is before now %v", res.Due, t0)
	}
}

func TestReviewIntervalCapped(t *testing.T) {
	cfg := noFuzzCfg()
	cfg.MaximumInterval = 30
	e := mustEngine(t, cfg)

	res := mustSchedule(t, e, reviewCard(200, 2, t0), entities.RatingEasy, t0.Add(200*day))
	if res.Interval != 30*day {
		t.Errorf("Interval = %v, want 30 days", res.Interval)
	}
}

// --- properties over random walks ---

func TestIntervalBoundedOverRandomWalk(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	rng := rand.New(rand.NewPCG(1, 2))
	maxIvl := e.MaximumInterval()

	for card := 0; card < 20; card++ {
		c := newCard()
		now := t0
		for i := 0; i < 200; i++ {
			r := entities.Ratings[rng.IntN(len(entities.Ratings))]
			res := mustSchedule(t, e, c, r, now)
			if res.Interval < 0 || res.Interval > maxIvl {
				t.Fatalf("card %d review %d: interval %v outside [0, %v]", card, i, res.Interval, maxIvl)
			}
			if !res.Due.Equal(now.Add(res.Interval)) {
				t.Fatalf("due %v != now + interval", res.Due)
			}
			if res.State.Difficulty < 1 || res.State.Difficulty > 10 {
				t.Fatalf("difficulty %v outside [1, 10]", res.State.Difficulty)
			}
			c = res.State
			// Review somewhere between early and late.
			now = now.Add(time.Duration(float64(res.Interval) * (0.5 + rng.Float64())))
		}
	}
}

func TestScheduleDeterministic(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	c := reviewCard(40, 5, t0)
	now := t0.Add(41 * day)

	a, _ := e.ScheduleSeeded(c, entities.RatingGood, now, 12345)
	b, _ := e.ScheduleSeeded(c, entities.RatingGood, now, 12345)
	if a.Due != b.Due || a.State.Stability != b.State.Stability || a.Interval != b.Interval {
		t.Errorf("same seed produced %v and %v", a.Due, b.Due)
	}

	x := mustSchedule(t, e, c, entities.RatingGood, now)
	y := mustSchedule(t, e, c, entities.RatingGood, now)
	if x.Due != y.Due {
		t.Errorf("Schedule not reproducible: %v vs %v", x.Due, y.Due)
	}
}

func TestFuzzSpreadsDueDates(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	c := reviewCard(40, 5, t0)
	now := t0.Add(41 * day)

	seen := map[time.Duration]bool{}
	for seed := uint64(0); seed < 200; seed++ {
		res, _ := e.ScheduleSeeded(c, entities.RatingGood, now, seed)
		seen[res.Interval] = true
	}
	if len(seen) < 2 {
		t.Errorf("fuzz produced a single interval over 200 seeds")
	}
}

// --- Preview / Reschedule / Retrievability ---

func TestPreviewOrdersDueDates(t *testing.T) {
	e := mustEngine(t, noFuzzCfg())
	preview := e.Preview(newCard(), t0)

	if len(preview) != 4 {
		t.Fatalf("len(preview) = %d, want 4", len(preview))
	}
	prev := time.Time{}
	for _, r := range entities.Ratings {
		due := preview[r].Due
		if due.Before(prev) {
			t.Errorf("%s due %v before the previous rating's %v", r, due, prev)
		}
		prev = due
	}
}

func TestReschedule(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	start := newCard()

	c := start
	now := t0
	var logs []entities.ReviewLog
	for _, r := range []entities.Rating{entities.RatingGood, entities.RatingGood, entities.RatingHard, entities.RatingAgain, entities.RatingGood} {
		res := mustSchedule(t, e, c, r, now)
		logs = append(logs, res.Log)
		c = res.State
		now = res.Due
	}

	replayed, err := e.Reschedule(start, logs)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !replayed.Due.Equal(c.Due) || replayed.State != c.State || replayed.Lapses != c.Lapses {
		t.Errorf("replayed = %v/%v/%d, want %v/%v/%d",
			replayed.State, replayed.Due, replayed.Lapses, c.State, c.Due, c.Lapses)
	}
	assertFloat(t, "Stability", replayed.Stability, c.Stability)

	logs[0].FlashcardID = uuid.New()
	if _, err := e.Reschedule(start, logs); err == nil {
		t.Error("Reschedule should reject logs for another flashcard")
	}
}

func TestEngineRetrievability(t *testing.T) {
	e := mustEngine(t, DefaultConfig())

	if r := e.Retrievability(newCard(), t0); r != 0 {
		t.Errorf("new card retrievability = %v, want 0", r)
	}

	c := reviewCard(10, 5, t0)
	assertFloat(t, "R at review", e.Retrievability(c, t0), 1)
	assertFloat(t, "R after S days", e.Retrievability(c, t0.Add(10*day)), 0.9)
	assertFloat(t, "R before review", e.Retrievability(c, t0.Add(-day)), 1)
}
