package entities

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseRating(t *testing.T) {
	for v := 1; v <= 4; v++ {
		r, err := ParseRating(v)
		if err != nil || int(r) != v {
			t.Errorf("ParseRating(%d) = %v, %v", v, r, err)
		}
	}
	for _, v := range []int{0, 5, -3} {
		if _, err := ParseRating(v); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("ParseRating(%d) error = %v, want ErrInvalidRating", v, err)
		}
	}
}

func TestRatingText(t *testing.T) {
	b, err := json.Marshal(map[string]Rating{"r": RatingHard})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"r":"Hard"}` {
		t.Errorf("json = %s", b)
	}

	var r Rating
	if err := r.UnmarshalText([]byte("Easy")); err != nil || r != RatingEasy {
		t.Errorf("UnmarshalText(Easy) = %v, %v", r, err)
	}
	if err := r.UnmarshalText([]byte("easy")); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("UnmarshalText(easy) error = %v, want ErrInvalidRating", err)
	}
	if got := Rating(9).String(); got != "Rating(9)" {
		t.Errorf("String() = %q", got)
	}
}

func TestStateFromCode(t *testing.T) {
	for code := int16(0); code <= 3; code++ {
		s, err := StateFromCode(code)
		if err != nil || s.Code() != code {
			t.Errorf("StateFromCode(%d) = %v, %v", code, s, err)
		}
	}
	if _, err := StateFromCode(4); !errors.Is(err, ErrInvalidState) {
		t.Errorf("StateFromCode(4) error = %v, want ErrInvalidState", err)
	}

	var s State
	if err := s.UnmarshalText([]byte("Relearning")); err != nil || s != StateRelearning {
		t.Errorf("UnmarshalText(Relearning) = %v, %v", s, err)
	}
}

func TestNewReviewStateIsDueImmediately(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s := NewReviewState(uuid.New(), uuid.New(), uuid.New(), now)

	if s.State != StateNew || s.Version != 0 || s.LastReview != nil {
		t.Errorf("new state = %+v", s)
	}
	if !s.IsDue(now) {
		t.Error("new state is not due at creation time")
	}
	if s.IsDue(now.Add(-time.Second)) {
		t.Error("new state is due before creation time")
	}
}

func TestIsMastered(t *testing.T) {
	cases := map[State]bool{
		StateNew:        false,
		StateLearning:   false,
		StateReview:     true,
		StateRelearning: true,
	}
	for state, want := range cases {
		s := ReviewState{State: state}
		if got := s.IsMastered(); got != want {
			t.Errorf("%v.IsMastered() = %v, want %v", state, got, want)
		}
	}
}
