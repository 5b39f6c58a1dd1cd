package srs

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for the srs package.
var (
	ErrInvalidParameters = errors.New("srs: parameters out of bounds")
	ErrInvalidConfig     = errors.New("srs: invalid config")
)

// Parameters are the 17 FSRS-4 model weights.
//
//	w[0..3]   initial stability per rating
//	w[4..7]   initial difficulty, difficulty delta, mean reversion
//	w[8..10]  recall stability growth
//	w[11..14] forget stability
//	w[15]     hard penalty
//	w[16]     easy bonus
type Parameters [17]float64

// DefaultParameters are the published FSRS-4 default weights.
var DefaultParameters = Parameters{
	0.4, 0.6, 2.4, 5.8,
	4.93, 0.94, 0.86, 0.01,
	1.49, 0.14, 0.94,
	2.18, 0.05, 0.34, 1.26,
	0.29,
	2.61,
}

// LowerBounds defines the minimum allowed value for each parameter.
var LowerBounds = Parameters{
	0.01, 0.01, 0.01, 0.01,
	1.0, 0.01, 0.01, 0.0,
	0.0, 0.0, 0.01,
	0.01, 0.001, 0.001, 0.0,
	0.01,
	1.0,
}

// UpperBounds defines the maximum allowed value for each parameter.
var UpperBounds = Parameters{
	100.0, 100.0, 100.0, 100.0,
	10.0, 5.0, 5.0, 0.75,
	4.5, 0.8, 3.5,
	5.0, 0.25, 0.9, 4.0,
	1.0,
	6.0,
}

// ValidateParameters checks that every weight is finite and within [LowerBounds, UpperBounds].
func ValidateParameters(p Parameters) error {
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < LowerBounds[i] || v > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidParameters, i, v, LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// Config configures an Engine. It is copied by NewEngine and never mutated afterwards.
type Config struct {
	Parameters       Parameters      // zero → DefaultParameters
	DesiredRetention float64         // zero → 0.9
	MaximumInterval  int             // days, zero → 365
	EnableFuzz       bool            // randomize long intervals
	EnableShortTerm  bool            // walk the sub-day step ladders
	LearningSteps    []time.Duration // nil → [1m, 10m]; empty → no ladder
	RelearningSteps  []time.Duration // nil → [10m]; empty → no ladder
}

// DefaultConfig returns the production scheduling configuration.
func DefaultConfig() Config {
	return Config{
		Parameters:       DefaultParameters,
		DesiredRetention: 0.9,
		MaximumInterval:  365,
		EnableFuzz:       true,
		EnableShortTerm:  true,
		LearningSteps:    []time.Duration{time.Minute, 10 * time.Minute},
		RelearningSteps:  []time.Duration{10 * time.Minute},
	}
}

// normalize fills zero values with defaults and validates the result.
func (c Config) normalize() (Config, error) {
	if c.Parameters == (Parameters{}) {
		c.Parameters = DefaultParameters
	}
	if err := ValidateParameters(c.Parameters); err != nil {
		return Config{}, err
	}

	if c.DesiredRetention == 0 {
		c.DesiredRetention = 0.9
	}
	if !(c.DesiredRetention > 0 && c.DesiredRetention < 1) {
		return Config{}, fmt.Errorf("%w: desired retention %f out of range (0, 1)", ErrInvalidConfig, c.DesiredRetention)
	}

	if c.MaximumInterval == 0 {
		c.MaximumInterval = 365
	}
	if c.MaximumInterval < 1 {
		return Config{}, fmt.Errorf("%w: maximum interval %d must be positive", ErrInvalidConfig, c.MaximumInterval)
	}

	if c.LearningSteps == nil {
		c.LearningSteps = []time.Duration{time.Minute, 10 * time.Minute}
	}
	if c.RelearningSteps == nil {
		c.RelearningSteps = []time.Duration{10 * time.Minute}
	}

	maxStep := time.Duration(c.MaximumInterval) * day
	for _, steps := range [][]time.Duration{c.LearningSteps, c.RelearningSteps} {
		for _, s := range steps {
			if s <= 0 || s > maxStep {
				return Config{}, fmt.Errorf("%w: step %s out of range (0, %s]", ErrInvalidConfig, s, maxStep)
			}
		}
	}

	c.LearningSteps = append([]time.Duration{}, c.LearningSteps...)
	c.RelearningSteps = append([]time.Duration{}, c.RelearningSteps...)

	return c, nil
}
