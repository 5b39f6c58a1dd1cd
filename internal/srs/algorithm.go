package srs

import (
	"math"

	"github.com/atharva0712/revision-app/internal/domain/entities"
)

const (
	// decay and factor fix the forgetting curve to R(t, S) = (1 + t/(9S))^-1.
	decay  = -1.0
	factor = 1.0 / 9.0

	minStability  = 0.01
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// algo evaluates the FSRS-4 formulas for a fixed set of weights.
type algo struct {
	w Parameters
}

// retrievability computes R(t, S) = (1 + FACTOR * t / S) ^ DECAY.
func (a algo) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+factor*elapsedDays/stability, decay)
}

// initStability returns S₀(G) = w[G-1].
func (a algo) initStability(r entities.Rating) float64 {
	return clampS(a.w[r-1])
}

// initDifficulty returns D₀(G) = w[4] - (G - 3) * w[5], clamped to [1, 10].
func (a algo) initDifficulty(r entities.Rating) float64 {
	return clampD(a.w[4] - (float64(r)-3)*a.w[5])
}

// nextDifficulty computes the updated difficulty after a review.
// D'  = D - w[6] * (G - 3)
// D'' = w[7] * D₀(Good) + (1 - w[7]) * D'
func (a algo) nextDifficulty(d float64, r entities.Rating) float64 {
	next := d - a.w[6]*(float64(r)-3)
	return clampD(a.w[7]*a.initDifficulty(entities.RatingGood) + (1-a.w[7])*next)
}

// nextRecallStability computes stability after a successful recall (Hard/Good/Easy).
// S'_r = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1) * hardPenalty * easyBonus)
func (a algo) nextRecallStability(d, s, r float64, rating entities.Rating) float64 {
	hardPenalty := 1.0
	if rating == entities.RatingHard {
		hardPenalty = a.w[15]
	}
	easyBonus := 1.0
	if rating == entities.RatingEasy {
		easyBonus = a.w[16]
	}
	return clampS(s * (1 + math.Exp(a.w[8])*
		(11-d)*
		math.Pow(s, -a.w[9])*
		(math.Exp((1-r)*a.w[10])-1)*
		hardPenalty*easyBonus))
}

// nextForgetStability computes stability after forgetting (Again).
// S'_f = min(S, w[11] * D^(-w[12]) * ((S+1)^w[13] - 1) * e^((1-R)*w[14]))
func (a algo) nextForgetStability(d, s, r float64) float64 {
	forget := a.w[11] *
		math.Pow(d, -a.w[12]) *
		(math.Pow(s+1, a.w[13]) - 1) *
		math.Exp((1-r)*a.w[14])
	return clampS(math.Min(forget, s))
}

// nextInterval solves R(I, S) = desiredRetention for I in whole days,
// clamped to [1, maxIvl].
func (a algo) nextInterval(stability, desiredRetention float64, maxIvl int) int {
	ivl := stability / factor * (math.Pow(desiredRetention, 1.0/decay) - 1)
	rounded := int(math.Round(ivl))
	return min(max(rounded, 1), maxIvl)
}

func clampS(s float64) float64 {
	return math.Max(s, minStability)
}

func clampD(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}
