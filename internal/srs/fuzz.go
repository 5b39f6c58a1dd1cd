package srs

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/atharva0712/revision-app/internal/domain/entities"
)

// fuzzStream separates the two PCG state words derived from one seed.
const fuzzStream = 0x9e3779b97f4a7c15

type fuzzEntry struct {
	start, end float64
	factor     float64
}

var fuzzRanges = []fuzzEntry{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// FuzzSeed derives the per-review fuzz seed from the review time and the memory
// being reviewed, so the same review always lands on the same day.
func FuzzSeed(state entities.ReviewState, now time.Time) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range []uint64{
		uint64(now.UnixNano()),
		uint64(state.Reps),
		math.Float64bits(state.Difficulty * state.Stability),
	} {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func newFuzzRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^fuzzStream))
}

// fuzzDelta computes the fuzz range delta for a given interval.
// delta = 1.0 + Σ(factor * max(min(interval, end) - start, 0))
func fuzzDelta(interval float64) float64 {
	delta := 1.0
	for _, r := range fuzzRanges {
		delta += r.factor * math.Max(math.Min(interval, r.end)-r.start, 0)
	}
	return delta
}

// applyFuzz spreads the interval uniformly over [ivl-delta, ivl+delta].
// Intervals shorter than 2.5 days are returned unchanged.
func applyFuzz(interval, maxIvl int, rng *rand.Rand) int {
	if float64(interval) < 2.5 {
		return interval
	}

	ivl := float64(interval)
	delta := fuzzDelta(ivl)

	minIvl := max(2, int(math.Round(ivl-delta)))
	maxFuzzIvl := min(int(math.Round(ivl+delta)), maxIvl)
	minIvl = min(minIvl, maxFuzzIvl)

	fuzzed := minIvl + rng.IntN(maxFuzzIvl-minIvl+1)
	return min(fuzzed, maxIvl)
}
