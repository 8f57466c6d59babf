// Package scoring normalizes heterogeneous specialist scores onto a 1-100
// integer scale and aggregates them into a weighted overall rating.
package scoring

import (
	"math"

	"github.com/spf13/cast"
)

// NeutralScore is substituted whenever a specialist is skipped, fails, or
// produces an unparseable score.
const NeutralScore = 50

const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// ToScore coerces any numeric-like value to an integer in [1,100].
// nil and non-numeric inputs map to the neutral 50. Never panics.
func ToScore(v any) int {
	if v == nil {
		return NeutralScore
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return NeutralScore
	}
	return ClampScore(int(math.Round(f)), 1, 100)
}

// ClampScore clamps score to [min, max].
func ClampScore(score, min, max int) int {
	if score < min {
		return min
	}
	if score > max {
		return max
	}
	return score
}

// NormalizeTo100 maps a value from [min, max] onto the 1-100 scale.
// A nil value or a degenerate range yields the neutral 50.
func NormalizeTo100(value *float64, min, max float64) int {
	if value == nil {
		return NeutralScore
	}
	v := math.Max(min, math.Min(max, *value))
	if max == min {
		return NeutralScore
	}
	normalized := (v - min) / (max - min) * 100
	return ClampScore(int(math.Round(normalized)), 1, 100)
}

// WeightedOverall computes the weighted average of scores over every key in
// weights. A key missing from scores contributes the neutral 50 at its full
// weight. Keys absent from weights do not count at all; this is intentional
// (weights define which specialists participate in the overall).
func WeightedOverall(scores map[string]int, weights map[string]float64) int {
	if len(scores) == 0 {
		return NeutralScore
	}

	totalScore := 0.0
	totalWeight := 0.0
	for key, weight := range weights {
		score, ok := scores[key]
		if !ok {
			score = NeutralScore
		}
		totalScore += float64(score) * weight
		totalWeight += weight
	}

	if totalWeight <= 0 {
		return NeutralScore
	}
	return ToScore(totalScore / totalWeight)
}

// Confidence labels the agreement across specialist scores using population
// standard deviation: <10 High, <20 Medium, otherwise Low. Fewer than two
// scores cannot establish agreement and report Low.
func Confidence(scores map[string]int) string {
	if len(scores) < 2 {
		return ConfidenceLow
	}

	mean := 0.0
	for _, s := range scores {
		mean += float64(s)
	}
	mean /= float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		d := float64(s) - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	stdDev := math.Sqrt(variance)

	switch {
	case stdDev < 10:
		return ConfidenceHigh
	case stdDev < 20:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
