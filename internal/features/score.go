package features

import "math"

const (
	maxScore          = 100.0
	minScore          = 0.0
	pointsPerPosition = 5.0
	fastestLapBonus   = 5.0
	fastestLapFirst   = "1"
)

// StrengthScore converts a finishing position and fastest-lap rank into a
// score in [0,100]. A NaN position yields NaN.
func StrengthScore(position float64, lapRank string) float64 {
	if math.IsNaN(position) {
		return math.NaN()
	}
	score := maxScore - (position-1)*pointsPerPosition
	if lapRank == fastestLapFirst {
		score += fastestLapBonus
	}
	return Clamp(score)
}

// Clamp bounds v to the score range
func Clamp(v float64) float64 {
	return math.Max(minScore, math.Min(maxScore, v))
}
