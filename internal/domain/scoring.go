package domain

import "math"

// QuestionTime is the fixed per-question time budget in seconds.
const QuestionTime = 10

// ScoreFor maps a player's self-reported elapsed time to points for a
// correct answer: the faster the answer, the more points, with a floor
// of one point no matter how late. Monotonically non-increasing in
// timeTaken and never negative.
func ScoreFor(timeTaken float64) int {
	rough := math.Round(QuestionTime - timeTaken)
	return int(math.Max(1, rough))
}
