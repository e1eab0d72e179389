// Package scoring computes the anonymous engagement score used to rank the
// public feed. The score is derived data: it is a pure function of a post's
// counters and timestamps at the moment of evaluation.
package scoring

import (
	"math"
	"time"
)

const msPerDay = 86_400_000

// Counters are the engagement inputs of the score. All are non-negative.
type Counters struct {
	Views         int64
	CompleteReads int64
	Shares        int64
	Likes         int64
	Dislikes      int64
}

// Weights are the tunable constants of the formula.
type Weights struct {
	Views         float64
	CompleteReads float64
	Shares        float64
	Likes         float64
	Dislikes      float64
	RandomBoost   float64
	Decay         float64
}

var DefaultWeights = Weights{
	Views:         0.5,
	CompleteReads: 2.5,
	Shares:        4,
	Likes:         2,
	Dislikes:      1.5,
	RandomBoost:   1,
	Decay:         1.37,
}

// Numerator is the weighted engagement sum before decay.
func (w Weights) Numerator(c Counters) float64 {
	return float64(c.Views)*w.Views +
		float64(c.CompleteReads)*w.CompleteReads +
		float64(c.Shares)*w.Shares +
		float64(c.Likes)*w.Likes +
		w.RandomBoost -
		float64(c.Dislikes)*w.Dislikes
}

// Score evaluates the decayed score at now. The result may be negative.
func (w Weights) Score(c Counters, createdAt, modifiedAt, now time.Time) float64 {
	if modifiedAt.IsZero() {
		modifiedAt = createdAt
	}
	age := (DaysSince(createdAt, now) + DaysSince(modifiedAt, now)) / 2
	return w.Numerator(c) / math.Pow(age+2, w.Decay)
}

// Compute evaluates the score with DefaultWeights.
func Compute(c Counters, createdAt, modifiedAt, now time.Time) float64 {
	return DefaultWeights.Score(c, createdAt, modifiedAt, now)
}

// DaysSince returns fractional days between t and now, clamped at zero
// for timestamps in the future.
func DaysSince(t, now time.Time) float64 {
	ms := now.Sub(t).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return float64(ms) / msPerDay
}
