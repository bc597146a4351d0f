package builtins

import (
	"fmt"

	"coinbt/internal/strategy"
	"coinbt/internal/strategy/indicator"
)

// MAScoreWindows are the trailing mean windows scored by the ma_score
// strategy.
var MAScoreWindows = []int{5, 20, 60, 120, 200}

// Compile-time interface check.
var _ strategy.Generator = MAScore{}

// MAScore is a weighted strategy: the position target is the share of
// Windows whose trailing mean the close is above. With five windows each
// one contributes 0.2. Means use whatever history exists, like
// DailyAverage.
type MAScore struct {
	Windows []int
}

// Name returns "ma_score".
func (MAScore) Name() string { return "ma_score" }

// Generate scores every bar against each window's mean.
func (m MAScore) Generate(s strategy.Series, _ strategy.Params) ([]float64, error) {
	if len(m.Windows) == 0 {
		return nil, fmt.Errorf("ma_score: no windows")
	}
	c := closes(s)
	above := make([]int, len(c))
	for _, w := range m.Windows {
		ma, err := indicator.RollingMean(c, w, 1)
		if err != nil {
			return nil, fmt.Errorf("ma_score: window %d: %w", w, err)
		}
		for i := range c {
			if c[i] > ma[i] {
				above[i]++
			}
		}
	}
	out := make([]float64, len(c))
	for i, n := range above {
		out[i] = float64(n) / float64(len(m.Windows))
	}
	return out, nil
}
