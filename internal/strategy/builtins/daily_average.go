package builtins

import (
	"fmt"

	"coinbt/internal/strategy"
	"coinbt/internal/strategy/indicator"
)

// Compile-time interface check.
var _ strategy.Generator = DailyAverage{}

// DailyAverage is long while the close is above its trailing mean over
// Window bars. The mean averages whatever history exists for the first
// bars, so bar 0 (close equal to its own mean) is always flat.
type DailyAverage struct{}

// Name returns "daily_average".
func (DailyAverage) Name() string { return "daily_average" }

// ReportsHold marks this strategy's live signals as carrying a hold state.
func (DailyAverage) ReportsHold() bool { return true }

// Generate computes close > mean(close, Window).
func (DailyAverage) Generate(s strategy.Series, p strategy.Params) ([]float64, error) {
	if p.Window <= 0 {
		return nil, fmt.Errorf("daily_average: window must be positive, got %d", p.Window)
	}
	c := closes(s)
	ma, err := indicator.RollingMean(c, p.Window, 1)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(c))
	for i := range c {
		out[i] = boolSignal(c[i] > ma[i])
	}
	return out, nil
}
