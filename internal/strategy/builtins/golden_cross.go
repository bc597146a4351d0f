package builtins

import (
	"fmt"

	"coinbt/internal/strategy"
	"coinbt/internal/strategy/indicator"
)

// Compile-time interface check.
var _ strategy.Generator = GoldenCross{}

// GoldenCross implements the golden/dead cross of two simple moving
// averages. It is long while the short-window mean is above the long-window
// mean, which turns on at a golden cross and off at a dead cross. The first
// ShortWindow bars are forced flat.
type GoldenCross struct{}

// Name returns "golden_cross".
func (GoldenCross) Name() string { return "golden_cross" }

// Generate computes the crossover state per bar.
func (GoldenCross) Generate(s strategy.Series, p strategy.Params) ([]float64, error) {
	if p.ShortWindow <= 0 || p.LongWindow <= 0 {
		return nil, fmt.Errorf("golden_cross: windows must be positive, got %d/%d", p.ShortWindow, p.LongWindow)
	}
	if p.ShortWindow >= p.LongWindow {
		return nil, fmt.Errorf("golden_cross: short window %d must be below long window %d", p.ShortWindow, p.LongWindow)
	}

	c := closes(s)
	short, err := indicator.RollingMean(c, p.ShortWindow, 1)
	if err != nil {
		return nil, err
	}
	long, err := indicator.RollingMean(c, p.LongWindow, 1)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(c))
	for i := p.ShortWindow; i < len(c); i++ {
		out[i] = boolSignal(short[i] > long[i])
	}
	return out, nil
}
