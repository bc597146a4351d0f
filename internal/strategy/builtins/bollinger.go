package builtins

import (
	"coinbt/internal/strategy"
	"coinbt/internal/strategy/indicator"
)

// Compile-time interface check.
var _ strategy.Generator = Bollinger{}

// Bollinger is a band reversion strategy over a Window-bar mean with K
// standard deviations. It enters when the close climbs back above the lower
// band and exits when the close falls back below the upper band.
type Bollinger struct{}

// Name returns "bollinger".
func (Bollinger) Name() string { return "bollinger" }

// Generate walks the bands keeping the in-position state.
func (Bollinger) Generate(s strategy.Series, p strategy.Params) ([]float64, error) {
	c := closes(s)
	upper, _, lower, err := indicator.Bollinger(c, p.Window, p.K)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(c))
	in := false
	for i := 1; i < len(c); i++ {
		if indicator.Ready(lower[i-1]) {
			switch {
			case !in && c[i] > lower[i] && c[i-1] <= lower[i-1]:
				in = true
			case in && c[i] < upper[i] && c[i-1] >= upper[i-1]:
				in = false
			}
		}
		out[i] = boolSignal(in)
	}
	return out, nil
}
