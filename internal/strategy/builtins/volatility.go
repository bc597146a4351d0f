package builtins

import (
	"fmt"

	"coinbt/internal/domain"
	"coinbt/internal/strategy"
	"coinbt/internal/strategy/indicator"
)

// Compile-time interface check.
var _ strategy.Generator = Volatility{}

// Volatility is the volatility breakout: long on a bar whose close reaches
// open + K * (previous high - previous low). CheckMA additionally requires
// the close above its Window-bar mean; CheckVolume requires the previous
// bar's volume above the Window-bar volume mean.
type Volatility struct{}

// Name returns "volatility".
func (Volatility) Name() string { return "volatility" }

// Generate computes the breakout signal.
func (Volatility) Generate(s strategy.Series, p strategy.Params) ([]float64, error) {
	if p.K <= 0 {
		return nil, fmt.Errorf("volatility: k must be positive, got %v", p.K)
	}
	window := p.Window
	if window <= 0 {
		window = 5
	}

	candles := s.Candles
	n := len(candles)
	c := domain.Closes(candles)
	high := make([]float64, n)
	low := make([]float64, n)
	for i, cd := range candles {
		high[i], low[i] = cd.High, cd.Low
	}
	rng := indicator.Sub(indicator.Shift(high, 1), indicator.Shift(low, 1))

	var closeMA, volMA, prevVol []float64
	var err error
	if p.CheckMA {
		if closeMA, err = indicator.RollingMean(c, window, 1); err != nil {
			return nil, err
		}
	}
	if p.CheckVolume {
		vol := domain.Volumes(candles)
		if volMA, err = indicator.RollingMean(vol, window, 1); err != nil {
			return nil, err
		}
		prevVol = indicator.Shift(vol, 1)
	}

	out := make([]float64, n)
	for i := range candles {
		if !indicator.Ready(rng[i]) {
			continue
		}
		target := candles[i].Open + rng[i]*p.K
		ok := c[i] >= target
		if ok && p.CheckMA {
			ok = c[i] > closeMA[i]
		}
		if ok && p.CheckVolume {
			ok = indicator.Ready(prevVol[i]) && prevVol[i] > volMA[i]
		}
		out[i] = boolSignal(ok)
	}
	return out, nil
}
