package builtins

import (
	"coinbt/internal/strategy"
	"coinbt/internal/strategy/indicator"
)

// Compile-time interface check.
var _ strategy.Generator = MACDCross{}

// MACDCross is long while the MACD line is above its signal line. Periods
// come from ShortWindow (fast), LongWindow (slow) and SignalWindow.
type MACDCross struct{}

// Name returns "macd".
func (MACDCross) Name() string { return "macd" }

// Generate computes the MACD state per bar; warm-up bars are flat.
func (MACDCross) Generate(s strategy.Series, p strategy.Params) ([]float64, error) {
	line, sig, _, err := indicator.MACD(closes(s), p.ShortWindow, p.LongWindow, p.SignalWindow)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(line))
	for i := range line {
		if indicator.Ready(line[i]) && indicator.Ready(sig[i]) {
			out[i] = boolSignal(line[i] > sig[i])
		}
	}
	return out, nil
}
