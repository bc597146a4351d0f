// Package indicator computes the per-bar indicator columns strategies derive
// their signals from. Every function returns a new slice of the input's
// length; bars without enough history hold NaN.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"github.com/thrasher-corp/gct-ta/indicators"
)

// ErrPeriod reports a non-positive or otherwise unusable window.
var ErrPeriod = errors.New("invalid indicator period")

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Ready reports whether v holds a computed value.
func Ready(v float64) bool {
	return !math.IsNaN(v)
}

// RollingMean is the trailing mean over window bars. Bars with fewer than
// minPeriods observations are NaN; with minPeriods = 1 the first bars
// average whatever history exists.
func RollingMean(values []float64, window, minPeriods int) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window %d", ErrPeriod, window)
	}
	if minPeriods <= 0 || minPeriods > window {
		return nil, fmt.Errorf("%w: min periods %d for window %d", ErrPeriod, minPeriods, window)
	}
	out := nans(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := min(i+1, window)
		if n >= minPeriods {
			out[i] = sum / float64(n)
		}
	}
	return out, nil
}

// Shift lags values by n bars, filling the head with NaN.
func Shift(values []float64, n int) []float64 {
	out := nans(len(values))
	for i := n; i < len(values); i++ {
		out[i] = values[i-n]
	}
	return out
}

// Sub returns a[i] - b[i].
func Sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// mask blanks the first lookback bars of a library output and aligns it to
// n bars. Library outputs that come back shorter are right-aligned.
func mask(values []float64, n, lookback int) []float64 {
	out := nans(n)
	offset := n - len(values)
	for i, v := range values {
		j := i + offset
		if j >= lookback && j < n {
			out[j] = v
		}
	}
	return out
}

// MACD returns the MACD line, its signal line and the histogram.
func MACD(values []float64, fast, slow, signal int) (line, sig, hist []float64, err error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return nil, nil, nil, fmt.Errorf("%w: macd %d/%d/%d", ErrPeriod, fast, slow, signal)
	}
	n := len(values)
	lookback := slow + signal - 2
	if n <= lookback {
		return nans(n), nans(n), nans(n), nil
	}
	m, s, h := indicators.MACD(values, fast, slow, signal)
	return mask(m, n, lookback), mask(s, n, lookback), mask(h, n, lookback), nil
}

// Bollinger returns the upper, middle and lower bands of a simple moving
// average with dev standard deviations on each side.
func Bollinger(values []float64, period int, dev float64) (upper, middle, lower []float64, err error) {
	if period <= 1 {
		return nil, nil, nil, fmt.Errorf("%w: bollinger period %d", ErrPeriod, period)
	}
	if dev <= 0 || math.IsNaN(dev) {
		return nil, nil, nil, fmt.Errorf("%w: bollinger deviation %v", ErrPeriod, dev)
	}
	n := len(values)
	if n < period {
		return nans(n), nans(n), nans(n), nil
	}
	u, m, l := indicators.BBANDS(values, period, dev, dev, indicators.Sma)
	return mask(u, n, period-1), mask(m, n, period-1), mask(l, n, period-1), nil
}
