package engine

import (
	"fmt"
	"math"
)

// Metrics is the scalar summary of one ledger.
type Metrics struct {
	CumulativeReturnPct float64
	WinRatePct          float64
	MaxDrawdownPct      float64
	ClosingTrades       int
}

// CumulativeReturnPct returns (final total / initialCapital - 1) * 100. The
// final total is marked to market; an open position is not liquidated.
func CumulativeReturnPct(l *Ledger, initialCapital float64) (float64, error) {
	if l.Len() == 0 {
		return 0, fmt.Errorf("%w: empty ledger", ErrMalformedSeries)
	}
	if !isFinite(initialCapital) || initialCapital <= 0 {
		return 0, fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidParameter, initialCapital)
	}
	return (l.Last().Total/initialCapital - 1) * 100, nil
}

// MaxDrawdownPct returns the deepest decline of total equity from its
// running peak, as a percentage. The result is always <= 0.
func MaxDrawdownPct(l *Ledger) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for i := 0; i < l.Len(); i++ {
		total := l.Entries[i].Total
		if total > peak {
			peak = total
		}
		if peak <= 0 {
			continue
		}
		if dd := total/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst * 100
}

// closingBars returns the indexes of bars carrying a closing transition.
func closingBars(l *Ledger) []int {
	var out []int
	for i := 1; i < l.Len(); i++ {
		if l.Entries[i].Position < 0 {
			out = append(out, i)
		}
	}
	return out
}

// WinRatePct returns the share of closing bars whose equity rose against the
// previous bar. Unrealized gains of a position still open at the end are
// not counted. With no closing bar the result is 0.
func WinRatePct(l *Ledger) float64 {
	closes := closingBars(l)
	if len(closes) == 0 {
		return 0
	}
	wins := 0
	for _, i := range closes {
		if l.Entries[i].Total-l.Entries[i-1].Total > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(closes)) * 100
}

// Evaluate computes all metrics of a ledger.
func Evaluate(l *Ledger, initialCapital float64) (Metrics, error) {
	ret, err := CumulativeReturnPct(l, initialCapital)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		CumulativeReturnPct: ret,
		WinRatePct:          WinRatePct(l),
		MaxDrawdownPct:      MaxDrawdownPct(l),
		ClosingTrades:       len(closingBars(l)),
	}, nil
}
