package engine

import (
	"errors"
	"testing"
)

func fixture(totals []float64, positions []float64) *Ledger {
	l := &Ledger{Entries: make([]Entry, len(totals))}
	for i := range totals {
		l.Entries[i] = Entry{Cash: totals[i], Total: totals[i], Position: positions[i]}
	}
	return l
}

func TestMaxDrawdownRunningPeak(t *testing.T) {
	// Trough at 80 after a peak of 100 recovers to 150; the recovery must not
	// hide the earlier trough.
	l := fixture([]float64{100, 80, 150, 140}, make([]float64, 4))
	if got := MaxDrawdownPct(l); !closeTo(got, -20) {
		t.Errorf("MaxDrawdownPct = %v, want -20", got)
	}
}

func TestMaxDrawdownMonotone(t *testing.T) {
	l := fixture([]float64{100, 100, 101, 130, 130}, make([]float64, 5))
	if got := MaxDrawdownPct(l); got != 0 {
		t.Errorf("MaxDrawdownPct = %v, want 0", got)
	}
}

func TestWinRateFromFixture(t *testing.T) {
	l := fixture(
		[]float64{100, 100, 120, 110, 105, 130},
		[]float64{0, 1, -1, 1, -1, 0},
	)
	// Closing bars 2 (+20) and 4 (-5).
	if got := WinRatePct(l); !closeTo(got, 50) {
		t.Errorf("WinRatePct = %v, want 50", got)
	}
}

func TestEvaluatorIdempotent(t *testing.T) {
	l := fixture([]float64{100, 90, 120, 60}, []float64{0, 1, -1, 0})
	m1, err := Evaluate(l, 100)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	m2, _ := Evaluate(l, 100)
	if m1 != m2 {
		t.Errorf("Evaluate not idempotent: %+v vs %+v", m1, m2)
	}
	if !closeTo(m1.CumulativeReturnPct, -40) {
		t.Errorf("CumulativeReturnPct = %v, want -40", m1.CumulativeReturnPct)
	}
	if !closeTo(m1.MaxDrawdownPct, -50) {
		t.Errorf("MaxDrawdownPct = %v, want -50", m1.MaxDrawdownPct)
	}
	if m1.WinRatePct != 100 || m1.ClosingTrades != 1 {
		t.Errorf("WinRatePct/ClosingTrades = %v/%d, want 100/1", m1.WinRatePct, m1.ClosingTrades)
	}
}

func TestCumulativeReturnErrors(t *testing.T) {
	if _, err := CumulativeReturnPct(&Ledger{}, 100); !errors.Is(err, ErrMalformedSeries) {
		t.Errorf("empty ledger err = %v, want ErrMalformedSeries", err)
	}
	if _, err := CumulativeReturnPct(nil, 100); !errors.Is(err, ErrMalformedSeries) {
		t.Errorf("nil ledger err = %v, want ErrMalformedSeries", err)
	}
	l := fixture([]float64{100}, []float64{0})
	if _, err := CumulativeReturnPct(l, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero capital err = %v, want ErrInvalidParameter", err)
	}
	if got := WinRatePct(nil); got != 0 {
		t.Errorf("WinRatePct(nil) = %v, want 0", got)
	}
}
