package indicator

import (
	"errors"
	"math"
	"testing"
)

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRollingMeanMinPeriods(t *testing.T) {
	got, err := RollingMean([]float64{1, 2, 3, 4, 5}, 3, 1)
	if err != nil {
		t.Fatalf("RollingMean: %v", err)
	}
	want := []float64{1, 1.5, 2, 3, 4}
	for i := range want {
		if !closeTo(got[i], want[i]) {
			t.Errorf("RollingMean[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRollingMeanFullWindow(t *testing.T) {
	got, err := RollingMean([]float64{2, 4, 6, 8}, 2, 2)
	if err != nil {
		t.Fatalf("RollingMean: %v", err)
	}
	if Ready(got[0]) {
		t.Errorf("RollingMean[0] = %v, want NaN", got[0])
	}
	if !closeTo(got[1], 3) || !closeTo(got[3], 7) {
		t.Errorf("RollingMean = %v, want [NaN 3 5 7]", got)
	}
}

func TestRollingMeanErrors(t *testing.T) {
	if _, err := RollingMean([]float64{1}, 0, 1); !errors.Is(err, ErrPeriod) {
		t.Errorf("window 0 err = %v, want ErrPeriod", err)
	}
	if _, err := RollingMean([]float64{1}, 3, 4); !errors.Is(err, ErrPeriod) {
		t.Errorf("min periods > window err = %v, want ErrPeriod", err)
	}
}

func TestShiftAndSub(t *testing.T) {
	s := Shift([]float64{1, 2, 3}, 1)
	if Ready(s[0]) || s[1] != 1 || s[2] != 2 {
		t.Errorf("Shift = %v, want [NaN 1 2]", s)
	}
	d := Sub([]float64{5, 7}, []float64{1, 2})
	if d[0] != 4 || d[1] != 5 {
		t.Errorf("Sub = %v, want [4 5]", d)
	}
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestMACDConstant(t *testing.T) {
	line, sig, hist, err := MACD(flat(60, 100), 12, 26, 9)
	if err != nil {
		t.Fatalf("MACD: %v", err)
	}
	if len(line) != 60 || len(sig) != 60 || len(hist) != 60 {
		t.Fatalf("lengths = %d/%d/%d, want 60", len(line), len(sig), len(hist))
	}
	if Ready(line[32]) {
		t.Errorf("line[32] = %v, want NaN during warm-up", line[32])
	}
	for i := 33; i < 60; i++ {
		if !closeTo(line[i], 0) || !closeTo(sig[i], 0) || !closeTo(hist[i], 0) {
			t.Errorf("bar %d macd/signal/hist = %v/%v/%v, want 0", i, line[i], sig[i], hist[i])
		}
	}

	if _, _, _, err := MACD(flat(60, 1), 26, 12, 9); !errors.Is(err, ErrPeriod) {
		t.Errorf("fast >= slow err = %v, want ErrPeriod", err)
	}
}

func TestBollingerConstant(t *testing.T) {
	u, m, l, err := Bollinger(flat(25, 10), 20, 2)
	if err != nil {
		t.Fatalf("Bollinger: %v", err)
	}
	if Ready(m[18]) {
		t.Errorf("middle[18] = %v, want NaN", m[18])
	}
	for i := 19; i < 25; i++ {
		if !closeTo(u[i], 10) || !closeTo(m[i], 10) || !closeTo(l[i], 10) {
			t.Errorf("bar %d bands = %v/%v/%v, want 10", i, u[i], m[i], l[i])
		}
	}
}
