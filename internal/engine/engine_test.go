package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"coinbt/internal/domain"
)

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func series(closes ...float64) []domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{
			Symbol:    "KRW-BTC",
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		}
	}
	return out
}

func TestSimulateBuyThenSell(t *testing.T) {
	l, err := Simulate(series(100, 100, 110, 120, 100), []float64{0, 1, 1, 1, 0}, DefaultOptions(1000))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if l.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", l.Len())
	}

	e1 := l.Entries[1]
	if !closeTo(e1.Quantity, 10) || !closeTo(e1.Cash, 0) {
		t.Errorf("bar 1 qty/cash = %v/%v, want 10/0", e1.Quantity, e1.Cash)
	}
	wantTotals := []float64{1000, 1000, 1100, 1200, 1000}
	for i, want := range wantTotals {
		if got := l.Entries[i].Total; !closeTo(got, want) {
			t.Errorf("bar %d total = %v, want %v", i, got, want)
		}
	}
	last := l.Last()
	if !closeTo(last.Cash, 1000) || last.Quantity != 0 {
		t.Errorf("last cash/qty = %v/%v, want 1000/0", last.Cash, last.Quantity)
	}

	ret, err := CumulativeReturnPct(l, 1000)
	if err != nil {
		t.Fatalf("CumulativeReturnPct: %v", err)
	}
	if !closeTo(ret, 0) {
		t.Errorf("CumulativeReturnPct = %v, want 0", ret)
	}
	if mdd := MaxDrawdownPct(l); !closeTo(mdd, (1000.0/1200.0-1)*100) {
		t.Errorf("MaxDrawdownPct = %v, want %v", mdd, (1000.0/1200.0-1)*100)
	}
	if wr := WinRatePct(l); wr != 0 {
		t.Errorf("WinRatePct = %v, want 0", wr)
	}

	if len(l.Trades) != 1 {
		t.Fatalf("len(Trades) = %d, want 1", len(l.Trades))
	}
	tr := l.Trades[0]
	if !closeTo(tr.EntryPrice, 100) || !closeTo(tr.ExitPrice, 100) || !closeTo(tr.PnL, 0) {
		t.Errorf("trade = %+v, want entry 100 exit 100 pnl 0", tr)
	}
	if tr.ExitBar != 4 {
		t.Errorf("trade.ExitBar = %d, want 4", tr.ExitBar)
	}
}

func TestSimulateNeverBuy(t *testing.T) {
	l, err := Simulate(series(100, 90, 130, 70), []float64{0, 0, 0, 0}, DefaultOptions(500))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for i, e := range l.Entries {
		if e.Total != 500 {
			t.Errorf("bar %d total = %v, want 500", i, e.Total)
		}
	}
	m, err := Evaluate(l, 500)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.CumulativeReturnPct != 0 || m.MaxDrawdownPct != 0 || m.WinRatePct != 0 {
		t.Errorf("Evaluate = %+v, want all zero", m)
	}
	if m.ClosingTrades != 0 {
		t.Errorf("ClosingTrades = %d, want 0", m.ClosingTrades)
	}
}

func TestSimulateOpenAtEnd(t *testing.T) {
	l, err := Simulate(series(100, 110, 130), []float64{0, 1, 1}, DefaultOptions(1000))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	qty := 1000.0 / 110.0
	if got := l.Last().Quantity; !closeTo(got, qty) {
		t.Errorf("final qty = %v, want %v", got, qty)
	}
	ret, _ := CumulativeReturnPct(l, 1000)
	if math.Abs(ret-18.1818) > 0.001 {
		t.Errorf("CumulativeReturnPct = %v, want ~18.18", ret)
	}
	if wr := WinRatePct(l); wr != 0 {
		t.Errorf("WinRatePct = %v, want 0 for an unrealized gain", wr)
	}
	if len(l.Trades) != 0 {
		t.Errorf("len(Trades) = %d, want 0", len(l.Trades))
	}
}

func TestFirstBarNoOp(t *testing.T) {
	l, err := Simulate(series(100, 120, 90), []float64{1, 1, 1}, DefaultOptions(1000))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for i, e := range l.Entries {
		if e.Cash != 1000 || e.Quantity != 0 || e.Total != 1000 {
			t.Errorf("bar %d = %+v, want all cash", i, e)
		}
	}
	if l.Entries[0].Position != 0 {
		t.Errorf("bar 0 position = %v, want 0", l.Entries[0].Position)
	}
}

func TestEquityIdentityAndNonNegative(t *testing.T) {
	candles := series(100, 103, 99, 105, 111, 97, 95, 101, 120, 118)
	signal := []float64{0, 1, 0, 0.5, 1, 0, 1, 1, 0, 1}
	opts := DefaultOptions(1000)
	opts.InvestmentFraction = 0.2
	opts.FeeRate = 0.001

	l, err := Simulate(candles, signal, opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for i, e := range l.Entries {
		if !closeTo(e.Total, e.Cash+e.Quantity*candles[i].Close) {
			t.Errorf("bar %d total %v != cash %v + qty %v * close %v", i, e.Total, e.Cash, e.Quantity, candles[i].Close)
		}
		if e.Cash < 0 || e.Quantity < 0 {
			t.Errorf("bar %d cash/qty = %v/%v, want non-negative", i, e.Cash, e.Quantity)
		}
	}
}

func TestFractionalSizing(t *testing.T) {
	opts := DefaultOptions(1000)
	opts.InvestmentFraction = 0.2
	l, err := Simulate(series(100, 100, 100), []float64{0, 0.5, 1}, opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	// 1000 * 0.2 * 0.5 = 100, then 900 * 0.2 * 0.5 = 90.
	if got := l.Entries[1].Cash; !closeTo(got, 900) {
		t.Errorf("bar 1 cash = %v, want 900", got)
	}
	if got := l.Entries[2].Cash; !closeTo(got, 810) {
		t.Errorf("bar 2 cash = %v, want 810", got)
	}
	if got := l.Entries[2].Quantity; !closeTo(got, 1.9) {
		t.Errorf("bar 2 qty = %v, want 1.9", got)
	}
}

func TestSimulateFee(t *testing.T) {
	opts := DefaultOptions(1000)
	opts.FeeRate = 0.001
	l, err := Simulate(series(100, 100, 100), []float64{0, 1, 0}, opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	qty := 1000 / (100 * 1.001)
	if got := l.Entries[1].Quantity; !closeTo(got, qty) {
		t.Errorf("bought qty = %v, want %v", got, qty)
	}
	want := qty * 100 * 0.999
	if got := l.Last().Cash; !closeTo(got, want) {
		t.Errorf("final cash = %v, want %v", got, want)
	}
	if l.Trades[0].PnL >= 0 {
		t.Errorf("trade PnL = %v, want negative after fees", l.Trades[0].PnL)
	}
}

func TestLiquidateAtNextNoon(t *testing.T) {
	opts := DefaultOptions(1000)
	opts.Liquidation = LiquidateAtNextNoon
	opts.NoonPrices = []float64{100, 105, 110, 115}

	l, err := Simulate(series(100, 100, 120, 90), []float64{0, 1, 0, 0}, opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if got := l.Entries[2].Cash; !closeTo(got, 1150) {
		t.Errorf("cash after close = %v, want 1150 (sold at next noon 115)", got)
	}
	if got := l.Trades[0].ExitPrice; got != 115 {
		t.Errorf("ExitPrice = %v, want 115", got)
	}

	// A close on the final bar has no next noon and sells at its own close.
	l, err = Simulate(series(100, 100, 120, 90), []float64{0, 0, 1, 0}, opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	want := 1000.0 / 120 * 90
	if got := l.Last().Cash; !closeTo(got, want) {
		t.Errorf("final cash = %v, want %v", got, want)
	}
}

func TestSimulateErrors(t *testing.T) {
	ok := series(100, 101, 102)

	_, err := Simulate(ok, []float64{0, 1}, DefaultOptions(1000))
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, ErrMalformedSeries) {
		t.Errorf("length mismatch err = %v, want ErrInvalidInput and ErrMalformedSeries", err)
	}

	_, err = Simulate(nil, nil, DefaultOptions(1000))
	if !errors.Is(err, ErrMalformedSeries) {
		t.Errorf("empty err = %v, want ErrMalformedSeries", err)
	}

	bad := series(100, 101, 102)
	bad[1].Close = math.NaN()
	if _, err = Simulate(bad, []float64{0, 0, 0}, DefaultOptions(1000)); !errors.Is(err, ErrMalformedSeries) {
		t.Errorf("NaN close err = %v, want ErrMalformedSeries", err)
	}

	unordered := series(100, 101, 102)
	unordered[2].Timestamp = unordered[1].Timestamp
	if _, err = Simulate(unordered, []float64{0, 0, 0}, DefaultOptions(1000)); !errors.Is(err, ErrMalformedSeries) {
		t.Errorf("unordered err = %v, want ErrMalformedSeries", err)
	}

	if _, err = Simulate(ok, []float64{0, 2, 0}, DefaultOptions(1000)); !errors.Is(err, ErrMalformedSeries) {
		t.Errorf("signal out of range err = %v, want ErrMalformedSeries", err)
	}

	for _, opts := range []Options{
		DefaultOptions(0),
		DefaultOptions(-5),
		{InitialCapital: 1000, InvestmentFraction: 0},
		{InitialCapital: 1000, InvestmentFraction: 1.5},
		{InitialCapital: 1000, InvestmentFraction: 1, FeeRate: 1},
		{InitialCapital: 1000, InvestmentFraction: 1, Liquidation: LiquidationPrice(9)},
	} {
		l, err := Simulate(ok, []float64{0, 1, 0}, opts)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("opts %+v err = %v, want ErrInvalidParameter", opts, err)
		}
		if l != nil {
			t.Errorf("opts %+v produced a ledger, want nil", opts)
		}
	}

	noon := DefaultOptions(1000)
	noon.Liquidation = LiquidateAtNextNoon
	if _, err = Simulate(ok, []float64{0, 1, 0}, noon); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing noon prices err = %v, want ErrInvalidInput", err)
	}
}

func TestParseLiquidationPrice(t *testing.T) {
	for in, want := range map[string]LiquidationPrice{
		"":          LiquidateAtClose,
		"close":     LiquidateAtClose,
		"next_noon": LiquidateAtNextNoon,
	} {
		got, err := ParseLiquidationPrice(in)
		if err != nil || got != want {
			t.Errorf("ParseLiquidationPrice(%q) = %v, %v, want %v", in, got, err, want)
		}
		if in != "" && got.String() != in {
			t.Errorf("String() = %q, want %q", got.String(), in)
		}
	}
	if _, err := ParseLiquidationPrice("open"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("ParseLiquidationPrice(open) err = %v, want ErrInvalidParameter", err)
	}
}
