// Package engine replays a position signal against a candle series and
// produces the bar-by-bar capital ledger that all performance metrics are
// computed from. It is pure computation: no I/O, no shared state, no retries.
package engine

import (
	"fmt"
	"time"

	"coinbt/internal/domain"
)

// Entry is one ledger row. Total always equals Cash + Holdings.
type Entry struct {
	Timestamp time.Time
	Close     float64
	Signal    float64
	// Position is the signal transition into this bar; always 0 on bar 0.
	Position float64
	Cash     float64
	Quantity float64
	Holdings float64
	Total    float64
}

// Trade is a closed round trip realized by a liquidation.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64 // quantity-weighted average fill
	ExitPrice  float64
	Quantity   float64
	Cost       float64 // cash spent, fees included
	Proceeds   float64 // cash received, fees deducted
	PnL        float64
	ReturnPct  float64
	ExitBar    int
}

// Ledger is the output of one simulation run.
type Ledger struct {
	Entries []Entry
	Trades  []Trade
}

// Len returns the number of bars in the ledger.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// Last returns the terminal ledger entry. It panics on an empty ledger.
func (l *Ledger) Last() Entry {
	return l.Entries[len(l.Entries)-1]
}

// Equity returns the total equity curve.
func (l *Ledger) Equity() []float64 {
	out := make([]float64, len(l.Entries))
	for i := range l.Entries {
		out[i] = l.Entries[i].Total
	}
	return out
}

// Simulate replays signal against candles. Bar 0 is the seed state (all
// cash, no holdings) regardless of signal[0]. On every later bar a positive
// transition commits InvestmentFraction of the available cash, scaled by
// the size of the transition, and a negative transition liquidates the
// whole position. A position still open on the last bar is marked to
// market, never liquidated.
func Simulate(candles []domain.Candle, signal []float64, opts Options) (*Ledger, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := validateSeries(candles, signal, opts); err != nil {
		return nil, err
	}

	n := len(candles)
	ledger := &Ledger{Entries: make([]Entry, n)}

	cash := opts.InitialCapital
	qty := 0.0

	// Open-position bookkeeping for the trade log.
	var (
		openCost  float64
		openQty   float64
		openSince time.Time
	)

	ledger.Entries[0] = Entry{
		Timestamp: candles[0].Timestamp,
		Close:     candles[0].Close,
		Signal:    signal[0],
		Cash:      cash,
		Total:     cash,
	}

	for i := 1; i < n; i++ {
		price := candles[i].Close
		delta := signal[i] - signal[i-1]

		switch {
		case delta > 0:
			investment := cash * opts.InvestmentFraction * delta
			bought := investment / (price * (1 + opts.FeeRate))
			if openQty == 0 {
				openSince = candles[i].Timestamp
			}
			qty += bought
			cash -= investment
			openCost += investment
			openQty += bought

		case delta < 0:
			exit := exitPrice(candles, i, opts)
			proceeds := qty * exit * (1 - opts.FeeRate)
			cash += proceeds
			if openQty > 0 {
				t := Trade{
					EntryTime:  openSince,
					ExitTime:   candles[i].Timestamp,
					EntryPrice: openCost / openQty,
					ExitPrice:  exit,
					Quantity:   openQty,
					Cost:       openCost,
					Proceeds:   proceeds,
					PnL:        proceeds - openCost,
					ExitBar:    i,
				}
				if openCost > 0 {
					t.ReturnPct = t.PnL / openCost * 100
				}
				ledger.Trades = append(ledger.Trades, t)
			}
			qty = 0
			openCost, openQty = 0, 0
		}

		holdings := qty * price
		ledger.Entries[i] = Entry{
			Timestamp: candles[i].Timestamp,
			Close:     price,
			Signal:    signal[i],
			Position:  delta,
			Cash:      cash,
			Quantity:  qty,
			Holdings:  holdings,
			Total:     cash + holdings,
		}
	}

	return ledger, nil
}

// exitPrice applies the liquidation price selector for a close on bar i.
func exitPrice(candles []domain.Candle, i int, opts Options) float64 {
	if opts.Liquidation == LiquidateAtNextNoon && i+1 < len(candles) {
		return opts.NoonPrices[i+1]
	}
	return candles[i].Close
}

// validateSeries rejects anything the simulator is not defined over.
func validateSeries(candles []domain.Candle, signal []float64, opts Options) error {
	if len(candles) != len(signal) {
		return fmt.Errorf("%w: %w: %d candles vs %d signals",
			ErrInvalidInput, ErrMalformedSeries, len(candles), len(signal))
	}
	if len(candles) == 0 {
		return fmt.Errorf("%w: empty series", ErrMalformedSeries)
	}
	if opts.Liquidation == LiquidateAtNextNoon && len(opts.NoonPrices) != len(candles) {
		return fmt.Errorf("%w: %w: %d noon prices vs %d candles",
			ErrInvalidInput, ErrMalformedSeries, len(opts.NoonPrices), len(candles))
	}

	for i := range candles {
		c := &candles[i]
		if !isFinite(c.Close) || c.Close <= 0 {
			return fmt.Errorf("%w: bar %d close %v", ErrMalformedSeries, i, c.Close)
		}
		if !isFinite(signal[i]) || signal[i] < 0 || signal[i] > 1 {
			return fmt.Errorf("%w: bar %d signal %v outside [0, 1]", ErrMalformedSeries, i, signal[i])
		}
		if opts.Liquidation == LiquidateAtNextNoon {
			if p := opts.NoonPrices[i]; !isFinite(p) || p <= 0 {
				return fmt.Errorf("%w: bar %d noon price %v", ErrMalformedSeries, i, p)
			}
		}
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d timestamp %s not after %s", ErrMalformedSeries,
				i, c.Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
