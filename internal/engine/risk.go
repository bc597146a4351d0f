package engine

import (
	"fmt"
	"math"
)

// LiquidationPrice selects which price a closing transition sells at.
type LiquidationPrice int

const (
	// LiquidateAtClose sells at the closing bar's own close.
	LiquidateAtClose LiquidationPrice = iota

	// LiquidateAtNextNoon sells at the following bar's designated noon
	// price (Options.NoonPrices). A close on the final bar falls back to
	// that bar's close because no later price exists.
	LiquidateAtNextNoon
)

// String returns the config name of the selector.
func (lp LiquidationPrice) String() string {
	switch lp {
	case LiquidateAtClose:
		return "close"
	case LiquidateAtNextNoon:
		return "next_noon"
	default:
		return fmt.Sprintf("LiquidationPrice(%d)", int(lp))
	}
}

// ParseLiquidationPrice maps a config name to a selector. The empty string
// selects LiquidateAtClose.
func ParseLiquidationPrice(s string) (LiquidationPrice, error) {
	switch s {
	case "", "close":
		return LiquidateAtClose, nil
	case "next_noon":
		return LiquidateAtNextNoon, nil
	default:
		return 0, fmt.Errorf("%w: unknown liquidation price %q", ErrInvalidParameter, s)
	}
}

// Options sizes and prices a simulation run.
//
//   - InitialCapital: starting cash, must be > 0.
//   - InvestmentFraction: share of available cash (not equity) committed on
//     each buy transition, in (0, 1].
//   - FeeRate: flat fee charged on buy and sell notional, in [0, 1).
//   - Liquidation: price used when a position is closed.
//   - NoonPrices: per-bar designated prices, required by LiquidateAtNextNoon.
type Options struct {
	InitialCapital     float64
	InvestmentFraction float64
	FeeRate            float64
	Liquidation        LiquidationPrice
	NoonPrices         []float64
}

// DefaultOptions returns all-in sizing with no fees.
func DefaultOptions(initialCapital float64) Options {
	return Options{
		InitialCapital:     initialCapital,
		InvestmentFraction: 1,
	}
}

// Validate checks the options against their domains before any bar is
// replayed, so a bad configuration never yields a partial ledger.
func (o Options) Validate() error {
	if !isFinite(o.InitialCapital) || o.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidParameter, o.InitialCapital)
	}
	if !isFinite(o.InvestmentFraction) || o.InvestmentFraction <= 0 || o.InvestmentFraction > 1 {
		return fmt.Errorf("%w: investment fraction must be in (0, 1], got %v", ErrInvalidParameter, o.InvestmentFraction)
	}
	if !isFinite(o.FeeRate) || o.FeeRate < 0 || o.FeeRate >= 1 {
		return fmt.Errorf("%w: fee rate must be in [0, 1), got %v", ErrInvalidParameter, o.FeeRate)
	}
	switch o.Liquidation {
	case LiquidateAtClose, LiquidateAtNextNoon:
	default:
		return fmt.Errorf("%w: unknown liquidation price %d", ErrInvalidParameter, int(o.Liquidation))
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
