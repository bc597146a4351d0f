// Package domain holds the core value types shared across coinbt: candles,
// position signals, backtest results and the live signal messages derived
// from them.
package domain

import "time"

// Market identifies the exchange a candle series was collected from.
type Market string

const (
	MarketUpbit   Market = "upbit"
	MarketBinance Market = "binance"
	MarketAlpaca  Market = "alpaca"
)

// Interval is the bar resolution of a candle series.
type Interval string

const (
	IntervalMinute1  Interval = "1m"
	IntervalMinute60 Interval = "60m"
	IntervalHour4    Interval = "4h"
	IntervalDay      Interval = "1d"
)

// Duration returns the wall-clock length of one bar.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case IntervalMinute1:
		return time.Minute
	case IntervalMinute60:
		return time.Hour
	case IntervalHour4:
		return 4 * time.Hour
	case IntervalDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Candle is one OHLCV bar. Symbol is the exchange market code (e.g.
// "KRW-BTC" or "BTCUSDT").
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Closes extracts the close price column of a series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}

// Volumes extracts the volume column of a series.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Volume
	}
	return out
}

// SignalType classifies the latest position transition of a series.
type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
	SignalTypeHold SignalType = "hold"
	SignalTypeNone SignalType = "none"
)

// LiveSignal is the most recent signal of one strategy for one market.
type LiveSignal struct {
	ID         int64
	StrategyID string
	Symbol     string
	Type       SignalType
	Price      float64
	BarTime    time.Time
	CreatedAt  time.Time
}

// BacktestResult is the summary of one (market, strategy, parameters) run.
// It is created once and never mutated.
type BacktestResult struct {
	Strategy            string
	Market              string
	Count               int
	InvestmentFraction  float64
	CumulativeReturnPct float64
	WinRatePct          float64
	MaxDrawdownPct      float64
	Trades              int
	Params              map[string]string
	CreatedAt           time.Time
}

// Pick is the ranker's choice of strategy for one market.
type Pick struct {
	Symbol              string
	Strategy            string
	CumulativeReturnPct float64
	RankedAt            time.Time
}
