// Package store defines storage interfaces for persisting and retrieving
// candles, backtest results, rankings and live signals.
package store

import (
	"context"
	"time"

	"coinbt/internal/domain"
)

// CandleStore persists and retrieves OHLCV candle series.
type CandleStore interface {
	// WriteCandles merges a batch of candles into storage. Candles already
	// stored under the same (symbol, timestamp) are replaced.
	WriteCandles(ctx context.Context, market domain.Market, interval domain.Interval, candles []domain.Candle) error

	// ReadCandles returns candles for the symbol within [start, end], sorted
	// ascending by timestamp. A zero start or end leaves that side open.
	ReadCandles(ctx context.Context, market domain.Market, interval domain.Interval, symbol string, start, end time.Time) ([]domain.Candle, error)

	// LatestCandle returns the most recent stored candle for the symbol. The
	// boolean is false when nothing is stored yet.
	LatestCandle(ctx context.Context, market domain.Market, interval domain.Interval, symbol string) (domain.Candle, bool, error)

	// ListSymbols returns all symbols with stored candles.
	ListSymbols(ctx context.Context, market domain.Market, interval domain.Interval) ([]string, error)
}

// ResultStore persists backtest results and strategy rankings.
type ResultStore interface {
	// SaveResults inserts a batch of backtest results.
	SaveResults(ctx context.Context, results []domain.BacktestResult) error

	// ListResults returns the most recent results, newest first. An empty
	// strategy matches all strategies.
	ListResults(ctx context.Context, strategy string, limit int) ([]domain.BacktestResult, error)

	// SavePicks records one ranking run.
	SavePicks(ctx context.Context, picks []domain.Pick) error

	// LatestPicks returns the picks of the most recent ranking run.
	LatestPicks(ctx context.Context) ([]domain.Pick, error)
}

// SignalStore persists and retrieves live signals.
type SignalStore interface {
	// SaveSignal inserts a new signal and sets its ID.
	SaveSignal(ctx context.Context, signal *domain.LiveSignal) error

	// ListSignals returns the most recent signals for a strategy, up to limit.
	// An empty strategyID matches all strategies.
	ListSignals(ctx context.Context, strategyID string, limit int) ([]domain.LiveSignal, error)
}
