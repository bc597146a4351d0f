package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"coinbt/internal/domain"
	"coinbt/internal/engine"
	"coinbt/internal/store"
)

// Outcome is everything one backtest run produced.
type Outcome struct {
	Result domain.BacktestResult
	Ledger *engine.Ledger
	Series Series
}

// Signal resamples candles if the generator asks for it and computes the
// strategy's signal with the effective parameters: DefaultParams, then the
// entry's own, then overrides.
func Signal(e Entry, candles []domain.Candle, overrides Params) (Series, []float64, Params, error) {
	p := DefaultParams().Merge(e.Params).Merge(overrides)

	series := Series{Candles: candles}
	if rs, ok := e.Generator.(Resampler); ok {
		var err error
		if series, err = rs.Resample(candles); err != nil {
			return Series{}, nil, p, fmt.Errorf("%s: resample: %w", e.Name, err)
		}
		if series.NoonPrices != nil && p.Liquidation == "" {
			p.Liquidation = engine.LiquidateAtNextNoon.String()
		}
	}

	signal, err := e.Generator.Generate(series, p)
	if err != nil {
		return Series{}, nil, p, fmt.Errorf("%s: generate: %w", e.Name, err)
	}
	return series, signal, p, nil
}

// Backtest runs a strategy over an in-memory candle series: signal, simulate
// and evaluate.
func Backtest(e Entry, candles []domain.Candle, overrides Params) (*Outcome, error) {
	series, signal, p, err := Signal(e, candles, overrides)
	if err != nil {
		return nil, err
	}
	opts, err := p.Options()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	opts.NoonPrices = series.NoonPrices

	ledger, err := engine.Simulate(series.Candles, signal, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	m, err := engine.Evaluate(ledger, opts.InitialCapital)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}

	symbol := ""
	if len(series.Candles) > 0 {
		symbol = series.Candles[0].Symbol
	}
	return &Outcome{
		Result: domain.BacktestResult{
			Strategy:            e.Name,
			Market:              symbol,
			Count:               len(series.Candles),
			InvestmentFraction:  opts.InvestmentFraction,
			CumulativeReturnPct: m.CumulativeReturnPct,
			WinRatePct:          m.WinRatePct,
			MaxDrawdownPct:      m.MaxDrawdownPct,
			Trades:              len(ledger.Trades),
			Params:              p.Map(),
			CreatedAt:           time.Now(),
		},
		Ledger: ledger,
		Series: series,
	}, nil
}

// Backtester replays stored candle history through registered strategies.
type Backtester struct {
	store    store.CandleStore
	registry *Registry
	market   domain.Market
	interval domain.Interval
	sizing   Params
	log      *slog.Logger
}

// NewBacktester creates a Backtester that reads candles of the given market
// from the store and looks up strategies in the registry. sizing is applied
// on top of every strategy's parameters.
func NewBacktester(candles store.CandleStore, registry *Registry, market domain.Market, sizing Params) *Backtester {
	return &Backtester{
		store:    candles,
		registry: registry,
		market:   market,
		interval: domain.IntervalDay,
		sizing:   sizing,
		log:      slog.Default().With("component", "backtester"),
	}
}

// Job is one (strategy, symbol) backtest of a batch.
type Job struct {
	Strategy string
	Symbol   string
	// Count limits the run to the most recent Count bars; 0 uses all.
	Count int
	// Params is merged over the strategy's parameters and the sizing.
	Params Params
	// Label replaces the strategy name in the result when set.
	Label string
}

// JobResult pairs a job with its outcome or error. Exactly one is set.
type JobResult struct {
	Job     Job
	Outcome *Outcome
	Err     error
}

// Run executes one job.
func (bt *Backtester) Run(ctx context.Context, job Job) (*Outcome, error) {
	e, ok := bt.registry.Get(job.Strategy)
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", job.Strategy)
	}

	candles, err := bt.Load(ctx, e, job.Symbol, job.Count)
	if err != nil {
		return nil, err
	}

	out, err := Backtest(e, candles, bt.sizing.Merge(job.Params))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", job.Symbol, err)
	}
	if job.Label != "" {
		out.Result.Strategy = job.Label
	}
	if job.Count > 0 {
		out.Result.Count = job.Count
	}
	return out, nil
}

// Load reads the stored candles a strategy consumes for symbol, limited to the
// last count signal bars when count > 0.
func (bt *Backtester) Load(ctx context.Context, e Entry, symbol string, count int) ([]domain.Candle, error) {
	interval := bt.interval
	rs, resamples := e.Generator.(Resampler)
	if resamples {
		interval = rs.SourceInterval()
	}

	candles, err := bt.store.ReadCandles(ctx, bt.market, interval, symbol, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("reading %s %s candles: %w", symbol, interval, err)
	}
	if count > 0 {
		n := count
		if resamples {
			if d := interval.Duration(); d > 0 && d < 24*time.Hour {
				n *= int(24 * time.Hour / d)
			}
		}
		candles = Tail(candles, n)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no %s candles stored for %s", interval, symbol)
	}
	return candles, nil
}

// Registry returns the strategies the backtester runs.
func (bt *Backtester) Registry() *Registry { return bt.registry }

// RunBatch runs independent jobs on up to workers goroutines. A failing job
// never stops the others: its error is reported in its JobResult. Results
// keep the order of jobs.
func (bt *Backtester) RunBatch(ctx context.Context, jobs []Job, workers int) []JobResult {
	if workers <= 0 {
		workers = 1
	}
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i].Job = job
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			out, err := bt.Run(ctx, job)
			if err != nil {
				bt.log.Warn("backtest failed", "strategy", job.Strategy, "symbol", job.Symbol, "error", err)
				results[i].Err = err
				return nil
			}
			results[i].Outcome = out
			bt.log.Debug("backtest done",
				"strategy", out.Result.Strategy,
				"symbol", job.Symbol,
				"return_pct", out.Result.CumulativeReturnPct,
			)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Tail returns the last n candles.
func Tail(candles []domain.Candle, n int) []domain.Candle {
	if n <= 0 || n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}
