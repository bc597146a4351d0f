package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"coinbt/internal/domain"
	"coinbt/internal/store"
	"coinbt/internal/strategy"
	"coinbt/internal/strategy/builtins"
)

var backtestCommand = &cli.Command{
	Name:  "backtest",
	Usage: "backtest strategies over stored candles and write result reports",
	Flags: append(batchFlags(),
		&cli.StringSliceFlag{
			Name:  "strategies",
			Usage: "strategies to run (default from config, else all)",
		},
		&cli.BoolFlag{
			Name:  "sweep",
			Usage: "also run golden_cross over the moving-average window pairs",
		},
		&cli.BoolFlag{
			Name:  "ledger",
			Value: true,
			Usage: "write per-market ledger and trade CSVs",
		},
	),
	Action: runBacktest,
}

func batchFlags() []cli.Flag {
	return []cli.Flag{
		marketFlag(),
		&cli.StringSliceFlag{
			Name:  "symbols",
			Usage: "market codes to backtest (default from config)",
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "most recent bars per run (default from config)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "concurrent backtests (default from config)",
		},
		&cli.Float64Flag{
			Name:  "fraction",
			Usage: "investment fraction per entry signal",
		},
		&cli.Float64Flag{
			Name:  "fee",
			Usage: "fee rate charged on each buy and sell",
		},
	}
}

// batch holds what a batch command resolved from flags and config.
type batch struct {
	market  domain.Market
	symbols []string
	count   int
	workers int
	sizing  strategy.Params
}

func resolveBatch(c *cli.Context) (batch, error) {
	m, err := market(c)
	if err != nil {
		return batch{}, err
	}
	b := batch{
		market:  m,
		symbols: symbols(c),
		count:   cfg.Backtest.Count,
		workers: cfg.Backtest.Workers,
		sizing:  cfg.Backtest.Sizing,
	}
	if c.IsSet("count") {
		b.count = c.Int("count")
	}
	if c.IsSet("workers") {
		b.workers = c.Int("workers")
	}
	if c.IsSet("fraction") {
		b.sizing.InvestmentFraction = c.Float64("fraction")
	}
	if c.IsSet("fee") {
		b.sizing.FeeRate = c.Float64("fee")
	}
	if len(b.symbols) == 0 {
		return batch{}, errors.New("no symbols to backtest")
	}
	return b, nil
}

func (b batch) jobs(names []string) []strategy.Job {
	jobs := make([]strategy.Job, 0, len(names)*len(b.symbols))
	for _, name := range names {
		for _, sym := range b.symbols {
			jobs = append(jobs, strategy.Job{Strategy: name, Symbol: sym, Count: b.count})
		}
	}
	return jobs
}

func runBacktest(c *cli.Context) error {
	b, err := resolveBatch(c)
	if err != nil {
		return err
	}
	reg := builtins.DefaultRegistry()
	names := c.StringSlice("strategies")
	if len(names) == 0 {
		names = cfg.Backtest.Strategies
	}
	entries, err := reg.Select(names)
	if err != nil {
		return err
	}
	selected := make([]string, len(entries))
	for i, e := range entries {
		selected[i] = e.Name
	}

	jobs := b.jobs(selected)
	if c.Bool("sweep") {
		jobs = append(jobs, builtins.SweepJobs(b.symbols, b.count)...)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rep, err := execute(c.Context, reg, b, jobs, db, c.Bool("ledger"))
	if err != nil {
		return err
	}
	printResults(c.App.Writer, rep)
	return nil
}

// failure is one (strategy, market) run that produced no result.
type failure struct {
	Strategy string
	Symbol   string
	Err      error
}

// report is the outcome of a batch: results of the runs that succeeded and
// a note for each that failed.
type report struct {
	Results  []domain.BacktestResult
	Failures []failure
}

// execute runs jobs, writes the per-strategy results CSVs (and ledgers when
// asked) and stores the results. Failed jobs are collected into the report;
// it errors only when nothing succeeded or persisting failed.
func execute(ctx context.Context, reg *strategy.Registry, b batch, jobs []strategy.Job, db store.ResultStore, ledgers bool) (*report, error) {
	bt := strategy.NewBacktester(openCandles(), reg, b.market, b.sizing)
	start := time.Now()
	runs := bt.RunBatch(ctx, jobs, b.workers)

	rep := &report{}
	var order []string
	byStrategy := make(map[string][]domain.BacktestResult)
	for _, jr := range runs {
		if jr.Err != nil {
			name := jr.Job.Strategy
			if jr.Job.Label != "" {
				name = jr.Job.Label
			}
			rep.Failures = append(rep.Failures, failure{Strategy: name, Symbol: jr.Job.Symbol, Err: jr.Err})
			continue
		}
		r := jr.Outcome.Result
		if _, ok := byStrategy[r.Strategy]; !ok {
			order = append(order, r.Strategy)
		}
		byStrategy[r.Strategy] = append(byStrategy[r.Strategy], r)
		rep.Results = append(rep.Results, r)

		if ledgers {
			if err := writeLedger(r, jr.Outcome); err != nil {
				return nil, err
			}
		}
	}
	slog.Info("backtests finished", "ok", len(rep.Results), "failed", len(rep.Failures), "elapsed", time.Since(start).Round(time.Millisecond))
	if len(rep.Results) == 0 {
		return nil, fmt.Errorf("all %d backtests failed: %w", len(runs), errors.Join(failureErrs(rep.Failures)...))
	}

	for _, name := range order {
		path := store.ResultsPath(cfg.Storage.ResultsDir, name, b.count)
		rs := byStrategy[name]
		if err := store.WriteFile(path, func(w io.Writer) error { return store.WriteResults(w, rs) }); err != nil {
			return nil, err
		}
		slog.Info("results written", "strategy", name, "path", path)
	}
	if err := db.SaveResults(ctx, rep.Results); err != nil {
		return nil, fmt.Errorf("saving results: %w", err)
	}
	return rep, nil
}

func failureErrs(fs []failure) []error {
	errs := make([]error, len(fs))
	for i, f := range fs {
		errs[i] = fmt.Errorf("%s %s: %w", f.Strategy, f.Symbol, f.Err)
	}
	return errs
}

func writeLedger(r domain.BacktestResult, out *strategy.Outcome) error {
	path := store.LedgerPath(cfg.Storage.ResultsDir, r.Strategy, r.Market, r.Count)
	if err := store.WriteFile(path, func(w io.Writer) error { return store.WriteLedger(w, out.Ledger) }); err != nil {
		return err
	}
	trades := strings.TrimSuffix(path, ".csv") + "_trades.csv"
	return store.WriteFile(trades, func(w io.Writer) error { return store.WriteTrades(w, out.Ledger.Trades) })
}

func printResults(w io.Writer, rep *report) {
	fmt.Fprintf(w, "%-22s %-10s %10s %10s %10s %7s\n", "STRATEGY", "MARKET", "RETURN%", "WIN%", "MDD%", "TRADES")
	for _, r := range rep.Results {
		fmt.Fprintf(w, "%-22s %-10s %10.2f %10.2f %10.2f %7d\n",
			r.Strategy, r.Market, r.CumulativeReturnPct, r.WinRatePct, r.MaxDrawdownPct, r.Trades)
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "%-22s %-10s error: %v\n", f.Strategy, f.Symbol, f.Err)
	}
}
