package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"coinbt/internal/domain"
	"coinbt/internal/notify"
	"coinbt/internal/ranking"
	"coinbt/internal/signaler"
	"coinbt/internal/store"
	"coinbt/internal/strategy"
	"coinbt/internal/strategy/builtins"
)

var signalsCommand = &cli.Command{
	Name:  "signals",
	Usage: "compute the latest signal of each strategy and notify",
	Flags: []cli.Flag{
		marketFlag(),
		&cli.StringSliceFlag{
			Name:  "symbols",
			Usage: "market codes to evaluate (default from config)",
		},
		&cli.StringSliceFlag{
			Name:  "strategies",
			Usage: "strategies to evaluate (default from config)",
		},
		&cli.BoolFlag{
			Name:  "ranked",
			Usage: "evaluate each strategy only on the markets it won in the ranking report",
		},
		&cli.BoolFlag{
			Name:  "notify",
			Usage: "send signal groups to Telegram instead of the log",
		},
	},
	Action: runSignals,
}

// signalRun is everything needed to run the signaler once.
type signalRun struct {
	market  domain.Market
	names   []string
	symbols []string
	ranked  bool
}

func (s signalRun) markets() (func(string) []string, error) {
	if !s.ranked {
		return signaler.All(s.symbols), nil
	}
	a, err := ranking.LoadReport(cfg.Storage.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("loading ranking report: %w", err)
	}
	return a.For, nil
}

func (s signalRun) run(ctx context.Context, signals store.SignalStore, opts ...signaler.Option) ([]signaler.Group, error) {
	markets, err := s.markets()
	if err != nil {
		return nil, err
	}
	bt := strategy.NewBacktester(openCandles(), builtins.DefaultRegistry(), s.market, strategy.Params{})
	opts = append(opts, signaler.WithCount(cfg.Signals.Count))
	return signaler.New(bt, signals, opts...).Run(ctx, s.names, markets)
}

func resolveSignalRun(c *cli.Context) (signalRun, error) {
	m, err := market(c)
	if err != nil {
		return signalRun{}, err
	}
	names := c.StringSlice("strategies")
	if len(names) == 0 {
		names = cfg.Signals.Strategies
	}
	return signalRun{
		market:  m,
		names:   names,
		symbols: symbols(c),
		ranked:  c.Bool("ranked") || cfg.Signals.Ranked,
	}, nil
}

func notifier(enabled bool) (signaler.Notifier, error) {
	if !enabled {
		return notify.Log{Logger: slog.Default()}, nil
	}
	t := cfg.Telegram
	if t.Token == "" || t.ChatID == "" {
		return nil, fmt.Errorf("telegram token and chat id must be configured to notify")
	}
	return notify.NewTelegram(t.BaseURL, t.Token, t.ChatID), nil
}

func runSignals(c *cli.Context) error {
	run, err := resolveSignalRun(c)
	if err != nil {
		return err
	}
	n, err := notifier(c.Bool("notify"))
	if err != nil {
		return err
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	groups, err := run.run(c.Context, db, signaler.WithNotifier(n))
	for _, g := range groups {
		fmt.Fprintln(c.App.Writer, g.Text())
	}
	return err
}
