package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"coinbt/internal/ranking"
	"coinbt/internal/strategy/builtins"
)

var rankCommand = &cli.Command{
	Name:  "rank",
	Usage: "backtest the ranked strategies and pick the best one per market",
	Flags: append(batchFlags(),
		&cli.StringFlag{
			Name:  "report",
			Usage: "ranking report path (default from config)",
		},
	),
	Action: runRank,
}

func runRank(c *cli.Context) error {
	b, err := resolveBatch(c)
	if err != nil {
		return err
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	reg := builtins.DefaultRegistry()
	rep, err := execute(c.Context, reg, b, b.jobs(builtins.RankedStrategies), db, false)
	if err != nil {
		return err
	}

	now := time.Now()
	picks := ranking.Rank(builtins.RankedStrategies, rep.Results, now)
	if err := db.SavePicks(c.Context, picks); err != nil {
		return fmt.Errorf("saving picks: %w", err)
	}

	path := c.String("report")
	if path == "" {
		path = cfg.Storage.ReportPath
	}
	a := ranking.Assign(builtins.RankedStrategies, picks)
	backup, err := ranking.SaveReport(path, a, now)
	if err != nil {
		return err
	}
	slog.Info("ranking saved", "path", path, "backup", backup, "markets", len(picks))
	for _, f := range rep.Failures {
		fmt.Fprintf(c.App.Writer, "%s %s error: %v\n", f.Strategy, f.Symbol, f.Err)
	}
	return a.Write(c.App.Writer)
}
