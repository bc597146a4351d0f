package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"coinbt/internal/httpapi"
	"coinbt/internal/signaler"
	"coinbt/internal/store"
	"coinbt/internal/strategy/builtins"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "serve the read-only JSON API and the websocket signal feed",
	Flags: []cli.Flag{
		marketFlag(),
		&cli.StringFlag{
			Name:  "addr",
			Usage: "listen address (default from config)",
		},
		&cli.DurationFlag{
			Name:  "signal-every",
			Usage: "recompute signals on this period and broadcast them; 0 disables",
		},
		&cli.StringSliceFlag{
			Name:  "symbols",
			Usage: "market codes for periodic signals (default from config)",
		},
		&cli.StringSliceFlag{
			Name:  "strategies",
			Usage: "strategies for periodic signals (default from config)",
		},
		&cli.BoolFlag{
			Name:  "ranked",
			Usage: "restrict periodic signals to each strategy's ranked markets",
		},
		&cli.BoolFlag{
			Name:  "notify",
			Usage: "also send periodic signal groups to Telegram",
		},
	},
	Action: runServe,
}

func runServe(c *cli.Context) error {
	addr := c.String("addr")
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	hub := httpapi.NewHub()
	srv := httpapi.NewServer(db, db, builtins.DefaultRegistry(), hub, slog.Default())

	every := c.Duration("signal-every")
	var (
		run signalRun
		n   signaler.Notifier
	)
	if every > 0 {
		if run, err = resolveSignalRun(c); err != nil {
			return err
		}
		if n, err = notifier(c.Bool("notify")); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx, addr)
	})
	if every > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				tick(ctx, run, db, hub, n)
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	return g.Wait()
}

func tick(ctx context.Context, run signalRun, db store.SignalStore, hub *httpapi.Hub, n signaler.Notifier) {
	groups, err := run.run(ctx, db, signaler.WithBroadcaster(hub), signaler.WithNotifier(n))
	if err != nil {
		slog.Warn("signal run failed", "error", err)
		return
	}
	slog.Info("signals broadcast", "groups", len(groups))
}
