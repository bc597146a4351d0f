package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"coinbt/internal/config"
	"coinbt/internal/domain"
	"coinbt/internal/store"
	"coinbt/internal/util"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgPath  string
	logLevel string
	cfg      *config.Config
)

func main() {
	app := cli.NewApp()
	app.Name = "coinbt"
	app.Version = version
	app.EnableBashCompletion = true
	app.Usage = "backtest, rank and signal crypto trading strategies"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Value:       config.Path(),
			Usage:       "path to the YAML config file",
			Destination: &cfgPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "override the configured log level",
			Destination: &logLevel,
		},
	}
	app.Before = setup
	app.Commands = []*cli.Command{
		fetchCommand,
		backtestCommand,
		rankCommand,
		signalsCommand,
		serveCommand,
		versionCommand,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(_ *cli.Context) error {
	var err error
	cfg, err = config.LoadOptional(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
	slog.Debug("config loaded", "path", cfgPath)
	return nil
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "print the coinbt version",
	Action: func(c *cli.Context) error {
		fmt.Fprintln(c.App.Writer, "coinbt", version)
		return nil
	},
}

// marketFlag selects the exchange whose candles a command reads.
func marketFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "market",
		Usage: "candle source: upbit, binance or alpaca (default from config)",
	}
}

func market(c *cli.Context) (domain.Market, error) {
	m := c.String("market")
	if m == "" {
		m = cfg.Backtest.Market
	}
	switch domain.Market(m) {
	case domain.MarketUpbit, domain.MarketBinance, domain.MarketAlpaca:
		return domain.Market(m), nil
	}
	return "", fmt.Errorf("unknown market %q", m)
}

func symbols(c *cli.Context) []string {
	if s := c.StringSlice("symbols"); len(s) > 0 {
		return s
	}
	return cfg.Backtest.Markets
}

func openCandles() *store.ParquetStore {
	return store.NewParquetStore(cfg.Storage.DataDir)
}

func openDB() (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Storage.SQLitePath, err)
	}
	return db, nil
}
