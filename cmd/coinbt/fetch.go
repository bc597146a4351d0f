package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"coinbt/internal/domain"
	"coinbt/internal/gather"
	"coinbt/internal/gather/alpaca"
	"coinbt/internal/gather/binance"
	"coinbt/internal/gather/upbit"
)

var fetchCommand = &cli.Command{
	Name:  "fetch",
	Usage: "download or update candle history into the parquet store",
	Flags: []cli.Flag{
		marketFlag(),
		&cli.StringSliceFlag{
			Name:  "symbols",
			Usage: "market codes to fetch (default from config)",
		},
		&cli.StringSliceFlag{
			Name:  "interval",
			Value: cli.NewStringSlice(string(domain.IntervalDay), string(domain.IntervalMinute60)),
			Usage: "bar intervals to fetch: 1m, 60m, 4h, 1d",
		},
		&cli.IntFlag{
			Name:  "count",
			Value: 400,
			Usage: "bars to fetch for a symbol with no stored history",
		},
	},
	Action: runFetch,
}

func source(m domain.Market) (gather.Source, error) {
	ex := cfg.Exchange
	switch m {
	case domain.MarketUpbit:
		return upbit.NewClient(ex.Upbit.BaseURL, ex.Upbit.RateLimitPerMin), nil
	case domain.MarketBinance:
		return binance.NewClient(ex.Binance.BaseURL, ex.Binance.RateLimitPerMin), nil
	case domain.MarketAlpaca:
		return alpaca.NewClient(ex.Alpaca.APIKey, ex.Alpaca.APISecret, ex.Alpaca.DataURL, ex.Alpaca.RateLimitPerMin), nil
	}
	return nil, fmt.Errorf("no candle source for market %q", m)
}

func runFetch(c *cli.Context) error {
	m, err := market(c)
	if err != nil {
		return err
	}
	src, err := source(m)
	if err != nil {
		return err
	}
	var intervals []domain.Interval
	for _, iv := range c.StringSlice("interval") {
		if domain.Interval(iv).Duration() == 0 {
			return fmt.Errorf("unknown interval %q", iv)
		}
		intervals = append(intervals, domain.Interval(iv))
	}

	u := gather.NewUpdater(src, openCandles(), symbols(c), intervals, c.Int("count"))
	return u.Run(c.Context)
}
