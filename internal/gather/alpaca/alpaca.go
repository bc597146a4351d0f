// Package alpaca fetches crypto bars through the Alpaca market data API.
package alpaca

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"coinbt/internal/domain"
	"coinbt/internal/gather"
	"coinbt/internal/util"
)

var _ gather.Source = (*Client)(nil)

// BarFetcher is the subset of the market data client used here.
type BarFetcher interface {
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// Client serves crypto bars such as "BTC/USD".
type Client struct {
	md      BarFetcher
	limiter *util.RateLimiter
	now     func() time.Time
}

// NewClient creates a Client. Crypto data needs no credentials but keys
// raise the rate limit.
func NewClient(apiKey, apiSecret, dataURL string, perMinute int) *Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return NewClientWith(marketdata.NewClient(opts), perMinute)
}

// NewClientWith wraps an existing fetcher.
func NewClientWith(md BarFetcher, perMinute int) *Client {
	return &Client{md: md, limiter: util.NewRateLimiter(perMinute), now: time.Now}
}

// Market returns domain.MarketAlpaca.
func (c *Client) Market() domain.Market { return domain.MarketAlpaca }

func timeFrame(iv domain.Interval) (marketdata.TimeFrame, error) {
	switch iv {
	case domain.IntervalMinute1:
		return marketdata.OneMin, nil
	case domain.IntervalMinute60:
		return marketdata.OneHour, nil
	case domain.IntervalHour4:
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case domain.IntervalDay:
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("alpaca: %w %q", gather.ErrUnsupportedInterval, iv)
	}
}

// Candles fetches bars after Since, or enough history to cover Count bars.
// The SDK handles pagination.
func (c *Client) Candles(ctx context.Context, req gather.Request) ([]domain.Candle, error) {
	tf, err := timeFrame(req.Interval)
	if err != nil {
		return nil, err
	}
	end := c.now()
	start := req.Since
	if start.IsZero() {
		if req.Count <= 0 {
			return nil, fmt.Errorf("alpaca: request needs Since or Count")
		}
		start = end.Add(-time.Duration(req.Count+1) * req.Interval.Duration())
	}

	var bars []marketdata.CryptoBar
	err = util.Retry(ctx, 3, 2*time.Second, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var ferr error
		bars, ferr = c.md.GetCryptoBars(req.Symbol, marketdata.GetCryptoBarsRequest{
			TimeFrame: tf,
			Start:     start,
			End:       end,
		})
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca %s: GetCryptoBars: %w", req.Symbol, err)
	}

	out := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		out = append(out, domain.Candle{
			Symbol:    req.Symbol,
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return gather.Finalize(out, req), nil
}
