// Package binance fetches spot klines from the Binance public REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"coinbt/internal/domain"
	"coinbt/internal/gather"
	"coinbt/internal/util"
)

// DefaultBaseURL is the public spot endpoint.
const DefaultBaseURL = "https://api.binance.com"

// PageSize is the largest limit the klines endpoint accepts.
const PageSize = 1000

var _ gather.Source = (*Client)(nil)

// Client is a Binance klines client.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *util.RateLimiter
}

// NewClient creates a Client limited to perMinute requests.
func NewClient(baseURL string, perMinute int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: util.NewRateLimiter(perMinute),
	}
}

// Market returns domain.MarketBinance.
func (c *Client) Market() domain.Market { return domain.MarketBinance }

func intervalCode(iv domain.Interval) (string, error) {
	switch iv {
	case domain.IntervalMinute1:
		return "1m", nil
	case domain.IntervalMinute60:
		return "1h", nil
	case domain.IntervalHour4:
		return "4h", nil
	case domain.IntervalDay:
		return "1d", nil
	default:
		return "", fmt.Errorf("binance: %w %q", gather.ErrUnsupportedInterval, iv)
	}
}

// parseKline decodes one kline row: open time, then open, high, low, close
// and volume as decimal strings.
func parseKline(symbol string, row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("kline has %d fields", len(row))
	}
	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return domain.Candle{}, fmt.Errorf("open time: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = d.InexactFloat64()
	}
	return domain.Candle{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(openTime).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

func (c *Client) page(ctx context.Context, symbol, code string, start, end int64, limit int) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", code)
	q.Set("limit", strconv.Itoa(limit))
	if start > 0 {
		q.Set("startTime", strconv.FormatInt(start, 10))
	}
	if end > 0 {
		q.Set("endTime", strconv.FormatInt(end, 10))
	}
	var rows [][]json.RawMessage
	if err := gather.GetJSON(ctx, c.http, c.limiter, c.baseURL+"/api/v3/klines?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("binance %s: %w", symbol, err)
	}
	out := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		k, err := parseKline(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("binance %s row %d: %w", symbol, i, err)
		}
		out = append(out, k)
	}
	return out, nil
}

// Candles pages forward from Since, or backwards from now for Count bars.
func (c *Client) Candles(ctx context.Context, req gather.Request) ([]domain.Candle, error) {
	code, err := intervalCode(req.Interval)
	if err != nil {
		return nil, err
	}

	var out []domain.Candle
	switch {
	case !req.Since.IsZero():
		start := req.Since.UnixMilli() + 1
		for {
			page, err := c.page(ctx, req.Symbol, code, start, 0, PageSize)
			if err != nil {
				return nil, err
			}
			out = append(out, page...)
			if len(page) < PageSize {
				break
			}
			start = page[len(page)-1].Timestamp.UnixMilli() + 1
		}

	case req.Count > 0:
		var end int64
		for len(out) < req.Count {
			limit := min(PageSize, req.Count-len(out))
			page, err := c.page(ctx, req.Symbol, code, 0, end, limit)
			if err != nil {
				return nil, err
			}
			out = append(out, page...)
			if len(page) < limit {
				break
			}
			end = page[0].Timestamp.UnixMilli() - 1
		}

	default:
		return nil, fmt.Errorf("binance: request needs Since or Count")
	}
	return gather.Finalize(out, req), nil
}
