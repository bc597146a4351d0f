// Package upbit fetches KRW market candles from the Upbit quotation API.
package upbit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/gather"
	"coinbt/internal/util"
)

// DefaultBaseURL is the public quotation endpoint.
const DefaultBaseURL = "https://api.upbit.com"

// PageSize is the largest count the candle endpoints accept.
const PageSize = 200

const timeLayout = "2006-01-02T15:04:05"

var _ gather.Source = (*Client)(nil)

// Client is an Upbit quotation API client.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *util.RateLimiter
}

// NewClient creates a Client. perMinute limits the request rate; the
// quotation API allows about 600 per minute.
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

// Market returns domain.MarketUpbit.
func (c *Client) Market() domain.Market { return domain.MarketUpbit }

type candle struct {
	Market      string  `json:"market"`
	TimeUTC     string  `json:"candle_date_time_utc"`
	Open        float64 `json:"opening_price"`
	High        float64 `json:"high_price"`
	Low         float64 `json:"low_price"`
	Close       float64 `json:"trade_price"`
	Volume      float64 `json:"candle_acc_trade_volume"`
	TradedValue float64 `json:"candle_acc_trade_price"`
}

func path(iv domain.Interval) (string, error) {
	switch iv {
	case domain.IntervalDay:
		return "/v1/candles/days", nil
	case domain.IntervalMinute1:
		return "/v1/candles/minutes/1", nil
	case domain.IntervalMinute60:
		return "/v1/candles/minutes/60", nil
	case domain.IntervalHour4:
		return "/v1/candles/minutes/240", nil
	default:
		return "", fmt.Errorf("upbit: %w %q", gather.ErrUnsupportedInterval, iv)
	}
}

// Candles pages backwards from now with the `to` cursor until Since or Count
// is satisfied or history runs out.
func (c *Client) Candles(ctx context.Context, req gather.Request) ([]domain.Candle, error) {
	p, err := path(req.Interval)
	if err != nil {
		return nil, err
	}
	if req.Since.IsZero() && req.Count <= 0 {
		return nil, fmt.Errorf("upbit: request needs Since or Count")
	}

	var out []domain.Candle
	to := ""
	for {
		size := PageSize
		if req.Since.IsZero() {
			size = min(PageSize, req.Count-len(out))
		}
		q := url.Values{}
		q.Set("market", req.Symbol)
		q.Set("count", strconv.Itoa(size))
		if to != "" {
			q.Set("to", to)
		}

		var page []candle
		if err := gather.GetJSON(ctx, c.http, c.limiter, c.baseURL+p+"?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("upbit %s: %w", req.Symbol, err)
		}

		done := len(page) < size
		for _, raw := range page {
			ts, err := time.ParseInLocation(timeLayout, raw.TimeUTC, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("upbit %s: parsing time %q: %w", req.Symbol, raw.TimeUTC, err)
			}
			if !req.Since.IsZero() && !ts.After(req.Since) {
				done = true
				continue
			}
			out = append(out, domain.Candle{
				Symbol:    req.Symbol,
				Timestamp: ts,
				Open:      raw.Open,
				High:      raw.High,
				Low:       raw.Low,
				Close:     raw.Close,
				Volume:    raw.Volume,
			})
		}
		if req.Since.IsZero() && len(out) >= req.Count {
			done = true
		}
		if done || len(page) == 0 {
			break
		}
		to = page[len(page)-1].TimeUTC + "Z"
	}
	return gather.Finalize(out, req), nil
}
