// Package gather collects OHLCV candles from exchange APIs into a
// CandleStore.
package gather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/store"
	"coinbt/internal/util"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early when ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// Request describes a candle fetch for one symbol.
type Request struct {
	Symbol   string
	Interval domain.Interval
	// Since, when set, asks for every bar opening after it.
	Since time.Time
	// Count caps a fetch without Since to the most recent Count bars.
	Count int
}

// Source is an exchange candle endpoint.
type Source interface {
	Market() domain.Market
	// Candles returns the requested bars sorted oldest first.
	Candles(ctx context.Context, req Request) ([]domain.Candle, error)
}

// ErrUnsupportedInterval is returned by sources for intervals they cannot
// serve.
var ErrUnsupportedInterval = errors.New("unsupported interval")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// GetJSON performs a rate-limited GET and decodes the JSON body into out.
// 429 and 5xx responses are retried with backoff; other failures are not.
func GetJSON(ctx context.Context, client *http.Client, limiter *util.RateLimiter, url string, out any) error {
	return util.Retry(ctx, 5, time.Second, func() error {
		if err := limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return util.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return util.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			se := &StatusError{Code: resp.StatusCode, Body: string(body)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				slog.Warn("request throttled, backing off", "url", url, "status", resp.StatusCode)
				return se
			}
			return util.Permanent(se)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return util.Permanent(fmt.Errorf("decoding %s: %w", url, err))
		}
		return nil
	})
}

// Finalize sorts candles ascending, drops duplicate timestamps keeping the
// later one, and applies the request's Since and Count bounds.
func Finalize(candles []domain.Candle, req Request) []domain.Candle {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	out := candles[:0]
	for _, c := range candles {
		if !req.Since.IsZero() && !c.Timestamp.After(req.Since) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(c.Timestamp) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	if req.Since.IsZero() && req.Count > 0 && len(out) > req.Count {
		out = out[len(out)-req.Count:]
	}
	return out
}

// Updater keeps stored candle series current for a fixed symbol list.
type Updater struct {
	source    Source
	store     store.CandleStore
	symbols   []string
	intervals []domain.Interval
	count     int
	log       *slog.Logger
}

var _ Gatherer = (*Updater)(nil)

// NewUpdater creates an Updater. count bounds the first fetch of a symbol
// with nothing stored yet.
func NewUpdater(src Source, s store.CandleStore, symbols []string, intervals []domain.Interval, count int) *Updater {
	return &Updater{
		source:    src,
		store:     s,
		symbols:   symbols,
		intervals: intervals,
		count:     count,
		log:       slog.Default().With("gatherer", string(src.Market())),
	}
}

// Name returns "<market>-candles".
func (u *Updater) Name() string { return string(u.source.Market()) + "-candles" }

// Run updates every (symbol, interval) series. Stored series resume from
// their last bar, which is fetched again since it may have been partial. A
// failing symbol does not stop the others; all failures are joined.
func (u *Updater) Run(ctx context.Context) error {
	var errs []error
	for _, iv := range u.intervals {
		for _, sym := range u.symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := u.update(ctx, sym, iv)
			if err != nil {
				u.log.Error("update failed", "symbol", sym, "interval", iv, "error", err)
				errs = append(errs, fmt.Errorf("%s %s: %w", sym, iv, err))
				continue
			}
			u.log.Info("updated", "symbol", sym, "interval", iv, "candles", n)
		}
	}
	return errors.Join(errs...)
}

func (u *Updater) update(ctx context.Context, symbol string, iv domain.Interval) (int, error) {
	req := Request{Symbol: symbol, Interval: iv, Count: u.count}
	last, ok, err := u.store.LatestCandle(ctx, u.source.Market(), iv, symbol)
	if err != nil {
		return 0, err
	}
	if ok {
		req.Since = last.Timestamp.Add(-time.Nanosecond)
	}

	candles, err := u.source.Candles(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, nil
	}
	for i := range candles {
		candles[i].Symbol = symbol
	}
	if err := u.store.WriteCandles(ctx, u.source.Market(), iv, candles); err != nil {
		return 0, err
	}
	return len(candles), nil
}
