package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/gather"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeKlines serves total daily klines from day0, ascending, honouring
// startTime, endTime and limit the way the real endpoint does.
func fakeKlines(t *testing.T, total int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("interval") != "1d" || q.Get("symbol") != "BTCUSDT" {
			t.Errorf("query = %v", q)
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		start, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		end, _ := strconv.ParseInt(q.Get("endTime"), 10, 64)

		var rows []string
		for i := 0; i < total; i++ {
			ms := day0.AddDate(0, 0, i).UnixMilli()
			if (start > 0 && ms < start) || (end > 0 && ms > end) {
				continue
			}
			p := fmt.Sprintf("%d.50000000", 100+i)
			rows = append(rows, fmt.Sprintf(`[%d,"%s","%s","%s","%s","12.00100000",%d,"0",1,"0","0","0"]`, ms, p, p, p, p, ms+86399999))
		}
		// Without startTime the endpoint returns the most recent bars.
		if start == 0 && len(rows) > limit {
			rows = rows[len(rows)-limit:]
		} else if len(rows) > limit {
			rows = rows[:limit]
		}
		fmt.Fprint(w, "["+strings.Join(rows, ",")+"]")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCandlesCountPagesBackwards(t *testing.T) {
	c := NewClient(fakeKlines(t, 2500).URL, 0)
	got, err := c.Candles(context.Background(), gather.Request{Symbol: "BTCUSDT", Interval: domain.IntervalDay, Count: 1500})
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(got) != 1500 {
		t.Fatalf("len = %d, want 1500", len(got))
	}
	if want := day0.AddDate(0, 0, 1000); !got[0].Timestamp.Equal(want) {
		t.Errorf("first = %v, want %v", got[0].Timestamp, want)
	}
	if got[1499].Close != 2599.5 || got[1499].Volume != 12.001 {
		t.Errorf("last = %+v", got[1499])
	}
}

func TestCandlesSincePagesForward(t *testing.T) {
	c := NewClient(fakeKlines(t, 1200).URL, 0)
	since := day0.AddDate(0, 0, 100)
	got, err := c.Candles(context.Background(), gather.Request{Symbol: "BTCUSDT", Interval: domain.IntervalDay, Since: since})
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(got) != 1099 {
		t.Errorf("len = %d, want 1099", len(got))
	}
	if got[0].Close != 201.5 {
		t.Errorf("first close = %v, want 201.5", got[0].Close)
	}
}

func TestParseKlineErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[[1,"abc","1","1","1","1"]]`)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 0)
	if _, err := c.Candles(context.Background(), gather.Request{Symbol: "BTCUSDT", Interval: domain.IntervalDay, Count: 1}); err == nil {
		t.Error("accepted a non-numeric price")
	}
}
