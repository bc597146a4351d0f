package gather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/store"
	"coinbt/internal/util"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFinalize(t *testing.T) {
	c := []domain.Candle{
		{Timestamp: t0.AddDate(0, 0, 2), Close: 3},
		{Timestamp: t0, Close: 1},
		{Timestamp: t0.AddDate(0, 0, 1), Close: 2},
		{Timestamp: t0.AddDate(0, 0, 2), Close: 30},
	}
	got := Finalize(c, Request{Count: 2})
	if len(got) != 2 || got[0].Close != 2 || got[1].Close != 30 {
		t.Errorf("Finalize = %+v", got)
	}

	c = []domain.Candle{{Timestamp: t0, Close: 1}, {Timestamp: t0.AddDate(0, 0, 1), Close: 2}}
	got = Finalize(c, Request{Since: t0})
	if len(got) != 1 || got[0].Close != 2 {
		t.Errorf("Finalize(since) = %+v", got)
	}
}

func TestGetJSONStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad market", http.StatusBadRequest)
	}))
	defer srv.Close()

	var out []int
	err := GetJSON(context.Background(), srv.Client(), util.NewRateLimiter(0), srv.URL, &out)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Errorf("err = %v, want StatusError 400", err)
	}
}

type fakeSource struct {
	reqs []Request
	err  error
}

func (f *fakeSource) Market() domain.Market { return domain.MarketUpbit }

func (f *fakeSource) Candles(_ context.Context, req Request) ([]domain.Candle, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Candle{{Timestamp: t0.AddDate(0, 0, 5), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}}, nil
}

func TestUpdaterResumesFromLatest(t *testing.T) {
	ctx := context.Background()
	ps := &store.ParquetStore{DataDir: t.TempDir()}
	stored := []domain.Candle{{Symbol: "KRW-BTC", Timestamp: t0.AddDate(0, 0, 4), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}}
	if err := ps.WriteCandles(ctx, domain.MarketUpbit, domain.IntervalDay, stored); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{}
	u := NewUpdater(src, ps, []string{"KRW-BTC", "KRW-ETH"}, []domain.Interval{domain.IntervalDay}, 200)
	if u.Name() != "upbit-candles" {
		t.Errorf("Name = %q", u.Name())
	}
	if err := u.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(src.reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(src.reqs))
	}
	if !src.reqs[0].Since.Before(stored[0].Timestamp) || src.reqs[0].Since.Before(stored[0].Timestamp.Add(-time.Second)) {
		t.Errorf("BTC since = %v, want just before the stored bar", src.reqs[0].Since)
	}
	if !src.reqs[1].Since.IsZero() || src.reqs[1].Count != 200 {
		t.Errorf("ETH request = %+v, want a fresh count fetch", src.reqs[1])
	}

	got, err := ps.ReadCandles(ctx, domain.MarketUpbit, domain.IntervalDay, "KRW-BTC", time.Time{}, time.Time{})
	if err != nil || len(got) != 2 {
		t.Errorf("stored BTC = %d candles, %v, want 2", len(got), err)
	}
}

func TestUpdaterJoinsErrors(t *testing.T) {
	boom := errors.New("down")
	ps := &store.ParquetStore{DataDir: t.TempDir()}
	src := &fakeSource{err: boom}
	u := NewUpdater(src, ps, []string{"A", "B"}, []domain.Interval{domain.IntervalDay}, 10)
	if err := u.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want down", err)
	}
	if len(src.reqs) != 2 {
		t.Errorf("requests = %d, want both symbols tried", len(src.reqs))
	}
}
