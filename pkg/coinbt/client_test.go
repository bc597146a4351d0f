package coinbt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/httpapi"
	"coinbt/internal/store"
	"coinbt/internal/strategy/builtins"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestClientAgainstServer(t *testing.T) {
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := db.SaveResults(ctx, []domain.BacktestResult{{Strategy: "macd", Market: "KRW-SOL", Count: 100, CumulativeReturnPct: 4.5, CreatedAt: now}}); err != nil {
		t.Fatal(err)
	}
	if err := db.SavePicks(ctx, []domain.Pick{{Symbol: "KRW-SOL", Strategy: "macd", CumulativeReturnPct: 4.5, RankedAt: now}}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSignal(ctx, &domain.LiveSignal{StrategyID: "macd", Symbol: "KRW-SOL", Type: domain.SignalTypeHold, Price: 9, BarTime: now, CreatedAt: now}); err != nil {
		t.Fatal(err)
	}

	hub := httpapi.NewHub()
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go hub.Run(hctx)
	srv := httptest.NewServer(httpapi.NewServer(db, db, builtins.DefaultRegistry(), hub, nil).Handler())
	defer srv.Close()
	c := NewClient(srv.URL)

	results, err := c.Results(ctx, "macd", 10)
	if err != nil || len(results) != 1 || results[0].Market != "KRW-SOL" {
		t.Errorf("Results = %+v, %v", results, err)
	}
	picks, err := c.Picks(ctx)
	if err != nil || len(picks) != 1 || picks[0].Strategy != "macd" {
		t.Errorf("Picks = %+v, %v", picks, err)
	}
	best, err := c.Best(ctx)
	if err != nil || len(best.Assets["macd"]) != 1 {
		t.Errorf("Best = %+v, %v", best, err)
	}
	sigs, err := c.Signals(ctx, "", 0)
	if err != nil || len(sigs) != 1 || sigs[0].Type != "hold" {
		t.Errorf("Signals = %+v, %v", sigs, err)
	}
	strats, err := c.Strategies(ctx)
	if err != nil || len(strats) != 10 {
		t.Errorf("Strategies = %d, %v", len(strats), err)
	}

	sub, err := c.Subscribe(hctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		hub.Broadcast(domain.LiveSignal{ID: 3, StrategyID: "macd", Symbol: "KRW-SOL", Type: domain.SignalTypeSell})
		select {
		case s := <-sub:
			if s.ID != 3 || s.Type != "sell" {
				t.Errorf("streamed signal = %+v", s)
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no signal streamed")
		}
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"limit must be a positive integer"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Results(context.Background(), "", 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "limit must be a positive integer" {
		t.Errorf("err = %v, want APIError 400", err)
	}
}
