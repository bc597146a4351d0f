package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coinbt/internal/config"
	"coinbt/internal/domain"
	"coinbt/internal/ranking"
	"coinbt/internal/store"
	"coinbt/internal/strategy"
	"coinbt/internal/strategy/builtins"
)

func testConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	cfg = config.Default()
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.SQLitePath = filepath.Join(dir, "data", "coinbt.db")
	cfg.Storage.ResultsDir = filepath.Join(dir, "results")
	cfg.Storage.ReportPath = filepath.Join(dir, "best_strategy.txt")
}

func seed(t *testing.T, symbol string, n int, step float64) {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := make([]domain.Candle, n)
	for i := range c {
		p := 100 + float64(i%7)*step + float64(i)
		c[i] = domain.Candle{Symbol: symbol, Timestamp: start.AddDate(0, 0, i), Open: p - 1, High: p + 2, Low: p - 2, Close: p, Volume: float64(1 + i%3)}
	}
	if err := openCandles().WriteCandles(context.Background(), domain.MarketUpbit, domain.IntervalDay, c); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteWritesReports(t *testing.T) {
	testConfig(t)
	seed(t, "KRW-BTC", 60, 3)
	seed(t, "KRW-ETH", 60, -2)

	db, err := openDB()
	if err != nil {
		t.Fatalf("openDB: %v", err)
	}
	defer db.Close()

	b := batch{market: domain.MarketUpbit, symbols: []string{"KRW-BTC", "KRW-ETH", "KRW-MISSING"}, count: 50, workers: 2, sizing: strategy.DefaultParams()}
	rep, err := execute(context.Background(), builtins.DefaultRegistry(), b, b.jobs([]string{"daily_average_5", "golden_cross"}), db, true)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(rep.Results) != 4 {
		t.Errorf("results = %d, want 4 (missing market skipped)", len(rep.Results))
	}
	if len(rep.Failures) != 2 || rep.Failures[0].Symbol != "KRW-MISSING" || rep.Failures[0].Strategy != "daily_average_5" {
		t.Errorf("failures = %+v, want one per strategy for KRW-MISSING", rep.Failures)
	}

	csv, err := os.ReadFile(store.ResultsPath(cfg.Storage.ResultsDir, "golden_cross", 50))
	if err != nil {
		t.Fatalf("results CSV: %v", err)
	}
	if !strings.HasPrefix(string(csv), "Market,Count,Investment Fraction,") {
		t.Errorf("results CSV header = %q", strings.SplitN(string(csv), "\n", 2)[0])
	}
	if _, err := os.Stat(store.LedgerPath(cfg.Storage.ResultsDir, "daily_average_5", "KRW-ETH", 50)); err != nil {
		t.Errorf("ledger CSV: %v", err)
	}

	stored, err := db.ListResults(context.Background(), "", 0)
	if err != nil || len(stored) != 4 {
		t.Errorf("stored results = %d, %v, want 4", len(stored), err)
	}

	picks := ranking.Rank(builtins.RankedStrategies, rep.Results, time.Now())
	if len(picks) != 2 {
		t.Errorf("picks = %+v, want one per market", picks)
	}
}

func TestPrintResultsNotesFailures(t *testing.T) {
	testConfig(t)
	seed(t, "KRW-BTC", 60, 3)
	db, err := openDB()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	b := batch{market: domain.MarketUpbit, symbols: []string{"KRW-BTC", "KRW-MISSING"}, workers: 1, sizing: strategy.DefaultParams()}
	rep, err := execute(context.Background(), builtins.DefaultRegistry(), b, b.jobs([]string{"golden_cross"}), db, false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var out strings.Builder
	printResults(&out, rep)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("report = %q, want header, one result and one error line", out.String())
	}
	if !strings.HasPrefix(lines[1], "golden_cross") || !strings.Contains(lines[1], "KRW-BTC") {
		t.Errorf("result line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "KRW-MISSING") || !strings.Contains(lines[2], "error: ") || !strings.Contains(lines[2], "no 1d candles stored") {
		t.Errorf("error line = %q", lines[2])
	}

	if _, err := os.Stat(store.ResultsPath(cfg.Storage.ResultsDir, "golden_cross", 0)); err != nil {
		t.Errorf("results CSV without count: %v", err)
	}
}

func TestExecuteAllFailed(t *testing.T) {
	testConfig(t)
	db, err := openDB()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	b := batch{market: domain.MarketUpbit, symbols: []string{"KRW-NONE"}, count: 10, workers: 1, sizing: strategy.DefaultParams()}
	if _, err := execute(context.Background(), builtins.DefaultRegistry(), b, b.jobs([]string{"macd"}), db, false); err == nil {
		t.Error("execute succeeded with no candles")
	}
}
