// Package ranking picks the best strategy per asset from backtest results and
// renders the strategy -> assets report that drives live signalling.
package ranking

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/store"
)

// ReportName is the default file name of the ranking report.
const ReportName = "best_strategy.txt"

// Best returns the strategy with the highest cumulative return among
// results, keyed by strategy name. Strategies are considered in order; a
// later strategy must be strictly better to win, so ties go to the earlier
// one. Results with a NaN return and names absent from order are skipped.
func Best(order []string, results map[string]domain.BacktestResult) (string, bool) {
	best, found := "", false
	bestRet := math.Inf(-1)
	for _, name := range order {
		r, ok := results[name]
		if !ok || math.IsNaN(r.CumulativeReturnPct) {
			continue
		}
		if !found || r.CumulativeReturnPct > bestRet {
			best, bestRet, found = name, r.CumulativeReturnPct, true
		}
	}
	return best, found
}

// Rank groups results by market and picks the best strategy for each. Picks
// follow the order markets first appear in results.
func Rank(order []string, results []domain.BacktestResult, now time.Time) []domain.Pick {
	var markets []string
	byMarket := make(map[string]map[string]domain.BacktestResult)
	for _, r := range results {
		m, ok := byMarket[r.Market]
		if !ok {
			m = make(map[string]domain.BacktestResult)
			byMarket[r.Market] = m
			markets = append(markets, r.Market)
		}
		if _, dup := m[r.Strategy]; !dup {
			m[r.Strategy] = r
		}
	}

	picks := make([]domain.Pick, 0, len(markets))
	for _, market := range markets {
		name, ok := Best(order, byMarket[market])
		if !ok {
			continue
		}
		picks = append(picks, domain.Pick{
			Symbol:              market,
			Strategy:            name,
			CumulativeReturnPct: byMarket[market][name].CumulativeReturnPct,
			RankedAt:            now,
		})
	}
	return picks
}

// Assignment maps each strategy to the assets it won, keeping every strategy
// in order even when it won nothing.
type Assignment struct {
	Order  []string
	Assets map[string][]string
}

// Assign inverts picks into a strategy -> assets assignment.
func Assign(order []string, picks []domain.Pick) Assignment {
	a := Assignment{Order: append([]string(nil), order...), Assets: make(map[string][]string, len(order))}
	for _, name := range order {
		a.Assets[name] = []string{}
	}
	for _, p := range picks {
		if _, ok := a.Assets[p.Strategy]; !ok {
			a.Order = append(a.Order, p.Strategy)
		}
		a.Assets[p.Strategy] = append(a.Assets[p.Strategy], p.Symbol)
	}
	return a
}

// For returns the assets assigned to a strategy.
func (a Assignment) For(strategy string) []string {
	return a.Assets[strategy]
}

// Write renders one `<strategy> : ["A", "B"]` line per strategy.
func (a Assignment) Write(w io.Writer) error {
	for _, name := range a.Order {
		assets := a.Assets[name]
		if assets == nil {
			assets = []string{}
		}
		b, err := json.Marshal(assets)
		if err != nil {
			return err
		}
		list := strings.ReplaceAll(string(b), `","`, `", "`)
		if _, err := fmt.Fprintf(w, "%s : %s\n", name, list); err != nil {
			return err
		}
	}
	return nil
}

// Read parses a report produced by Write.
func Read(r io.Reader) (Assignment, error) {
	a := Assignment{Assets: make(map[string][]string)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		name, list, ok := strings.Cut(text, " : ")
		if !ok {
			return Assignment{}, fmt.Errorf("ranking report line %d: missing separator", line)
		}
		var assets []string
		if err := json.Unmarshal([]byte(list), &assets); err != nil {
			return Assignment{}, fmt.Errorf("ranking report line %d: %w", line, err)
		}
		if assets == nil {
			assets = []string{}
		}
		name = strings.TrimSpace(name)
		if _, dup := a.Assets[name]; !dup {
			a.Order = append(a.Order, name)
		}
		a.Assets[name] = assets
	}
	return a, sc.Err()
}

// SaveReport writes the report to path, first copying any existing report to
// a dated backup. It returns the backup path, or "" when there was nothing
// to back up.
func SaveReport(path string, a Assignment, now time.Time) (string, error) {
	backup, err := store.BackupFile(path, now)
	if err != nil {
		return "", fmt.Errorf("backing up %s: %w", path, err)
	}
	if err := store.WriteFile(path, a.Write); err != nil {
		return backup, err
	}
	return backup, nil
}

// LoadReport reads a report file.
func LoadReport(path string) (Assignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return Assignment{}, err
	}
	defer f.Close()
	return Read(f)
}
