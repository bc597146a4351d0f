package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/engine"
)

// ResultHeader is the column layout of a backtest results CSV. Downstream
// report consumers key on these exact names.
var ResultHeader = []string{
	"Market",
	"Count",
	"Investment Fraction",
	"Cumulative Return (%)",
	"Win Rate (%)",
	"Max Drawdown (%)",
}

// LedgerHeader is the column layout of a per-market ledger CSV.
var LedgerHeader = []string{"Time", "Close", "Signal", "Position", "Cash", "Quantity", "Holdings", "Total"}

// TradeHeader is the column layout of a trade log CSV.
var TradeHeader = []string{"Entry Time", "Exit Time", "Entry Price", "Exit Price", "Quantity", "PnL", "Return (%)"}

const csvTimeLayout = "2006-01-02 15:04:05"

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// pct rounds a percentage to two decimals.
func pct(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// ResultsPath returns <strategy>_backtest_<count>.csv under dir. A count of
// 0 means every stored bar was used and drops the suffix.
func ResultsPath(dir, strategy string, count int) string {
	if count <= 0 {
		return filepath.Join(dir, strategy+"_backtest.csv")
	}
	return filepath.Join(dir, fmt.Sprintf("%s_backtest_%d.csv", strategy, count))
}

// LedgerPath returns <dir>/<strategy>_backtest/<strategy>_<market>_<count>.csv.
func LedgerPath(dir, strategy, market string, count int) string {
	return filepath.Join(dir, strategy+"_backtest", fmt.Sprintf("%s_%s_%d.csv", strategy, market, count))
}

// WriteResults writes results as CSV, ordered by max drawdown descending
// (shallowest drawdown first). Ties keep their input order.
func WriteResults(w io.Writer, results []domain.BacktestResult) error {
	sorted := make([]domain.BacktestResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MaxDrawdownPct > sorted[j].MaxDrawdownPct
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(ResultHeader); err != nil {
		return err
	}
	for _, r := range sorted {
		if err := cw.Write([]string{
			r.Market,
			strconv.Itoa(r.Count),
			ftoa(r.InvestmentFraction),
			pct(r.CumulativeReturnPct),
			pct(r.WinRatePct),
			pct(r.MaxDrawdownPct),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadResults parses a results CSV written by WriteResults. The strategy is
// not part of the file and is set by the caller.
func ReadResults(r io.Reader, strategy string) ([]domain.BacktestResult, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range ResultHeader {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("results csv: missing column %q", name)
		}
	}

	out := make([]domain.BacktestResult, 0, len(rows)-1)
	for line, row := range rows[1:] {
		res := domain.BacktestResult{Strategy: strategy, Market: row[col["Market"]]}
		var perr error
		parse := func(name string) float64 {
			f, err := strconv.ParseFloat(row[col[name]], 64)
			if err != nil && perr == nil {
				perr = fmt.Errorf("results csv line %d column %q: %w", line+2, name, err)
			}
			return f
		}
		res.Count = int(parse("Count"))
		res.InvestmentFraction = parse("Investment Fraction")
		res.CumulativeReturnPct = parse("Cumulative Return (%)")
		res.WinRatePct = parse("Win Rate (%)")
		res.MaxDrawdownPct = parse("Max Drawdown (%)")
		if perr != nil {
			return nil, perr
		}
		out = append(out, res)
	}
	return out, nil
}

// WriteLedger writes one ledger row per bar.
func WriteLedger(w io.Writer, l *engine.Ledger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LedgerHeader); err != nil {
		return err
	}
	for _, e := range l.Entries {
		if err := cw.Write([]string{
			e.Timestamp.Format(csvTimeLayout),
			ftoa(e.Close),
			ftoa(e.Signal),
			ftoa(e.Position),
			ftoa(e.Cash),
			ftoa(e.Quantity),
			ftoa(e.Holdings),
			ftoa(e.Total),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrades writes the closed trades of a ledger.
func WriteTrades(w io.Writer, trades []engine.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write([]string{
			t.EntryTime.Format(csvTimeLayout),
			t.ExitTime.Format(csvTimeLayout),
			ftoa(t.EntryPrice),
			ftoa(t.ExitPrice),
			ftoa(t.Quantity),
			ftoa(t.PnL),
			pct(t.ReturnPct),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path (and its directory) and fills it with write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// BackupFile copies an existing file to <name>_<YYYYMMDD><ext> next to it
// and returns the backup path. A missing file is not an error and returns "".
func BackupFile(path string, now time.Time) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer src.Close()

	ext := filepath.Ext(path)
	backup := strings.TrimSuffix(path, ext) + "_" + now.Format("20060102") + ext

	dst, err := os.Create(backup)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("backing up %s: %w", path, err)
	}
	return backup, dst.Close()
}
