package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"coinbt/internal/domain"
)

// Compile-time interface check.
var _ CandleStore = (*ParquetStore)(nil)

// ParquetStore implements CandleStore using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// CandleRecord is the Parquet schema for candle data.
type CandleRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

func toRecord(c domain.Candle) CandleRecord {
	return CandleRecord{
		Symbol:    c.Symbol,
		Timestamp: c.Timestamp.UnixMilli(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

func (r CandleRecord) candle() domain.Candle {
	return domain.Candle{
		Symbol:    r.Symbol,
		Timestamp: time.UnixMilli(r.Timestamp).UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
}

// ---------------------------------------------------------------------------
// CandleStore implementation
// ---------------------------------------------------------------------------

// WriteCandles writes candles to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/<market>/<interval>/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteCandles(_ context.Context, market domain.Market, interval domain.Interval, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]CandleRecord)
	for _, c := range candles {
		k := key{symbol: c.Symbol, year: c.Timestamp.UTC().Year()}
		groups[k] = append(groups[k], toRecord(c))
	}

	for k, records := range groups {
		path := s.candlePath(market, interval, k.symbol, k.year)

		var existing []CandleRecord
		if _, err := os.Stat(path); err == nil {
			existing, err = readParquetFile[CandleRecord](path)
			if err != nil {
				return fmt.Errorf("reading candles for %s/%d: %w", k.symbol, k.year, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		merged := mergeCandleRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing candles for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadCandles reads candles from Parquet files for the given symbol and time range.
func (s *ParquetStore) ReadCandles(_ context.Context, market domain.Market, interval domain.Interval, symbol string, start, end time.Time) ([]domain.Candle, error) {
	years, err := s.years(market, interval, symbol)
	if err != nil {
		return nil, err
	}

	var candles []domain.Candle
	for _, year := range years {
		if !start.IsZero() && year < start.UTC().Year() {
			continue
		}
		if !end.IsZero() && year > end.UTC().Year() {
			continue
		}

		records, err := readParquetFile[CandleRecord](s.candlePath(market, interval, symbol, year))
		if err != nil {
			return nil, fmt.Errorf("reading candles for %s/%d: %w", symbol, year, err)
		}
		for _, r := range records {
			c := r.candle()
			if !start.IsZero() && c.Timestamp.Before(start) {
				continue
			}
			if !end.IsZero() && c.Timestamp.After(end) {
				continue
			}
			candles = append(candles, c)
		}
	}
	return candles, nil
}

// LatestCandle returns the newest candle in the symbol's most recent year file.
func (s *ParquetStore) LatestCandle(_ context.Context, market domain.Market, interval domain.Interval, symbol string) (domain.Candle, bool, error) {
	years, err := s.years(market, interval, symbol)
	if err != nil || len(years) == 0 {
		return domain.Candle{}, false, err
	}
	last := years[len(years)-1]
	records, err := readParquetFile[CandleRecord](s.candlePath(market, interval, symbol, last))
	if err != nil {
		return domain.Candle{}, false, fmt.Errorf("reading candles for %s/%d: %w", symbol, last, err)
	}
	if len(records) == 0 {
		return domain.Candle{}, false, nil
	}
	return records[len(records)-1].candle(), true, nil
}

// ListSymbols lists all symbols that have candle data for the market and interval.
func (s *ParquetStore) ListSymbols(_ context.Context, market domain.Market, interval domain.Interval) ([]string, error) {
	dir := filepath.Join(s.DataDir, string(market), string(interval))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// candlePath returns the filesystem path for a candle Parquet file.
// Layout: <dataDir>/<market>/<interval>/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) candlePath(market domain.Market, interval domain.Interval, symbol string, year int) string {
	return filepath.Join(s.DataDir, string(market), string(interval), strings.ToUpper(symbol), strconv.Itoa(year)+".parquet")
}

// years lists the year files stored for a symbol, ascending.
func (s *ParquetStore) years(market domain.Market, interval domain.Interval, symbol string) ([]int, error) {
	dir := filepath.Dir(s.candlePath(market, interval, symbol, 0))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var years []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".parquet")
		if !ok || e.IsDir() {
			continue
		}
		if y, err := strconv.Atoi(name); err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeCandleRecords deduplicates candle records by (symbol, timestamp),
// preferring new records over existing ones.
func mergeCandleRecords(existing, incoming []CandleRecord) []CandleRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]CandleRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]CandleRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
