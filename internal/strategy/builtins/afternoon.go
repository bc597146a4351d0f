package builtins

import (
	"fmt"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/strategy"
	"coinbt/internal/util"
)

// Side columns produced by Afternoon.Resample.
const (
	ColMorningVolume   = "morning_volume"
	ColAfternoonVolume = "afternoon_volume"
	ColAfternoonOpen   = "afternoon_open"
)

const hoursPerSession = 24

// Compile-time interface checks.
var (
	_ strategy.Generator = Afternoon{}
	_ strategy.Resampler = Afternoon{}
)

// Afternoon is the morning/afternoon momentum strategy over hourly bars. Each
// KST exchange day is split at noon; the day signals long when the afternoon
// half gained and traded more volume than the morning half. Positions are
// closed at the next day's noon price.
type Afternoon struct{}

// Name returns "afternoon".
func (Afternoon) Name() string { return "afternoon" }

// SourceInterval returns the hourly interval.
func (Afternoon) SourceInterval() domain.Interval { return domain.IntervalMinute60 }

// Resample folds hourly candles into one bar per complete KST day. The bar is
// stamped at noon and closes at the day's last hourly close. Days missing
// any hour are skipped.
func (Afternoon) Resample(candles []domain.Candle) (strategy.Series, error) {
	var (
		days    []domain.Candle
		noon    []float64
		mVol    []float64
		aVol    []float64
		aOpen   []float64
		current []domain.Candle
		key     time.Time
	)

	flush := func() {
		if len(current) != hoursPerSession {
			return
		}
		day := domain.Candle{
			Symbol:    current[0].Symbol,
			Timestamp: util.Noon(current[0].Timestamp),
			Open:      current[0].Open,
			High:      current[0].High,
			Low:       current[0].Low,
			Close:     current[len(current)-1].Close,
		}
		var morningClose, afternoonOpen, mv, av float64
		seenAfternoon := false
		for _, c := range current {
			day.High = max(day.High, c.High)
			day.Low = min(day.Low, c.Low)
			day.Volume += c.Volume
			if util.IsMorning(c.Timestamp) {
				morningClose = c.Close
				mv += c.Volume
				continue
			}
			if !seenAfternoon {
				afternoonOpen = c.Open
				seenAfternoon = true
			}
			av += c.Volume
		}
		days = append(days, day)
		noon = append(noon, morningClose)
		mVol = append(mVol, mv)
		aVol = append(aVol, av)
		aOpen = append(aOpen, afternoonOpen)
	}

	for i, c := range candles {
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return strategy.Series{}, fmt.Errorf("afternoon: bar %d timestamp %s not after previous", i, c.Timestamp.Format(time.RFC3339))
		}
		d := util.SessionDay(c.Timestamp)
		if !d.Equal(key) {
			flush()
			current = current[:0]
			key = d
		}
		current = append(current, c)
	}
	flush()

	return strategy.Series{
		Candles:    days,
		NoonPrices: noon,
		Columns: map[string][]float64{
			ColMorningVolume:   mVol,
			ColAfternoonVolume: aVol,
			ColAfternoonOpen:   aOpen,
		},
	}, nil
}

// Generate computes the per-day momentum signal from the resampled columns.
func (Afternoon) Generate(s strategy.Series, _ strategy.Params) ([]float64, error) {
	n := s.Len()
	mv, av, ao := s.Columns[ColMorningVolume], s.Columns[ColAfternoonVolume], s.Columns[ColAfternoonOpen]
	if len(mv) != n || len(av) != n || len(ao) != n {
		return nil, fmt.Errorf("afternoon: series has not been resampled")
	}
	out := make([]float64, n)
	for i, c := range s.Candles {
		if ao[i] <= 0 {
			continue
		}
		ret := (c.Close - ao[i]) / ao[i]
		out[i] = boolSignal(ret > 0 && av[i] > mv[i])
	}
	return out, nil
}
