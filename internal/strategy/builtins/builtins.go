// Package builtins provides the signal generators that ship with coinbt and
// the default, ordered strategy registry built from them.
package builtins

import (
	"fmt"

	"coinbt/internal/domain"
	"coinbt/internal/strategy"
)

// DefaultRegistry returns the standard strategy set in ranking order. The
// order decides ties in the ranker.
func DefaultRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	must := func(name string, g strategy.Generator, p strategy.Params) {
		if err := r.Register(name, g, p); err != nil {
			panic(err)
		}
	}
	must("daily_average_5", DailyAverage{}, strategy.Params{Window: 5})
	must("daily_average_120", DailyAverage{}, strategy.Params{Window: 120})
	must("golden_cross", GoldenCross{}, strategy.Params{ShortWindow: 5, LongWindow: 20})
	must("volatility", Volatility{}, strategy.Params{K: 0.5, Window: 5})
	must("volatility_ma", Volatility{}, strategy.Params{K: 0.5, Window: 5, CheckMA: true})
	must("volatility_volume", Volatility{}, strategy.Params{K: 0.5, Window: 5, CheckMA: true, CheckVolume: true})
	must("afternoon", Afternoon{}, strategy.Params{})
	must("macd", MACDCross{}, strategy.Params{ShortWindow: 12, LongWindow: 26, SignalWindow: 9})
	must("bollinger", Bollinger{}, strategy.Params{Window: 20, K: 2})
	must("ma_score", MAScore{Windows: MAScoreWindows}, strategy.Params{})
	return r
}

// RankedStrategies are the registry entries compared by the ranker.
var RankedStrategies = []string{
	"daily_average_5",
	"daily_average_120",
	"golden_cross",
	"volatility",
	"volatility_ma",
	"volatility_volume",
	"afternoon",
}

// MACombinations are the (short, long) window pairs of the moving-average
// sweep.
var MACombinations = [][2]int{{5, 20}, {10, 20}, {10, 50}, {20, 50}}

// SweepJobs expands the golden cross strategy over MACombinations for each
// symbol. Results are labelled golden_cross_<short>_<long>.
func SweepJobs(symbols []string, count int) []strategy.Job {
	jobs := make([]strategy.Job, 0, len(symbols)*len(MACombinations))
	for _, combo := range MACombinations {
		for _, sym := range symbols {
			jobs = append(jobs, strategy.Job{
				Strategy: "golden_cross",
				Symbol:   sym,
				Count:    count,
				Params:   strategy.Params{ShortWindow: combo[0], LongWindow: combo[1]},
				Label:    fmt.Sprintf("golden_cross_%d_%d", combo[0], combo[1]),
			})
		}
	}
	return jobs
}

func closes(s strategy.Series) []float64 {
	return domain.Closes(s.Candles)
}

func boolSignal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
