// Package httpapi provides a read-only HTTP JSON API over stored backtest
// results, rankings and live signals, plus a websocket feed of new signals.
package httpapi

import (
	"time"

	"coinbt/internal/domain"
)

// ResultJSON is the JSON representation of a backtest result.
type ResultJSON struct {
	Strategy            string            `json:"strategy"`
	Market              string            `json:"market"`
	Count               int               `json:"count"`
	InvestmentFraction  float64           `json:"investmentFraction"`
	CumulativeReturnPct float64           `json:"cumulativeReturnPct"`
	WinRatePct          float64           `json:"winRatePct"`
	MaxDrawdownPct      float64           `json:"maxDrawdownPct"`
	Trades              int               `json:"trades"`
	Params              map[string]string `json:"params,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
}

// ResultsResponse is the response for GET /api/results.
type ResultsResponse struct {
	Results []ResultJSON `json:"results"`
}

// PickJSON is one market's ranked strategy.
type PickJSON struct {
	Symbol              string    `json:"symbol"`
	Strategy            string    `json:"strategy"`
	CumulativeReturnPct float64   `json:"cumulativeReturnPct"`
	RankedAt            time.Time `json:"rankedAt"`
}

// PicksResponse is the response for GET /api/picks.
type PicksResponse struct {
	Picks []PickJSON `json:"picks"`
}

// BestResponse maps every strategy to the markets it won.
type BestResponse struct {
	Strategies []string            `json:"strategies"`
	Assets     map[string][]string `json:"assets"`
}

// SignalJSON is the JSON representation of a live signal. It is also the
// websocket message body.
type SignalJSON struct {
	ID        int64     `json:"id"`
	Strategy  string    `json:"strategy"`
	Symbol    string    `json:"symbol"`
	Type      string    `json:"type"`
	Price     float64   `json:"price"`
	BarTime   time.Time `json:"barTime"`
	CreatedAt time.Time `json:"createdAt"`
}

// SignalsResponse is the response for GET /api/signals.
type SignalsResponse struct {
	Signals []SignalJSON `json:"signals"`
}

// StrategyJSON describes a registered strategy.
type StrategyJSON struct {
	Name      string            `json:"name"`
	Generator string            `json:"generator"`
	Params    map[string]string `json:"params,omitempty"`
}

// StrategiesResponse is the response for GET /api/strategies.
type StrategiesResponse struct {
	Strategies []StrategyJSON `json:"strategies"`
}

func toResultJSON(r domain.BacktestResult) ResultJSON {
	return ResultJSON{
		Strategy:            r.Strategy,
		Market:              r.Market,
		Count:               r.Count,
		InvestmentFraction:  r.InvestmentFraction,
		CumulativeReturnPct: r.CumulativeReturnPct,
		WinRatePct:          r.WinRatePct,
		MaxDrawdownPct:      r.MaxDrawdownPct,
		Trades:              r.Trades,
		Params:              r.Params,
		CreatedAt:           r.CreatedAt,
	}
}

func toPickJSON(p domain.Pick) PickJSON {
	return PickJSON{
		Symbol:              p.Symbol,
		Strategy:            p.Strategy,
		CumulativeReturnPct: p.CumulativeReturnPct,
		RankedAt:            p.RankedAt,
	}
}

// ToSignalJSON converts a live signal for the API and the websocket feed.
func ToSignalJSON(s domain.LiveSignal) SignalJSON {
	return SignalJSON{
		ID:        s.ID,
		Strategy:  s.StrategyID,
		Symbol:    s.Symbol,
		Type:      string(s.Type),
		Price:     s.Price,
		BarTime:   s.BarTime,
		CreatedAt: s.CreatedAt,
	}
}
