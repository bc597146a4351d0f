// Package strategy defines the Generator interface for signal generators and
// provides an ordered Registry of named, parameterized strategies.
package strategy

import (
	"fmt"
	"strconv"

	"coinbt/internal/domain"
	"coinbt/internal/engine"
)

// Generator maps a candle series to a per-bar position target in [0, 1].
// Implementations are pure and deterministic: the output has the series'
// length and bar i depends only on bars 0..i.
type Generator interface {
	// Name returns the generator kind, e.g. "golden_cross".
	Name() string

	// Generate computes the signal series.
	Generate(s Series, p Params) ([]float64, error)
}

// Series is the candle series a generator runs over, plus any per-bar side
// columns produced by resampling.
type Series struct {
	Candles []domain.Candle
	// NoonPrices is set by generators that close positions at the next
	// period's noon price. Nil otherwise.
	NoonPrices []float64
	// Columns holds named per-bar values aligned with Candles.
	Columns map[string][]float64
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Candles) }

// Resampler is implemented by generators that consume a finer source
// interval than the series they signal on.
type Resampler interface {
	// SourceInterval is the candle interval the generator reads.
	SourceInterval() domain.Interval

	// Resample turns source candles into the series passed to Generate.
	Resample(candles []domain.Candle) (Series, error)
}

// HoldReporter is implemented by generators whose live signal reports an
// open position as "hold" instead of "no signal".
type HoldReporter interface {
	ReportsHold() bool
}

// Params is the flat parameter record shared by all strategies. Each
// generator reads only the fields it needs.
type Params struct {
	Window             int     `yaml:"window"`
	ShortWindow        int     `yaml:"short_window"`
	LongWindow         int     `yaml:"long_window"`
	SignalWindow       int     `yaml:"signal_window"`
	K                  float64 `yaml:"k"`
	InvestmentFraction float64 `yaml:"investment_fraction"`
	InitialCapital     float64 `yaml:"initial_capital"`
	CheckMA            bool    `yaml:"check_ma"`
	CheckVolume        bool    `yaml:"check_volume"`
	FeeRate            float64 `yaml:"fee_rate"`
	Liquidation        string  `yaml:"liquidation"`
}

// DefaultParams returns the sizing used by the single-asset backtests.
func DefaultParams() Params {
	return Params{
		InvestmentFraction: 1,
		InitialCapital:     10000,
	}
}

// Merge returns p with every non-zero field of o applied on top.
func (p Params) Merge(o Params) Params {
	if o.Window != 0 {
		p.Window = o.Window
	}
	if o.ShortWindow != 0 {
		p.ShortWindow = o.ShortWindow
	}
	if o.LongWindow != 0 {
		p.LongWindow = o.LongWindow
	}
	if o.SignalWindow != 0 {
		p.SignalWindow = o.SignalWindow
	}
	if o.K != 0 {
		p.K = o.K
	}
	if o.InvestmentFraction != 0 {
		p.InvestmentFraction = o.InvestmentFraction
	}
	if o.InitialCapital != 0 {
		p.InitialCapital = o.InitialCapital
	}
	if o.CheckMA {
		p.CheckMA = true
	}
	if o.CheckVolume {
		p.CheckVolume = true
	}
	if o.FeeRate != 0 {
		p.FeeRate = o.FeeRate
	}
	if o.Liquidation != "" {
		p.Liquidation = o.Liquidation
	}
	return p
}

// Options converts the sizing fields into simulator options.
func (p Params) Options() (engine.Options, error) {
	lp, err := engine.ParseLiquidationPrice(p.Liquidation)
	if err != nil {
		return engine.Options{}, err
	}
	opts := engine.Options{
		InitialCapital:     p.InitialCapital,
		InvestmentFraction: p.InvestmentFraction,
		FeeRate:            p.FeeRate,
		Liquidation:        lp,
	}
	return opts, opts.Validate()
}

// Map renders the non-zero fields for result records.
func (p Params) Map() map[string]string {
	m := make(map[string]string)
	putInt := func(k string, v int) {
		if v != 0 {
			m[k] = strconv.Itoa(v)
		}
	}
	putFloat := func(k string, v float64) {
		if v != 0 {
			m[k] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	putInt("window", p.Window)
	putInt("short_window", p.ShortWindow)
	putInt("long_window", p.LongWindow)
	putInt("signal_window", p.SignalWindow)
	putFloat("k", p.K)
	putFloat("investment_fraction", p.InvestmentFraction)
	putFloat("initial_capital", p.InitialCapital)
	putFloat("fee_rate", p.FeeRate)
	if p.CheckMA {
		m["check_ma"] = "true"
	}
	if p.CheckVolume {
		m["check_volume"] = "true"
	}
	if p.Liquidation != "" {
		m["liquidation"] = p.Liquidation
	}
	return m
}

// Entry is a named strategy: a generator bound to its parameters.
type Entry struct {
	Name      string
	Generator Generator
	Params    Params
}

// Registry holds named strategies in declaration order.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register adds a named strategy. Names are unique.
func (r *Registry) Register(name string, g Generator, p Params) error {
	if name == "" {
		return fmt.Errorf("strategy name is empty")
	}
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("strategy %q already registered", name)
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Generator: g, Params: p})
	return nil
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Entry, bool) {
	i, ok := r.index[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// List returns all registered strategy names in declaration order.
func (r *Registry) List() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of all registered strategies in declaration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Select returns the named entries in the given order. Unknown names fail.
// An empty selection returns every entry.
func (r *Registry) Select(names []string) ([]Entry, error) {
	if len(names) == 0 {
		return r.Entries(), nil
	}
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		e, ok := r.Get(n)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", n)
		}
		out = append(out, e)
	}
	return out, nil
}
