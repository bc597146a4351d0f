// Package signaler turns the latest bar of each strategy's signal into buy,
// sell, hold or no-signal messages, persists them and fans them out.
package signaler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/store"
	"coinbt/internal/strategy"
	"coinbt/internal/util"
)

// DefaultCount is the number of signal bars read per market.
const DefaultCount = 200

// Notifier delivers a rendered signal group, e.g. as a chat message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Broadcaster pushes individual signals to live subscribers.
type Broadcaster interface {
	Broadcast(sig domain.LiveSignal)
}

// Latest classifies the transition into the last bar of signal. A rise is a
// buy, a fall a sell. With no transition an open position is a hold when
// hold is set and otherwise reports no signal.
func Latest(signal []float64, hold bool) domain.SignalType {
	n := len(signal)
	if n == 0 {
		return domain.SignalTypeNone
	}
	prev := 0.0
	if n > 1 {
		prev = signal[n-2]
	}
	switch d := signal[n-1] - prev; {
	case n > 1 && d > 0:
		return domain.SignalTypeBuy
	case n > 1 && d < 0:
		return domain.SignalTypeSell
	case hold && signal[n-1] > 0:
		return domain.SignalTypeHold
	default:
		return domain.SignalTypeNone
	}
}

// Evaluate computes the live signal of one strategy over a market's candles.
func Evaluate(e strategy.Entry, candles []domain.Candle, overrides strategy.Params) (domain.LiveSignal, error) {
	series, signal, _, err := strategy.Signal(e, candles, overrides)
	if err != nil {
		return domain.LiveSignal{}, err
	}
	if series.Len() == 0 {
		return domain.LiveSignal{}, fmt.Errorf("%s: no complete bars", e.Name)
	}
	hr, ok := e.Generator.(strategy.HoldReporter)
	last := series.Candles[series.Len()-1]
	return domain.LiveSignal{
		StrategyID: e.Name,
		Symbol:     last.Symbol,
		Type:       Latest(signal, ok && hr.ReportsHold()),
		Price:      last.Close,
		BarTime:    last.Timestamp,
	}, nil
}

var typeLabel = map[domain.SignalType]string{
	domain.SignalTypeBuy:  "Buy signal",
	domain.SignalTypeSell: "Sell signal",
	domain.SignalTypeHold: "Hold signal",
	domain.SignalTypeNone: "No signal",
}

// Message renders one market's line, e.g. "KRW-BTC: Buy signal at 5000".
// Golden cross lines carry the bar's KST exchange day.
func Message(e strategy.Entry, sig domain.LiveSignal) string {
	label, ok := typeLabel[sig.Type]
	if !ok {
		label = "No signal"
	}
	msg := fmt.Sprintf("%s: %s at %s", sig.Symbol, label, strconv.FormatFloat(sig.Price, 'f', -1, 64))
	if e.Generator.Name() == "golden_cross" {
		msg += " on " + util.SessionKey(sig.BarTime)
	}
	return msg
}

// Title returns the heading of a strategy's signal group.
func Title(e strategy.Entry) string {
	switch e.Generator.Name() {
	case "daily_average":
		return fmt.Sprintf("[ Daily Average Signals - window: %d]", e.Params.Window)
	case "golden_cross":
		return "[ Golden Cross Signals ]"
	}
	words := strings.Fields(strings.ReplaceAll(e.Name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return "[ " + strings.Join(words, " ") + " Signals ]"
}

// Group is the set of signals one strategy produced in a run.
type Group struct {
	Strategy string
	Title    string
	Signals  []domain.LiveSignal
	Lines    []string
}

// Text renders the group as a notification body.
func (g Group) Text() string {
	return g.Title + "\n" + strings.Join(g.Lines, "\n")
}

// Signaler evaluates strategies against stored candles.
type Signaler struct {
	bt       *strategy.Backtester
	signals  store.SignalStore
	notifier Notifier
	hub      Broadcaster
	count    int
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Signaler.
type Option func(*Signaler)

// WithNotifier sends each group's text through n.
func WithNotifier(n Notifier) Option { return func(s *Signaler) { s.notifier = n } }

// WithBroadcaster publishes every saved signal to b.
func WithBroadcaster(b Broadcaster) Option { return func(s *Signaler) { s.hub = b } }

// WithCount sets the number of signal bars read per market.
func WithCount(n int) Option { return func(s *Signaler) { s.count = n } }

// New creates a Signaler that loads candles through bt. signals may be nil
// to skip persistence.
func New(bt *strategy.Backtester, signals store.SignalStore, opts ...Option) *Signaler {
	s := &Signaler{
		bt:      bt,
		signals: signals,
		count:   DefaultCount,
		now:     time.Now,
		log:     slog.Default().With("component", "signaler"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run evaluates each strategy over its markets. markets returns the symbols
// to evaluate for a strategy; an empty result skips the strategy. A market
// that fails is logged and left out of its group. Groups are returned in
// strategy order; notification errors are joined into the returned error.
func (s *Signaler) Run(ctx context.Context, names []string, markets func(strategy string) []string) ([]Group, error) {
	entries, err := s.bt.Registry().Select(names)
	if err != nil {
		return nil, err
	}

	var groups []Group
	var errs []error
	for _, e := range entries {
		symbols := markets(e.Name)
		if len(symbols) == 0 {
			continue
		}
		g := Group{Strategy: e.Name, Title: Title(e)}
		for _, sym := range symbols {
			if err := ctx.Err(); err != nil {
				return groups, err
			}
			sig, err := s.evaluate(ctx, e, sym)
			if err != nil {
				s.log.Warn("signal failed", "strategy", e.Name, "symbol", sym, "error", err)
				continue
			}
			g.Signals = append(g.Signals, sig)
			g.Lines = append(g.Lines, Message(e, sig))
		}
		if len(g.Signals) == 0 {
			continue
		}
		groups = append(groups, g)

		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, g.Text()); err != nil {
				errs = append(errs, fmt.Errorf("notifying %s: %w", e.Name, err))
			}
		}
	}
	return groups, errors.Join(errs...)
}

func (s *Signaler) evaluate(ctx context.Context, e strategy.Entry, symbol string) (domain.LiveSignal, error) {
	candles, err := s.bt.Load(ctx, e, symbol, s.count)
	if err != nil {
		return domain.LiveSignal{}, err
	}
	sig, err := Evaluate(e, candles, strategy.Params{})
	if err != nil {
		return domain.LiveSignal{}, err
	}
	sig.Symbol = symbol
	sig.CreatedAt = s.now()

	if s.signals != nil {
		if err := s.signals.SaveSignal(ctx, &sig); err != nil {
			return domain.LiveSignal{}, fmt.Errorf("saving signal: %w", err)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(sig)
	}
	s.log.Info("signal", "strategy", e.Name, "symbol", symbol, "type", sig.Type, "price", sig.Price)
	return sig, nil
}

// All returns a markets function that evaluates every strategy on symbols.
func All(symbols []string) func(string) []string {
	return func(string) []string { return symbols }
}
