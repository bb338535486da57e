// Package strategy holds the fixed catalog of trading strategies. Each
// entry pairs registry metadata with a deterministic, bar-close signal
// rule, the indicator channels it exposes for chart overlays, and a
// category output summarizing posture at the last bar.
package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/safejson"
)

// Params is a validated, fully-merged parameter map for one run.
type Params map[string]float64

// Int fetches an integer parameter. Validation guarantees the value is an
// integer ≥ 1 before a strategy runs.
func (p Params) Int(name string) int { return int(p[name]) }

// F fetches a float parameter.
func (p Params) F(name string) float64 { return p[name] }

// Result is what a strategy produces for one bar series.
type Result struct {
	Signals       []domain.Signal
	IndicatorData domain.IndicatorData
	Output        domain.Output
}

// Strategy is one registry entry.
type Strategy struct {
	Descriptor domain.StrategyDescriptor

	// IntParams lists parameter names that must be integers ≥ 1.
	IntParams []string
	// Validate applies cross-field checks (slow > fast and the like)
	// after type validation. Nil when defaults suffice.
	Validate func(Params) error

	Run func(bars domain.Series, p Params) (*Result, error)
}

// Registry is the immutable strategy catalog, built once at startup and
// safely read by all request workers.
type Registry struct {
	order   []string
	entries map[string]*Strategy
}

// NewRegistry builds the full catalog of 20 strategies.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]*Strategy)}
	for _, s := range []*Strategy{
		maCrossover(), emaStrategy(), macdSignal(), superTrend(), donchianBreakout(),
		rsiStrategy(), stochastic(), rocStrategy(), cciStrategy(),
		bollingerReversion(), zscoreReversion(), vwapReversion(),
		atrBreakout(), keltnerChannel(),
		volumeSpike(), orderImbalance(),
		kalmanFilter(), hmmRegime(),
		lstmProxy(), gbmProxy(),
	} {
		r.register(s)
	}
	return r
}

func (r *Registry) register(s *Strategy) {
	key := s.Descriptor.Key
	if _, dup := r.entries[key]; dup {
		panic(fmt.Sprintf("strategy registered twice: %s", key))
	}
	r.entries[key] = s
	r.order = append(r.order, key)
}

// Get resolves a strategy by key.
func (r *Registry) Get(key string) (*Strategy, error) {
	s, ok := r.entries[key]
	if !ok {
		return nil, domain.UnknownStrategy(key)
	}
	return s, nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []domain.StrategyDescriptor {
	out := make([]domain.StrategyDescriptor, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.entries[key].Descriptor)
	}
	return out
}

// ResolveParams merges user parameters over the strategy defaults and
// validates them: unknown keys, non-numeric values, fractional integer
// parameters, non-finite thresholds and failed cross-field checks are all
// InvalidParams.
func (r *Registry) ResolveParams(key string, user map[string]any) (Params, error) {
	s, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	merged := make(Params, len(s.Descriptor.DefaultParams))
	for name, v := range s.Descriptor.DefaultParams {
		merged[name] = v
	}
	for name, raw := range user {
		if _, known := merged[name]; !known {
			return nil, domain.InvalidParams("unknown parameter %q for strategy %s", name, key)
		}
		v, ok := toFloat(raw)
		if !ok {
			return nil, domain.InvalidParams("parameter %q must be a number, got %T", name, raw)
		}
		merged[name] = v
	}
	for name, v := range merged {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, domain.InvalidParams("parameter %q is not finite", name)
		}
	}
	for _, name := range s.IntParams {
		v := merged[name]
		if v != math.Trunc(v) || v < 1 {
			return nil, domain.InvalidParams("parameter %q must be an integer >= 1, got %v", name, v)
		}
	}
	if s.Validate != nil {
		if err := s.Validate(merged); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// emitter accumulates signals through a long-only alternation state
// machine: a BUY opens the position, a SELL closes it, and everything
// else on the same side is collapsed. This guarantees signals alternate
// starting with BUY and #BUY - #SELL stays in {0, +1}.
type emitter struct {
	bars    domain.Series
	signals []domain.Signal
	long    bool
}

func newEmitter(bars domain.Series) *emitter {
	return &emitter{bars: bars}
}

func (e *emitter) buy(i int, label string) {
	if e.long {
		return
	}
	e.long = true
	e.signals = append(e.signals, domain.Signal{
		Timestamp: e.bars[i].Timestamp,
		Side:      domain.SideBuy,
		Price:     e.bars[i].Close,
		Label:     label,
	})
}

func (e *emitter) sell(i int, label string) {
	if !e.long {
		return
	}
	e.long = false
	e.signals = append(e.signals, domain.Signal{
		Timestamp: e.bars[i].Timestamp,
		Side:      domain.SideSell,
		Price:     e.bars[i].Close,
		Label:     label,
	})
}

func (e *emitter) list() []domain.Signal {
	if e.signals == nil {
		return []domain.Signal{}
	}
	return e.signals
}

func def(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// crossAbove reports a crossing of channel a above channel b at index i.
// The first bar where both channels are defined counts as a crossing when
// the relation already holds, so a series that starts inside a trend
// still yields the opening signal.
func crossAbove(a, b []float64, i int) bool {
	if i < 0 || !def(a[i]) || !def(b[i]) || a[i] <= b[i] {
		return false
	}
	if i == 0 || !def(a[i-1]) || !def(b[i-1]) {
		return true
	}
	return a[i-1] <= b[i-1]
}

// crossBelow is the mirror of crossAbove.
func crossBelow(a, b []float64, i int) bool {
	if i < 0 || !def(a[i]) || !def(b[i]) || a[i] >= b[i] {
		return false
	}
	if i == 0 || !def(a[i-1]) || !def(b[i-1]) {
		return true
	}
	return a[i-1] >= b[i-1]
}

// risesThrough reports channel a crossing up through a constant level:
// strictly below on the prior bar, at or above now. No seeding — the
// channel must actually have been below the level.
func risesThrough(a []float64, i int, level float64) bool {
	return i > 0 && def(a[i]) && def(a[i-1]) && a[i-1] < level && a[i] >= level
}

// fallsThrough is the mirror of risesThrough.
func fallsThrough(a []float64, i int, level float64) bool {
	return i > 0 && def(a[i]) && def(a[i-1]) && a[i-1] > level && a[i] <= level
}

func lastDefined(xs []float64) (float64, bool) {
	for i := len(xs) - 1; i >= 0; i-- {
		if def(xs[i]) {
			return xs[i], true
		}
	}
	return math.NaN(), false
}

func round(v float64, places int) float64 {
	if !def(v) {
		return v
	}
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 { return math.Min(hi, math.Max(lo, v)) }

func channels(m map[string][]float64) domain.IndicatorData {
	out := make(domain.IndicatorData, len(m))
	for name, ch := range m {
		out[name] = safejson.FloatSlice(ch)
	}
	return out
}
