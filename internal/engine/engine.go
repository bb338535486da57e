// Package engine orchestrates strategy execution: the one-shot run, the
// backtest, and the progressive step stream. It wires the registry, the
// market-data provider, the metric engine and the capital simulator, and
// owns the error taxonomy boundary toward the transport.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stratrun/stratrun/internal/backtest"
	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/marketdata"
	"github.com/stratrun/stratrun/internal/perf"
	"github.com/stratrun/stratrun/internal/safejson"
	"github.com/stratrun/stratrun/internal/strategy"
	"github.com/stratrun/stratrun/internal/telemetry"
)

// RunRequest names one execution.
type RunRequest struct {
	Ticker   string         `json:"ticker"`
	Strategy string         `json:"strategy"`
	Period   string         `json:"period"`
	Interval string         `json:"interval"`
	Params   map[string]any `json:"params"`
}

// BacktestRequest extends RunRequest with simulation inputs.
type BacktestRequest struct {
	RunRequest
	InitialCapital float64 `json:"initial_capital"`
	SizeFraction   float64 `json:"size_fraction"`
}

// RunResult is the synchronous execution record.
type RunResult struct {
	Ticker        string               `json:"ticker"`
	Strategy      string               `json:"strategy"`
	Signals       []domain.Signal      `json:"signals"`
	Metrics       domain.Metrics       `json:"metrics"`
	IndicatorData domain.IndicatorData `json:"indicator_data"`
	OutputType    string               `json:"output_type"`
	Output        any                  `json:"output"`
	Disclaimer    string               `json:"disclaimer"`
}

// BacktestResponse is the backtest execution record.
type BacktestResponse struct {
	RunResult
	InitialCapital float64              `json:"initial_capital"`
	FinalValue     safejson.Float       `json:"final_value"`
	TotalReturnPct safejson.Float       `json:"total_return_pct"`
	EquityCurve    []domain.EquityPoint `json:"equity_curve"`
	TradeLog       []domain.TradeRecord `json:"trade_log"`
}

// Runner executes strategies against provider data.
type Runner struct {
	registry *strategy.Registry
	provider marketdata.Provider
	metrics  *telemetry.Metrics

	// FetchTimeout bounds one provider call. Zero means 10s.
	FetchTimeout time.Duration
}

// NewRunner wires the orchestrator. metrics may be nil.
func NewRunner(registry *strategy.Registry, provider marketdata.Provider, metrics *telemetry.Metrics) *Runner {
	return &Runner{
		registry:     registry,
		provider:     provider,
		metrics:      metrics,
		FetchTimeout: 10 * time.Second,
	}
}

// Registry exposes the catalog for the strategies endpoint.
func (r *Runner) Registry() *strategy.Registry { return r.registry }

// prepared is the validated, data-loaded state shared by run, backtest
// and stream paths.
type prepared struct {
	strat  *strategy.Strategy
	params strategy.Params
	bars   domain.Series
}

func (r *Runner) prepare(ctx context.Context, req RunRequest) (*prepared, error) {
	if req.Period == "" {
		req.Period = "6mo"
	}
	if req.Interval == "" {
		req.Interval = "1d"
	}
	if err := marketdata.ValidateWindow(req.Period, req.Interval); err != nil {
		return nil, err
	}
	strat, err := r.registry.Get(req.Strategy)
	if err != nil {
		return nil, err
	}
	params, err := r.registry.ResolveParams(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout())
	defer cancel()
	bars, err := r.provider.History(fetchCtx, req.Ticker, req.Period, req.Interval)
	if err != nil {
		r.countProvider("history", "error")
		return nil, err
	}
	r.countProvider("history", "ok")
	if len(bars) == 0 {
		return nil, domain.DataUnavailable(false, nil, "no history for ticker %s", req.Ticker)
	}
	return &prepared{strat: strat, params: params, bars: bars}, nil
}

// Run executes the synchronous path: load, compute, signal, score.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	start := time.Now()
	p, err := r.prepare(ctx, req)
	if err != nil {
		r.countRun(req.Strategy, err)
		return nil, err
	}
	res, metrics, err := r.execute(p, req.Interval)
	r.countRun(req.Strategy, err)
	if err != nil {
		return nil, err
	}
	r.observeRun(req.Strategy, time.Since(start))
	log.Info().Str("ticker", req.Ticker).Str("strategy", req.Strategy).
		Int("bars", len(p.bars)).Int("signals", len(res.Signals)).
		Dur("elapsed", time.Since(start)).Msg("strategy run complete")

	return &RunResult{
		Ticker:        req.Ticker,
		Strategy:      req.Strategy,
		Signals:       res.Signals,
		Metrics:       metrics,
		IndicatorData: res.IndicatorData,
		OutputType:    res.Output.Type,
		Output:        res.Output.Value,
		Disclaimer:    domain.Disclaimer,
	}, nil
}

// Backtest executes the run path and replays the signals through the
// capital simulation.
func (r *Runner) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	if req.InitialCapital == 0 {
		req.InitialCapital = 100000
	}
	p, err := r.prepare(ctx, req.RunRequest)
	if err != nil {
		r.countRun(req.Strategy, err)
		return nil, err
	}
	res, _, err := r.execute(p, req.Interval)
	if err != nil {
		r.countRun(req.Strategy, err)
		return nil, err
	}
	bt, err := backtest.Run(p.bars, res.Signals, backtest.Config{
		InitialCapital: req.InitialCapital,
		SizeFraction:   req.SizeFraction,
		BarsPerYear:    domain.BarsPerYear(req.Interval),
	})
	r.countRun(req.Strategy, err)
	if err != nil {
		return nil, err
	}
	return &BacktestResponse{
		RunResult: RunResult{
			Ticker:        req.Ticker,
			Strategy:      req.Strategy,
			Signals:       res.Signals,
			Metrics:       bt.Metrics,
			IndicatorData: res.IndicatorData,
			OutputType:    res.Output.Type,
			Output:        res.Output.Value,
			Disclaimer:    domain.Disclaimer,
		},
		InitialCapital: bt.InitialCapital,
		FinalValue:     bt.FinalValue,
		TotalReturnPct: bt.TotalReturnPct,
		EquityCurve:    bt.EquityCurve,
		TradeLog:       bt.TradeLog,
	}, nil
}

// execute runs the strategy and metric engine over loaded bars. Panics in
// strategy code surface as InternalComputation.
func (r *Runner) execute(p *prepared, interval string) (res *strategy.Result, metrics domain.Metrics, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = domain.InternalComputation(nil, "strategy panic: %v", rec)
			log.Error().Str("strategy", p.strat.Descriptor.Key).
				Interface("panic", rec).Msg("strategy execution panicked")
		}
	}()
	res, err = p.strat.Run(p.bars, p.params)
	if err != nil {
		return nil, domain.Metrics{}, err
	}
	if res == nil {
		return nil, domain.Metrics{}, domain.InternalComputation(nil, "strategy %s returned no result", p.strat.Descriptor.Key)
	}
	metrics = perf.Compute(p.bars, res.Signals, domain.BarsPerYear(interval))
	return res, metrics, nil
}

func (r *Runner) fetchTimeout() time.Duration {
	if r.FetchTimeout <= 0 {
		return 10 * time.Second
	}
	return r.FetchTimeout
}

func (r *Runner) countRun(strategyKey string, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	r.metrics.RunsTotal.WithLabelValues(strategyKey, outcome).Inc()
}

func (r *Runner) observeRun(strategyKey string, d time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.RunDuration.WithLabelValues(strategyKey).Observe(d.Seconds())
}

func (r *Runner) countProvider(endpoint, outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.ProviderCalls.WithLabelValues(endpoint, outcome).Inc()
}

// Quote proxies the provider quote endpoint for the live fan-out.
func (r *Runner) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
	q, err := r.provider.Quote(ctx, ticker)
	if err != nil {
		r.countProvider("quote", "error")
		return nil, err
	}
	r.countProvider("quote", "ok")
	if q == nil {
		return nil, domain.DataUnavailable(false, nil, "no quote for ticker %s", ticker)
	}
	return q, nil
}
