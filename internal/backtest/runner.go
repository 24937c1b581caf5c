// Package backtest drives a strategy engine over historical bars and
// aggregates the outcome into trade metrics, an equity curve, and persistable
// results.
package backtest

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rzcastilho/trading-strategy-sub000/internal/engine"
	"github.com/rzcastilho/trading-strategy-sub000/internal/indicator"
	"github.com/rzcastilho/trading-strategy-sub000/internal/logger"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// RunConfig carries the cost and capital parameters of one backtest run.
type RunConfig struct {
	// SessionID pins the run identifier. With a fixed session ID, identical
	// inputs reproduce identical signal sequences and metrics. Generated
	// when empty.
	SessionID string `yaml:"session_id"`
	// InitialCapital is the starting capital.
	InitialCapital decimal.Decimal `yaml:"initial_capital" validate:"required"`
	// CommissionRate is applied to each trade's entry plus exit notional.
	CommissionRate decimal.Decimal `yaml:"commission_rate"`
	// SlippageRate is applied like the commission rate.
	SlippageRate decimal.Decimal `yaml:"slippage_rate"`
	// RiskFreeRate enters the simplified Sharpe ratio, in percent per trade.
	RiskFreeRate decimal.Decimal `yaml:"risk_free_rate"`
	// MaxConcurrentPositions caps simultaneously open positions.
	MaxConcurrentPositions int `yaml:"max_concurrent_positions"`
	// ConflictPolicy decides entry-versus-exit conflicts.
	ConflictPolicy engine.ConflictPolicy `yaml:"conflict_policy"`
	// Start restricts the run to bars at or after this time.
	Start optional.Option[time.Time] `yaml:"-"`
	// End restricts the run to bars at or before this time.
	End optional.Option[time.Time] `yaml:"-"`
	// ShowProgress renders a terminal progress bar while feeding bars.
	ShowProgress bool `yaml:"-"`
}

// Result is the complete outcome of one backtest run.
type Result struct {
	StrategyName   string            `yaml:"strategy_name"`
	Symbol         string            `yaml:"symbol"`
	SessionID      string            `yaml:"session_id"`
	StartTime      time.Time         `yaml:"start_time"`
	EndTime        time.Time         `yaml:"end_time"`
	InitialCapital decimal.Decimal   `yaml:"initial_capital"`
	FinalCapital   decimal.Decimal   `yaml:"final_capital"`
	Metrics        Metrics           `yaml:"metrics"`
	Trades         []Trade           `yaml:"trades"`
	Signals        []types.Signal    `yaml:"-"`
	OpenPositions  []*types.Position `yaml:"-"`
	EquityCurve    []EquityPoint     `yaml:"-"`
	Conflicts      int               `yaml:"conflicts"`
}

// Runner executes backtests: one fresh engine per run, bars fed
// sequentially, metrics computed over the closed trades.
type Runner struct {
	registry indicator.Registry
	log      *logger.Logger
}

// NewRunner creates a Runner resolving strategies against the registry.
func NewRunner(registry indicator.Registry, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Runner{registry: registry, log: log}
}

// Run backtests one strategy over the bar history. The bars must be in
// chronological order; an empty (or fully filtered) data set is an error
// raised before any engine is instantiated. Conflicting ticks are counted
// and skipped, leaving no position or signal changes for that tick.
func (r *Runner) Run(ctx context.Context, def *types.StrategyDefinition, bars []types.Bar, cfg RunConfig) (*Result, error) {
	bars = filterBars(bars, cfg.Start, cfg.End)
	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeBacktestNoData,
			"no historical data for strategy %q", defName(def))
	}

	eng, err := engine.NewEngine(def, r.registry, engine.Config{
		SessionID:              cfg.SessionID,
		InitialCapital:         cfg.InitialCapital,
		MaxConcurrentPositions: cfg.MaxConcurrentPositions,
		ConflictPolicy:         cfg.ConflictPolicy,
	}, r.log)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "engine construction failed", err)
	}

	var bar *progressbar.ProgressBar
	if cfg.ShowProgress {
		bar = progressbar.Default(int64(len(bars)), def.Name)
	}

	result := &Result{
		StrategyName:   def.Name,
		Symbol:         def.Symbol,
		SessionID:      eng.SessionID(),
		StartTime:      bars[0].Time,
		EndTime:        bars[len(bars)-1].Time,
		InitialCapital: cfg.InitialCapital,
	}

	for _, dataPoint := range bars {
		tick, err := eng.ProcessBar(ctx, dataPoint)
		if err != nil {
			if errors.IsConflictError(err) {
				result.Conflicts++
				r.log.Warn("conflicting tick skipped",
					zap.String("strategy", def.Name),
					zap.Time("time", dataPoint.Time),
				)
			} else {
				return nil, err
			}
		}

		if tick != nil {
			result.Signals = append(result.Signals, tick.Signals...)
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	snapshot := eng.Snapshot()

	// Still-open positions are reported but excluded from closed-trade
	// metrics.
	result.OpenPositions = snapshot.OpenPositions

	trades := make([]Trade, 0, len(snapshot.ClosedPositions))
	for _, position := range snapshot.ClosedPositions {
		trades = append(trades, applyCosts(*position, cfg.CommissionRate, cfg.SlippageRate))
	}

	result.Trades = trades
	result.Metrics, result.EquityCurve = computeMetrics(trades, cfg.InitialCapital, cfg.RiskFreeRate)
	result.FinalCapital = cfg.InitialCapital.Add(result.Metrics.NetProfit)

	return result, nil
}

func filterBars(bars []types.Bar, start, end optional.Option[time.Time]) []types.Bar {
	filtered := make([]types.Bar, 0, len(bars))

	for _, bar := range bars {
		if from, err := start.Take(); err == nil && bar.Time.Before(from) {
			continue
		}

		if until, err := end.Take(); err == nil && bar.Time.After(until) {
			continue
		}

		filtered = append(filtered, bar)
	}

	return filtered
}

func defName(def *types.StrategyDefinition) string {
	if def == nil {
		return ""
	}

	return def.Name
}
