// Package engine holds the per-strategy execution core: the signal
// evaluator, position sizing, the tick-driven state machine, and the actor
// wrapper that serializes access to it.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rzcastilho/trading-strategy-sub000/internal/expr"
	"github.com/rzcastilho/trading-strategy-sub000/internal/indicator"
	"github.com/rzcastilho/trading-strategy-sub000/internal/logger"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// Config carries the run configuration of one engine instance.
type Config struct {
	// SessionID identifies the run. Generated when empty.
	SessionID string
	// InitialCapital is the starting capital for sizing and equity tracking.
	InitialCapital decimal.Decimal
	// MaxConcurrentPositions caps simultaneously open positions. Zero means
	// no cap.
	MaxConcurrentPositions int
	// ConflictPolicy decides entry-versus-exit conflicts. Defaults to reject.
	ConflictPolicy ConflictPolicy
	// Strictness controls non-boolean expression handling.
	Strictness expr.Strictness
	// BatchTimeout bounds each indicator batch computation. Zero disables.
	BatchTimeout time.Duration
	// HistoryLimit bounds the retained bar history. Zero keeps everything.
	HistoryLimit int
}

// TickResult is what one processed data point produced: the newly created
// signals and the current open/closed position partitions.
type TickResult struct {
	Time            time.Time
	Symbol          string
	Signals         []types.Signal
	OpenPositions   []*types.Position
	ClosedPositions []*types.Position
	IndicatorValues map[string]decimal.Decimal
	Warnings        []string
}

// Snapshot is a copy of the engine's externally visible state.
type Snapshot struct {
	StrategyName    string
	SessionID       string
	Symbol          string
	Capital         decimal.Decimal
	BarCount        int
	OpenPositions   []*types.Position
	ClosedPositions []*types.Position
	Signals         []types.Signal
	IndicatorValues map[string]decimal.Decimal
}

// Engine is the state machine of one running strategy: it owns the bar
// history, the indicator runtime, the open and closed positions, and the
// signal log. ProcessBar is its only mutating operation; a tick either fully
// commits its position and signal changes or leaves them untouched.
//
// An Engine is not safe for concurrent use. Wrap it in an Instance when it
// must be shared.
type Engine struct {
	log     *logger.Logger
	def     *types.StrategyDefinition
	cfg     Config
	runtime *indicator.Runtime
	signals *SignalEvaluator

	bars      []types.Bar
	lastTime  time.Time
	capital   decimal.Decimal
	open      []*types.Position
	closed    []*types.Position
	signalLog []types.Signal
	idCounter uint64
}

// nextID derives a deterministic identifier from the session and a running
// counter, so identical inputs with a pinned session ID reproduce identical
// signal and position IDs.
func (e *Engine) nextID() string {
	e.idCounter++

	return uuid.NewSHA1(uuid.NameSpaceOID,
		fmt.Appendf(nil, "%s/%d", e.cfg.SessionID, e.idCounter)).String()
}

// NewEngine builds an engine for a validated strategy definition, resolving
// its indicators against the registry.
func NewEngine(def *types.StrategyDefinition, registry indicator.Registry, cfg Config, log *logger.Logger) (*Engine, error) {
	if def == nil {
		return nil, errors.New(errors.ErrCodeStrategyNotLoaded, "nil strategy definition")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	if cfg.InitialCapital.Sign() <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"initial capital must be positive, got %s", cfg.InitialCapital)
	}

	runtime, err := indicator.NewRuntime(registry, def.Indicators, cfg.BatchTimeout, log)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeEngineInitFailed, err,
			"strategy %q: indicator setup failed", def.Name)
	}

	return &Engine{
		log:     log,
		def:     def,
		cfg:     cfg,
		runtime: runtime,
		signals: NewSignalEvaluator(cfg.Strictness, cfg.ConflictPolicy),
		capital: cfg.InitialCapital,
	}, nil
}

// SessionID returns the run identifier of this engine.
func (e *Engine) SessionID() string {
	return e.cfg.SessionID
}

// ProcessBar submits the next data point. It appends the bar to history,
// advances every indicator, builds the evaluation context, evaluates entry
// then exit/stop conditions, opens a sized position on a satisfied entry
// under capacity, and closes every open position whose exit or stop held.
//
// A ConflictError commits the market data but no position or signal changes.
// Any other error leaves everything, bar history, indicator runtime state and
// the ID counter included, exactly as before the tick.
func (e *Engine) ProcessBar(ctx context.Context, bar types.Bar) (*TickResult, error) {
	if bar.Symbol != "" && bar.Symbol != e.def.Symbol {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"bar symbol %q does not match strategy symbol %q", bar.Symbol, e.def.Symbol)
	}

	if !e.lastTime.IsZero() && bar.Time.Before(e.lastTime) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"out-of-order bar: %s is before %s", bar.Time, e.lastTime)
	}

	// Full-slice expression so the staged append cannot clobber committed
	// history on an aborted tick. The indicator computation is staged the
	// same way: it commits together with the bar, so an aborted tick leaves
	// streaming states and snapshots exactly as they were.
	history := append(e.bars[:len(e.bars):len(e.bars)], bar)

	tick := e.runtime.Stage(ctx, history)
	values := e.contextValues(bar, tick.ContextValues())
	evalCtx := types.NewEvaluationContext(e.def.Symbol, values)

	evaluation, err := e.signals.Evaluate(
		e.def, evalCtx, e.open, e.cfg.MaxConcurrentPositions, bar.Time, bar.Close)
	if err != nil {
		if errors.IsConflictError(err) {
			tick.Commit()
			e.commitBar(history, bar)

			return e.tickResult(bar, nil, evaluation.Warnings, values), err
		}

		return nil, err
	}

	var newSignals []types.Signal
	var opened *types.Position

	if evaluation.Entry {
		// Sizing runs before any ID is allocated so a sizing error aborts
		// the tick without consuming the counter.
		quantity, err := e.entryQuantity(bar, values)
		if err != nil {
			return nil, err
		}

		entrySignal := e.newSignal(bar, types.SignalTypeEntry, values)

		opened = &types.Position{
			ID:            e.nextID(),
			Symbol:        e.def.Symbol,
			Direction:     e.direction(),
			Status:        types.PositionStatusOpen,
			EntrySignalID: entrySignal.ID,
			EntryPrice:    bar.Close,
			EntryTime:     bar.Time,
			Quantity:      quantity,
		}
		newSignals = append(newSignals, entrySignal)
	}

	// No error paths remain: commit.
	tick.Commit()
	e.commitBar(history, bar)

	for _, decision := range evaluation.Closes {
		closeSignal := e.newSignal(bar, decision.Kind, values)
		decision.Position.Close(closeSignal.ID, bar.Close, bar.Time)
		e.capital = e.capital.Add(decision.Position.RealizedPnL)
		e.closed = append(e.closed, decision.Position)
		newSignals = append(newSignals, closeSignal)

		e.log.Debug("position closed",
			zap.String("position_id", decision.Position.ID),
			zap.String("kind", string(decision.Kind)),
			zap.String("pnl", decision.Position.RealizedPnL.String()),
		)
	}

	if len(evaluation.Closes) > 0 {
		e.open = e.remainingOpen()
	}

	if opened != nil {
		e.open = append(e.open, opened)

		e.log.Debug("position opened",
			zap.String("position_id", opened.ID),
			zap.String("quantity", opened.Quantity.String()),
			zap.String("price", opened.EntryPrice.String()),
		)
	}

	e.signalLog = append(e.signalLog, newSignals...)

	return e.tickResult(bar, newSignals, evaluation.Warnings, values), nil
}

// Snapshot returns a copy of the engine's current state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		StrategyName:    e.def.Name,
		SessionID:       e.cfg.SessionID,
		Symbol:          e.def.Symbol,
		Capital:         e.capital,
		BarCount:        len(e.bars),
		OpenPositions:   copyPositions(e.open),
		ClosedPositions: copyPositions(e.closed),
		Signals:         append([]types.Signal(nil), e.signalLog...),
		IndicatorValues: e.runtime.ContextValues(),
	}
}

func (e *Engine) contextValues(bar types.Bar, values map[string]decimal.Decimal) map[string]decimal.Decimal {
	values[types.FieldOpen] = bar.Open
	values[types.FieldHigh] = bar.High
	values[types.FieldLow] = bar.Low
	values[types.FieldClose] = bar.Close
	values[types.FieldVolume] = bar.Volume
	values[types.FieldPrice] = bar.Close

	return values
}

func (e *Engine) entryQuantity(bar types.Bar, values map[string]decimal.Decimal) (decimal.Decimal, error) {
	sizingValue := decimal.NewFromFloat(e.def.SizingValue)
	stopDistance := stopDistanceFor(e.def, values, bar.Close)

	return positionQuantity(e.def.SizingPolicy, sizingValue, e.capital, bar.Close, stopDistance)
}

func (e *Engine) newSignal(bar types.Bar, kind types.SignalType, values map[string]decimal.Decimal) types.Signal {
	snapshot := make(map[string]decimal.Decimal, len(values))
	for name, value := range values {
		snapshot[name] = value
	}

	return types.Signal{
		ID:           e.nextID(),
		Time:         bar.Time,
		Type:         kind,
		Direction:    e.direction(),
		Symbol:       e.def.Symbol,
		Price:        bar.Close,
		StrategyName: e.def.Name,
		SessionID:    e.cfg.SessionID,
		Snapshot:     snapshot,
	}
}

func (e *Engine) direction() types.Direction {
	if e.def.Direction == types.DirectionShort {
		return types.DirectionShort
	}

	return types.DirectionLong
}

func (e *Engine) commitBar(history []types.Bar, bar types.Bar) {
	if e.cfg.HistoryLimit > 0 && len(history) > e.cfg.HistoryLimit {
		history = history[len(history)-e.cfg.HistoryLimit:]
	}

	e.bars = history
	e.lastTime = bar.Time
}

func (e *Engine) remainingOpen() []*types.Position {
	remaining := make([]*types.Position, 0, len(e.open))

	for _, position := range e.open {
		if position.IsOpen() {
			remaining = append(remaining, position)
		}
	}

	return remaining
}

func (e *Engine) tickResult(bar types.Bar, signals []types.Signal, warnings []string, values map[string]decimal.Decimal) *TickResult {
	return &TickResult{
		Time:            bar.Time,
		Symbol:          e.def.Symbol,
		Signals:         signals,
		OpenPositions:   copyPositions(e.open),
		ClosedPositions: copyPositions(e.closed),
		IndicatorValues: values,
		Warnings:        warnings,
	}
}

func copyPositions(positions []*types.Position) []*types.Position {
	copied := make([]*types.Position, 0, len(positions))

	for _, position := range positions {
		clone := *position
		copied = append(copied, &clone)
	}

	return copied
}
