package indicator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rzcastilho/trading-strategy-sub000/internal/logger"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// binding is one declared indicator resolved against the registry, together
// with its incremental state when streaming is supported for the run.
type binding struct {
	name      string
	impl      Indicator
	params    Params
	streaming StreamingIndicator
	state     State
	fallback  bool
}

// Runtime computes the declared indicators of one engine instance on every
// new bar. For each indicator it advances the incremental state when one
// exists; on an update failure the state is discarded for the remainder of
// the run and the indicator is recomputed in batch over the full buffered
// history, this tick and every one after. Indicators without a streaming
// implementation always compute in batch.
//
// The runtime retains the previous tick's values alongside the current ones
// so conditions can express crossings via the "_prev" variable names.
//
// A Runtime belongs to exactly one engine instance and is not safe for
// concurrent use; the owning instance serializes access.
type Runtime struct {
	log          *logger.Logger
	batchTimeout time.Duration
	batchOnly    bool
	bindings     []*binding
	previous     map[string]Value
	current      map[string]Value
}

// NewRuntime resolves the declared indicators against the registry and
// initializes incremental state for every indicator that supports streaming.
// batchTimeout bounds each batch computation call; zero means no timeout.
func NewRuntime(registry Registry, defs []types.IndicatorDefinition, batchTimeout time.Duration, log *logger.Logger) (*Runtime, error) {
	return newRuntime(registry, defs, batchTimeout, false, log)
}

// NewBatchRuntime resolves indicators like NewRuntime but never uses
// incremental state, recomputing from the full history on every invocation.
// The rolling engine uses this mode: its buffer is rewritten between
// recomputations, so incremental state would not observe a contiguous stream.
func NewBatchRuntime(registry Registry, defs []types.IndicatorDefinition, batchTimeout time.Duration, log *logger.Logger) (*Runtime, error) {
	return newRuntime(registry, defs, batchTimeout, true, log)
}

func newRuntime(registry Registry, defs []types.IndicatorDefinition, batchTimeout time.Duration, batchOnly bool, log *logger.Logger) (*Runtime, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	bindings := make([]*binding, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))

	for _, def := range defs {
		if _, dup := seen[def.Name]; dup {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
				"duplicate indicator name %q", def.Name)
		}

		seen[def.Name] = struct{}{}

		impl, err := registry.GetIndicator(def.Type)
		if err != nil {
			return nil, err
		}

		bound := &binding{
			name:      def.Name,
			impl:      impl,
			params:    Params(def.Params),
			streaming: nil,
			state:     nil,
			fallback:  false,
		}

		if streaming, ok := impl.(StreamingIndicator); ok && !batchOnly {
			state, err := streaming.InitState(bound.params)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err,
					"indicator %q: invalid parameters", def.Name)
			}

			bound.streaming = streaming
			bound.state = state
		}

		bindings = append(bindings, bound)
	}

	return &Runtime{
		log:          log,
		batchTimeout: batchTimeout,
		batchOnly:    batchOnly,
		bindings:     bindings,
		previous:     nil,
		current:      nil,
	}, nil
}

// TickComputation is one bar's indicator computation staged against the
// runtime. Its values are readable immediately, but the runtime's snapshots
// and incremental states advance only on Commit, so a caller aborting the
// tick can drop the computation without the runtime having consumed the bar.
type TickComputation struct {
	runtime   *Runtime
	computed  bool
	values    map[string]Value
	states    []State
	fallbacks []bool
}

// Values returns the staged indicator values of the computed bar.
func (t *TickComputation) Values() map[string]Value {
	return t.values
}

// ContextValues flattens the staged values together with the runtime's
// committed snapshot as the previous tick, exactly as the runtime's own
// ContextValues will report them once this computation commits.
func (t *TickComputation) ContextValues() map[string]decimal.Decimal {
	return flattenValues(t.values, t.runtime.current)
}

// Commit applies the staged computation: incremental states advance and the
// snapshot pair rotates. A computation over empty history commits nothing.
func (t *TickComputation) Commit() {
	if !t.computed {
		return
	}

	for i, bound := range t.runtime.bindings {
		bound.state = t.states[i]
		bound.fallback = t.fallbacks[i]
	}

	t.runtime.previous = t.runtime.current
	t.runtime.current = t.values
}

// OnBar computes every indicator for the newest bar and commits the result.
// bars is the full chronological history including the new bar. A single
// indicator's failure never aborts the tick; its value is simply absent from
// the returned map.
func (r *Runtime) OnBar(ctx context.Context, bars []types.Bar) map[string]Value {
	tick := r.Stage(ctx, bars)
	tick.Commit()

	return tick.Values()
}

// Stage computes every indicator for the newest bar without mutating the
// runtime. The caller commits the returned computation together with the rest
// of the tick's state changes, or drops it when the tick aborts.
func (r *Runtime) Stage(ctx context.Context, bars []types.Bar) *TickComputation {
	tick := &TickComputation{runtime: r}
	if len(bars) == 0 {
		return tick
	}

	newBar := bars[len(bars)-1]
	tick.computed = true
	tick.values = make(map[string]Value, len(r.bindings))
	tick.states = make([]State, len(r.bindings))
	tick.fallbacks = make([]bool, len(r.bindings))

	for i, bound := range r.bindings {
		value, ok, state, fallback := r.computeOne(ctx, bound, bars, newBar)
		tick.states[i] = state
		tick.fallbacks[i] = fallback

		if ok {
			tick.values[bound.name] = value
		}
	}

	return tick
}

func (r *Runtime) computeOne(ctx context.Context, bound *binding, bars []types.Bar, newBar types.Bar) (Value, bool, State, bool) {
	state, fallback := bound.state, bound.fallback

	if bound.streaming != nil && !fallback {
		next, value, err := bound.streaming.UpdateState(state, newBar)
		if err == nil {
			return value, true, next, false
		}

		if errors.IsInsufficientDataError(err) {
			// Warm-up, not a failure: keep the state, surface no value yet.
			return Value{}, false, next, false
		}

		// Streaming failed: discard the state for the rest of the run and
		// recompute in batch from here on.
		state = nil
		fallback = true
		r.log.Warn("indicator streaming update failed, falling back to batch",
			zap.String("indicator", bound.name),
			zap.String("symbol", newBar.Symbol),
			zap.Error(err),
		)
	}

	value, err := r.computeBatch(ctx, bound, bars)
	if err != nil {
		if errors.IsInsufficientDataError(err) {
			return Value{}, false, state, fallback
		}

		r.log.Warn("indicator batch computation failed",
			zap.String("indicator", bound.name),
			zap.String("symbol", newBar.Symbol),
			zap.Error(err),
		)

		return Value{}, false, state, fallback
	}

	return value, true, state, fallback
}

func (r *Runtime) computeBatch(ctx context.Context, bound *binding, bars []types.Bar) (Value, error) {
	if r.batchTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.batchTimeout)
		defer cancel()
	}

	return bound.impl.ComputeBatch(ctx, bound.params, bars)
}

// Latest returns the indicator values of the most recent tick.
func (r *Runtime) Latest() map[string]Value {
	return r.current
}

// Previous returns the indicator values of the tick before the most recent.
func (r *Runtime) Previous() map[string]Value {
	return r.previous
}

// ContextValues flattens the current and previous snapshots into the
// variable names condition expressions use: "<name>" and
// "<name>_<component>" for the current tick, with the "_prev" suffix for the
// previous tick's values.
func (r *Runtime) ContextValues() map[string]decimal.Decimal {
	return flattenValues(r.current, r.previous)
}

func flattenValues(current, previous map[string]Value) map[string]decimal.Decimal {
	values := make(map[string]decimal.Decimal, 2*len(current))

	for name, value := range current {
		values[name] = value.Latest
		for component, componentValue := range value.Components {
			values[name+"_"+component] = componentValue
		}
	}

	for name, value := range previous {
		values[name+types.PrevSuffix] = value.Latest
		for component, componentValue := range value.Components {
			values[name+"_"+component+types.PrevSuffix] = componentValue
		}
	}

	return values
}
