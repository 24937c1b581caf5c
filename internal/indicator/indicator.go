package indicator

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// Params is the parameter mapping of one indicator declaration.
type Params map[string]any

// IntValue extracts an integer parameter, accepting the numeric shapes a
// YAML/JSON decoder may produce. Returns fallback when the key is absent.
func (p Params) IntValue(key string, fallback int) (int, error) {
	raw, ok := p[key]
	if !ok {
		return fallback, nil
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.Newf(errors.ErrCodeInvalidParameter,
				"parameter %q must be an integer, got %v", key, v)
		}

		return int(v), nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidParameter,
			"parameter %q must be an integer, got %T", key, raw)
	}
}

// DecimalValue extracts a decimal parameter. Returns fallback when the key
// is absent. String values are parsed exactly; float values are converted
// explicitly via decimal.NewFromFloat.
func (p Params) DecimalValue(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw, ok := p[key]
	if !ok {
		return fallback, nil
	}

	switch v := raw.(type) {
	case string:
		value, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, errors.Wrapf(errors.ErrCodeInvalidParameter, err,
				"parameter %q is not a valid decimal", key)
		}

		return value, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, errors.Newf(errors.ErrCodeInvalidParameter,
			"parameter %q must be a number, got %T", key, raw)
	}
}

// Value is the result of one indicator computation. Latest is the scalar
// surfaced to the evaluation context. Series optionally carries the bounded
// per-bar history of the value (oldest first), and Components carries named
// secondary outputs (e.g. a MACD signal line) surfaced to the context as
// "<indicator>_<component>".
type Value struct {
	Latest     decimal.Decimal
	Series     []decimal.Decimal
	Components map[string]decimal.Decimal
}

// maxSeries bounds the per-value history retained from batch computation.
const maxSeries = 64

func boundedSeries(series []decimal.Decimal) []decimal.Decimal {
	if len(series) > maxSeries {
		return series[len(series)-maxSeries:]
	}

	return series
}

// State is an opaque, implementation-owned incremental accumulator. The
// runtime stores it per indicator name and never inspects its shape.
type State any

// Indicator is a batch indicator computation: a pure function of the full
// buffered bar history. Implementations must not retain or mutate the input.
type Indicator interface {
	// Type returns the type tag this implementation registers under.
	Type() types.IndicatorType
	// ComputeBatch computes the indicator over the full history, oldest bar
	// first. The context bounds external computation time.
	ComputeBatch(ctx context.Context, params Params, bars []types.Bar) (Value, error)
}

// ParamSpec is an indicator that declares its accepted parameter keys.
// Strategy validation rejects declarations carrying any other key, so a
// typoed parameter surfaces at load instead of silently falling back to the
// indicator's defaults.
type ParamSpec interface {
	// ParamNames returns the accepted parameter keys.
	ParamNames() []string
}

// ComponentIndicator is an indicator with named secondary outputs. The
// runtime surfaces a component to the evaluation context as
// "<indicator>_<component>"; validation resolves those names through this
// interface before any tick is processed.
type ComponentIndicator interface {
	Indicator
	// ComponentNames returns the names of the secondary outputs.
	ComponentNames() []string
}

// StreamingIndicator is an indicator that additionally supports incremental
// computation: a per-run state advanced with each new bar. After N updates
// the produced value must equal ComputeBatch over the same N bars.
type StreamingIndicator interface {
	Indicator
	// InitState creates the incremental accumulator for a run.
	InitState(params Params) (State, error)
	// UpdateState advances the state with one new bar and returns the new
	// state and the current value. The given state must be left untouched:
	// the runtime stages updates and only adopts the returned state when the
	// tick commits.
	UpdateState(state State, bar types.Bar) (State, Value, error)
}
