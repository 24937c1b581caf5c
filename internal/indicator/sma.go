package indicator

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// SMA is the simple moving average of closing prices.
type SMA struct{}

// NewSMA creates a new SMA indicator.
func NewSMA() *SMA {
	return &SMA{}
}

// Type returns the type tag of the indicator.
func (s *SMA) Type() types.IndicatorType {
	return types.IndicatorTypeSMA
}

// ComputeBatch computes the SMA over the full history.
func (s *SMA) ComputeBatch(ctx context.Context, params Params, bars []types.Bar) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, errors.Wrap(errors.ErrCodeComputeTimeout, "sma computation cancelled", err)
	}

	period, err := smaPeriod(params)
	if err != nil {
		return Value{}, err
	}

	if len(bars) < period {
		return Value{}, errors.NewInsufficientDataErrorf(period, len(bars), barsSymbol(bars),
			"sma(%d) requires %d bars, have %d", period, period, len(bars))
	}

	periodDec := decimal.NewFromInt(int64(period))
	series := make([]decimal.Decimal, 0, len(bars)-period+1)

	sum := decimal.Zero
	for i, bar := range bars {
		sum = sum.Add(bar.Close)

		if i >= period {
			sum = sum.Sub(bars[i-period].Close)
		}

		if i >= period-1 {
			series = append(series, sum.Div(periodDec))
		}
	}

	return Value{
		Latest:     series[len(series)-1],
		Series:     boundedSeries(series),
		Components: nil,
	}, nil
}

// smaState is the incremental accumulator: the current window and its sum.
type smaState struct {
	period int
	window []decimal.Decimal
	sum    decimal.Decimal
}

// InitState creates the incremental accumulator.
func (s *SMA) InitState(params Params) (State, error) {
	period, err := smaPeriod(params)
	if err != nil {
		return nil, err
	}

	return &smaState{
		period: period,
		window: make([]decimal.Decimal, 0, period),
		sum:    decimal.Zero,
	}, nil
}

// UpdateState advances the accumulator with one bar.
func (s *SMA) UpdateState(state State, bar types.Bar) (State, Value, error) {
	st, ok := state.(*smaState)
	if !ok {
		return nil, Value{}, errors.Newf(errors.ErrCodeIndicatorCalculation,
			"sma state has unexpected type %T", state)
	}

	next := smaState{
		period: st.period,
		// Full-slice expression: the append allocates, leaving the given
		// state's window intact.
		window: append(st.window[:len(st.window):len(st.window)], bar.Close),
		sum:    st.sum.Add(bar.Close),
	}

	if len(next.window) > next.period {
		next.sum = next.sum.Sub(next.window[0])
		next.window = next.window[1:]
	}

	if len(next.window) < next.period {
		return &next, Value{}, errors.NewInsufficientDataErrorf(next.period, len(next.window), bar.Symbol,
			"sma(%d) warming up: %d of %d bars", next.period, len(next.window), next.period)
	}

	latest := next.sum.Div(decimal.NewFromInt(int64(next.period)))

	return &next, Value{Latest: latest, Series: nil, Components: nil}, nil
}

func smaPeriod(params Params) (int, error) {
	period, err := params.IntValue("period", 20)
	if err != nil {
		return 0, err
	}

	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "sma period must be positive, got %d", period)
	}

	return period, nil
}

func barsSymbol(bars []types.Bar) string {
	if len(bars) == 0 {
		return ""
	}

	return bars[0].Symbol
}

// ParamNames lists the accepted parameter keys.
func (s *SMA) ParamNames() []string {
	return []string{"period"}
}

var (
	_ Indicator          = (*SMA)(nil)
	_ StreamingIndicator = (*SMA)(nil)
	_ ParamSpec          = (*SMA)(nil)
)
