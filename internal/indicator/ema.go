package indicator

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

var decimalOne = decimal.NewFromInt(1)

// EMA is the exponential moving average of closing prices, seeded with the
// simple average of the first period closes.
type EMA struct{}

// NewEMA creates a new EMA indicator.
func NewEMA() *EMA {
	return &EMA{}
}

// Type returns the type tag of the indicator.
func (e *EMA) Type() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// ComputeBatch computes the EMA over the full history.
func (e *EMA) ComputeBatch(ctx context.Context, params Params, bars []types.Bar) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, errors.Wrap(errors.ErrCodeComputeTimeout, "ema computation cancelled", err)
	}

	period, err := emaPeriod(params)
	if err != nil {
		return Value{}, err
	}

	series, err := emaSeries(period, bars)
	if err != nil {
		return Value{}, err
	}

	return Value{
		Latest:     series[len(series)-1],
		Series:     boundedSeries(series),
		Components: nil,
	}, nil
}

// emaSeries returns the EMA for every bar from index period-1 on. Shared
// with the MACD computation.
func emaSeries(period int, bars []types.Bar) ([]decimal.Decimal, error) {
	if len(bars) < period {
		return nil, errors.NewInsufficientDataErrorf(period, len(bars), barsSymbol(bars),
			"ema(%d) requires %d bars, have %d", period, period, len(bars))
	}

	closes := make([]decimal.Decimal, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	return emaOver(period, closes)
}

// emaOver computes the EMA series over an arbitrary value sequence.
func emaOver(period int, values []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(values) < period {
		return nil, errors.NewInsufficientDataErrorf(period, len(values), "",
			"ema(%d) requires %d values, have %d", period, period, len(values))
	}

	periodDec := decimal.NewFromInt(int64(period))
	multiplier := decimal.NewFromInt(2).Div(periodDec.Add(decimalOne))
	complement := decimalOne.Sub(multiplier)

	seed := decimal.Zero
	for i := 0; i < period; i++ {
		seed = seed.Add(values[i])
	}

	ema := seed.Div(periodDec)
	series := make([]decimal.Decimal, 0, len(values)-period+1)
	series = append(series, ema)

	for i := period; i < len(values); i++ {
		ema = values[i].Mul(multiplier).Add(ema.Mul(complement))
		series = append(series, ema)
	}

	return series, nil
}

// emaState is the incremental accumulator: seed accumulation until the
// period fills, then the running EMA.
type emaState struct {
	period     int
	multiplier decimal.Decimal
	complement decimal.Decimal
	count      int
	seedSum    decimal.Decimal
	ema        decimal.Decimal
}

// InitState creates the incremental accumulator.
func (e *EMA) InitState(params Params) (State, error) {
	period, err := emaPeriod(params)
	if err != nil {
		return nil, err
	}

	periodDec := decimal.NewFromInt(int64(period))
	multiplier := decimal.NewFromInt(2).Div(periodDec.Add(decimalOne))

	return &emaState{
		period:     period,
		multiplier: multiplier,
		complement: decimalOne.Sub(multiplier),
		count:      0,
		seedSum:    decimal.Zero,
		ema:        decimal.Zero,
	}, nil
}

// UpdateState advances the accumulator with one bar.
func (e *EMA) UpdateState(state State, bar types.Bar) (State, Value, error) {
	st, ok := state.(*emaState)
	if !ok {
		return nil, Value{}, errors.Newf(errors.ErrCodeIndicatorCalculation,
			"ema state has unexpected type %T", state)
	}

	next := *st
	next.count++

	switch {
	case next.count < next.period:
		next.seedSum = next.seedSum.Add(bar.Close)

		return &next, Value{}, errors.NewInsufficientDataErrorf(next.period, next.count, bar.Symbol,
			"ema(%d) warming up: %d of %d bars", next.period, next.count, next.period)

	case next.count == next.period:
		next.seedSum = next.seedSum.Add(bar.Close)
		next.ema = next.seedSum.Div(decimal.NewFromInt(int64(next.period)))

	default:
		next.ema = bar.Close.Mul(next.multiplier).Add(next.ema.Mul(next.complement))
	}

	return &next, Value{Latest: next.ema, Series: nil, Components: nil}, nil
}

func emaPeriod(params Params) (int, error) {
	period, err := params.IntValue("period", 20)
	if err != nil {
		return 0, err
	}

	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "ema period must be positive, got %d", period)
	}

	return period, nil
}

// ParamNames lists the accepted parameter keys.
func (e *EMA) ParamNames() []string {
	return []string{"period"}
}

var (
	_ Indicator          = (*EMA)(nil)
	_ StreamingIndicator = (*EMA)(nil)
	_ ParamSpec          = (*EMA)(nil)
)
