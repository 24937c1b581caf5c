package indicator

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// ATR is the Average True Range with Wilder's smoothing. True range uses the
// previous close, so N bars yield N-1 true ranges and the indicator needs
// period+1 bars.
type ATR struct{}

// NewATR creates a new ATR indicator.
func NewATR() *ATR {
	return &ATR{}
}

// Type returns the type tag of the indicator.
func (a *ATR) Type() types.IndicatorType {
	return types.IndicatorTypeATR
}

// ComputeBatch computes the ATR over the full history.
func (a *ATR) ComputeBatch(ctx context.Context, params Params, bars []types.Bar) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, errors.Wrap(errors.ErrCodeComputeTimeout, "atr computation cancelled", err)
	}

	period, err := atrPeriod(params)
	if err != nil {
		return Value{}, err
	}

	if len(bars) < period+1 {
		return Value{}, errors.NewInsufficientDataErrorf(period+1, len(bars), barsSymbol(bars),
			"atr(%d) requires %d bars, have %d", period, period+1, len(bars))
	}

	periodDec := decimal.NewFromInt(int64(period))
	periodLess := decimal.NewFromInt(int64(period - 1))

	// Seed with the mean of the first period true ranges.
	atr := decimal.Zero
	for i := 1; i <= period; i++ {
		atr = atr.Add(trueRange(bars[i-1].Close, bars[i]))
	}

	atr = atr.Div(periodDec)
	series := make([]decimal.Decimal, 0, len(bars)-period)
	series = append(series, atr)

	for i := period + 1; i < len(bars); i++ {
		tr := trueRange(bars[i-1].Close, bars[i])
		atr = atr.Mul(periodLess).Add(tr).Div(periodDec)
		series = append(series, atr)
	}

	return Value{
		Latest:     series[len(series)-1],
		Series:     boundedSeries(series),
		Components: nil,
	}, nil
}

// atrState is the incremental accumulator mirroring the batch recurrence.
type atrState struct {
	period    int
	ranges    int
	prevClose decimal.Decimal
	sum       decimal.Decimal
	atr       decimal.Decimal
	seeded    bool
	started   bool
}

// InitState creates the incremental accumulator.
func (a *ATR) InitState(params Params) (State, error) {
	period, err := atrPeriod(params)
	if err != nil {
		return nil, err
	}

	return &atrState{
		period:    period,
		ranges:    0,
		prevClose: decimal.Zero,
		sum:       decimal.Zero,
		atr:       decimal.Zero,
		seeded:    false,
		started:   false,
	}, nil
}

// UpdateState advances the accumulator with one bar.
func (a *ATR) UpdateState(state State, bar types.Bar) (State, Value, error) {
	st, ok := state.(*atrState)
	if !ok {
		return nil, Value{}, errors.Newf(errors.ErrCodeIndicatorCalculation,
			"atr state has unexpected type %T", state)
	}

	next := *st

	if !next.started {
		next.started = true
		next.prevClose = bar.Close

		return &next, Value{}, errors.NewInsufficientDataErrorf(next.period+1, 1, bar.Symbol,
			"atr(%d) warming up: 1 of %d bars", next.period, next.period+1)
	}

	tr := trueRange(next.prevClose, bar)
	next.prevClose = bar.Close
	next.ranges++

	periodDec := decimal.NewFromInt(int64(next.period))

	switch {
	case next.ranges < next.period:
		next.sum = next.sum.Add(tr)

		return &next, Value{}, errors.NewInsufficientDataErrorf(next.period+1, next.ranges+1, bar.Symbol,
			"atr(%d) warming up: %d of %d bars", next.period, next.ranges+1, next.period+1)

	case !next.seeded:
		next.atr = next.sum.Add(tr).Div(periodDec)
		next.seeded = true

	default:
		periodLess := decimal.NewFromInt(int64(next.period - 1))
		next.atr = next.atr.Mul(periodLess).Add(tr).Div(periodDec)
	}

	return &next, Value{Latest: next.atr, Series: nil, Components: nil}, nil
}

// trueRange is the greatest of high-low, |high-prevClose|, |low-prevClose|.
func trueRange(prevClose decimal.Decimal, bar types.Bar) decimal.Decimal {
	tr := bar.High.Sub(bar.Low)

	if hc := bar.High.Sub(prevClose).Abs(); hc.GreaterThan(tr) {
		tr = hc
	}

	if lc := bar.Low.Sub(prevClose).Abs(); lc.GreaterThan(tr) {
		tr = lc
	}

	return tr
}

func atrPeriod(params Params) (int, error) {
	period, err := params.IntValue("period", 14)
	if err != nil {
		return 0, err
	}

	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "atr period must be positive, got %d", period)
	}

	return period, nil
}

// ParamNames lists the accepted parameter keys.
func (a *ATR) ParamNames() []string {
	return []string{"period"}
}

var (
	_ Indicator          = (*ATR)(nil)
	_ StreamingIndicator = (*ATR)(nil)
	_ ParamSpec          = (*ATR)(nil)
)
