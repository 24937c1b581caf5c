package indicator

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

var decimalHundred = decimal.NewFromInt(100)

// RSI is the Relative Strength Index with Wilder's smoothing.
type RSI struct{}

// NewRSI creates a new RSI indicator.
func NewRSI() *RSI {
	return &RSI{}
}

// Type returns the type tag of the indicator.
func (r *RSI) Type() types.IndicatorType {
	return types.IndicatorTypeRSI
}

// ComputeBatch computes the RSI over the full history. Requires period+1
// bars: N bars yield N-1 price changes and the seed averages need a full
// period of changes.
func (r *RSI) ComputeBatch(ctx context.Context, params Params, bars []types.Bar) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, errors.Wrap(errors.ErrCodeComputeTimeout, "rsi computation cancelled", err)
	}

	period, err := rsiPeriod(params)
	if err != nil {
		return Value{}, err
	}

	if len(bars) < period+1 {
		return Value{}, errors.NewInsufficientDataErrorf(period+1, len(bars), barsSymbol(bars),
			"rsi(%d) requires %d bars, have %d", period, period+1, len(bars))
	}

	periodDec := decimal.NewFromInt(int64(period))
	periodLess := decimal.NewFromInt(int64(period - 1))

	// Seed averages over the first period changes.
	avgGain := decimal.Zero
	avgLoss := decimal.Zero

	for i := 1; i <= period; i++ {
		gain, loss := gainLoss(bars[i-1].Close, bars[i].Close)
		avgGain = avgGain.Add(gain)
		avgLoss = avgLoss.Add(loss)
	}

	avgGain = avgGain.Div(periodDec)
	avgLoss = avgLoss.Div(periodDec)

	series := make([]decimal.Decimal, 0, len(bars)-period)
	series = append(series, rsiFrom(avgGain, avgLoss))

	// Wilder's smoothing over the remaining changes.
	for i := period + 1; i < len(bars); i++ {
		gain, loss := gainLoss(bars[i-1].Close, bars[i].Close)
		avgGain = avgGain.Mul(periodLess).Add(gain).Div(periodDec)
		avgLoss = avgLoss.Mul(periodLess).Add(loss).Div(periodDec)
		series = append(series, rsiFrom(avgGain, avgLoss))
	}

	return Value{
		Latest:     series[len(series)-1],
		Series:     boundedSeries(series),
		Components: nil,
	}, nil
}

// rsiState is the incremental accumulator mirroring the batch recurrence.
type rsiState struct {
	period    int
	changes   int
	prevClose decimal.Decimal
	avgGain   decimal.Decimal
	avgLoss   decimal.Decimal
	seeded    bool
	started   bool
}

// InitState creates the incremental accumulator.
func (r *RSI) InitState(params Params) (State, error) {
	period, err := rsiPeriod(params)
	if err != nil {
		return nil, err
	}

	return &rsiState{
		period:    period,
		changes:   0,
		prevClose: decimal.Zero,
		avgGain:   decimal.Zero,
		avgLoss:   decimal.Zero,
		seeded:    false,
		started:   false,
	}, nil
}

// UpdateState advances the accumulator with one bar.
func (r *RSI) UpdateState(state State, bar types.Bar) (State, Value, error) {
	st, ok := state.(*rsiState)
	if !ok {
		return nil, Value{}, errors.Newf(errors.ErrCodeIndicatorCalculation,
			"rsi state has unexpected type %T", state)
	}

	next := *st

	if !next.started {
		next.started = true
		next.prevClose = bar.Close

		return &next, Value{}, errors.NewInsufficientDataErrorf(next.period+1, 1, bar.Symbol,
			"rsi(%d) warming up: 1 of %d bars", next.period, next.period+1)
	}

	gain, loss := gainLoss(next.prevClose, bar.Close)
	next.prevClose = bar.Close
	next.changes++

	periodDec := decimal.NewFromInt(int64(next.period))

	switch {
	case next.changes < next.period:
		next.avgGain = next.avgGain.Add(gain)
		next.avgLoss = next.avgLoss.Add(loss)

		return &next, Value{}, errors.NewInsufficientDataErrorf(next.period+1, next.changes+1, bar.Symbol,
			"rsi(%d) warming up: %d of %d bars", next.period, next.changes+1, next.period+1)

	case !next.seeded:
		next.avgGain = next.avgGain.Add(gain).Div(periodDec)
		next.avgLoss = next.avgLoss.Add(loss).Div(periodDec)
		next.seeded = true

	default:
		periodLess := decimal.NewFromInt(int64(next.period - 1))
		next.avgGain = next.avgGain.Mul(periodLess).Add(gain).Div(periodDec)
		next.avgLoss = next.avgLoss.Mul(periodLess).Add(loss).Div(periodDec)
	}

	return &next, Value{Latest: rsiFrom(next.avgGain, next.avgLoss), Series: nil, Components: nil}, nil
}

func gainLoss(prev, current decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	change := current.Sub(prev)
	if change.IsPositive() {
		return change, decimal.Zero
	}

	return decimal.Zero, change.Neg()
}

func rsiFrom(avgGain, avgLoss decimal.Decimal) decimal.Decimal {
	// Zero average loss means a perfect uptrend.
	if avgLoss.IsZero() {
		return decimalHundred
	}

	rs := avgGain.Div(avgLoss)

	return decimalHundred.Sub(decimalHundred.Div(decimalOne.Add(rs)))
}

func rsiPeriod(params Params) (int, error) {
	period, err := params.IntValue("period", 14)
	if err != nil {
		return 0, err
	}

	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "rsi period must be positive, got %d", period)
	}

	return period, nil
}

// ParamNames lists the accepted parameter keys.
func (r *RSI) ParamNames() []string {
	return []string{"period"}
}

var (
	_ Indicator          = (*RSI)(nil)
	_ StreamingIndicator = (*RSI)(nil)
	_ ParamSpec          = (*RSI)(nil)
)
