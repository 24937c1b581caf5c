package indicator

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// BollingerBands computes a middle simple moving average band with upper and
// lower bands a configurable number of standard deviations away. The latest
// value is the middle band; "upper" and "lower" are surfaced as components.
// Batch-only.
type BollingerBands struct{}

// NewBollingerBands creates a new Bollinger Bands indicator.
func NewBollingerBands() *BollingerBands {
	return &BollingerBands{}
}

// Type returns the type tag of the indicator.
func (b *BollingerBands) Type() types.IndicatorType {
	return types.IndicatorTypeBollingerBands
}

// ComputeBatch computes the bands over the last period of the history.
func (b *BollingerBands) ComputeBatch(ctx context.Context, params Params, bars []types.Bar) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, errors.Wrap(errors.ErrCodeComputeTimeout, "bollinger computation cancelled", err)
	}

	period, err := params.IntValue("period", 20)
	if err != nil {
		return Value{}, err
	}

	if period <= 0 {
		return Value{}, errors.Newf(errors.ErrCodeInvalidPeriod,
			"bollinger period must be positive, got %d", period)
	}

	multiplier, err := params.DecimalValue("multiplier", decimal.NewFromInt(2))
	if err != nil {
		return Value{}, err
	}

	if len(bars) < period {
		return Value{}, errors.NewInsufficientDataErrorf(period, len(bars), barsSymbol(bars),
			"bollinger(%d) requires %d bars, have %d", period, period, len(bars))
	}

	periodDec := decimal.NewFromInt(int64(period))
	window := bars[len(bars)-period:]

	sum := decimal.Zero
	for _, bar := range window {
		sum = sum.Add(bar.Close)
	}

	middle := sum.Div(periodDec)

	// Population variance of the window around the middle band.
	variance := decimal.Zero
	for _, bar := range window {
		deviation := bar.Close.Sub(middle)
		variance = variance.Add(deviation.Mul(deviation))
	}

	variance = variance.Div(periodDec)
	stddev := types.DecimalSqrt(variance)
	spread := stddev.Mul(multiplier)

	return Value{
		Latest: middle,
		Series: nil,
		Components: map[string]decimal.Decimal{
			"upper": middle.Add(spread),
			"lower": middle.Sub(spread),
		},
	}, nil
}

// ComponentNames lists the secondary outputs: the upper and lower bands.
func (b *BollingerBands) ComponentNames() []string {
	return []string{"upper", "lower"}
}

// ParamNames lists the accepted parameter keys.
func (b *BollingerBands) ParamNames() []string {
	return []string{"period", "multiplier"}
}

var (
	_ ComponentIndicator = (*BollingerBands)(nil)
	_ ParamSpec          = (*BollingerBands)(nil)
)
