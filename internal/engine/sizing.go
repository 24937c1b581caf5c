package engine

import (
	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// positionQuantity sizes a new position at the given price.
//
// Percentage allocates sizingValue as a fraction of current capital. Fixed
// allocates sizingValue as the notional amount. Risk-based puts
// capital*sizingValue at risk over the per-unit stop distance; with no
// derivable stop distance it degrades to percentage sizing.
func positionQuantity(
	policy types.SizingPolicy,
	sizingValue decimal.Decimal,
	capital decimal.Decimal,
	price decimal.Decimal,
	stopDistance decimal.Decimal,
) (decimal.Decimal, error) {
	if price.Sign() <= 0 {
		return decimal.Zero, errors.Newf(errors.ErrCodeInvalidParameter,
			"cannot size a position at price %s", price)
	}

	if sizingValue.Sign() <= 0 {
		return decimal.Zero, errors.Newf(errors.ErrCodeInvalidParameter,
			"sizing value must be positive, got %s", sizingValue)
	}

	switch policy {
	case types.SizingPolicyPercentage:
		return capital.Mul(sizingValue).Div(price), nil

	case types.SizingPolicyFixed:
		return sizingValue.Div(price), nil

	case types.SizingPolicyRiskBased:
		if stopDistance.Sign() <= 0 {
			return capital.Mul(sizingValue).Div(price), nil
		}

		return capital.Mul(sizingValue).Div(stopDistance), nil

	default:
		return decimal.Zero, errors.Newf(errors.ErrCodeInvalidSizingPolicy,
			"unknown sizing policy %q", policy)
	}
}

// stopDistanceFor derives the per-unit stop distance for risk-based sizing:
// the value of the strategy's first ATR indicator when one is declared and
// present in the context, otherwise the max-drawdown risk limit applied to
// the tick price. Zero when neither is available.
func stopDistanceFor(def *types.StrategyDefinition, values map[string]decimal.Decimal, price decimal.Decimal) decimal.Decimal {
	for _, indicatorDef := range def.Indicators {
		if indicatorDef.Type != types.IndicatorTypeATR {
			continue
		}

		if atr, ok := values[indicatorDef.Name]; ok && atr.Sign() > 0 {
			return atr
		}
	}

	if def.Risk.MaxDrawdown > 0 {
		fraction := decimal.NewFromFloat(def.Risk.MaxDrawdown).Div(decimal.NewFromInt(100))

		return price.Mul(fraction)
	}

	return decimal.Zero
}
