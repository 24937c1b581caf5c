package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ContextTestSuite struct {
	suite.Suite
}

func TestContextSuite(t *testing.T) {
	suite.Run(t, new(ContextTestSuite))
}

func (suite *ContextTestSuite) TestNewEvaluationContextCopiesInput() {
	source := map[string]decimal.Decimal{
		"close": decimal.RequireFromString("101.5"),
	}
	ctx := NewEvaluationContext("BTCUSDT", source)

	// Mutating the source map must not leak into the context.
	source["close"] = decimal.RequireFromString("999")

	value, ok := ctx.Value("close")
	suite.True(ok)
	suite.True(value.Equal(decimal.RequireFromString("101.5")))
}

func (suite *ContextTestSuite) TestValueMissing() {
	ctx := NewEvaluationContext("BTCUSDT", nil)

	_, ok := ctx.Value("rsi_14")
	suite.False(ok)
}

func (suite *ContextTestSuite) TestNamesSorted() {
	ctx := NewEvaluationContext("BTCUSDT", map[string]decimal.Decimal{
		"close":  decimal.NewFromInt(1),
		"atr_14": decimal.NewFromInt(2),
		"open":   decimal.NewFromInt(3),
	})

	suite.Equal([]string{"atr_14", "close", "open"}, ctx.Names())
}

func (suite *ContextTestSuite) TestWithDoesNotMutateReceiver() {
	base := NewEvaluationContext("BTCUSDT", map[string]decimal.Decimal{
		"close": decimal.NewFromInt(100),
	})

	extended := base.With(map[string]decimal.Decimal{
		FieldDrawdown: decimal.NewFromInt(5),
	})

	_, ok := base.Value(FieldDrawdown)
	suite.False(ok)

	value, ok := extended.Value(FieldDrawdown)
	suite.True(ok)
	suite.True(value.Equal(decimal.NewFromInt(5)))
	suite.Equal("BTCUSDT", extended.Symbol())
}

func (suite *ContextTestSuite) TestValuesReturnsCopy() {
	ctx := NewEvaluationContext("BTCUSDT", map[string]decimal.Decimal{
		"close": decimal.NewFromInt(100),
	})

	snapshot := ctx.Values()
	snapshot["close"] = decimal.NewFromInt(0)

	value, _ := ctx.Value("close")
	suite.True(value.Equal(decimal.NewFromInt(100)))
}

func (suite *ContextTestSuite) TestReservedFieldNames() {
	suite.Equal([]string{"open", "high", "low", "close", "volume", "price"}, MarketFields)
	suite.Equal([]string{"unrealized_pnl", "unrealized_pnl_pct", "drawdown", "position_age"}, PositionFields)
}
