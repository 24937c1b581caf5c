package expr

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

type EvaluatorTestSuite struct {
	suite.Suite
	evaluator *Evaluator
	ctx       *types.EvaluationContext
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorTestSuite))
}

func (suite *EvaluatorTestSuite) SetupTest() {
	suite.evaluator = NewEvaluator(StrictnessLenient)
	suite.ctx = types.NewEvaluationContext("BTCUSDT", map[string]decimal.Decimal{
		"close":       decimal.RequireFromString("101.5"),
		"open":        decimal.RequireFromString("100"),
		"rsi_14":      decimal.RequireFromString("28.3"),
		"rsi_14_prev": decimal.RequireFromString("31.2"),
		"sma_20":      decimal.RequireFromString("99.75"),
		"macd_hist":   decimal.RequireFromString("-0.25"),
	})
}

func (suite *EvaluatorTestSuite) TestComparisons() {
	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{"less than true", "rsi_14 < 30", true},
		{"less than false", "rsi_14 < 20", false},
		{"greater than", "close > 100", true},
		{"less or equal boundary", "rsi_14 <= 28.3", true},
		{"greater or equal", "close >= 101.5", true},
		{"equal", "open == 100", true},
		{"equal trailing zeros", "open == 100.00", true},
		{"not equal", "open != 100", false},
		{"variable vs variable", "close > sma_20", true},
		{"negative literal", "macd_hist < -0.1", true},
		{"crossing with prev", "rsi_14 < 30 AND rsi_14_prev >= 30", true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			result, err := suite.evaluator.Evaluate(tc.expression, suite.ctx)
			suite.NoError(err)
			suite.Equal(tc.expected, result.Value)
			suite.False(result.Indeterminate)
		})
	}
}

func (suite *EvaluatorTestSuite) TestBooleanCombinators() {
	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{"and true", "rsi_14 < 30 AND close > 100", true},
		{"and false", "rsi_14 < 30 AND close > 200", false},
		{"or", "rsi_14 > 70 OR close > 100", true},
		{"not", "NOT rsi_14 > 70", true},
		{"lowercase keywords", "rsi_14 < 30 and close > 100", true},
		{"mixed case keywords", "rsi_14 < 30 Or close > 200", true},
		{"grouping", "(rsi_14 < 30 OR rsi_14 > 70) AND close > 100", true},
		{"nested not", "NOT (rsi_14 > 70 AND close > 100)", true},
		{"precedence and over or", "rsi_14 > 70 OR rsi_14 < 30 AND close > 100", true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			result, err := suite.evaluator.Evaluate(tc.expression, suite.ctx)
			suite.NoError(err)
			suite.Equal(tc.expected, result.Value)
		})
	}
}

func (suite *EvaluatorTestSuite) TestEmptyExpressionIsFalse() {
	for _, expression := range []string{"", "   ", "\t"} {
		result, err := suite.evaluator.Evaluate(expression, suite.ctx)
		suite.NoError(err)
		suite.False(result.Value)
		suite.Empty(result.Warnings)
	}
}

func (suite *EvaluatorTestSuite) TestAbsentVariableIsIndeterminate() {
	result, err := suite.evaluator.Evaluate("drawdown > 5", suite.ctx)
	suite.NoError(err)
	suite.False(result.Value)
	suite.True(result.Indeterminate)
}

func (suite *EvaluatorTestSuite) TestIndeterminatePropagation() {
	tests := []struct {
		name          string
		expression    string
		expected      bool
		indeterminate bool
	}{
		// unknown AND false is false, not unknown
		{"unknown and false", "drawdown > 5 AND rsi_14 > 70", false, false},
		// unknown OR true is true
		{"unknown or true", "drawdown > 5 OR rsi_14 < 30", true, false},
		// unknown AND true stays unknown, collapses to false
		{"unknown and true", "drawdown > 5 AND rsi_14 < 30", false, true},
		// NOT unknown stays unknown
		{"not unknown", "NOT drawdown > 5", false, true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			result, err := suite.evaluator.Evaluate(tc.expression, suite.ctx)
			suite.NoError(err)
			suite.Equal(tc.expected, result.Value)
			suite.Equal(tc.indeterminate, result.Indeterminate)
		})
	}
}

func (suite *EvaluatorTestSuite) TestNonBooleanLenient() {
	result, err := suite.evaluator.Evaluate("rsi_14", suite.ctx)
	suite.NoError(err)
	suite.False(result.Value)
	suite.NotEmpty(result.Warnings)
}

func (suite *EvaluatorTestSuite) TestNonBooleanStrict() {
	strict := NewEvaluator(StrictnessStrict)

	_, err := strict.Evaluate("rsi_14", suite.ctx)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNonBooleanResult))
}

func (suite *EvaluatorTestSuite) TestSyntaxErrors() {
	tests := []struct {
		name       string
		expression string
		code       errors.ErrorCode
	}{
		{"shift left", "rsi_14 << 30", errors.ErrCodeMalformedOperator},
		{"shift right", "rsi_14 >> 30", errors.ErrCodeMalformedOperator},
		{"triple equals", "rsi_14 === 30", errors.ErrCodeMalformedOperator},
		{"bang double equals", "rsi_14 !== 30", errors.ErrCodeMalformedOperator},
		{"single equals", "rsi_14 = 30", errors.ErrCodeMalformedOperator},
		{"missing close paren", "(rsi_14 < 30", errors.ErrCodeUnbalancedParens},
		{"extra close paren", "rsi_14 < 30)", errors.ErrCodeUnbalancedParens},
		{"dangling operator", "rsi_14 <", errors.ErrCodeExpressionSyntax},
		{"leading operator", "< 30", errors.ErrCodeExpressionSyntax},
		{"bad character", "rsi_14 < 30 @", errors.ErrCodeExpressionSyntax},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := suite.evaluator.Evaluate(tc.expression, suite.ctx)
			suite.Error(err)
			suite.Equal(tc.code, errors.GetCode(err), "got %v", err)
		})
	}
}

func (suite *EvaluatorTestSuite) TestDecimalExactness() {
	ctx := types.NewEvaluationContext("BTCUSDT", map[string]decimal.Decimal{
		// 0.1 + 0.2 computed in decimal is exactly 0.3; float64 would miss.
		"sum": decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2")),
	})

	result, err := suite.evaluator.Evaluate("sum == 0.3", ctx)
	suite.NoError(err)
	suite.True(result.Value)
}
