package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type DecimalTestSuite struct {
	suite.Suite
}

func TestDecimalSuite(t *testing.T) {
	suite.Run(t, new(DecimalTestSuite))
}

func (suite *DecimalTestSuite) TestDecimalSqrt() {
	tolerance := decimal.RequireFromString("0.0000000001")

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "perfect square", input: "9", expected: "3"},
		{name: "fractional", input: "2.25", expected: "1.5"},
		{name: "large", input: "1000000", expected: "1000"},
		{name: "small", input: "0.0001", expected: "0.01"},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			got := DecimalSqrt(decimal.RequireFromString(tc.input))
			diff := got.Sub(decimal.RequireFromString(tc.expected)).Abs()
			suite.True(diff.LessThan(tolerance), "sqrt(%s) = %s", tc.input, got)
		})
	}
}

func (suite *DecimalTestSuite) TestDecimalSqrtNonPositive() {
	suite.True(DecimalSqrt(decimal.Zero).IsZero())
	suite.True(DecimalSqrt(decimal.NewFromInt(-4)).IsZero())
}
