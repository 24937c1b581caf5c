package types

import "github.com/shopspring/decimal"

// sqrtIterations bounds the Newton iterations; convergence at the decimal
// division precision is reached far earlier for market-scale magnitudes.
const sqrtIterations = 32

// DecimalSqrt approximates the square root with Newton's method, entirely in
// decimal arithmetic so results are deterministic across platforms.
// Non-positive inputs yield zero.
func DecimalSqrt(value decimal.Decimal) decimal.Decimal {
	if value.Sign() <= 0 {
		return decimal.Zero
	}

	two := decimal.NewFromInt(2)
	guess := value

	for i := 0; i < sqrtIterations; i++ {
		next := guess.Add(value.Div(guess)).Div(two)
		if next.Equal(guess) {
			break
		}

		guess = next
	}

	return guess
}
