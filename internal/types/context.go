package types

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Reserved market field names available to every condition expression.
const (
	FieldOpen   = "open"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldClose  = "close"
	FieldVolume = "volume"
	FieldPrice  = "price"
)

// Position-derived variable names, available to exit and stop expressions only.
const (
	FieldUnrealizedPnL    = "unrealized_pnl"
	FieldUnrealizedPnLPct = "unrealized_pnl_pct"
	FieldDrawdown         = "drawdown"
	FieldPositionAge      = "position_age"
)

// PrevSuffix is appended to an indicator name to reference its value on the
// previous tick, supporting crossing conditions.
const PrevSuffix = "_prev"

// MarketFields lists the reserved market field names.
var MarketFields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldPrice}

// PositionFields lists the position-derived variable names.
var PositionFields = []string{FieldUnrealizedPnL, FieldUnrealizedPnLPct, FieldDrawdown, FieldPositionAge}

// EvaluationContext is the immutable per-tick variable mapping condition
// expressions evaluate against. It merges the reserved market fields, every
// indicator's latest value, the previous tick's indicator values under the
// "_prev" suffix, and, for exit/stop expressions, the position-derived
// variables. Built fresh on every data point and never mutated afterwards.
type EvaluationContext struct {
	symbol string
	values map[string]decimal.Decimal
}

// NewEvaluationContext builds a context from a symbol and variable mapping.
// The mapping is copied so later mutation of the input cannot leak in.
func NewEvaluationContext(symbol string, values map[string]decimal.Decimal) *EvaluationContext {
	copied := make(map[string]decimal.Decimal, len(values))
	for name, value := range values {
		copied[name] = value
	}

	return &EvaluationContext{
		symbol: symbol,
		values: copied,
	}
}

// Symbol returns the symbol this context was built for.
func (c *EvaluationContext) Symbol() string {
	return c.symbol
}

// Value returns the named variable and whether it is present.
func (c *EvaluationContext) Value(name string) (decimal.Decimal, bool) {
	value, ok := c.values[name]

	return value, ok
}

// Names returns every variable name in the context, sorted.
func (c *EvaluationContext) Names() []string {
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Values returns a copy of the variable mapping, suitable for signal snapshots.
func (c *EvaluationContext) Values() map[string]decimal.Decimal {
	copied := make(map[string]decimal.Decimal, len(c.values))
	for name, value := range c.values {
		copied[name] = value
	}

	return copied
}

// With returns a new context extended with the given variables. The receiver
// is left untouched.
func (c *EvaluationContext) With(extra map[string]decimal.Decimal) *EvaluationContext {
	merged := c.Values()
	for name, value := range extra {
		merged[name] = value
	}

	return &EvaluationContext{
		symbol: c.symbol,
		values: merged,
	}
}
