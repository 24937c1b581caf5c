package types

import "github.com/invopop/jsonschema"

// SizingPolicy selects how the engine sizes a new position.
type SizingPolicy string

const (
	// SizingPolicyPercentage sizes positions as a fraction of current capital.
	SizingPolicyPercentage SizingPolicy = "percentage"
	// SizingPolicyFixed sizes positions as a fixed notional amount.
	SizingPolicyFixed SizingPolicy = "fixed"
	// SizingPolicyRiskBased sizes positions so the configured capital fraction
	// is at risk over the stop distance.
	SizingPolicyRiskBased SizingPolicy = "risk_based"
)

// AllSizingPolicies lists the valid sizing policy values, for schema generation.
var AllSizingPolicies = []any{
	SizingPolicyPercentage,
	SizingPolicyFixed,
	SizingPolicyRiskBased,
}

// JSONSchema constrains the generated schema to the valid policy values.
func (SizingPolicy) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "string",
		Enum: AllSizingPolicies,
	}
}

// IndicatorDefinition declares one indicator of a strategy: a name unique
// within the strategy, the implementation type tag, and its parameters.
type IndicatorDefinition struct {
	Name   string         `yaml:"name" json:"name" validate:"required"`
	Type   IndicatorType  `yaml:"type" json:"type" validate:"required"`
	Params map[string]any `yaml:"params" json:"params"`
}

// RiskParams carries strategy-level risk limits. They are informational to
// the engine core; enforcement lives with an outer collaborator.
type RiskParams struct {
	MaxDailyLoss float64 `yaml:"max_daily_loss" json:"max_daily_loss"`
	MaxDrawdown  float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

// StrategyDefinition is a validated, immutable description of a user
// strategy. The engine consumes definitions already parsed and field-level
// validated by a collaborator; load-time validation here covers expression
// syntax, variable references, and indicator resolvability.
type StrategyDefinition struct {
	// Name identifies the strategy.
	Name string `yaml:"name" json:"name" validate:"required"`
	// SchemaVersion is the strategy schema version this definition targets.
	SchemaVersion string `yaml:"schema_version" json:"schema_version"`
	// Symbol is the traded symbol.
	Symbol string `yaml:"symbol" json:"symbol" validate:"required"`
	// Timeframe is the bar interval, e.g. "1m", "5m", "1h", "1d".
	Timeframe string `yaml:"timeframe" json:"timeframe" validate:"required"`
	// Indicators declares the indicators, in evaluation order.
	Indicators []IndicatorDefinition `yaml:"indicators" json:"indicators" validate:"dive"`
	// Entry is the entry condition expression.
	Entry string `yaml:"entry" json:"entry" validate:"required"`
	// Exit is the exit condition expression. Empty means no exit condition.
	Exit string `yaml:"exit" json:"exit"`
	// Stop is the stop condition expression. Empty means no stop condition.
	Stop string `yaml:"stop" json:"stop"`
	// SizingPolicy selects the position sizing policy.
	SizingPolicy SizingPolicy `yaml:"sizing_policy" json:"sizing_policy" validate:"required,oneof=percentage fixed risk_based"`
	// SizingValue parameterizes the sizing policy: capital fraction for
	// percentage and risk_based, notional amount for fixed.
	SizingValue float64 `yaml:"sizing_value" json:"sizing_value" validate:"gt=0"`
	// Direction is the side the strategy trades. Defaults to long.
	Direction Direction `yaml:"direction" json:"direction"`
	// Risk carries informational risk limits.
	Risk RiskParams `yaml:"risk" json:"risk"`
}

// IndicatorNames returns the declared indicator names in declaration order.
func (s *StrategyDefinition) IndicatorNames() []string {
	names := make([]string, 0, len(s.Indicators))
	for _, def := range s.Indicators {
		names = append(names, def.Name)
	}

	return names
}
