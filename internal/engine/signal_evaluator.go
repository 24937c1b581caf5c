package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/expr"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// ConflictPolicy decides what happens when entry and exit (or stop)
// conditions evaluate true on the same tick.
type ConflictPolicy string

const (
	// ConflictPolicyReject surfaces the conflict as an error and commits no
	// position or signal changes for the tick.
	ConflictPolicyReject ConflictPolicy = "reject"
	// ConflictPolicyExitWins processes the exits and suppresses the entry.
	ConflictPolicyExitWins ConflictPolicy = "exit_wins"
)

// CloseDecision marks one open position for closing, with the condition kind
// that triggered it.
type CloseDecision struct {
	Position *types.Position
	Kind     types.SignalType
}

// Evaluation is the outcome of evaluating a strategy's conditions on one tick.
type Evaluation struct {
	// Entry reports a satisfied entry condition with capacity remaining.
	Entry bool
	// Closes lists the open positions whose exit or stop condition held.
	Closes []CloseDecision
	// Warnings aggregates non-fatal evaluation notes across all conditions.
	Warnings []string
}

// SignalEvaluator turns a strategy's entry/exit/stop expressions and the
// tick's evaluation context into concrete trading decisions. Entry
// evaluation is skipped entirely at capacity; exit and stop evaluation is
// skipped when no positions are open. Stop is evaluated before exit per
// position so a protective trigger is recorded as such.
type SignalEvaluator struct {
	evaluator *expr.Evaluator
	policy    ConflictPolicy
}

// NewSignalEvaluator creates a SignalEvaluator with the given expression
// strictness and conflict policy.
func NewSignalEvaluator(strictness expr.Strictness, policy ConflictPolicy) *SignalEvaluator {
	if policy == "" {
		policy = ConflictPolicyReject
	}

	return &SignalEvaluator{
		evaluator: expr.NewEvaluator(strictness),
		policy:    policy,
	}
}

// Evaluate runs the strategy's conditions against the tick context. open is
// the pre-tick open position set, capacity the configured maximum, now and
// price the tick time and price used for position-derived variables. A
// conflict under the reject policy returns the collected evaluation alongside
// a ConflictError; under exit-wins the entry is dropped and the closes stand.
func (s *SignalEvaluator) Evaluate(
	def *types.StrategyDefinition,
	ctx *types.EvaluationContext,
	open []*types.Position,
	capacity int,
	now time.Time,
	price decimal.Decimal,
) (Evaluation, error) {
	var evaluation Evaluation

	atCapacity := capacity > 0 && len(open) >= capacity

	if !atCapacity {
		result, err := s.evaluator.Evaluate(def.Entry, ctx)
		if err != nil {
			return Evaluation{}, err
		}

		evaluation.Entry = result.Value
		evaluation.Warnings = append(evaluation.Warnings, result.Warnings...)
	}

	for _, position := range open {
		decision, warnings, err := s.evaluateClose(def, ctx, position, now, price)
		if err != nil {
			return Evaluation{}, err
		}

		evaluation.Warnings = append(evaluation.Warnings, warnings...)

		if decision != nil {
			evaluation.Closes = append(evaluation.Closes, *decision)
		}
	}

	if evaluation.Entry && len(evaluation.Closes) > 0 {
		if s.policy == ConflictPolicyExitWins {
			evaluation.Entry = false
		} else {
			// Return the populated evaluation so warnings collected before
			// the conflict reach the tick result.
			return evaluation, errors.NewConflictError(
				def.Symbol, def.Entry, string(evaluation.Closes[0].Kind))
		}
	}

	return evaluation, nil
}

func (s *SignalEvaluator) evaluateClose(
	def *types.StrategyDefinition,
	ctx *types.EvaluationContext,
	position *types.Position,
	now time.Time,
	price decimal.Decimal,
) (*CloseDecision, []string, error) {
	positionCtx := ctx.With(map[string]decimal.Decimal{
		types.FieldUnrealizedPnL:    position.UnrealizedPnL(price),
		types.FieldUnrealizedPnLPct: position.UnrealizedPnLPercent(price),
		types.FieldDrawdown:         position.Drawdown(price),
		types.FieldPositionAge:      position.Age(now),
	})

	var warnings []string

	for _, condition := range []struct {
		expression string
		kind       types.SignalType
	}{
		{def.Stop, types.SignalTypeStop},
		{def.Exit, types.SignalTypeExit},
	} {
		if condition.expression == "" {
			continue
		}

		result, err := s.evaluator.Evaluate(condition.expression, positionCtx)
		if err != nil {
			return nil, nil, err
		}

		warnings = append(warnings, result.Warnings...)

		if result.Value {
			return &CloseDecision{Position: position, Kind: condition.kind}, warnings, nil
		}
	}

	return nil, warnings, nil
}
