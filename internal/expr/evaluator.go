// Package expr parses and evaluates boolean condition expressions over a
// named-variable context. The grammar covers decimal comparisons
// (< > <= >= == !=) between variable references and numeric literals,
// combined with AND/OR/NOT and parenthesized grouping.
//
// Evaluation is three-valued: a comparison referencing a variable absent
// from the context is indeterminate, indeterminacy propagates through the
// boolean combinators (Kleene logic), and an indeterminate top-level result
// collapses to false. All comparisons use exact decimal arithmetic.
package expr

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// Strictness controls how a non-boolean evaluation result is handled.
type Strictness int

const (
	// StrictnessLenient coerces a non-boolean result to false and records a
	// warning on the result.
	StrictnessLenient Strictness = iota
	// StrictnessStrict turns a non-boolean result into a hard error.
	StrictnessStrict
)

// Result is the outcome of evaluating one condition expression.
type Result struct {
	// Value is the boolean outcome. Indeterminate and non-boolean results
	// collapse to false.
	Value bool
	// Indeterminate reports that the outcome depended on a variable absent
	// from the context.
	Indeterminate bool
	// Warnings carries non-fatal evaluation notes, e.g. non-boolean results
	// coerced to false under lenient strictness.
	Warnings []string
}

// truth is a three-valued boolean.
type truth int8

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

// Evaluator evaluates condition expressions. The zero value is a lenient
// evaluator.
type Evaluator struct {
	strictness Strictness
}

// NewEvaluator creates an Evaluator with the given strictness.
func NewEvaluator(strictness Strictness) *Evaluator {
	return &Evaluator{strictness: strictness}
}

// Evaluate parses and evaluates the expression against the context. An empty
// or blank expression evaluates to false without error.
func (e *Evaluator) Evaluate(expression string, ctx *types.EvaluationContext) (Result, error) {
	if strings.TrimSpace(expression) == "" {
		return Result{Value: false, Indeterminate: false, Warnings: nil}, nil
	}

	root, err := parse(expression)
	if err != nil {
		return Result{}, err
	}

	state := &evalState{ctx: ctx, warnings: nil, nonBoolean: false}
	outcome := evalNode(root, state)

	if state.nonBoolean && e.strictness == StrictnessStrict {
		return Result{}, errors.Newf(errors.ErrCodeNonBooleanResult,
			"expression %q does not produce a boolean result", expression)
	}

	return Result{
		Value:         outcome == truthTrue,
		Indeterminate: outcome == truthUnknown,
		Warnings:      state.warnings,
	}, nil
}

type evalState struct {
	ctx        *types.EvaluationContext
	warnings   []string
	nonBoolean bool
}

func evalNode(n node, state *evalState) truth {
	switch typed := n.(type) {
	case *orNode:
		return truthOr(evalNode(typed.left, state), evalNode(typed.right, state))

	case *andNode:
		return truthAnd(evalNode(typed.left, state), evalNode(typed.right, state))

	case *notNode:
		return truthNot(evalNode(typed.operand, state))

	case *compareNode:
		return evalCompare(typed, state)

	case *valueNode:
		state.nonBoolean = true
		state.warnings = append(state.warnings,
			"non-boolean expression treated as false")

		return truthUnknown

	default:
		return truthUnknown
	}
}

func evalCompare(n *compareNode, state *evalState) truth {
	left, leftOK := resolve(n.left, state.ctx)
	right, rightOK := resolve(n.right, state.ctx)

	// A comparison over an absent variable is indeterminate, never an error.
	if !leftOK || !rightOK {
		return truthUnknown
	}

	cmp := left.Cmp(right)

	var result bool

	switch n.op {
	case "<":
		result = cmp < 0
	case ">":
		result = cmp > 0
	case "<=":
		result = cmp <= 0
	case ">=":
		result = cmp >= 0
	case "==":
		result = cmp == 0
	case "!=":
		result = cmp != 0
	}

	if result {
		return truthTrue
	}

	return truthFalse
}

func resolve(o operand, ctx *types.EvaluationContext) (decimal.Decimal, bool) {
	if !o.isVar {
		return o.literal, true
	}

	return ctx.Value(o.name)
}

// Kleene three-valued logic tables.

func truthAnd(a, b truth) truth {
	if a == truthFalse || b == truthFalse {
		return truthFalse
	}

	if a == truthUnknown || b == truthUnknown {
		return truthUnknown
	}

	return truthTrue
}

func truthOr(a, b truth) truth {
	if a == truthTrue || b == truthTrue {
		return truthTrue
	}

	if a == truthUnknown || b == truthUnknown {
		return truthUnknown
	}

	return truthFalse
}

func truthNot(a truth) truth {
	switch a {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	default:
		return truthUnknown
	}
}
