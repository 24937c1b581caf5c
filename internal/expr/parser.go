package expr

import (
	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// node is a parsed expression tree node.
type node interface {
	// variables appends every variable name referenced under this node.
	variables(into map[string]struct{})
}

// orNode and andNode combine boolean subexpressions.
type orNode struct {
	left, right node
}

type andNode struct {
	left, right node
}

// notNode negates a boolean subexpression.
type notNode struct {
	operand node
}

// compareNode compares two operands with one of < > <= >= == !=.
type compareNode struct {
	op          string
	left, right operand
}

// valueNode is a bare operand used where a boolean is expected. It has no
// boolean value; evaluation treats it as indeterminate and flags a warning
// (or an error in strict mode).
type valueNode struct {
	operand operand
}

// operand is either a variable reference or a decimal literal.
type operand struct {
	name    string
	literal decimal.Decimal
	isVar   bool
}

func (n *orNode) variables(into map[string]struct{}) {
	n.left.variables(into)
	n.right.variables(into)
}

func (n *andNode) variables(into map[string]struct{}) {
	n.left.variables(into)
	n.right.variables(into)
}

func (n *notNode) variables(into map[string]struct{}) {
	n.operand.variables(into)
}

func (n *compareNode) variables(into map[string]struct{}) {
	n.left.collect(into)
	n.right.collect(into)
}

func (n *valueNode) variables(into map[string]struct{}) {
	n.operand.collect(into)
}

func (o operand) collect(into map[string]struct{}) {
	if o.isVar {
		into[o.name] = struct{}{}
	}
}

// parser is a recursive-descent parser over the token stream.
//
// Grammar:
//
//	expr    := orExpr
//	orExpr  := andExpr (OR andExpr)*
//	andExpr := unary (AND unary)*
//	unary   := NOT unary | primary
//	primary := '(' expr ')' | operand (cmpOp operand)?
//	operand := IDENT | NUMBER
type parser struct {
	tokens []token
	pos    int
}

// parse builds the expression tree for a condition string.
func parse(expression string) (node, error) {
	tokens, err := tokenize(expression)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, pos: 0}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.kind != tokenEOF {
		if tok.kind == tokenRParen {
			return nil, errors.Newf(errors.ErrCodeUnbalancedParens,
				"unmatched closing parenthesis at position %d", tok.pos)
		}

		return nil, errors.Newf(errors.ErrCodeExpressionSyntax,
			"unexpected token %q at position %d", tok.text, tok.pos)
	}

	return root, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}

	return tok
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.peek().kind == tokenOr {
		p.next()

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &orNode{left: left, right: right}
	}

	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.peek().kind == tokenAnd {
		p.next()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &andNode{left: left, right: right}
	}

	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokenNot {
		p.next()

		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &notNode{operand: operand}, nil
	}

	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.peek()

	if tok.kind == tokenLParen {
		p.next()

		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		closing := p.next()
		if closing.kind != tokenRParen {
			return nil, errors.Newf(errors.ErrCodeUnbalancedParens,
				"missing closing parenthesis for group opened at position %d", tok.pos)
		}

		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.peek().kind != tokenCompare {
		// A bare operand where a boolean is expected.
		return &valueNode{operand: left}, nil
	}

	op := p.next()

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	return &compareNode{op: op.text, left: left, right: right}, nil
}

func (p *parser) parseOperand() (operand, error) {
	tok := p.next()

	switch tok.kind {
	case tokenIdent:
		return operand{name: tok.text, isVar: true, literal: decimal.Zero}, nil

	case tokenNumber:
		value, err := decimal.NewFromString(tok.text)
		if err != nil {
			return operand{}, errors.Wrapf(errors.ErrCodeInvalidNumericValue, err,
				"invalid numeric literal %q at position %d", tok.text, tok.pos)
		}

		return operand{name: "", isVar: false, literal: value}, nil

	case tokenCompare:
		return operand{}, errors.Newf(errors.ErrCodeExpressionSyntax,
			"operator %q at position %d is missing its left operand", tok.text, tok.pos)

	case tokenEOF:
		return operand{}, errors.New(errors.ErrCodeExpressionSyntax,
			"expression ends where a value was expected")

	default:
		return operand{}, errors.Newf(errors.ErrCodeExpressionSyntax,
			"unexpected token %q at position %d", tok.text, tok.pos)
	}
}
