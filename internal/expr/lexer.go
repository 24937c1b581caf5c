package expr

import (
	"strings"
	"unicode"

	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenCompare
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// operator characters that form comparison operators. A maximal run of these
// must be exactly one of the six valid operators; runs like "<<" or "==="
// are rejected as malformed.
const operatorChars = "<>=!"

var validOperators = map[string]struct{}{
	"<": {}, ">": {}, "<=": {}, ">=": {}, "==": {}, "!=": {},
}

// tokenize splits an expression into tokens. AND, OR, and NOT are matched
// case-insensitively; any other identifier is a variable reference.
func tokenize(expression string) ([]token, error) {
	runes := []rune(expression)
	tokens := make([]token, 0, 16)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++

		case r == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++

		case strings.ContainsRune(operatorChars, r):
			start := i
			for i < len(runes) && strings.ContainsRune(operatorChars, runes[i]) {
				i++
			}

			op := string(runes[start:i])
			if _, ok := validOperators[op]; !ok {
				return nil, errors.Newf(errors.ErrCodeMalformedOperator,
					"malformed operator %q at position %d", op, start)
			}

			tokens = append(tokens, token{kind: tokenCompare, text: op, pos: start})

		case isDigit(r), r == '.':
			start := i
			for i < len(runes) && (isDigit(runes[i]) || runes[i] == '.') {
				i++
			}

			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[start:i]), pos: start})

		case r == '-' && i+1 < len(runes) && (isDigit(runes[i+1]) || runes[i+1] == '.'):
			start := i
			i++

			for i < len(runes) && (isDigit(runes[i]) || runes[i] == '.') {
				i++
			}

			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[start:i]), pos: start})

		case isIdentStart(r):
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}

			word := string(runes[start:i])

			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{kind: tokenAnd, text: word, pos: start})
			case "OR":
				tokens = append(tokens, token{kind: tokenOr, text: word, pos: start})
			case "NOT":
				tokens = append(tokens, token{kind: tokenNot, text: word, pos: start})
			default:
				tokens = append(tokens, token{kind: tokenIdent, text: word, pos: start})
			}

		default:
			return nil, errors.Newf(errors.ErrCodeExpressionSyntax,
				"unexpected character %q at position %d", string(r), i)
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, text: "", pos: len(runes)})

	return tokens, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}
