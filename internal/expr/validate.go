package expr

import (
	"strings"

	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// ValidateVariables checks an expression before any tick is processed:
// syntax (parenthesis balance, malformed operator runs) and that every
// referenced identifier is in the known set. Every undefined variable is
// reported together, not just the first. An empty expression is valid.
func ValidateVariables(expression string, known map[string]struct{}) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}

	root, err := parse(expression)
	if err != nil {
		return err
	}

	referenced := make(map[string]struct{})
	root.variables(referenced)

	var undefined []string

	for name := range referenced {
		if _, ok := known[name]; !ok {
			undefined = append(undefined, name)
		}
	}

	if len(undefined) > 0 {
		return errors.NewUndefinedVariablesError(expression, undefined)
	}

	return nil
}

// Variables returns every variable name referenced by the expression.
// An empty expression references nothing.
func Variables(expression string) ([]string, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}

	root, err := parse(expression)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]struct{})
	root.variables(referenced)

	names := make([]string, 0, len(referenced))
	for name := range referenced {
		names = append(names, name)
	}

	return names, nil
}

// KnownNames builds the known-variable set for validation from one or more
// name groups (reserved market fields, indicator names, position fields).
func KnownNames(groups ...[]string) map[string]struct{} {
	known := make(map[string]struct{})

	for _, group := range groups {
		for _, name := range group {
			known[name] = struct{}{}
		}
	}

	return known
}
