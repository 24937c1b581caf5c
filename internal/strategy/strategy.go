// Package strategy loads and validates strategy definitions. Validation runs
// once at load time, before any tick is processed; a strategy failing any
// check is never activated.
package strategy

import (
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/rzcastilho/trading-strategy-sub000/internal/expr"
	"github.com/rzcastilho/trading-strategy-sub000/internal/indicator"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/internal/version"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

var validate = validator.New()

// Parse decodes a YAML strategy definition. The schema version defaults to
// the engine's own, the direction to long. Parse does not validate; call
// Validate before activating the definition.
func Parse(data []byte) (*types.StrategyDefinition, error) {
	var def types.StrategyDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "cannot parse strategy definition", err)
	}

	if def.SchemaVersion == "" {
		def.SchemaVersion = version.SchemaVersion
	}

	if def.Direction == "" {
		def.Direction = types.DirectionLong
	}

	return &def, nil
}

// Load reads and parses a strategy definition file.
func Load(path string) (*types.StrategyDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "cannot read strategy file %s", path)
	}

	return Parse(data)
}

// Validate checks a definition against the given indicator registry: field
// constraints, schema version compatibility, indicator resolvability, and
// every condition expression against the variable names that will exist at
// evaluation time. All failures of a load are reported together, not one at
// a time.
func Validate(def *types.StrategyDefinition, registry indicator.Registry) error {
	if def == nil {
		return errors.New(errors.ErrCodeStrategyNotLoaded, "no strategy definition")
	}

	var result error

	if err := validate.Struct(def); err != nil {
		result = multierr.Append(result,
			errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid strategy fields", err))
	}

	if def.Direction != "" && def.Direction != types.DirectionLong && def.Direction != types.DirectionShort {
		result = multierr.Append(result, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"unknown direction %q", def.Direction))
	}

	if def.SchemaVersion != "" {
		if err := version.CheckSchemaCompatibility(version.SchemaVersion, def.SchemaVersion); err != nil {
			result = multierr.Append(result, err)
		}
	}

	known := make(map[string]struct{})
	for _, field := range types.MarketFields {
		known[field] = struct{}{}
	}

	seen := make(map[string]struct{}, len(def.Indicators))

	for _, decl := range def.Indicators {
		if _, dup := seen[decl.Name]; dup {
			result = multierr.Append(result, errors.Newf(errors.ErrCodeInvalidConfiguration,
				"duplicate indicator name %q", decl.Name))

			continue
		}

		seen[decl.Name] = struct{}{}

		impl, err := registry.GetIndicator(decl.Type)
		if err != nil {
			result = multierr.Append(result, err)

			continue
		}

		addKnown(known, decl.Name)

		if spec, ok := impl.(indicator.ParamSpec); ok {
			if err := checkParamKeys(decl, spec.ParamNames()); err != nil {
				result = multierr.Append(result, err)
			}
		}

		if composite, ok := impl.(indicator.ComponentIndicator); ok {
			for _, component := range composite.ComponentNames() {
				addKnown(known, decl.Name+"_"+component)
			}
		}
	}

	if def.Entry != "" {
		if err := expr.ValidateVariables(def.Entry, known); err != nil {
			result = multierr.Append(result, err)
		}
	}

	// Exit and stop expressions additionally see the position-derived
	// variables.
	closeKnown := make(map[string]struct{}, len(known)+len(types.PositionFields))
	for name := range known {
		closeKnown[name] = struct{}{}
	}

	for _, field := range types.PositionFields {
		closeKnown[field] = struct{}{}
	}

	for _, expression := range []string{def.Exit, def.Stop} {
		if expression == "" {
			continue
		}

		if err := expr.ValidateVariables(expression, closeKnown); err != nil {
			result = multierr.Append(result, err)
		}
	}

	return result
}

// checkParamKeys rejects declared parameter keys the indicator does not
// accept, so a typoed key fails the load instead of silently using defaults.
func checkParamKeys(decl types.IndicatorDefinition, accepted []string) error {
	var result error

	for key := range decl.Params {
		if !slices.Contains(accepted, key) {
			result = multierr.Append(result, errors.Newf(errors.ErrCodeInvalidParameter,
				"indicator %q: unknown parameter %q, accepted: %s",
				decl.Name, key, strings.Join(accepted, ", ")))
		}
	}

	return result
}

// addKnown registers a variable name together with its previous-tick form.
func addKnown(known map[string]struct{}, name string) {
	known[name] = struct{}{}
	known[name+types.PrevSuffix] = struct{}{}
}
