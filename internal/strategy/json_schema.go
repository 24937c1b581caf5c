package strategy

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
)

// ToJSONSchema converts a struct to a JSON schema.
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// DefinitionJSONSchema returns the JSON schema of the strategy definition
// format, for editor integration and external validation.
func DefinitionJSONSchema() (string, error) {
	return ToJSONSchema(types.StrategyDefinition{})
}
