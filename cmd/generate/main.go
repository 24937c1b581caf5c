package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rzcastilho/trading-strategy-sub000/internal/strategy"
)

// Writes the strategy definition JSON schema next to the config files, for
// editor completion and external validation of strategy YAML.
func main() {
	schemaJSON, err := strategy.DefinitionJSONSchema()
	if err != nil {
		log.Fatalf("Failed to generate schema: %v", err)
	}

	schemaPath := filepath.Join("./config", "strategy-definition.json")

	if err := os.MkdirAll(filepath.Dir(schemaPath), 0o755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0o644); err != nil {
		log.Fatalf("Failed to write schema to file: %v", err)
	}

	log.Printf("Wrote %s", schemaPath)
}
