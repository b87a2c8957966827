package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

//go:generate go run ../tools/schema-generator -o ../schema/scribe.schema.json

// GenerateSchema reflects the JSON Schema of scribe.yml from Config.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	// Reflected under its own name so the root does not share a definition
	// with logging.Config.
	type ScribeConfig Config

	schema := r.Reflect(&ScribeConfig{})
	schema.Title = "Scribe Client Configuration"
	schema.Description = "Schema for scribe.yml."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(schema, "", "  ")
}
