package invoice

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const categoryConfigSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["categories"],
	"properties": {
		"categories": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"tags": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

var categoryConfig = jsonschema.MustCompileString("category-config.json", categoryConfigSchema)

// validateCategoryConfig checks a workspace category document's shape
// before it is decoded
func validateCategoryConfig(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := categoryConfig.Validate(v); err != nil {
		return fmt.Errorf("invalid category config: %w", err)
	}
	return nil
}
