package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildLayoutJSONSchema returns the JSON-Schema (draft 2020-12 subset) for
// the structured layout output: a list of elements, each with a block type
// label, an optional [x1,y1,x2,y2] bounding box, and text. Kept permissive
// on purpose — unknown type labels degrade rather than fail validation.
func BuildLayoutJSONSchema() map[string]any {
	element := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category": map[string]any{"type": "string"},
			"type":     map[string]any{"type": "string"},
			"bbox": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "number"},
				"minItems": 4,
				"maxItems": 4,
			},
			"text":          map[string]any{"type": "string"},
			"confidence":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"reading_order": map[string]any{"type": "integer", "minimum": 0},
		},
	}
	return map[string]any{
		"type":  "array",
		"items": element,
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
