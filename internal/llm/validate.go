package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// objectSchema accepts any JSON object. Stage outputs are free-form field
// maps, so the only structural requirement is "a JSON object" — scalars,
// arrays and null all route to the fallback record.
var objectSchema = map[string]any{"type": "object"}

// classificationSchema describes the classification stage's contract. The
// keys may be strings or arrays of strings (some models return lists); the
// parser takes the first element.
var classificationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"bill_type":    stringOrList(),
		"bill_subtype": stringOrList(),
	},
}

func stringOrList() map[string]any {
	return map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
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
