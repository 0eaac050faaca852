package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildSchoolJSONSchema returns the JSON-Schema constraining model output:
// an object whose "schools" array holds SchoolRecord-shaped objects. We pass
// this to the provider as a structured-output constraint and also use it
// locally to validate recovered records.
func BuildSchoolJSONSchema() map[string]any {
	boundary := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"type": map[string]any{
				"type": "string",
				"enum": []any{BoundaryRoad, BoundaryRiver, BoundaryRailway, BoundaryOther},
			},
			"relation": map[string]any{
				"type": []any{"string", "null"},
				"enum": []any{RelEastOf, RelWestOf, RelSouthOf, RelNorthOf, nil},
			},
		},
		"required":             []any{"name", "type", "relation"},
		"additionalProperties": false,
	}
	include := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"type": map[string]any{
				"type": "string",
				"enum": []any{IncludeVillage, IncludeCommunity, IncludeEstate, IncludeOther},
			},
		},
		"required":             []any{"name", "type"},
		"additionalProperties": false,
	}
	school := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"school_name": map[string]any{"type": "string", "minLength": 1},
			"boundaries":  map[string]any{"type": "array", "items": boundary},
			"includes":    map[string]any{"type": "array", "items": include},
		},
		"required":             []any{"school_name", "boundaries", "includes"},
		"additionalProperties": false,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"schools": map[string]any{"type": "array", "items": school},
		},
		"required":             []any{"schools"},
		"additionalProperties": false,
	}
}

// SchoolRecordSchema returns just the per-record schema, used to validate
// individual objects pulled out of a stream or a truncated response.
func SchoolRecordSchema() map[string]any {
	full := BuildSchoolJSONSchema()
	schools := full["properties"].(map[string]any)["schools"].(map[string]any)
	return schools["items"].(map[string]any)
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
