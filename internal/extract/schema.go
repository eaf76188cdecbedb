package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/taix/constants"
)

// configSchema returns the JSON-Schema an extraction config file must satisfy.
func configSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"version", "questions"},
		"properties": map[string]any{
			"version":   map[string]any{"type": "string", "minLength": 1},
			"min_score": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"question", "target_field"},
					"properties": map[string]any{
						"question": map[string]any{"type": "string", "minLength": 1},
						"target_field": map[string]any{
							"type": "string",
							"enum": []string{
								constants.FieldInvoiceNumber,
								constants.FieldTotalAmount,
								constants.FieldRecipientAddress,
								constants.FieldRecipientCountry,
								constants.FieldLineItems,
							},
						},
						"required": map[string]any{"type": "boolean"},
					},
				},
			},
		},
	}
}

// validateAgainstSchema validates a decoded document against schemaMap.
func validateAgainstSchema(schemaMap map[string]any, doc any) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("extraction config does not match schema: %w", err)
	}
	return nil
}
