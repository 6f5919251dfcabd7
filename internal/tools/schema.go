package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache memoizes compiled schemas by their raw JSON text, grounded on
// pkg/pluginsdk/validation.go's compileSchema cache.
var schemaCache sync.Map

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString(name+".schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("tools: compile schema for %s: %w", name, err)
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// validateInput checks raw tool-call input against a tool's declared input
// schema. A nil/empty schema is treated as "accept anything" — not every
// built-in tool (e.g. log_user_event) constrains its payload shape.
func validateInput(toolName string, schema json.RawMessage, input json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}

	compiled, err := compileSchema(toolName, schema)
	if err != nil {
		return err
	}

	var decoded any
	if len(input) == 0 {
		decoded = map[string]any{}
	} else if err := json.Unmarshal(input, &decoded); err != nil {
		return fmt.Errorf("tools: decode input for %s: %w", toolName, err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("tools: %s input invalid: %w", toolName, err)
	}
	return nil
}

// mustSchema marshals a schema literal, falling back to an empty object
// schema if marshaling somehow fails (it never should for literal maps).
func mustSchema(schema map[string]any) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
