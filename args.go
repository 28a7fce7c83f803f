package toolchat

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/google/jsonschema-go/jsonschema"
)

// Validatable is implemented by argument structs that need custom business
// validation beyond what the generated JSON Schema expresses. Validate is
// called after schema validation and unmarshaling.
type Validatable interface {
	Validate() error
}

// ArgCodec generates a JSON Schema for argument type T once, then validates and
// decodes incoming argument payloads against it. The same schema drives both
// the declaration advertised to the model and the validation of what the model
// sends back (single source of truth).
type ArgCodec[T any] struct {
	schemaMap map[string]any
	resolved  *jsonschema.Resolved
}

// NewArgCodec builds a codec for T. Returns an error if schema generation fails
// (e.g. T contains an unsupported type).
func NewArgCodec[T any]() (*ArgCodec[T], error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, err
	}
	stripSchemaIDs(schemaMap)
	resolved, err := compileSchemaMap(schemaMap)
	if err != nil {
		return nil, err
	}
	return &ArgCodec[T]{schemaMap: schemaMap, resolved: resolved}, nil
}

// Schema returns a shallow copy of the generated JSON Schema (top-level keys
// only). Nested maps are shared; callers must not mutate them.
func (c *ArgCodec[T]) Schema() map[string]any {
	return maps.Clone(c.schemaMap)
}

// Decode deserializes argsJSON into T after validating it against the schema,
// then runs Validatable.Validate if T implements it. All failures wrap
// ErrBadArguments so they surface as non-retryable argument errors.
func (c *ArgCodec[T]) Decode(argsJSON []byte) (T, error) {
	var zero T
	var v any
	if err := json.Unmarshal(argsJSON, &v); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	if err := c.resolved.Validate(v); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	var args T
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	if val, ok := any(args).(Validatable); ok {
		if err := val.Validate(); err != nil {
			return zero, fmt.Errorf("%w: %v", ErrBadArguments, err)
		}
	} else if val, ok := any(&args).(Validatable); ok { // pointer receiver on value type
		if err := val.Validate(); err != nil {
			return zero, fmt.Errorf("%w: %v", ErrBadArguments, err)
		}
	}
	return args, nil
}

// compileSchemaMap compiles a raw schema map into a resolved validator. The map
// is not mutated.
func compileSchemaMap(schemaMap map[string]any) (*jsonschema.Resolved, error) {
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}

// stripSchemaIDs removes id and $id everywhere so resolution does not depend on them.
func stripSchemaIDs(schemaMap map[string]any) {
	walkSchema(schemaMap, func(n map[string]any) {
		delete(n, "id")
		delete(n, "$id")
	})
}

// walkSchema recursively visits every map node in the schema tree.
func walkSchema(schemaMap map[string]any, visit func(map[string]any)) {
	if schemaMap == nil {
		return
	}
	visit(schemaMap)
	for _, val := range schemaMap {
		switch v := val.(type) {
		case map[string]any:
			walkSchema(v, visit)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					walkSchema(m, visit)
				}
			}
		}
	}
}
