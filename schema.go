package toolchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Tool declaration files are named "<agent>-tools.json" and contain one JSON
// array of ToolDescriptor entries, matching the OpenAI function-tool format.
const toolFileSuffix = "-tools.json"

// LoadSchemas reads every "<agent>-tools.json" file in dir and stores the
// descriptors under the agent name taken from the filename. A file that fails
// to parse or validate is reported in the returned error but does not abort
// loading of the other files.
func (r *Registry) LoadSchemas(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read tools dir: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		agent, ok := strings.CutSuffix(entry.Name(), toolFileSuffix)
		if !ok || agent == "" || entry.IsDir() {
			continue
		}
		descriptors, err := LoadDescriptorFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		r.SetTools(agent, descriptors)
		r.logger.Info("loaded tool descriptors", "agent", agent, "count", len(descriptors))
	}
	return errors.Join(errs...)
}

// LoadDescriptorFile reads one JSON declaration file and validates every entry.
func LoadDescriptorFile(path string) ([]ToolDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var descriptors []ToolDescriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	for i, d := range descriptors {
		if err := ValidateDescriptor(d); err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i, d.Function.Name, err)
		}
	}
	return descriptors, nil
}

// ValidateDescriptor checks one tool declaration against the OpenAI function
// format: type "function", non-empty name and description, and a parameters
// object with type "object" and a properties map that compiles as a JSON Schema.
func ValidateDescriptor(d ToolDescriptor) error {
	if d.Type != "function" {
		return fmt.Errorf("%w: type must be %q, got %q", ErrInvalidDescriptor, "function", d.Type)
	}
	if d.Function.Name == "" {
		return fmt.Errorf("%w: function.name is required", ErrInvalidDescriptor)
	}
	if d.Function.Description == "" {
		return fmt.Errorf("%w: function.description is required", ErrInvalidDescriptor)
	}
	params := d.Function.Parameters
	if params == nil {
		return fmt.Errorf("%w: function.parameters is required", ErrInvalidDescriptor)
	}
	if t, _ := params["type"].(string); t != "object" {
		return fmt.Errorf("%w: parameters.type must be %q", ErrInvalidDescriptor, "object")
	}
	if _, ok := params["properties"].(map[string]any); !ok {
		return fmt.Errorf("%w: parameters.properties must be an object", ErrInvalidDescriptor)
	}
	if err := compileParameters(params); err != nil {
		return fmt.Errorf("%w: parameters do not compile as a JSON Schema: %v", ErrInvalidDescriptor, err)
	}
	return nil
}

// compileParameters runs the parameters object through a real schema compiler
// so structurally broken schemas are caught at load time, not mid-conversation.
func compileParameters(params map[string]any) error {
	// Round-trip so the compiler sees plain decoded JSON values.
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool-parameters.json", doc); err != nil {
		return err
	}
	_, err = compiler.Compile("tool-parameters.json")
	return err
}
