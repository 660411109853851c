// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateToolInput checks a tool_use call's input against the JSON
// Schema its tool definition declared, catching malformed model output
// before it reaches a downstream handler.
func ValidateToolInput(t Tool, input json.RawMessage) error {
	if t.InputSchema == nil || len(input) == 0 {
		return nil
	}
	schemaBytes, err := json.Marshal(t.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal input_schema for %q: %w", t.Name, err)
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal input_schema for %q: %w", t.Name, err)
	}
	var inputDoc any
	if err := json.Unmarshal(input, &inputDoc); err != nil {
		return fmt.Errorf("unmarshal tool input for %q: %w", t.Name, err)
	}

	c := jsonschema.NewCompiler()
	resource := "tool:" + t.Name
	if err := c.AddResource(resource, schemaDoc); err != nil {
		return fmt.Errorf("add input_schema resource for %q: %w", t.Name, err)
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		return fmt.Errorf("compile input_schema for %q: %w", t.Name, err)
	}
	if err := compiled.Validate(inputDoc); err != nil {
		return fmt.Errorf("tool %q input does not match input_schema: %w", t.Name, err)
	}
	return nil
}
