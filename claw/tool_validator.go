package claw

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrUnknownTool is returned when a call names a tool outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// ToolValidator validates tool call arguments against the tool's schema.
type ToolValidator struct {
	tools map[string]Tool
}

// NewToolValidator creates a validator from a list of tools.
func NewToolValidator(tools []Tool) *ToolValidator {
	toolMap := make(map[string]Tool, len(tools))
	for _, t := range tools {
		toolMap[t.Name] = t
	}
	return &ToolValidator{tools: toolMap}
}

// ValidateCall checks if a tool call has valid arguments according to its schema.
func (tv *ToolValidator) ValidateCall(name string, args map[string]any) error {
	tool, exists := tv.tools[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return validateArgs(tool.ParametersSchema, args)
}

func validateArgs(schema map[string]any, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	for _, fieldName := range requiredFields(schema) {
		if _, exists := args[fieldName]; !exists {
			return fmt.Errorf("missing required parameter: %s", fieldName)
		}
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}

	for argName, argValue := range args {
		propMap, ok := properties[argName].(map[string]any)
		if !ok {
			continue // extra args are allowed
		}
		expectedType, ok := propMap["type"].(string)
		if !ok {
			continue
		}
		if err := validateType(argName, argValue, expectedType); err != nil {
			return err
		}
	}
	return nil
}

func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func validateType(name string, value any, expectedType string) error {
	if value == nil {
		return nil // null values pass; presence is the required check's job
	}

	kind := reflect.TypeOf(value).Kind()

	switch expectedType {
	case "string":
		if kind != reflect.String {
			return fmt.Errorf("parameter %s: expected string, got %v", name, kind)
		}
	case "number":
		if !isNumberKind(kind) {
			return fmt.Errorf("parameter %s: expected number, got %v", name, kind)
		}
	case "integer":
		switch v := value.(type) {
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("parameter %s: expected integer, got float %v", name, v)
			}
		case float32:
			if v != float32(int64(v)) {
				return fmt.Errorf("parameter %s: expected integer, got float %v", name, v)
			}
		default:
			if !isIntKind(kind) {
				return fmt.Errorf("parameter %s: expected integer, got %v", name, kind)
			}
		}
	case "boolean":
		if kind != reflect.Bool {
			return fmt.Errorf("parameter %s: expected boolean, got %v", name, kind)
		}
	case "array":
		if kind != reflect.Slice && kind != reflect.Array {
			return fmt.Errorf("parameter %s: expected array, got %v", name, kind)
		}
	case "object":
		if kind != reflect.Map {
			return fmt.Errorf("parameter %s: expected object, got %v", name, kind)
		}
	}
	return nil
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumberKind(k reflect.Kind) bool {
	return k == reflect.Float64 || k == reflect.Float32 || isIntKind(k)
}
