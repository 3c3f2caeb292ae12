package claw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

// UnknownToolResult is returned when a decision names an unregistered tool.
const UnknownToolResult = "Unknown tool"

// Tool describes one capability the model may invoke.
type Tool struct {
	Name             string
	Description      string
	ParametersSchema map[string]any

	// Usage overrides the argument shape rendered into the prompt.
	Usage string
}

// ToolHandler executes a tool. The returned string is fed back to the model.
type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

// ToolRegistry maps tool names to their declaration and handler.
type ToolRegistry struct {
	mu       sync.RWMutex
	order    []string
	tools    map[string]Tool
	handlers map[string]ToolHandler
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:    make(map[string]Tool),
		handlers: make(map[string]ToolHandler),
	}
}

// Register adds or replaces a tool and its handler.
func (r *ToolRegistry) Register(tool Tool, handler ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	if tool.ParametersSchema == nil {
		tool.ParametersSchema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	r.tools[tool.Name] = tool
	r.handlers[tool.Name] = handler
}

// AddFunc registers a Go function as a tool with automatic schema generation.
// The function signature should be: func(ctx context.Context, params YourStructType) (result any, err error)
// String results are returned verbatim, anything else is JSON encoded.
func (r *ToolRegistry) AddFunc(name, description string, handlerFunc any) error {
	handler, schema, err := wrapFunction(handlerFunc)
	if err != nil {
		return fmt.Errorf("failed to wrap function %s: %w", name, err)
	}
	r.Register(Tool{Name: name, Description: description, ParametersSchema: schema}, handler)
	return nil
}

// Has reports whether name is registered.
func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Tools returns the catalog in registration order.
func (r *ToolRegistry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Validator returns a validator over the current catalog.
func (r *ToolRegistry) Validator() *ToolValidator {
	return NewToolValidator(r.Tools())
}

// Execute validates args and runs the named tool. Failures are reported as
// result text so the model can explain them to the user.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]any) string {
	r.mu.RLock()
	tool, ok := r.tools[name]
	handler := r.handlers[name]
	r.mu.RUnlock()
	if !ok || handler == nil {
		return UnknownToolResult
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := validateArgs(tool.ParametersSchema, args); err != nil {
		return "Error: " + err.Error()
	}
	result, err := handler(ctx, args)
	if err != nil {
		return "Error: " + err.Error()
	}
	return result
}

// wrapFunction inspects a Go function and generates a tool handler + JSON schema.
// Expected signature: func(ctx context.Context, input T) (output any, err error)
func wrapFunction(fn any) (ToolHandler, map[string]any, error) {
	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() {
		return nil, nil, errors.New("handler must be a function")
	}
	fnType := fnVal.Type()

	if fnType.Kind() != reflect.Func {
		return nil, nil, errors.New("handler must be a function")
	}
	if fnType.NumIn() != 2 {
		return nil, nil, errors.New("function must have exactly 2 parameters: (context.Context, ParamsStruct)")
	}
	if fnType.NumOut() != 2 {
		return nil, nil, errors.New("function must return exactly 2 values: (result any, error)")
	}

	ctxType := reflect.TypeOf((*context.Context)(nil)).Elem()
	if !fnType.In(0).Implements(ctxType) {
		return nil, nil, errors.New("first parameter must be context.Context")
	}
	errType := reflect.TypeOf((*error)(nil)).Elem()
	if !fnType.Out(1).Implements(errType) {
		return nil, nil, errors.New("second return value must be error")
	}

	paramsType := fnType.In(1)
	if paramsType.Kind() != reflect.Struct {
		return nil, nil, errors.New("second parameter must be a struct")
	}

	schema, err := schemaFor(paramsType)
	if err != nil {
		return nil, nil, fmt.Errorf("schema generation failed: %w", err)
	}

	handler := func(ctx context.Context, args map[string]any) (string, error) {
		argsJSON, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("failed to marshal args: %w", err)
		}
		paramsVal := reflect.New(paramsType).Interface()
		if err := json.Unmarshal(argsJSON, paramsVal); err != nil {
			return "", fmt.Errorf("invalid args for %s: %w", paramsType.Name(), err)
		}

		results := fnVal.Call([]reflect.Value{
			reflect.ValueOf(ctx),
			reflect.ValueOf(paramsVal).Elem(),
		})
		if errVal := results[1].Interface(); errVal != nil {
			return "", errVal.(error)
		}
		return resultText(results[0].Interface())
	}
	return handler, schema, nil
}

func resultText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}

var schemaReflector = &jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
	Anonymous:      true,
}

// schemaFor reflects a params struct into a plain JSON schema map.
func schemaFor(t reflect.Type) (map[string]any, error) {
	s := schemaReflector.ReflectFromType(t)
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	m["type"] = "object"
	return m, nil
}

// argShape renders the argument object of a tool for the prompt catalog,
// e.g. {address: string}.
func argShape(t Tool) string {
	if t.Usage != "" {
		return t.Usage
	}
	props, _ := t.ParametersSchema["properties"].(map[string]any)
	if len(props) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		typ := "any"
		if p, ok := props[name].(map[string]any); ok {
			if s, ok := p["type"].(string); ok {
				typ = s
			}
		}
		parts = append(parts, name+": "+typ)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
