package claw

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	errNoNetwork = "WiFi not connected"

	// maxErrorBody bounds the HTTP error body echoed back into a reply.
	maxErrorBody = 200
)

// nativeToolDecision turns a provider-native function call into the same
// decision JSON a text answer would carry. Calls are checked against the
// catalog first; an unknown tool or bad arguments yield a tool-less
// decision explaining the problem.
func nativeToolDecision(name string, args map[string]any, tools *ToolRegistry) string {
	if tools == nil {
		tools = NewToolRegistry()
	}
	err := tools.Validator().ValidateCall(name, args)
	switch {
	case errors.Is(err, ErrUnknownTool):
		return string(jsonMarshalNoErr(Decision{
			Thought: "Unknown tool called",
			Tool:    ToolNone,
			Reply:   "Error: Model tried to call unknown tool " + name,
		}))
	case err != nil:
		return string(jsonMarshalNoErr(Decision{
			Thought: "Invalid arguments for native tool " + name,
			Tool:    ToolNone,
			Reply:   "Error: Model called " + name + " with invalid arguments (" + err.Error() + ")",
		}))
	}
	return string(jsonMarshalNoErr(Decision{
		Thought: "Agent invoked native tool: " + name,
		Tool:    name,
		Args:    args,
		Reply:   "Executing " + name + "...",
	}))
}

// parseToolArguments decodes the string-encoded arguments of an
// OpenAI-style tool call.
func parseToolArguments(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func httpErrorPayload(status int, body string) string {
	return errorPayload("HTTP Error " + strconv.Itoa(status) + ": " + truncate(body, maxErrorBody))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
