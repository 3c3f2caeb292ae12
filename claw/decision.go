package claw

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// wireDecision mirrors Decision but keeps args raw so string-encoded
// argument objects can be accepted too.
type wireDecision struct {
	Thought string          `json:"thought"`
	Tool    *string         `json:"tool"`
	Args    json.RawMessage `json:"args"`
	Reply   string          `json:"reply"`
	Error   json.RawMessage `json:"error"`
}

// parseDecision decodes a provider payload into a Decision.
func parseDecision(raw string) (Decision, error) {
	body := stripFences(raw)
	if body == "" {
		return Decision{}, errors.New("empty response")
	}

	var w wireDecision
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Decision{}, err
	}

	d := Decision{
		Thought: w.Thought,
		Tool:    ToolNone,
		Reply:   w.Reply,
		Error:   errorText(w.Error),
	}
	if w.Tool != nil && strings.TrimSpace(*w.Tool) != "" {
		d.Tool = strings.TrimSpace(*w.Tool)
	}

	args, err := decodeArgs(w.Args)
	if err != nil {
		return Decision{}, fmt.Errorf("args: %w", err)
	}
	d.Args = args
	return d, nil
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	// Some models send the argument object as a JSON string.
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return map[string]any{}, nil
		}
		raw = []byte(s)
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// unspecifiedError stands in for an error key with no usable text.
const unspecifiedError = "unspecified error"

// errorText renders the error field whether it is a string or an object.
// A present key always yields non-empty text.
func errorText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if strings.TrimSpace(s) == "" {
			return unspecifiedError
		}
		return s
	}
	return string(raw)
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// errorPayload is the structured failure a provider returns instead of
// a decision.
func errorPayload(msg string) string {
	return string(jsonMarshalNoErr(map[string]string{"error": msg}))
}
