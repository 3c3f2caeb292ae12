package claw

import "encoding/json"

// Provider identifies which LLM backend answers a turn.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderGroq   Provider = "groq"
)

// ToolNone is the tool name a decision carries when no tool is requested.
const ToolNone = "none"

// Sender tags who produced a history entry.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// HistoryEntry is one short-term conversation line supplied by the caller.
type HistoryEntry struct {
	Sender     Sender `json:"sender"`
	Text       string `json:"text"`
	ToolResult string `json:"tool_result,omitempty"`
}

// TurnInput is one request to the agent. Depth is zero for a user turn and
// incremented for the follow-up call that summarises a tool result.
type TurnInput struct {
	Text    string         `json:"text"`
	History []HistoryEntry `json:"history,omitempty"`
	Depth   int            `json:"-"`
}

// Decision is the structured answer a provider must produce.
type Decision struct {
	Thought string         `json:"thought,omitempty"`
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args,omitempty"`
	Reply   string         `json:"reply,omitempty"`

	// Error is set by provider clients to report transport failures.
	Error string `json:"error,omitempty"`
}

// HasTool reports whether the decision requests a tool invocation.
func (d Decision) HasTool() bool {
	return d.Tool != "" && d.Tool != ToolNone
}

// Output is what a turn returns to the chat transport.
type Output struct {
	Reply      string `json:"reply"`
	Thought    string `json:"thought"`
	Tool       string `json:"tool"`
	ToolResult string `json:"tool_result"`
}

func jsonMarshalNoErr(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
