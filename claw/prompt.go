package claw

import (
	"strings"
)

const defaultPersona = "You are MicroClaw, a physical AI assistant running on an ESP32. " +
	"You can interact with hardware via GPIOs, scan WiFi and BLE, and manage system stats."

const decisionInstruction = `Respond with a JSON object: {"thought": "...", "tool": "tool_name", "args": { ... }, "reply": "..."}. ` +
	`Use "tool": "none" when no tool is needed. `

const scriptInstruction = "Use 'run_script' for ALL hardware control (blinking, patterns, toggling pins). " +
	"IMPORTANT: 'run_script' is NON-BLOCKING. The script runs in the background. " +
	"Your reply should be: 'I have started the script...' instead of 'I executed...'. " +
	"The user will see the action happen immediately after your reply."

type promptInput struct {
	persona string
	memory  string
	history []HistoryEntry
	window  int
	text    string
	depth   int
	tools   []Tool
}

// buildPrompt assembles the single prompt string sent to the provider.
func buildPrompt(in promptInput) string {
	var b strings.Builder

	b.WriteString(in.persona)
	b.WriteString(" ")
	if strings.TrimSpace(in.memory) != "" {
		b.WriteString("Your memory (long-term): ")
		b.WriteString(in.memory)
		b.WriteString(". ")
	}

	if recent := lastN(in.history, in.window); len(recent) > 0 {
		b.WriteString("Recent conversation history (short-term): ")
		for _, e := range recent {
			b.WriteString(historyLine(e))
			b.WriteString(" | ")
		}
	}

	if in.depth > 0 {
		b.WriteString("SYSTEM: The tool you called returned: ")
		b.WriteString(in.text)
		b.WriteString(". Based on this hardware data, provide your final friendly reply to the user. Set tool to 'none'. ")
	} else {
		b.WriteString("Current User message: ")
		b.WriteString(in.text)
		b.WriteString(". ")
	}

	b.WriteString(decisionInstruction)

	if len(in.tools) > 0 {
		hasScript := false
		entries := make([]string, 0, len(in.tools))
		for _, t := range in.tools {
			if t.Name == "run_script" {
				hasScript = true
			}
			entries = append(entries, "'"+t.Name+"' "+argShape(t))
		}
		b.WriteString("Valid tools: ")
		b.WriteString(strings.Join(entries, ", "))
		b.WriteString(". ")
		if hasScript {
			b.WriteString(scriptInstruction)
		}
	}

	return strings.TrimSpace(b.String())
}

func historyLine(e HistoryEntry) string {
	prefix := "AI: "
	if e.Sender == SenderUser {
		prefix = "User: "
	}
	line := prefix + e.Text
	if e.ToolResult != "" && e.ToolResult != "null" {
		line += " [Tool Result: " + e.ToolResult + "]"
	}
	return line
}

func lastN(h []HistoryEntry, n int) []HistoryEntry {
	if n <= 0 || len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}
