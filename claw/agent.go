package claw

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oraraka-deko/microclaw/device"
	"github.com/oraraka-deko/microclaw/store"
)

const (
	RecursionLimitReply  = "Too much recursion!"
	ParseFailurePrefix   = "Error parsing my own thought: "
	SummaryFallbackReply = "I executed the tool but had trouble summarizing the result."
)

// Preferences supplies the provider selection at call time.
type Preferences interface {
	AIProvider() string
}

// Agent runs one conversational turn: prompt, provider, decision and at
// most one tool dispatch followed by a summarising call.
type Agent struct {
	cfg     ClawConfig
	tools   *ToolRegistry
	memory  MemoryReader
	prefs   Preferences
	link    device.Link
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	gemini providerClient // lazily init
	groq   providerClient // lazily init
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMemory sets the long-term memory source injected into every prompt.
func WithMemory(m MemoryReader) Option {
	return func(a *Agent) { a.memory = m }
}

// WithPreferences sets where the active provider name is read from.
func WithPreferences(p Preferences) Option {
	return func(a *Agent) { a.prefs = p }
}

// WithLink sets the network link providers check before calling out.
func WithLink(l device.Link) Option {
	return func(a *Agent) { a.link = l }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// New creates an Agent dispatching decisions to tools.
// If cfg.DetectEnv is true, missing API keys are pulled from the environment.
func New(cfg ClawConfig, tools *ToolRegistry, opts ...Option) *Agent {
	if tools == nil {
		tools = NewToolRegistry()
	}
	a := &Agent{
		cfg:    cfg.withDefaults(),
		tools:  tools,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tools returns the registry the agent dispatches to.
func (a *Agent) Tools() *ToolRegistry { return a.tools }

// Handle runs one turn. It never returns an error: every failure is
// rendered into the reply text.
func (a *Agent) Handle(ctx context.Context, in TurnInput) Output {
	if in.Depth < 0 {
		in.Depth = 0
	}
	if in.Depth == 0 {
		start := time.Now()
		defer func() { a.metrics.ObserveTurn(time.Since(start)) }()
	}
	return a.handle(ctx, in)
}

func (a *Agent) handle(ctx context.Context, in TurnInput) Output {
	if in.Depth > a.cfg.MaxDepth {
		a.metrics.RecursionExhausted()
		a.logger.Warn("recursion limit reached", "depth", in.Depth, "max", a.cfg.MaxDepth)
		return Output{Reply: RecursionLimitReply}
	}

	a.logger.Info("agent turn", "depth", in.Depth, "text", truncate(in.Text, 120))

	pc := a.selectProvider()
	raw := pc.generate(ctx, a.prompt(in))
	a.logger.Debug("provider response", "provider", pc.name(), "raw", raw)

	d, err := parseDecision(raw)
	if err != nil {
		a.metrics.ProviderRequest(pc.name(), outcomeParseError)
		a.logger.Warn("unparseable decision", "provider", pc.name(), "error", err)
		return Output{Reply: ParseFailurePrefix + raw}
	}
	if d.Error != "" {
		a.metrics.ProviderRequest(pc.name(), outcomeError)
		a.logger.Error("provider error", "provider", pc.name(), "error", d.Error)
		return Output{Reply: fmt.Sprintf("I'm having trouble thinking right now. (%s)", d.Error)}
	}
	a.metrics.ProviderRequest(pc.name(), outcomeOK)

	if !d.HasTool() {
		return Output{Reply: d.Reply, Thought: d.Thought}
	}
	if in.Depth > 0 {
		a.logger.Warn("tool requested during follow-up, ignoring", "tool", d.Tool, "depth", in.Depth)
		return Output{Reply: d.Reply, Thought: d.Thought, Tool: d.Tool}
	}

	a.metrics.ToolCall(d.Tool)
	result := a.tools.Execute(ctx, d.Tool, d.Args)
	a.logger.Info("tool executed", "tool", d.Tool, "result", truncate(result, 200))

	follow := a.handle(ctx, TurnInput{Text: result, History: in.History, Depth: in.Depth + 1})
	reply := follow.Reply
	if reply == "" {
		reply = SummaryFallbackReply
	}
	return Output{
		Reply:      reply,
		Thought:    d.Thought,
		Tool:       d.Tool,
		ToolResult: result,
	}
}

func (a *Agent) prompt(in TurnInput) string {
	var memory string
	if a.memory != nil {
		memory = a.memory.ReadFile(store.MemoryPath)
	}
	return buildPrompt(promptInput{
		persona: a.cfg.Persona,
		memory:  memory,
		history: in.History,
		window:  a.cfg.HistoryWindow,
		text:    in.Text,
		depth:   in.Depth,
		tools:   a.tools.Tools(),
	})
}

// selectProvider reads the preferred provider and falls back to the
// configured default when it cannot be built.
func (a *Agent) selectProvider() providerClient {
	want := a.cfg.DefaultProvider
	if a.prefs != nil {
		switch p := Provider(strings.ToLower(strings.TrimSpace(a.prefs.AIProvider()))); p {
		case ProviderGemini, ProviderGroq:
			want = p
		}
	}

	pc, err := a.ensureProvider(want)
	if err == nil {
		return pc
	}
	if want != a.cfg.DefaultProvider {
		a.logger.Warn("provider unavailable, falling back", "provider", want, "fallback", a.cfg.DefaultProvider, "error", err)
		want = a.cfg.DefaultProvider
		if pc, err = a.ensureProvider(want); err == nil {
			return pc
		}
	}
	a.logger.Error("no provider available", "provider", want, "error", err)
	return unavailableProvider{provider: want, err: err}
}

func (a *Agent) ensureProvider(p Provider) (providerClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch p {
	case ProviderGemini:
		if a.gemini == nil {
			pc, err := newGeminiProvider(a.cfg, a.link, a.tools)
			if err != nil {
				return nil, err
			}
			a.gemini = pc
		}
		return a.gemini, nil
	case ProviderGroq:
		if a.groq == nil {
			pc, err := newGroqProvider(a.cfg, a.link, a.tools)
			if err != nil {
				return nil, err
			}
			a.groq = pc
		}
		return a.groq, nil
	default:
		return nil, fmt.Errorf("claw: unsupported provider %q", p)
	}
}
