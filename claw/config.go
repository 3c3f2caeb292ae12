package claw

import (
	"net/http"
	"os"
	"time"
)

const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultGroqModel   = "openai/gpt-oss-120b"
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

	// DefaultMaxDepth bounds the follow-up recursion of one turn.
	DefaultMaxDepth      = 5
	DefaultHistoryWindow = 6
	DefaultTimeout       = 30 * time.Second
)

// ClawConfig contains agent-wide configuration.
type ClawConfig struct {
	// Provider used when the configured selection is unknown or unavailable.
	DefaultProvider Provider

	// Gemini configuration.
	GeminiAPIKey      string // falls back to env GEMINI_API_KEY if empty and DetectEnv is true
	GeminiModel       string
	GeminiBaseURL     string // optional custom endpoint
	GeminiNativeTools bool   // declare the tool catalog as Gemini function declarations

	// Groq configuration (OpenAI-compatible endpoint).
	GroqAPIKey      string // falls back to env GROQ_API_KEY if empty and DetectEnv is true
	GroqModel       string
	GroqBaseURL     string
	GroqNativeTools bool

	// Generation knobs shared by both providers.
	Temperature     *float32
	MaxOutputTokens int

	// Shared client options.
	HTTPClient *http.Client
	Timeout    time.Duration // applied to the HTTP client of both providers

	// Context assembly.
	Persona       string
	HistoryWindow int
	MaxDepth      int

	// Auto-detection.
	DetectEnv bool
}

// DefaultConfig returns the configuration the firmware shipped with.
func DefaultConfig() ClawConfig {
	return ClawConfig{
		DefaultProvider:   ProviderGemini,
		GeminiModel:       DefaultGeminiModel,
		GeminiNativeTools: true,
		GroqModel:         DefaultGroqModel,
		GroqBaseURL:       DefaultGroqBaseURL,
		MaxOutputTokens:   1024,
		Timeout:           DefaultTimeout,
		HistoryWindow:     DefaultHistoryWindow,
		MaxDepth:          DefaultMaxDepth,
	}
}

func (c ClawConfig) withDefaults() ClawConfig {
	if c.DetectEnv {
		if c.GeminiAPIKey == "" {
			c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
		}
		if c.GroqAPIKey == "" {
			c.GroqAPIKey = os.Getenv("GROQ_API_KEY")
		}
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = ProviderGemini
	}
	if c.GeminiModel == "" {
		c.GeminiModel = DefaultGeminiModel
	}
	if c.GroqModel == "" {
		c.GroqModel = DefaultGroqModel
	}
	if c.GroqBaseURL == "" {
		c.GroqBaseURL = DefaultGroqBaseURL
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Persona == "" {
		c.Persona = defaultPersona
	}
	return c
}

func (c ClawConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}
