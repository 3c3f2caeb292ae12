package claw

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/oraraka-deko/microclaw/device"
)

type geminiProvider struct {
	client      *genai.Client
	model       string
	link        device.Link
	tools       *ToolRegistry
	native      bool
	temperature *float32
	maxTokens   int
}

func newGeminiProvider(cfg ClawConfig, link device.Link, tools *ToolRegistry) (providerClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("claw: Gemini API key is required to use ProviderGemini")
	}
	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.GeminiBaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &geminiProvider{
		client:      gc,
		model:       cfg.GeminiModel,
		link:        link,
		tools:       tools,
		native:      cfg.GeminiNativeTools,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
	}, nil
}

func (p *geminiProvider) name() string { return string(ProviderGemini) }

func (p *geminiProvider) generate(ctx context.Context, prompt string) string {
	if p.link != nil && !p.link.Connected() {
		return errorPayload(errNoNetwork)
	}

	cfg := &genai.GenerateContentConfig{}
	if p.temperature != nil {
		cfg.Temperature = genai.Ptr[float32](*p.temperature)
	}
	if p.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.maxTokens)
	}
	if p.native && p.tools != nil {
		if decls := toGenAITools(p.tools.Tools()); len(decls) > 0 {
			cfg.Tools = decls
		}
	}

	res, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		return geminiErrorPayload(err)
	}

	if fcs := res.FunctionCalls(); len(fcs) > 0 {
		fc := fcs[0]
		args := fc.Args
		if args == nil {
			args = map[string]any{}
		}
		return nativeToolDecision(fc.Name, args, p.tools)
	}

	text := candidateText(res)
	if strings.TrimSpace(text) == "" {
		return errorPayload("No text in Gemini response")
	}
	return text
}

// toGenAITools declares the catalog as one tool with many functions.
func toGenAITools(tools []Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.ParametersSchema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// candidateText concatenates the non-thought text parts of the first
// candidate.
func candidateText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range res.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		if out == "" {
			out = part.Text
		} else {
			out += "\n" + part.Text
		}
	}
	return out
}

func geminiErrorPayload(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return httpErrorPayload(apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return httpErrorPayload(apiErrPtr.Code, apiErrPtr.Message)
	}
	return errorPayload(err.Error())
}
