package claw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oraraka-deko/microclaw/device"
)

// groqProvider talks to Groq through its OpenAI-compatible endpoint.
type groqProvider struct {
	client      *openai.Client
	model       string
	link        device.Link
	tools       *ToolRegistry
	native      bool
	temperature *float32
	maxTokens   int
}

func newGroqProvider(cfg ClawConfig, link device.Link, tools *ToolRegistry) (providerClient, error) {
	if cfg.GroqAPIKey == "" {
		return nil, errors.New("claw: Groq API key is required to use ProviderGroq")
	}
	oc := openai.DefaultConfig(cfg.GroqAPIKey)
	oc.BaseURL = cfg.GroqBaseURL
	oc.HTTPClient = cfg.httpClient()
	return &groqProvider{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.GroqModel,
		link:        link,
		tools:       tools,
		native:      cfg.GroqNativeTools,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
	}, nil
}

func (p *groqProvider) name() string { return string(ProviderGroq) }

func (p *groqProvider) generate(ctx context.Context, prompt string) string {
	if p.link != nil && !p.link.Connected() {
		return errorPayload(errNoNetwork)
	}

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:         1,
		TopP:                1,
		MaxCompletionTokens: p.maxTokens,
	}
	if p.temperature != nil {
		req.Temperature = *p.temperature
	}
	if p.native && p.tools != nil {
		req.Tools = toOpenAITools(p.tools.Tools())
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openAIErrorPayload(err)
	}
	if len(resp.Choices) == 0 {
		return errorPayload("No choices in Groq response")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		args, err := parseToolArguments(tc.Function.Arguments)
		if err != nil {
			return errorPayload(fmt.Sprintf("invalid tool call args for %s: %v", tc.Function.Name, err))
		}
		return nativeToolDecision(tc.Function.Name, args, p.tools)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return errorPayload("No text in Groq response")
	}
	return msg.Content
}

func toOpenAITools(tools []Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.ParametersSchema,
			},
		})
	}
	return out
}

func openAIErrorPayload(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return httpErrorPayload(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := string(reqErr.Body)
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return httpErrorPayload(reqErr.HTTPStatusCode, body)
	}
	return errorPayload(err.Error())
}
