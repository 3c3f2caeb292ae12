package claw

import (
	"context"
	"fmt"
)

// providerClient is the internal interface each backend implements.
//
// generate never fails at the Go level: transport problems are reported as
// a {"error": "..."} JSON payload so the agent handles every outcome through
// the same decision parser.
type providerClient interface {
	generate(ctx context.Context, prompt string) string
	name() string
}

// unavailableProvider answers when no backend could be constructed.
type unavailableProvider struct {
	provider Provider
	err      error
}

func (p unavailableProvider) generate(context.Context, string) string {
	return errorPayload(fmt.Sprintf("provider %s unavailable: %v", p.provider, p.err))
}

func (p unavailableProvider) name() string { return string(p.provider) }
