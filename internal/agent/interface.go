package agent

import (
	"context"
	"fmt"
)

// Agent is the interface to the generative model collaborator.
type Agent interface {
	// Send sends a prompt and returns the raw model response.
	Send(ctx context.Context, prompt string) (string, error)
}

// NewAgent is a factory returning an Agent for the configured provider.
func NewAgent(provider, apiKey, model string) (Agent, error) {
	switch provider {
	case "openai", "":
		return NewOpenAIClient(apiKey, model), nil
	case "mock":
		return &MockAgent{}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
