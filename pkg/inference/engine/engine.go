package engine

import (
	"context"
	"fmt"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

// Engine is an AI inference engine that turns a path-to-root message
// sequence into one assistant reply. Engines handle provider-specific
// logic; the tree core never sees a wire format.
//
// The messages slice is exactly the path from the root to the current
// position, root (empty role) included - engines skip it when building
// requests. The tool definitions describe what the model may call; the
// engine only surfaces them, it never executes anything.
type Engine interface {
	RunInference(ctx context.Context, messages []*conversation.Node, defs []*tools.ToolDefinition) (*Response, error)
}

// Response is one assistant turn: text, zero or more tool call requests,
// and the node class tagging which provider shape produced it.
type Response struct {
	Content   string
	ToolCalls []conversation.ToolCall
	Class     conversation.NodeClass
}

// Config carries the model parameters a bot applies on every turn.
type Config struct {
	// Engine is the provider-side model identifier.
	Engine        string   `json:"engine" yaml:"engine"`
	MaxTokens     int      `json:"maxTokens" yaml:"maxTokens"`
	Temperature   float64  `json:"temperature" yaml:"temperature"`
	TopP          float64  `json:"topP,omitempty" yaml:"topP,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty" yaml:"stopSequences,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Engine:      "gpt-4o",
		MaxTokens:   4096,
		Temperature: 0.3,
	}
}

// ProviderError wraps a failed provider call: network, auth, rate limits.
// Turns record it as an error-flagged node so the conversation survives.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
