package engine

import (
	"context"

	"github.com/pkg/errors"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

// EchoEngine replies with the last user message. Useful for tests and for
// exercising the tree without a provider.
type EchoEngine struct {
	Prefix string
}

var _ Engine = (*EchoEngine)(nil)

func NewEchoEngine() *EchoEngine {
	return &EchoEngine{}
}

func (e *EchoEngine) RunInference(ctx context.Context, messages []*conversation.Node, _ []*tools.ToolDefinition) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: "echo", Err: err}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == conversation.RoleUser {
			return &Response{
				Content: e.Prefix + messages[i].Content,
				Class:   conversation.NodeClassGeneric,
			}, nil
		}
	}
	return nil, &ProviderError{Provider: "echo", Err: errors.New("no user message in path")}
}

// CallbackEngine delegates inference to a caller-supplied function. The
// test suites use it to script assistant behavior, tool calls included.
type CallbackEngine struct {
	Fn func(ctx context.Context, messages []*conversation.Node, defs []*tools.ToolDefinition) (*Response, error)
}

var _ Engine = (*CallbackEngine)(nil)

func NewCallbackEngine(fn func(ctx context.Context, messages []*conversation.Node, defs []*tools.ToolDefinition) (*Response, error)) *CallbackEngine {
	return &CallbackEngine{Fn: fn}
}

func (e *CallbackEngine) RunInference(ctx context.Context, messages []*conversation.Node, defs []*tools.ToolDefinition) (*Response, error) {
	if e.Fn == nil {
		return nil, &ProviderError{Provider: "callback", Err: errors.New("no callback configured")}
	}
	return e.Fn(ctx, messages, defs)
}
