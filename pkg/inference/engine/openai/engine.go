package openai

import (
	"context"
	"encoding/json"

	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

// Engine runs inference against the OpenAI chat completion API.
type Engine struct {
	client *go_openai.Client
	config engine.Config
}

var _ engine.Engine = (*Engine)(nil)

func NewEngine(apiKey string, config engine.Config) *Engine {
	return &Engine{
		client: go_openai.NewClient(apiKey),
		config: config,
	}
}

func NewEngineWithClient(client *go_openai.Client, config engine.Config) *Engine {
	return &Engine{
		client: client,
		config: config,
	}
}

func (e *Engine) RunInference(ctx context.Context, messages []*conversation.Node, defs []*tools.ToolDefinition) (*engine.Response, error) {
	req := go_openai.ChatCompletionRequest{
		Model:       e.config.Engine,
		Messages:    messagesFromNodes(messages),
		MaxTokens:   e.config.MaxTokens,
		Temperature: float32(e.config.Temperature),
		TopP:        float32(e.config.TopP),
		Stop:        e.config.StopSequences,
		Tools:       toolsFromDefinitions(defs),
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, &engine.ProviderError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &engine.ProviderError{Provider: "openai", Err: errNoChoices}
	}

	msg := resp.Choices[0].Message
	ret := &engine.Response{
		Content: msg.Content,
		Class:   conversation.NodeClassOpenAI,
	}
	for _, tc := range msg.ToolCalls {
		ret.ToolCalls = append(ret.ToolCalls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return ret, nil
}

// messagesFromNodes maps the path-to-root onto the OpenAI message shape.
// The empty-role root is skipped; a tool-role node expands into one tool
// message per result, and pending results ride along after their node.
func messagesFromNodes(nodes []*conversation.Node) []go_openai.ChatCompletionMessage {
	var msgs []go_openai.ChatCompletionMessage
	for _, n := range nodes {
		switch n.Role {
		case conversation.RoleEmpty:
			continue
		case conversation.RoleSystem:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleSystem,
				Content: n.Content,
			})
		case conversation.RoleUser:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleUser,
				Content: n.Content,
			})
		case conversation.RoleAssistant:
			msg := go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleAssistant,
				Content: n.Content,
			}
			for _, tc := range n.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, go_openai.ToolCall{
					ID:   tc.ID,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			msgs = append(msgs, msg)
		case conversation.RoleTool:
			for _, tr := range n.ToolResults {
				msgs = append(msgs, go_openai.ChatCompletionMessage{
					Role:       go_openai.ChatMessageRoleTool,
					ToolCallID: tr.CallID,
					Content:    tr.Output,
				})
			}
		}

		for _, tr := range n.PendingResults {
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				ToolCallID: tr.CallID,
				Content:    tr.Output,
			})
		}
	}
	return msgs
}

func toolsFromDefinitions(defs []*tools.ToolDefinition) []go_openai.Tool {
	var ret []go_openai.Tool
	for _, def := range defs {
		ret = append(ret, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: go_openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return ret
}
