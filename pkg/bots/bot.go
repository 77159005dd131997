// Package bots composes the conversation tree, the tool registry and an
// inference engine into a named bot: issue a turn, execute requested
// tools, navigate the tree, save and load the whole thing.
package bots

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/events"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

const DefaultMaxToolIterations = 5

// Bot bundles model parameters, a system prompt, a tool registry and a
// persistent conversation tree behind one façade.
//
// Respond is synchronous and single-threaded. Concurrency only enters
// through self-branching and the parallel functional prompts, which run on
// deep copies and merge results back under a captured anchor - no two
// concurrent units ever share mutable state.
type Bot struct {
	Name         string
	SystemPrompt string
	Config       engine.Config

	Tree     *conversation.Tree
	Registry *tools.Registry

	engine            engine.Engine
	sink              *events.PublisherManager
	maxToolIterations int
}

type Option func(*Bot)

func WithName(name string) Option {
	return func(b *Bot) {
		b.Name = name
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(b *Bot) {
		b.SystemPrompt = prompt
	}
}

func WithConfig(cfg engine.Config) Option {
	return func(b *Bot) {
		b.Config = cfg
	}
}

func WithEngine(eng engine.Engine) Option {
	return func(b *Bot) {
		b.engine = eng
	}
}

func WithRegistry(registry *tools.Registry) Option {
	return func(b *Bot) {
		b.Registry = registry
	}
}

func WithSink(sink *events.PublisherManager) Option {
	return func(b *Bot) {
		b.sink = sink
	}
}

func WithMaxToolIterations(n int) Option {
	return func(b *Bot) {
		b.maxToolIterations = n
	}
}

func NewBot(options ...Option) *Bot {
	b := &Bot{
		Name:              "bot",
		Config:            engine.DefaultConfig(),
		Tree:              conversation.NewTree(),
		Registry:          tools.NewRegistry(),
		maxToolIterations: DefaultMaxToolIterations,
	}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *Bot) Engine() engine.Engine {
	return b.engine
}

// SetEngine swaps the inference engine. The engine is never persisted, so
// callers re-attach one after loading a saved bot.
func (b *Bot) SetEngine(eng engine.Engine) {
	b.engine = eng
}

// RegisterScriptTool captures a JavaScript tool definition on the bot.
func (b *Bot) RegisterScriptTool(name, description, source string) error {
	return b.Registry.RegisterScript(name, description, source)
}

// RegisterFuncTool registers a native Go tool with its portable script
// mirror.
func (b *Bot) RegisterFuncTool(name, description, source string, fn interface{}) error {
	return b.Registry.RegisterFunc(name, description, source, fn)
}

// Respond issues one turn from the current position: append the user
// prompt, call the engine on the path-to-root, execute any requested
// tools, and keep going until the model stops calling tools.
//
// Provider and tool failures are recorded as error-content nodes and do
// not produce a non-nil error - the conversation stays navigable and the
// model sees the failure. A non-nil error means a programming mistake
// (bad state, invalid node), not a failed call.
func (b *Bot) Respond(ctx context.Context, prompt string) (*conversation.Node, error) {
	if b.engine == nil {
		return nil, errors.New("bot has no engine")
	}

	userNode, err := b.Tree.AppendToCurrent(conversation.NewNode(conversation.RoleUser, prompt))
	if err != nil {
		return nil, err
	}
	b.publish(events.Event{Type: events.EventTypeTurnStarted, NodeID: userNode.ID, Role: conversation.RoleUser, Text: prompt})

	var last *conversation.Node
	for iteration := 0; iteration < b.maxToolIterations; iteration++ {
		path, err := b.Tree.PathToRoot(b.Tree.CurrentID)
		if err != nil {
			return nil, err
		}

		resp, err := b.engine.RunInference(ctx, b.messagesForRequest(path), b.Registry.List())
		if err != nil {
			log.Warn().Err(err).Str("bot", b.Name).Msg("provider call failed")
			errNode, appendErr := b.Tree.AppendToCurrent(conversation.NewNode(
				conversation.RoleAssistant,
				fmt.Sprintf("Error: %s", err.Error()),
			))
			if appendErr != nil {
				return nil, appendErr
			}
			b.publish(events.Event{Type: events.EventTypeError, NodeID: errNode.ID, Error: err.Error()})
			return errNode, nil
		}

		assistantNode, err := b.Tree.AppendToCurrent(conversation.NewNode(
			conversation.RoleAssistant,
			resp.Content,
			conversation.WithToolCalls(resp.ToolCalls...),
			conversation.WithClass(resp.Class),
		))
		if err != nil {
			return nil, err
		}
		b.publish(events.Event{Type: events.EventTypeAssistantReply, NodeID: assistantNode.ID, Role: conversation.RoleAssistant, Text: resp.Content})
		last = assistantNode

		if len(resp.ToolCalls) == 0 {
			break
		}

		toolNode, err := b.executeToolCalls(ctx, resp.ToolCalls)
		if err != nil {
			return nil, err
		}
		last = toolNode
	}

	return last, nil
}

// executeToolCalls runs the requested calls in order and appends a single
// tool-role node carrying all results. Failures become error-flagged
// results rather than aborting the turn.
func (b *Bot) executeToolCalls(ctx context.Context, calls []conversation.ToolCall) (*conversation.Node, error) {
	var results []conversation.ToolResult
	var contents []string

	for _, call := range calls {
		b.publish(events.Event{Type: events.EventTypeToolCall, Tool: call.Name, CallID: call.ID})

		out, err := b.Registry.Execute(ctx, call.Name, call.Arguments)
		result := conversation.ToolResult{CallID: call.ID, Output: out}
		if err != nil {
			result.Output = fmt.Sprintf("Error: %s", err.Error())
			result.IsError = true
			log.Warn().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		}
		results = append(results, result)
		contents = append(contents, result.Output)

		ev := events.Event{Type: events.EventTypeToolResult, Tool: call.Name, CallID: call.ID, Text: result.Output}
		if result.IsError {
			ev.Error = result.Output
		}
		b.publish(ev)
	}

	return b.Tree.AppendToCurrent(conversation.NewNode(
		conversation.RoleTool,
		strings.Join(contents, "\n"),
		conversation.WithToolResults(results...),
	))
}

// messagesForRequest injects the system prompt as a synthetic node right
// after the root. The system message lives on the bot, not in the tree, so
// editing it later affects every branch uniformly.
func (b *Bot) messagesForRequest(path []*conversation.Node) []*conversation.Node {
	if b.SystemPrompt == "" {
		return path
	}
	msgs := make([]*conversation.Node, 0, len(path)+1)
	if len(path) > 0 && path[0].Role == conversation.RoleEmpty {
		msgs = append(msgs, path[0])
		path = path[1:]
	}
	msgs = append(msgs, conversation.NewNode(conversation.RoleSystem, b.SystemPrompt))
	msgs = append(msgs, path...)
	return msgs
}

func (b *Bot) publish(ev events.Event) {
	if b.sink == nil {
		return
	}
	ev.Bot = b.Name
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.sink.PublishBlind(ev)
}

// Current returns the node the bot is at.
func (b *Bot) Current() *conversation.Node {
	return b.Tree.Current()
}

// MoveUp moves the current position one semantic turn towards the root.
func (b *Bot) MoveUp() (*conversation.Node, error) {
	return b.moveTo(b.Tree.MoveUp(b.Tree.CurrentID))
}

// MoveDown moves the current position one semantic turn away from the root,
// along first replies.
func (b *Bot) MoveDown() (*conversation.Node, error) {
	return b.moveTo(b.Tree.MoveDown(b.Tree.CurrentID))
}

// MoveLeft moves to the previous sibling branch.
func (b *Bot) MoveLeft() (*conversation.Node, error) {
	return b.moveTo(b.Tree.MoveLeft(b.Tree.CurrentID))
}

// MoveRight moves to the next sibling branch.
func (b *Bot) MoveRight() (*conversation.Node, error) {
	return b.moveTo(b.Tree.MoveRight(b.Tree.CurrentID))
}

// MoveToRoot returns to the tree root.
func (b *Bot) MoveToRoot() (*conversation.Node, error) {
	return b.moveTo(b.Tree.MoveToRoot(b.Tree.CurrentID))
}

func (b *Bot) moveTo(n *conversation.Node, err error) (*conversation.Node, error) {
	if err != nil {
		return nil, err
	}
	if err := b.Tree.SetCurrent(n.ID); err != nil {
		return nil, err
	}
	return n, nil
}
