package bots

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

const addToolSource = `function add(a, b) { return a + b; }`

func newEchoBot(t *testing.T, options ...Option) *Bot {
	t.Helper()
	options = append([]Option{WithEngine(engine.NewEchoEngine())}, options...)
	return NewBot(options...)
}

func TestRespondAppendsUserAndAssistant(t *testing.T) {
	b := newEchoBot(t, WithName("echo-bot"))

	node, err := b.Respond(context.Background(), "hello there")
	require.NoError(t, err)
	require.NotNil(t, node)
	require.Equal(t, conversation.RoleAssistant, node.Role)
	require.Equal(t, "hello there", node.Content)

	// root, user, assistant
	require.Equal(t, 3, b.Tree.Size())
	require.Equal(t, node.ID, b.Tree.CurrentID)

	parent, err := b.Tree.Parent(node.ID)
	require.NoError(t, err)
	require.Equal(t, conversation.RoleUser, parent.Role)
	require.Equal(t, "hello there", parent.Content)
}

func TestRespondSequentialTurnsExtendPath(t *testing.T) {
	b := newEchoBot(t)

	_, err := b.Respond(context.Background(), "first")
	require.NoError(t, err)
	second, err := b.Respond(context.Background(), "second")
	require.NoError(t, err)

	path, err := b.Tree.PathToRoot(second.ID)
	require.NoError(t, err)
	require.Len(t, path, 5)

	roles := make([]conversation.Role, 0, len(path))
	for _, n := range path {
		roles = append(roles, n.Role)
	}
	require.Equal(t, []conversation.Role{
		conversation.RoleEmpty,
		conversation.RoleUser,
		conversation.RoleAssistant,
		conversation.RoleUser,
		conversation.RoleAssistant,
	}, roles)
}

func TestRespondExecutesToolCalls(t *testing.T) {
	eng := engine.NewCallbackEngine(func(_ context.Context, messages []*conversation.Node, _ []*tools.ToolDefinition) (*engine.Response, error) {
		last := messages[len(messages)-1]
		if last.Role == conversation.RoleTool {
			return &engine.Response{Content: "the sum is " + last.Content}, nil
		}
		return &engine.Response{
			Content: "let me add those",
			ToolCalls: []conversation.ToolCall{
				{ID: "call-1", Name: "add", Arguments: json.RawMessage(`{"a": 2, "b": 3}`)},
			},
		}, nil
	})

	b := NewBot(WithEngine(eng))
	require.NoError(t, b.RegisterScriptTool("add", "adds two numbers", addToolSource))

	final, err := b.Respond(context.Background(), "what is 2 + 3?")
	require.NoError(t, err)
	require.Equal(t, "the sum is 5", final.Content)

	// root, user, assistant+call, tool result, final assistant
	path, err := b.Tree.PathToRoot(final.ID)
	require.NoError(t, err)
	require.Len(t, path, 5)

	callNode := path[2]
	require.Equal(t, conversation.RoleAssistant, callNode.Role)
	require.Len(t, callNode.ToolCalls, 1)
	require.Equal(t, "add", callNode.ToolCalls[0].Name)

	toolNode := path[3]
	require.Equal(t, conversation.RoleTool, toolNode.Role)
	require.Len(t, toolNode.ToolResults, 1)
	require.Equal(t, "call-1", toolNode.ToolResults[0].CallID)
	require.Equal(t, "5", toolNode.ToolResults[0].Output)
	require.False(t, toolNode.ToolResults[0].IsError)
}

func TestRespondRecordsToolFailureAsErrorResult(t *testing.T) {
	eng := engine.NewCallbackEngine(func(_ context.Context, messages []*conversation.Node, _ []*tools.ToolDefinition) (*engine.Response, error) {
		last := messages[len(messages)-1]
		if last.Role == conversation.RoleTool {
			return &engine.Response{Content: "that did not work"}, nil
		}
		return &engine.Response{
			Content: "trying the tool",
			ToolCalls: []conversation.ToolCall{
				{ID: "call-1", Name: "boom", Arguments: json.RawMessage(`{}`)},
			},
		}, nil
	})

	b := NewBot(WithEngine(eng))
	require.NoError(t, b.RegisterScriptTool("boom", "always fails",
		`function boom() { throw new Error("kaboom"); }`))

	final, err := b.Respond(context.Background(), "try it")
	require.NoError(t, err)
	require.Equal(t, "that did not work", final.Content)

	path, err := b.Tree.PathToRoot(final.ID)
	require.NoError(t, err)
	toolNode := path[3]
	require.Equal(t, conversation.RoleTool, toolNode.Role)
	require.Len(t, toolNode.ToolResults, 1)
	require.True(t, toolNode.ToolResults[0].IsError)
	require.Contains(t, toolNode.ToolResults[0].Output, "kaboom")

	// the failed turn stays navigable
	up, err := b.MoveUp()
	require.NoError(t, err)
	require.Equal(t, conversation.RoleAssistant, up.Role)
}

func TestRespondProviderFailureBecomesErrorNode(t *testing.T) {
	eng := engine.NewCallbackEngine(func(context.Context, []*conversation.Node, []*tools.ToolDefinition) (*engine.Response, error) {
		return nil, &engine.ProviderError{Provider: "test", Err: errors.New("rate limited")}
	})

	b := NewBot(WithEngine(eng))
	node, err := b.Respond(context.Background(), "hello?")
	require.NoError(t, err)
	require.Equal(t, conversation.RoleAssistant, node.Role)
	require.True(t, strings.HasPrefix(node.Content, "Error:"))
	require.Contains(t, node.Content, "rate limited")
	require.Equal(t, node.ID, b.Tree.CurrentID)
}

func TestRespondWithoutEngineFails(t *testing.T) {
	b := NewBot()
	_, err := b.Respond(context.Background(), "anyone home?")
	require.Error(t, err)
}

func TestSetEngineAttachesAfterConstruction(t *testing.T) {
	b := NewBot()
	require.Nil(t, b.Engine())

	eng := engine.NewEchoEngine()
	b.SetEngine(eng)
	require.Equal(t, eng, b.Engine())

	node, err := b.Respond(context.Background(), "now we can talk")
	require.NoError(t, err)
	require.Equal(t, "now we can talk", node.Content)
}

func TestSystemPromptInjectedAfterRoot(t *testing.T) {
	var seen []*conversation.Node
	eng := engine.NewCallbackEngine(func(_ context.Context, messages []*conversation.Node, _ []*tools.ToolDefinition) (*engine.Response, error) {
		seen = messages
		return &engine.Response{Content: "ok"}, nil
	})

	b := NewBot(WithEngine(eng), WithSystemPrompt("You are terse."))
	_, err := b.Respond(context.Background(), "hi")
	require.NoError(t, err)

	require.Len(t, seen, 3)
	require.Equal(t, conversation.RoleEmpty, seen[0].Role)
	require.Equal(t, conversation.RoleSystem, seen[1].Role)
	require.Equal(t, "You are terse.", seen[1].Content)
	require.Equal(t, conversation.RoleUser, seen[2].Role)

	// the synthetic system node is never stored in the tree
	require.Equal(t, 3, b.Tree.Size())
}

func TestMaxToolIterationsBoundsTheLoop(t *testing.T) {
	calls := 0
	eng := engine.NewCallbackEngine(func(context.Context, []*conversation.Node, []*tools.ToolDefinition) (*engine.Response, error) {
		calls++
		return &engine.Response{
			Content: "again",
			ToolCalls: []conversation.ToolCall{
				{ID: "call", Name: "add", Arguments: json.RawMessage(`{"a": 1, "b": 1}`)},
			},
		}, nil
	})

	b := NewBot(WithEngine(eng), WithMaxToolIterations(2))
	require.NoError(t, b.RegisterScriptTool("add", "adds", addToolSource))

	node, err := b.Respond(context.Background(), "loop forever")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, conversation.RoleTool, node.Role)
}

func TestNavigationMovesBySemanticTurns(t *testing.T) {
	b := newEchoBot(t)
	ctx := context.Background()

	first, err := b.Respond(ctx, "one")
	require.NoError(t, err)
	second, err := b.Respond(ctx, "two")
	require.NoError(t, err)

	up, err := b.MoveUp()
	require.NoError(t, err)
	require.Equal(t, first.ID, up.ID)
	require.Equal(t, first.ID, b.Tree.CurrentID)

	root, err := b.MoveUp()
	require.NoError(t, err)
	require.Equal(t, b.Tree.RootID, root.ID)

	down, err := b.MoveDown()
	require.NoError(t, err)
	require.Equal(t, first.ID, down.ID)

	down, err = b.MoveDown()
	require.NoError(t, err)
	require.Equal(t, second.ID, down.ID)

	_, err = b.MoveDown()
	require.Error(t, err)

	atRoot, err := b.MoveToRoot()
	require.NoError(t, err)
	require.Equal(t, b.Tree.RootID, atRoot.ID)
}

func TestNavigationAcrossSiblingBranches(t *testing.T) {
	b := newEchoBot(t)
	ctx := context.Background()

	_, err := b.Respond(ctx, "shared opening")
	require.NoError(t, err)

	left, err := b.Respond(ctx, "left path")
	require.NoError(t, err)

	// rewind one turn, then reply again to fork
	_, err = b.MoveUp()
	require.NoError(t, err)
	right, err := b.Respond(ctx, "right path")
	require.NoError(t, err)

	// the two user turns are siblings under the first assistant node
	leftUser, err := b.Tree.Parent(left.ID)
	require.NoError(t, err)
	rightUser, err := b.Tree.Parent(right.ID)
	require.NoError(t, err)
	require.Equal(t, leftUser.ParentID, rightUser.ParentID)

	require.NoError(t, b.Tree.SetCurrent(rightUser.ID))
	prev, err := b.MoveLeft()
	require.NoError(t, err)
	require.Equal(t, leftUser.ID, prev.ID)

	next, err := b.MoveRight()
	require.NoError(t, err)
	require.Equal(t, rightUser.ID, next.ID)

	_, err = b.MoveRight()
	require.Error(t, err)
}
