package openai

import (
	"encoding/json"
	"testing"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

func TestMessagesFromNodesSkipsRootAndExpandsToolResults(t *testing.T) {
	root := conversation.NewNode(conversation.RoleEmpty, "")
	system := conversation.NewNode(conversation.RoleSystem, "be brief")
	user := conversation.NewNode(conversation.RoleUser, "add 2 and 3")
	assistant := conversation.NewNode(conversation.RoleAssistant, "",
		conversation.WithToolCalls(conversation.ToolCall{
			ID:        "call-1",
			Name:      "add",
			Arguments: json.RawMessage(`{"a":2,"b":3}`),
		}),
	)
	toolNode := conversation.NewNode(conversation.RoleTool, "5",
		conversation.WithToolResults(conversation.ToolResult{CallID: "call-1", Output: "5"}),
	)

	msgs := messagesFromNodes([]*conversation.Node{root, system, user, assistant, toolNode})
	require.Len(t, msgs, 4)

	require.Equal(t, go_openai.ChatMessageRoleSystem, msgs[0].Role)
	require.Equal(t, go_openai.ChatMessageRoleUser, msgs[1].Role)

	require.Equal(t, go_openai.ChatMessageRoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	require.Equal(t, "add", msgs[2].ToolCalls[0].Function.Name)
	require.Equal(t, "call-1", msgs[2].ToolCalls[0].ID)

	require.Equal(t, go_openai.ChatMessageRoleTool, msgs[3].Role)
	require.Equal(t, "call-1", msgs[3].ToolCallID)
	require.Equal(t, "5", msgs[3].Content)
}

func TestMessagesFromNodesEmitsPendingResults(t *testing.T) {
	user := conversation.NewNode(conversation.RoleUser, "continue",
		conversation.WithPendingResults(conversation.ToolResult{CallID: "call-9", Output: "carried"}),
	)

	msgs := messagesFromNodes([]*conversation.Node{user})
	require.Len(t, msgs, 2)
	require.Equal(t, go_openai.ChatMessageRoleUser, msgs[0].Role)
	require.Equal(t, go_openai.ChatMessageRoleTool, msgs[1].Role)
	require.Equal(t, "call-9", msgs[1].ToolCallID)
}

func TestToolsFromDefinitions(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.RegisterScript("add", "Add two numbers.", "function add(a, b) { return a + b; }"))

	ret := toolsFromDefinitions(r.List())
	require.Len(t, ret, 1)
	require.Equal(t, go_openai.ToolTypeFunction, ret[0].Type)
	require.Equal(t, "add", ret[0].Function.Name)
	require.Equal(t, "Add two numbers.", ret[0].Function.Description)
}
