package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTripPreservesTopologyAndOrder(t *testing.T) {
	tree := NewTree()
	u := appendChild(t, tree, tree.RootID, RoleUser, "question")
	a1 := appendChild(t, tree, u.ID, RoleAssistant, "answer one")
	a2 := appendChild(t, tree, u.ID, RoleAssistant, "answer two")
	appendChild(t, tree, a1.ID, RoleUser, "followup")
	tail := appendChild(t, tree, a2.ID, RoleUser, "tail")

	doc := tree.ToDocument()
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded NodeDocument
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := TreeFromDocument(decoded)
	require.NoError(t, err)

	require.Equal(t, tree.Size(), restored.Size())
	require.Equal(t, tree.RootID, restored.RootID)

	origLeaves, err := tree.Leaves(tree.RootID)
	require.NoError(t, err)
	restoredLeaves, err := restored.Leaves(restored.RootID)
	require.NoError(t, err)
	require.Equal(t, len(origLeaves), len(restoredLeaves))
	for i := range origLeaves {
		require.Equal(t, origLeaves[i].ID, restoredLeaves[i].ID)
		require.Equal(t, origLeaves[i].Content, restoredLeaves[i].Content)
	}

	// reply order at the fork survives
	restoredFork, ok := restored.Get(u.ID)
	require.True(t, ok)
	require.Len(t, restoredFork.Replies, 2)
	require.Equal(t, a1.ID, restoredFork.Replies[0].ID)
	require.Equal(t, a2.ID, restoredFork.Replies[1].ID)

	// current resumes at the most recently appended branch
	require.Equal(t, tail.ID, restored.CurrentID)
}

func TestDocumentRoundTripPreservesToolPayloads(t *testing.T) {
	tree := NewTree()
	u := appendChild(t, tree, tree.RootID, RoleUser, "add 2 and 3")
	call := ToolCall{ID: "call-1", Name: "add", Arguments: json.RawMessage(`{"a":2,"b":3}`)}
	a, err := tree.AppendReply(u.ID, NewNode(RoleAssistant, "", WithToolCalls(call), WithClass(NodeClassOpenAI)))
	require.NoError(t, err)
	result := ToolResult{CallID: "call-1", Output: "5"}
	_, err = tree.AppendReply(a.ID, NewNode(RoleTool, "5", WithToolResults(result)))
	require.NoError(t, err)

	restored, err := TreeFromDocument(tree.ToDocument())
	require.NoError(t, err)

	ra, ok := restored.Get(a.ID)
	require.True(t, ok)
	require.Equal(t, NodeClassOpenAI, ra.Class)
	require.Len(t, ra.ToolCalls, 1)
	require.Equal(t, "add", ra.ToolCalls[0].Name)
	require.JSONEq(t, `{"a":2,"b":3}`, string(ra.ToolCalls[0].Arguments))

	leaf := restored.RightmostLeaf(restored.RootID)
	require.Len(t, leaf.ToolResults, 1)
	require.Equal(t, "5", leaf.ToolResults[0].Output)
	require.False(t, leaf.ToolResults[0].IsError)
}

func TestTreeFromDocumentRejectsNonEmptyRoot(t *testing.T) {
	_, err := TreeFromDocument(NodeDocument{Role: RoleUser, Content: "nope"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTreeFromDocumentAssignsMissingIDs(t *testing.T) {
	doc := NodeDocument{
		Role: RoleEmpty,
		Replies: []NodeDocument{
			{Role: RoleUser, Content: "hello"},
		},
	}
	restored, err := TreeFromDocument(doc)
	require.NoError(t, err)
	require.Equal(t, 2, restored.Size())
	require.NotEqual(t, NullNode, restored.Root().Replies[0].ID)
}
