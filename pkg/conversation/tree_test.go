package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendChild(t *testing.T, tree *Tree, parentID NodeID, role Role, content string) *Node {
	t.Helper()
	n, err := tree.AppendReply(parentID, NewNode(role, content))
	require.NoError(t, err)
	return n
}

// buildLinear creates root -> user -> assistant -> user -> assistant.
func buildLinear(t *testing.T) (*Tree, []*Node) {
	t.Helper()
	tree := NewTree()
	u1 := appendChild(t, tree, tree.RootID, RoleUser, "u1")
	a1 := appendChild(t, tree, u1.ID, RoleAssistant, "a1")
	u2 := appendChild(t, tree, a1.ID, RoleUser, "u2")
	a2 := appendChild(t, tree, u2.ID, RoleAssistant, "a2")
	return tree, []*Node{u1, a1, u2, a2}
}

func TestNewTreeHasEmptyRoot(t *testing.T) {
	tree := NewTree()
	require.Equal(t, RoleEmpty, tree.Root().Role)
	require.Equal(t, "", tree.Root().Content)
	require.Equal(t, tree.RootID, tree.CurrentID)
	require.True(t, tree.Root().IsRoot())
}

func TestAppendReplyPreservesInsertionOrder(t *testing.T) {
	tree := NewTree()
	a := appendChild(t, tree, tree.RootID, RoleUser, "a")
	b := appendChild(t, tree, tree.RootID, RoleUser, "b")
	c := appendChild(t, tree, tree.RootID, RoleUser, "c")

	replies := tree.Root().Replies
	require.Len(t, replies, 3)
	require.Equal(t, []NodeID{a.ID, b.ID, c.ID}, []NodeID{replies[0].ID, replies[1].ID, replies[2].ID})
}

func TestAppendReplyRejectsInvalidRole(t *testing.T) {
	tree := NewTree()
	_, err := tree.AppendReply(tree.RootID, NewNode(Role("robot"), "hi"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "role", verr.Field)
}

func TestAppendReplyRejectsEmptyRoleOffRoot(t *testing.T) {
	tree := NewTree()
	_, err := tree.AppendReply(tree.RootID, NewNode(RoleEmpty, ""))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAppendReplyRejectsUnknownParentAtomically(t *testing.T) {
	tree := NewTree()
	before := tree.Size()
	_, err := tree.AppendReply(NewNodeID(), NewNode(RoleUser, "orphan"))
	require.Error(t, err)
	require.Equal(t, before, tree.Size())
}

func TestPathToRootIsBoundedByDepth(t *testing.T) {
	tree, nodes := buildLinear(t)
	// grow an unrelated branch, which must not affect the path
	appendChild(t, tree, tree.RootID, RoleUser, "side")

	path, err := tree.PathToRoot(nodes[3].ID)
	require.NoError(t, err)
	require.Len(t, path, 5)
	require.Equal(t, tree.RootID, path[0].ID)
	require.Equal(t, nodes[3].ID, path[4].ID)

	depth, err := tree.Depth(nodes[3].ID)
	require.NoError(t, err)
	require.Equal(t, len(path)-1, depth)
}

func TestMoveUpStepsTwoLevels(t *testing.T) {
	tree, nodes := buildLinear(t)

	got, err := tree.MoveUp(nodes[3].ID)
	require.NoError(t, err)
	require.Equal(t, nodes[1].ID, got.ID)

	// at the root there is nowhere to go
	_, err = tree.MoveUp(tree.RootID)
	var nerr *NavigationError
	require.ErrorAs(t, err, &nerr)

	// one level below the root, the grandparent does not exist either
	_, err = tree.MoveUp(nodes[0].ID)
	require.ErrorAs(t, err, &nerr)
}

func TestMoveDownStepsTwoLevels(t *testing.T) {
	tree, nodes := buildLinear(t)

	got, err := tree.MoveDown(nodes[1].ID)
	require.NoError(t, err)
	require.Equal(t, nodes[3].ID, got.ID)

	_, err = tree.MoveDown(nodes[3].ID)
	var nerr *NavigationError
	require.ErrorAs(t, err, &nerr)
}

func TestMoveUpAndMoveDownAreInversesOnLinearPath(t *testing.T) {
	tree, nodes := buildLinear(t)

	down, err := tree.MoveDown(nodes[1].ID)
	require.NoError(t, err)
	up, err := tree.MoveUp(down.ID)
	require.NoError(t, err)
	require.Equal(t, nodes[1].ID, up.ID)

	up, err = tree.MoveUp(nodes[3].ID)
	require.NoError(t, err)
	down, err = tree.MoveDown(up.ID)
	require.NoError(t, err)
	require.Equal(t, nodes[3].ID, down.ID)
}

func TestMoveLeftRightWalkSiblings(t *testing.T) {
	tree := NewTree()
	a := appendChild(t, tree, tree.RootID, RoleUser, "a")
	b := appendChild(t, tree, tree.RootID, RoleUser, "b")
	c := appendChild(t, tree, tree.RootID, RoleUser, "c")

	got, err := tree.MoveRight(a.ID)
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)

	got, err = tree.MoveLeft(c.ID)
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)

	var nerr *NavigationError
	_, err = tree.MoveLeft(a.ID)
	require.ErrorAs(t, err, &nerr)
	_, err = tree.MoveRight(c.ID)
	require.ErrorAs(t, err, &nerr)
}

func TestMoveToRoot(t *testing.T) {
	tree, nodes := buildLinear(t)
	got, err := tree.MoveToRoot(nodes[3].ID)
	require.NoError(t, err)
	require.Equal(t, tree.RootID, got.ID)
}

func TestLeavesDepthFirstOrder(t *testing.T) {
	tree := NewTree()
	a := appendChild(t, tree, tree.RootID, RoleUser, "a")
	a1 := appendChild(t, tree, a.ID, RoleAssistant, "a1")
	a2 := appendChild(t, tree, a.ID, RoleAssistant, "a2")
	b := appendChild(t, tree, tree.RootID, RoleUser, "b")

	leaves, err := tree.Leaves(tree.RootID)
	require.NoError(t, err)
	require.Len(t, leaves, 3)
	assert.Equal(t, a1.ID, leaves[0].ID)
	assert.Equal(t, a2.ID, leaves[1].ID)
	assert.Equal(t, b.ID, leaves[2].ID)

	// traversal is restartable and deterministic
	again, err := tree.Leaves(tree.RootID)
	require.NoError(t, err)
	require.Equal(t, leaves, again)
}

func TestFindForkUpAndDown(t *testing.T) {
	tree := NewTree()
	a := appendChild(t, tree, tree.RootID, RoleUser, "a")
	fork := appendChild(t, tree, a.ID, RoleAssistant, "fork")
	left := appendChild(t, tree, fork.ID, RoleUser, "left")
	appendChild(t, tree, fork.ID, RoleUser, "right")
	deep := appendChild(t, tree, left.ID, RoleAssistant, "deep")

	got, err := tree.FindFork(deep.ID, ForkUp)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, fork.ID, got.ID)

	got, err = tree.FindFork(tree.RootID, ForkDown)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, fork.ID, got.ID)

	got, err = tree.FindFork(deep.ID, ForkDown)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRightmostThreadPicksLastReplyAtForks(t *testing.T) {
	tree := NewTree()
	a := appendChild(t, tree, tree.RootID, RoleUser, "a")
	appendChild(t, tree, a.ID, RoleAssistant, "first")
	second := appendChild(t, tree, a.ID, RoleAssistant, "second")
	tail := appendChild(t, tree, second.ID, RoleUser, "tail")

	thread := tree.RightmostThread(tree.RootID)
	require.Len(t, thread, 4)
	require.Equal(t, tail.ID, thread[len(thread)-1].ID)
	require.Equal(t, tail.ID, tree.RightmostLeaf(tree.RootID).ID)
}

func TestAttachSubtreeIndexesAllNodes(t *testing.T) {
	tree := NewTree()
	anchor := appendChild(t, tree, tree.RootID, RoleUser, "anchor")

	sub := NewNode(RoleUser, "branch prompt")
	reply := NewNode(RoleAssistant, "branch reply")
	reply.ParentID = sub.ID
	sub.Replies = append(sub.Replies, reply)

	require.NoError(t, tree.AttachSubtree(anchor.ID, sub))
	require.Equal(t, anchor.ID, sub.ParentID)

	got, ok := tree.Get(reply.ID)
	require.True(t, ok)
	require.Equal(t, "branch reply", got.Content)

	path, err := tree.PathToRoot(reply.ID)
	require.NoError(t, err)
	require.Len(t, path, 4)
}

func TestAttachSubtreeRejectsDuplicateIDs(t *testing.T) {
	tree := NewTree()
	anchor := appendChild(t, tree, tree.RootID, RoleUser, "anchor")

	sub := NewNode(RoleUser, "dup", WithID(anchor.ID))
	err := tree.AttachSubtree(tree.RootID, sub)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, tree.Root().Replies, 1)
}
