package conversation

import (
	"github.com/pkg/errors"
)

// Tree is a tree-like structure for storing and managing conversation turns.
//
// The tree consists of nodes connected by parent-child links. The root node
// is an empty-role sentinel created by NewTree; it anchors the conversation
// and is never itself sent to a provider. Each node can have multiple
// replies, which is how conversation history diverges into branches.
//
// CurrentID tracks "where the conversation is": the node from which the
// next turn's path-to-root is computed. When navigation has to pick a
// branch without being told which one, the convention throughout this
// package is to resume from the most recently appended reply at each fork.
type Tree struct {
	Nodes     map[NodeID]*Node `json:"nodes"`
	RootID    NodeID           `json:"rootID"`
	CurrentID NodeID           `json:"currentID"`
}

func NewTree() *Tree {
	root := NewNode(RoleEmpty, "")
	t := &Tree{
		Nodes:     map[NodeID]*Node{root.ID: root},
		RootID:    root.ID,
		CurrentID: root.ID,
	}
	return t
}

func (t *Tree) Root() *Node {
	return t.Nodes[t.RootID]
}

func (t *Tree) Current() *Node {
	return t.Nodes[t.CurrentID]
}

func (t *Tree) Get(id NodeID) (*Node, bool) {
	n, ok := t.Nodes[id]
	return n, ok
}

// SetCurrent moves the current position to an existing node.
func (t *Tree) SetCurrent(id NodeID) error {
	if _, ok := t.Nodes[id]; !ok {
		return errors.Errorf("node %s not in tree", id)
	}
	t.CurrentID = id
	return nil
}

// AppendReply validates the node, links it under parentID and indexes it.
// The append is atomic: on any error the tree is left untouched.
func (t *Tree) AppendReply(parentID NodeID, n *Node) (*Node, error) {
	parent, ok := t.Nodes[parentID]
	if !ok {
		return nil, errors.Errorf("parent node %s not in tree", parentID)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if n.Role == RoleEmpty {
		return nil, &ValidationError{Field: "role", Message: "only the root may have the empty role"}
	}
	if _, exists := t.Nodes[n.ID]; exists {
		return nil, &ValidationError{Field: "id", Message: "node id already in tree: " + n.ID.String()}
	}

	n.ParentID = parentID
	parent.Replies = append(parent.Replies, n)
	t.Nodes[n.ID] = n
	return n, nil
}

// AppendToCurrent appends a reply under the current position and advances
// the current position to it.
func (t *Tree) AppendToCurrent(n *Node) (*Node, error) {
	appended, err := t.AppendReply(t.CurrentID, n)
	if err != nil {
		return nil, err
	}
	t.CurrentID = appended.ID
	return appended, nil
}

// AttachSubtree links an externally built subtree (for example a branch
// produced on a deep copy of the bot) under parentID, indexing every node
// reachable from it. Node ids must not collide with existing tree entries.
func (t *Tree) AttachSubtree(parentID NodeID, n *Node) error {
	parent, ok := t.Nodes[parentID]
	if !ok {
		return errors.Errorf("parent node %s not in tree", parentID)
	}

	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, exists := t.Nodes[cur.ID]; exists {
			return &ValidationError{Field: "id", Message: "subtree node id already in tree: " + cur.ID.String()}
		}
		queue = append(queue, cur.Replies...)
	}

	n.ParentID = parentID
	parent.Replies = append(parent.Replies, n)

	queue = []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		t.Nodes[cur.ID] = cur
		queue = append(queue, cur.Replies...)
	}
	return nil
}

// Parent returns the parent of the given node.
func (t *Tree) Parent(id NodeID) (*Node, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return nil, errors.Errorf("node %s not in tree", id)
	}
	parent, ok := t.Nodes[n.ParentID]
	if !ok {
		return nil, &NavigationError{Op: "parent", Node: id}
	}
	return parent, nil
}

// MoveUp returns the node two levels above the given one. User and
// assistant nodes alternate one-for-one, so two levels is one semantic
// turn boundary.
func (t *Tree) MoveUp(id NodeID) (*Node, error) {
	parent, err := t.Parent(id)
	if err != nil {
		return nil, err
	}
	grandparent, ok := t.Nodes[parent.ParentID]
	if !ok {
		return nil, &NavigationError{Op: "up", Node: id}
	}
	return grandparent, nil
}

// MoveDown descends along first replies, stepping two levels when possible
// so that MoveUp and MoveDown stay inverses on linear paths. It fails when
// the node is a leaf.
func (t *Tree) MoveDown(id NodeID) (*Node, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return nil, errors.Errorf("node %s not in tree", id)
	}
	if len(n.Replies) == 0 {
		return nil, &NavigationError{Op: "down", Node: id}
	}
	child := n.Replies[0]
	if len(child.Replies) == 0 {
		return child, nil
	}
	return child.Replies[0], nil
}

// MoveLeft returns the sibling immediately before the node in insertion
// order.
func (t *Tree) MoveLeft(id NodeID) (*Node, error) {
	return t.moveSideways(id, "left", -1)
}

// MoveRight returns the sibling immediately after the node in insertion
// order.
func (t *Tree) MoveRight(id NodeID) (*Node, error) {
	return t.moveSideways(id, "right", 1)
}

func (t *Tree) moveSideways(id NodeID, op string, delta int) (*Node, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return nil, errors.Errorf("node %s not in tree", id)
	}
	parent, ok := t.Nodes[n.ParentID]
	if !ok {
		return nil, &NavigationError{Op: op, Node: id}
	}
	for i, sibling := range parent.Replies {
		if sibling.ID == id {
			j := i + delta
			if j < 0 || j >= len(parent.Replies) {
				return nil, &NavigationError{Op: op, Node: id}
			}
			return parent.Replies[j], nil
		}
	}
	return nil, errors.Errorf("node %s not among its parent's replies", id)
}

// MoveToRoot follows parent links until reaching the root.
func (t *Tree) MoveToRoot(id NodeID) (*Node, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return nil, errors.Errorf("node %s not in tree", id)
	}
	for {
		parent, ok := t.Nodes[n.ParentID]
		if !ok {
			return n, nil
		}
		n = parent
	}
}

// PathToRoot produces the sequence [root, ..., node] by walking parent
// links and reversing. This path - never the whole tree - is what gets
// serialized into a provider request, which bounds request size regardless
// of how large the tree has grown from branching.
func (t *Tree) PathToRoot(id NodeID) ([]*Node, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return nil, errors.Errorf("node %s not in tree", id)
	}

	var path []*Node
	for n != nil {
		path = append([]*Node{n}, path...)
		parent, ok := t.Nodes[n.ParentID]
		if !ok {
			break
		}
		n = parent
	}
	return path, nil
}

// Depth returns the number of parent links between the node and the root.
func (t *Tree) Depth(id NodeID) (int, error) {
	path, err := t.PathToRoot(id)
	if err != nil {
		return 0, err
	}
	return len(path) - 1, nil
}

// Leaves returns every reply-less node reachable from the given node, in
// depth-first order. The traversal is recomputed on each call.
func (t *Tree) Leaves(id NodeID) ([]*Node, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return nil, errors.Errorf("node %s not in tree", id)
	}

	var leaves []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		if len(cur.Replies) == 0 {
			leaves = append(leaves, cur)
			return
		}
		for _, reply := range cur.Replies {
			walk(reply)
		}
	}
	walk(n)
	return leaves, nil
}

type ForkDirection string

const (
	ForkUp   ForkDirection = "up"
	ForkDown ForkDirection = "down"
)

// FindFork walks up to the nearest ancestor fork, or down (breadth-first,
// so nearest first) to the nearest descendant fork. Returns nil when there
// is none in that direction.
func (t *Tree) FindFork(id NodeID, direction ForkDirection) (*Node, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return nil, errors.Errorf("node %s not in tree", id)
	}

	switch direction {
	case ForkUp:
		for {
			parent, ok := t.Nodes[n.ParentID]
			if !ok {
				return nil, nil
			}
			if parent.IsFork() {
				return parent, nil
			}
			n = parent
		}
	case ForkDown:
		queue := append([]*Node{}, n.Replies...)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur.IsFork() {
				return cur, nil
			}
			queue = append(queue, cur.Replies...)
		}
		return nil, nil
	default:
		return nil, errors.Errorf("unknown fork direction %q", direction)
	}
}

// RightmostThread returns the thread from the given node downwards,
// choosing the most recently appended reply at every fork. This is the
// resume convention shared by loading and self-branching.
func (t *Tree) RightmostThread(id NodeID) []*Node {
	n, ok := t.Nodes[id]
	if !ok {
		return nil
	}
	var thread []*Node
	for n != nil {
		thread = append(thread, n)
		n = n.LastReply()
	}
	return thread
}

// RightmostLeaf returns the last node of RightmostThread.
func (t *Tree) RightmostLeaf(id NodeID) *Node {
	thread := t.RightmostThread(id)
	if len(thread) == 0 {
		return nil
	}
	return thread[len(thread)-1]
}

// Size returns the number of nodes in the tree, root included.
func (t *Tree) Size() int {
	return len(t.Nodes)
}
