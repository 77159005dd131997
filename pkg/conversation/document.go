package conversation

import (
	"time"

	"github.com/pkg/errors"
)

// NodeDocument is the persisted form of a node: a nested tree of primitive
// values mirroring the Replies structure exactly. No live object references
// survive into this form, which is what makes a saved tree portable across
// processes and machines.
type NodeDocument struct {
	ID             NodeID         `json:"id" yaml:"id"`
	Time           time.Time      `json:"time" yaml:"time"`
	Role           Role           `json:"role" yaml:"role"`
	Content        string         `json:"content" yaml:"content"`
	Class          NodeClass      `json:"class" yaml:"class"`
	ToolCalls      []ToolCall     `json:"toolCalls,omitempty" yaml:"toolCalls,omitempty"`
	ToolResults    []ToolResult   `json:"toolResults,omitempty" yaml:"toolResults,omitempty"`
	PendingResults []ToolResult   `json:"pendingResults,omitempty" yaml:"pendingResults,omitempty"`
	Replies        []NodeDocument `json:"replies,omitempty" yaml:"replies,omitempty"`
}

// ToDocument serializes the whole tree from the root, children as nested
// documents in insertion order.
func (t *Tree) ToDocument() NodeDocument {
	return nodeToDocument(t.Root())
}

func nodeToDocument(n *Node) NodeDocument {
	doc := NodeDocument{
		ID:             n.ID,
		Time:           n.Time,
		Role:           n.Role,
		Content:        n.Content,
		Class:          n.Class,
		ToolCalls:      append([]ToolCall{}, n.ToolCalls...),
		ToolResults:    append([]ToolResult{}, n.ToolResults...),
		PendingResults: append([]ToolResult{}, n.PendingResults...),
	}
	for _, reply := range n.Replies {
		doc.Replies = append(doc.Replies, nodeToDocument(reply))
	}
	return doc
}

// TreeFromDocument rebuilds a tree from its persisted form, re-establishing
// parent and reply links in document order. The current position is
// restored to the rightmost leaf: the most recently appended reply at each
// fork, consistently with the branch_self re-anchor convention.
func TreeFromDocument(doc NodeDocument) (*Tree, error) {
	if doc.Role != RoleEmpty {
		return nil, &ValidationError{Field: "role", Message: "document root must have the empty role"}
	}

	t := &Tree{Nodes: map[NodeID]*Node{}}
	root, err := documentToNode(t, doc, NullNode)
	if err != nil {
		return nil, err
	}
	t.RootID = root.ID

	leaf := t.RightmostLeaf(root.ID)
	if leaf == nil {
		return nil, errors.New("reconstructed tree has no leaf")
	}
	t.CurrentID = leaf.ID
	return t, nil
}

func documentToNode(t *Tree, doc NodeDocument, parentID NodeID) (*Node, error) {
	n := &Node{
		ID:             doc.ID,
		ParentID:       parentID,
		Time:           doc.Time,
		Role:           doc.Role,
		Content:        doc.Content,
		Class:          doc.Class,
		ToolCalls:      append([]ToolCall{}, doc.ToolCalls...),
		ToolResults:    append([]ToolResult{}, doc.ToolResults...),
		PendingResults: append([]ToolResult{}, doc.PendingResults...),
	}
	if n.ID == NullNode {
		n.ID = NewNodeID()
	}
	if n.Class == "" {
		n.Class = NodeClassGeneric
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if _, exists := t.Nodes[n.ID]; exists {
		return nil, &ValidationError{Field: "id", Message: "duplicate node id in document: " + n.ID.String()}
	}
	t.Nodes[n.ID] = n

	for _, replyDoc := range doc.Replies {
		reply, err := documentToNode(t, replyDoc, n.ID)
		if err != nil {
			return nil, err
		}
		n.Replies = append(n.Replies, reply)
	}
	return n, nil
}
