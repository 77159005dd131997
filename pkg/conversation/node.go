package conversation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NodeID uuid.UUID

func (id NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id))
}

func (id *NodeID) UnmarshalJSON(data []byte) error {
	var u uuid.UUID
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*id = NodeID(u)
	return nil
}

func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *NodeID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*id = NodeID(u)
	return nil
}

func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

func NewNodeID() NodeID {
	return NodeID(uuid.New())
}

var NullNode = NodeID(uuid.Nil)

type Role string

const (
	// RoleEmpty is reserved for the tree root, which is never sent to a provider.
	RoleEmpty     Role = "empty"
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmpty, RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// NodeClass tags which provider node shape produced a node. Shared tree
// logic only touches the common fields; provider adapters look at the class
// when they need to reshape a turn for their wire format.
type NodeClass string

const (
	NodeClassGeneric   NodeClass = "generic"
	NodeClassOpenAI    NodeClass = "openai"
	NodeClassAnthropic NodeClass = "anthropic"
	NodeClassGemini    NodeClass = "gemini"
)

func (c NodeClass) Valid() bool {
	switch c {
	case NodeClassGeneric, NodeClassOpenAI, NodeClassAnthropic, NodeClassGemini:
		return true
	}
	return false
}

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the textual outcome of executing a ToolCall.
type ToolResult struct {
	CallID  string `json:"callID"`
	Output  string `json:"output"`
	IsError bool   `json:"isError"`
}

// Node represents a single turn in the conversation tree.
//
// Replies is the owning edge: a child belongs to exactly one parent for the
// lifetime of the tree, and insertion order decides which branch is "first"
// during default navigation. ParentID is a back-pointer only.
type Node struct {
	ID       NodeID    `json:"id"`
	ParentID NodeID    `json:"parentID"`
	Time     time.Time `json:"time"`

	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Class   NodeClass `json:"class"`

	ToolCalls   []ToolCall `json:"toolCalls,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
	// PendingResults carries tool results that were computed but not yet
	// attached to a reply, for protocols that require them on the next turn.
	PendingResults []ToolResult `json:"pendingResults,omitempty"`

	Replies []*Node `json:"-"`
}

type NodeOption func(*Node)

func WithID(id NodeID) NodeOption {
	return func(n *Node) {
		n.ID = id
	}
}

func WithTime(t time.Time) NodeOption {
	return func(n *Node) {
		n.Time = t
	}
}

func WithClass(class NodeClass) NodeOption {
	return func(n *Node) {
		n.Class = class
	}
}

func WithToolCalls(calls ...ToolCall) NodeOption {
	return func(n *Node) {
		n.ToolCalls = calls
	}
}

func WithToolResults(results ...ToolResult) NodeOption {
	return func(n *Node) {
		n.ToolResults = results
	}
}

func WithPendingResults(results ...ToolResult) NodeOption {
	return func(n *Node) {
		n.PendingResults = results
	}
}

func NewNode(role Role, content string, options ...NodeOption) *Node {
	ret := &Node{
		ID:      NewNodeID(),
		Role:    role,
		Content: content,
		Class:   NodeClassGeneric,
		Time:    time.Now(),
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

// IsRoot reports whether the node is a tree root (no parent).
func (n *Node) IsRoot() bool {
	return n.ParentID == NullNode
}

// IsLeaf reports whether the node has no replies.
func (n *Node) IsLeaf() bool {
	return len(n.Replies) == 0
}

// IsFork reports whether the conversation diverges at this node.
func (n *Node) IsFork() bool {
	return len(n.Replies) > 1
}

// LastReply returns the most recently appended reply, or nil for a leaf.
func (n *Node) LastReply() *Node {
	if len(n.Replies) == 0 {
		return nil
	}
	return n.Replies[len(n.Replies)-1]
}

// Validate checks the node's role, class and tool payload consistency.
func (n *Node) Validate() error {
	if !n.Role.Valid() {
		return &ValidationError{Field: "role", Message: "invalid role: " + string(n.Role)}
	}
	if n.Class != "" && !n.Class.Valid() {
		return &ValidationError{Field: "class", Message: "invalid node class: " + string(n.Class)}
	}
	for _, tc := range n.ToolCalls {
		if tc.Name == "" {
			return &ValidationError{Field: "toolCalls", Message: "tool call without a name"}
		}
	}
	for _, tr := range n.ToolResults {
		if tr.CallID == "" {
			return &ValidationError{Field: "toolResults", Message: "tool result without a call id"}
		}
	}
	return nil
}
