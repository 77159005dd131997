package events

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"

	"github.com/go-go-golems/burattino/pkg/conversation"
)

type EventType string

const (
	EventTypeTurnStarted    EventType = "turn-started"
	EventTypeAssistantReply EventType = "assistant-reply"
	EventTypeToolCall       EventType = "tool-call"
	EventTypeToolResult     EventType = "tool-result"
	EventTypeBranchStarted  EventType = "branch-started"
	EventTypeBranchMerged   EventType = "branch-merged"
	EventTypeError          EventType = "error"
)

// Event is the common envelope for turn lifecycle notifications. Payload
// fields are filled depending on the type; consumers switch on Type.
type Event struct {
	Type EventType `json:"type"`
	Bot  string    `json:"bot,omitempty"`
	Time time.Time `json:"time"`

	NodeID conversation.NodeID `json:"nodeID,omitempty"`
	Role   conversation.Role   `json:"role,omitempty"`
	Text   string              `json:"text,omitempty"`

	Tool   string `json:"tool,omitempty"`
	CallID string `json:"callID,omitempty"`

	// BranchCount is set on branch events.
	BranchCount int `json:"branchCount,omitempty"`

	Error string `json:"error,omitempty"`
}

func New(t EventType) Event {
	return Event{Type: t, Time: time.Now()}
}

// FromMessage decodes the event carried by a watermill message.
func FromMessage(msg *message.Message) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return Event{}, errors.Wrap(err, "decoding event payload")
	}
	return ev, nil
}
