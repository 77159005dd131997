package conversation

import "fmt"

// ValidationError reports malformed node construction: a bad role tag,
// an unknown node class, or inconsistent tool call/result payloads.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// NavigationError reports a movement with no valid target: moving up at the
// root, down at a leaf, or sideways past the first or last sibling. These
// are surfaced, never silently clamped - callers decide whether to ignore.
type NavigationError struct {
	Op   string
	Node NodeID
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation error: %s from node %s has no target", e.Op, e.Node)
}
