package tools

import "fmt"

// RegistrationError means a callable could not be registered because its
// source cannot be captured. A tool without captured source would break
// save/load portability, so this is a hard failure at registration time.
type RegistrationError struct {
	Tool    string
	Message string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("cannot register tool %s: %s", e.Tool, e.Message)
}

// ReconstructionError means a tool's captured source failed to re-execute
// at load time. Loading continues; the bot simply loses that one tool.
type ReconstructionError struct {
	Tool string
	Err  error
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("cannot reconstruct tool %s: %v", e.Tool, e.Err)
}

func (e *ReconstructionError) Unwrap() error {
	return e.Err
}

// ExecutionError means a registered tool failed during an actual invocation:
// unknown tool, arguments rejected by the schema, or the callable itself
// raising. The conversation records it as an error-flagged result node and
// continues.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
