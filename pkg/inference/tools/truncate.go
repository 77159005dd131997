package tools

import "fmt"

// TruncateConfig shapes oversized tool output before it enters the
// conversation tree. Results longer than Limit characters keep an Edge
// sized prefix and suffix with an elision marker in between, so one
// runaway tool cannot pollute the tree with a pathologically large node.
type TruncateConfig struct {
	// Limit is the maximum number of characters before truncation kicks
	// in. Zero disables truncation.
	Limit int
	// Edge is how many characters to preserve at each end.
	Edge int
}

func DefaultTruncateConfig() TruncateConfig {
	return TruncateConfig{
		Limit: 10000,
		Edge:  4000,
	}
}

// Apply returns s unchanged when it fits, otherwise the middle-truncated
// form.
func (c TruncateConfig) Apply(s string) string {
	if c.Limit <= 0 || len(s) <= c.Limit {
		return s
	}

	edge := c.Edge
	if edge <= 0 || edge*2 >= len(s) {
		edge = c.Limit / 2
	}

	elided := len(s) - 2*edge
	marker := fmt.Sprintf("\n[... %d characters truncated ...]\n", elided)
	return s[:edge] + marker + s[len(s)-edge:]
}
