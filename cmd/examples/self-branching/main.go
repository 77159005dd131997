// Self-branching example: the model calls branch_self to fork the live
// conversation into parallel continuations, and the merged tree shows all
// of them as siblings under the forking node.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/burattino/pkg/bots"
	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

// a scripted assistant: forks once, answers each branch, then summarizes
func scriptedEngine() engine.Engine {
	return engine.NewCallbackEngine(func(_ context.Context, messages []*conversation.Node, _ []*tools.ToolDefinition) (*engine.Response, error) {
		last := messages[len(messages)-1]
		switch {
		case last.Role == conversation.RoleTool:
			return &engine.Response{Content: "Here is what the branches found:\n" + last.Content}, nil
		case strings.HasPrefix(last.Content, "consider"):
			return &engine.Response{Content: "thought about: " + last.Content}, nil
		default:
			return &engine.Response{
				Content: "Let me explore a few angles in parallel.",
				ToolCalls: []conversation.ToolCall{{
					ID:   "call-1",
					Name: bots.BranchSelfToolName,
					Arguments: json.RawMessage(
						`{"prompts": ["consider the optimistic case", "consider the pessimistic case", "consider the weird case"]}`),
				}},
			}, nil
		}
	})
}

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	ctx := context.Background()

	b := bots.NewBot(bots.WithName("explorer"), bots.WithEngine(scriptedEngine()))
	if err := b.EnableSelfBranching(); err != nil {
		log.Fatal().Err(err).Msg("enabling branch_self")
	}

	node, err := b.Respond(ctx, "Should we rewrite the scheduler?")
	if err != nil {
		log.Fatal().Err(err).Msg("turn failed")
	}
	fmt.Println(node.Content)
	fmt.Println()

	fmt.Printf("tree has %d nodes:\n", b.Tree.Size())
	printNode(b.Tree.Root(), 0)
}

func printNode(n *conversation.Node, depth int) {
	role := string(n.Role)
	if role == "" {
		role = "root"
	}
	content := strings.ReplaceAll(n.Content, "\n", " ")
	if len(content) > 60 {
		content = content[:57] + "..."
	}
	fmt.Printf("%s[%s] %s\n", strings.Repeat("  ", depth), role, content)
	for _, reply := range n.Replies {
		printNode(reply, depth+1)
	}
}
