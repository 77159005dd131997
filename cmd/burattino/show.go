package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/burattino/pkg/bots"
	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
)

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <bot-file>",
		Short: "Print a saved bot's parameters and conversation tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, toolErrs, err := bots.LoadFromFile(args[0], bots.WithEngine(engine.NewEchoEngine()))
			if err != nil {
				return err
			}

			fmt.Printf("name:   %s\n", b.Name)
			fmt.Printf("model:  %s (max_tokens=%d, temperature=%g)\n",
				b.Config.Engine, b.Config.MaxTokens, b.Config.Temperature)
			if b.SystemPrompt != "" {
				fmt.Printf("system: %s\n", b.SystemPrompt)
			}

			defs := b.Registry.List()
			if len(defs) > 0 {
				fmt.Println("tools:")
				for _, def := range defs {
					kind := "script"
					if def.Builtin {
						kind = "builtin"
					}
					fmt.Printf("  %-20s %s\n", def.Name, kind)
				}
			}
			for _, toolErr := range toolErrs {
				fmt.Printf("  (broken) %s\n", toolErr)
			}

			fmt.Printf("tree:   %d nodes\n", b.Tree.Size())
			printTree(os.Stdout, b.Tree)
			return nil
		},
	}
}

// printTree renders the conversation tree with indentation per depth. The
// node the bot is positioned at is marked with an asterisk.
func printTree(w io.Writer, t *conversation.Tree) {
	var walk func(n *conversation.Node, depth int)
	walk = func(n *conversation.Node, depth int) {
		marker := " "
		if n.ID == t.CurrentID {
			marker = "*"
		}
		role := string(n.Role)
		if role == "" {
			role = "root"
		}
		fmt.Fprintf(w, "%s%s[%s] %s\n", marker, strings.Repeat("  ", depth), role, summarize(n.Content, 72))
		for _, reply := range n.Replies {
			walk(reply, depth+1)
		}
	}
	walk(t.Root(), 0)
}

func summarize(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
