// Functional prompt example: chain, parallel branch and tree-of-thought
// over the same bot, all leaving ordinary branches in the tree.
package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/burattino/pkg/bots"
	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/fprompt"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	ctx := context.Background()

	b := bots.NewBot(
		bots.WithName("planner"),
		bots.WithEngine(&engine.EchoEngine{Prefix: "echo: "}),
	)

	// chain: one linear path
	nodes, err := fprompt.Chain(ctx, b, []string{"collect requirements", "draft a plan"})
	if err != nil {
		log.Fatal().Err(err).Msg("chain failed")
	}
	fmt.Println("chain finished at:", nodes[len(nodes)-1].Content)

	// par_branch: three parallel explorations merged back as siblings
	outcomes, err := fprompt.ParBranch(ctx, b, []string{"option A", "option B", "option C"})
	if err != nil {
		log.Fatal().Err(err).Msg("par_branch failed")
	}
	for _, outcome := range outcomes {
		fmt.Printf("branch %q -> %s\n", outcome.Prompt, outcome.Content)
	}

	// tree_of_thought: branch then pick one continuation
	synthesized, chosen, err := fprompt.TreeOfThought(ctx, b,
		[]string{"argue for A", "argue for B"},
		func(responses []string, nodes []*conversation.Node) (string, *conversation.Node, error) {
			// keep the first one; a real recombinator would judge the responses
			return "going with: " + responses[0], nodes[0], nil
		})
	if err != nil {
		log.Fatal().Err(err).Msg("tree_of_thought failed")
	}
	fmt.Println(synthesized)

	// the conversation continues from the chosen branch
	next, err := b.Respond(ctx, "write it up")
	if err != nil {
		log.Fatal().Err(err).Msg("turn failed")
	}
	fmt.Println("continued under", chosen.Content, "->", next.Content)
	fmt.Printf("final tree: %d nodes, current depth ", b.Tree.Size())
	depth, _ := b.Tree.Depth(b.Tree.CurrentID)
	fmt.Println(depth)
}
