// Package fprompt provides composable higher-order drivers over a bot:
// sequential chains, sibling branches, iterate-until-condition loops and
// their parallel variants. Everything is expressed in terms of the tree
// primitives, so the results of any driver are ordinary branches that
// navigation, serialization and further drivers can work with.
package fprompt

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/burattino/pkg/bots"
	"github.com/go-go-golems/burattino/pkg/conversation"
)

// StopCondition decides whether an iterating driver should stop. It is
// evaluated against the bot's state after each turn.
type StopCondition func(*bots.Bot) bool

// TurnFunc runs one branch's worth of conversation on a private bot copy
// and returns the final node it produced.
type TurnFunc func(ctx context.Context, b *bots.Bot, prompt string) (*conversation.Node, error)

// Chain issues the prompts in order, each from wherever the previous turn
// left the bot, building one linear path. It returns the final node of
// every turn.
func Chain(ctx context.Context, b *bots.Bot, prompts []string) ([]*conversation.Node, error) {
	if len(prompts) == 0 {
		return nil, errors.New("no prompts to chain")
	}

	nodes := make([]*conversation.Node, 0, len(prompts))
	for _, prompt := range prompts {
		node, err := b.Respond(ctx, prompt)
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Branch issues one turn per prompt, each starting fresh from the position
// captured at entry, producing sibling single-hop children. Turns run one
// after another but never see each other: the position is reset to the
// anchor before every prompt, and it is left on the anchor afterwards.
func Branch(ctx context.Context, b *bots.Bot, prompts []string) ([]*conversation.Node, error) {
	if len(prompts) == 0 {
		return nil, errors.New("no prompts to branch")
	}

	anchorID := b.Tree.CurrentID
	nodes := make([]*conversation.Node, 0, len(prompts))
	for _, prompt := range prompts {
		if err := b.Tree.SetCurrent(anchorID); err != nil {
			return nodes, err
		}
		node, err := b.Respond(ctx, prompt)
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, node)
	}
	if err := b.Tree.SetCurrent(anchorID); err != nil {
		return nodes, err
	}
	return nodes, nil
}

// PromptWhile issues firstPrompt, then repeats continuePrompt until stop
// returns true. Iteration is bounded only by the stop condition; callers
// own termination (a ctx with a deadline is the usual safety net, since
// Respond records cancellation as an error node and the next stop check
// sees a turn without tool use).
func PromptWhile(ctx context.Context, b *bots.Bot, firstPrompt, continuePrompt string, stop StopCondition) (*conversation.Node, error) {
	if stop == nil {
		return nil, errors.New("prompt_while needs a stop condition")
	}

	node, err := b.Respond(ctx, firstPrompt)
	if err != nil {
		return nil, err
	}
	for !stop(b) {
		if err := ctx.Err(); err != nil {
			return node, err
		}
		node, err = b.Respond(ctx, continuePrompt)
		if err != nil {
			return node, err
		}
	}
	return node, nil
}

// LastTurnUsedTool reports whether the bot's most recent turn involved a
// tool, either a call request or a result node. It is the canonical stop
// condition building block for PromptWhile loops that let the model work
// until it stops reaching for tools.
func LastTurnUsedTool(b *bots.Bot) bool {
	path, err := b.Tree.PathToRoot(b.Tree.CurrentID)
	if err != nil {
		return false
	}
	for i := len(path) - 1; i >= 0; i-- {
		n := path[i]
		if n.Role == conversation.RoleTool || len(n.ToolCalls) > 0 {
			return true
		}
		if n.Role == conversation.RoleUser {
			break
		}
	}
	return false
}

// StopWhenNoToolUse stops an iterating driver as soon as a turn completes
// without any tool involvement.
func StopWhenNoToolUse(b *bots.Bot) bool {
	return !LastTurnUsedTool(b)
}

// ParBranch explores the prompts in parallel, one deep bot copy per
// prompt, and merges the results back as siblings under the position
// captured at entry.
func ParBranch(ctx context.Context, b *bots.Bot, prompts []string) ([]bots.BranchOutcome, error) {
	return ParDispatch(ctx, b, prompts, func(ctx context.Context, clone *bots.Bot, prompt string) (*conversation.Node, error) {
		return clone.Respond(ctx, prompt)
	})
}

// ParBranchWhile is ParBranch with a PromptWhile loop per branch: every
// copy iterates continuePrompt until the stop condition holds for it, then
// its whole multi-turn subtree is merged back.
func ParBranchWhile(ctx context.Context, b *bots.Bot, prompts []string, continuePrompt string, stop StopCondition) ([]bots.BranchOutcome, error) {
	return ParDispatch(ctx, b, prompts, func(ctx context.Context, clone *bots.Bot, prompt string) (*conversation.Node, error) {
		return PromptWhile(ctx, clone, prompt, continuePrompt, stop)
	})
}

// ParDispatch is the generic parallel driver the other par_ variants are
// built on: one deep copy per prompt, fn runs on each copy concurrently,
// and every subtree the copy grew under the captured position is attached
// back to the original tree in prompt order. A failing branch reports its
// error in its outcome without disturbing the others.
func ParDispatch(ctx context.Context, b *bots.Bot, prompts []string, fn TurnFunc) ([]bots.BranchOutcome, error) {
	if len(prompts) == 0 {
		return nil, errors.New("no prompts to dispatch")
	}
	if fn == nil {
		return nil, errors.New("no turn function to dispatch")
	}

	anchorID := b.Tree.CurrentID
	outcomes := make([]bots.BranchOutcome, len(prompts))
	clones := make([]*bots.Bot, len(prompts))
	baseCounts := make([]int, len(prompts))

	for i, prompt := range prompts {
		outcomes[i].Prompt = prompt

		copied, err := b.Clone()
		if err != nil {
			outcomes[i].Err = errors.Wrap(err, "cloning bot")
			continue
		}
		if err := copied.Tree.SetCurrent(anchorID); err != nil {
			outcomes[i].Err = errors.Wrap(err, "positioning clone at anchor")
			continue
		}
		cloneAnchor, _ := copied.Tree.Get(anchorID)
		baseCounts[i] = len(cloneAnchor.Replies)
		clones[i] = copied
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range prompts {
		if clones[i] == nil {
			continue
		}
		i := i
		eg.Go(func() error {
			node, err := fn(egCtx, clones[i], outcomes[i].Prompt)
			if err != nil {
				outcomes[i].Err = err
				return nil
			}
			if node != nil {
				outcomes[i].Content = node.Content
			}
			return nil
		})
	}
	_ = eg.Wait()

	for i := range prompts {
		if clones[i] == nil {
			continue
		}
		cloneAnchor, ok := clones[i].Tree.Get(anchorID)
		if !ok {
			outcomes[i].Err = errors.Errorf("anchor vanished from branch %d", i)
			continue
		}
		for _, child := range cloneAnchor.Replies[baseCounts[i]:] {
			if err := b.Tree.AttachSubtree(anchorID, child); err != nil {
				outcomes[i].Err = err
				continue
			}
			if outcomes[i].Node == nil {
				outcomes[i].Node = child
			}
		}
	}

	return outcomes, nil
}

// Recombinator reduces the N responses and N final nodes of a branch into
// one synthesized response plus the node to continue the conversation
// from.
type Recombinator func(responses []string, nodes []*conversation.Node) (string, *conversation.Node, error)

// TreeOfThought branches over the prompts, then applies the recombinator
// to pick the synthesized result and the anchor to continue from. The
// bot's position is moved to the chosen node, so subsequent turns build on
// the selected line of thought.
func TreeOfThought(ctx context.Context, b *bots.Bot, prompts []string, recombine Recombinator) (string, *conversation.Node, error) {
	if recombine == nil {
		return "", nil, errors.New("tree_of_thought needs a recombinator")
	}

	nodes, err := Branch(ctx, b, prompts)
	if err != nil {
		return "", nil, err
	}

	responses := make([]string, len(nodes))
	for i, node := range nodes {
		responses[i] = node.Content
	}

	synthesized, chosen, err := recombine(responses, nodes)
	if err != nil {
		return "", nil, err
	}
	if chosen != nil {
		if err := b.Tree.SetCurrent(chosen.ID); err != nil {
			return "", nil, err
		}
	}
	return synthesized, chosen, nil
}
