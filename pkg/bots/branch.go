package bots

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/events"
)

// BranchOutcome is one branch's result after merging: the prompt that
// drove it, the merged subtree's first node in the original tree, the leaf
// content, and any hard failure that prevented the branch from running.
type BranchOutcome struct {
	Prompt  string
	Node    *conversation.Node
	Content string
	Err     error
}

// RunBranches explores every prompt as an independent continuation of the
// node anchorID. Each branch runs on a full deep copy of the bot, in
// parallel; afterwards the new subtrees are re-attached as siblings under
// the anchor, in prompt order.
//
// The anchor is captured by the caller before any copying or concurrent
// work starts. That is the whole point: re-attachment must target the node
// that was current when branching was requested, not whatever the current
// position drifts to while branches execute.
//
// A failing branch reports its error in its outcome (and, when the failure
// happened mid-conversation, as error content in its leaf) without
// aborting the other branches.
func (b *Bot) RunBranches(ctx context.Context, anchorID conversation.NodeID, prompts []string) ([]BranchOutcome, error) {
	if len(prompts) == 0 {
		return nil, errors.New("no prompts to branch on")
	}
	if _, ok := b.Tree.Get(anchorID); !ok {
		return nil, errors.Errorf("anchor node %s not in tree", anchorID)
	}

	b.publish(events.Event{Type: events.EventTypeBranchStarted, NodeID: anchorID, BranchCount: len(prompts)})

	outcomes := make([]BranchOutcome, len(prompts))
	clones := make([]*Bot, len(prompts))
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
			node, err := clones[i].Respond(egCtx, outcomes[i].Prompt)
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

	// Merge serially back into the original tree. New nodes carry fresh
	// ids, so attaching cannot collide with existing entries.
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

	log.Debug().
		Str("bot", b.Name).
		Int("branches", len(prompts)).
		Str("anchor", anchorID.String()).
		Msg("merged parallel branches")
	b.publish(events.Event{Type: events.EventTypeBranchMerged, NodeID: anchorID, BranchCount: len(prompts)})

	return outcomes, nil
}
