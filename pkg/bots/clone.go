package bots

import (
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"

	"github.com/go-go-golems/burattino/pkg/conversation"
)

// Clone produces a fully isolated copy of the bot: deep-copied tree, a
// registry with freshly compiled script tools and re-bound builtins. The
// engine is shared - engines keep no per-conversation state - as is the
// event sink, which is safe for concurrent publishers.
func (b *Bot) Clone() (*Bot, error) {
	// Slowly resolves shared pointers, so the node map and the reply
	// slices of the copy point at the same copied nodes.
	tree, ok := clone.Slowly(b.Tree).(*conversation.Tree)
	if !ok {
		return nil, errors.New("tree deep copy produced an unexpected type")
	}

	registry, err := b.Registry.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "cloning tool registry")
	}

	copied := &Bot{
		Name:              b.Name,
		SystemPrompt:      b.SystemPrompt,
		Config:            b.Config,
		Tree:              tree,
		Registry:          registry,
		engine:            b.engine,
		sink:              b.sink,
		maxToolIterations: b.maxToolIterations,
	}

	if err := copied.bindBuiltins(); err != nil {
		return nil, err
	}
	return copied, nil
}
