package bots

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

// BranchSelfToolName is the well-known name under which self-branching is
// exposed to the model.
const BranchSelfToolName = "branch_self"

const branchSelfDescription = "Fork the current conversation into independent parallel " +
	"continuations, one per prompt. Each branch explores its prompt in isolation; " +
	"all outcomes, including failures, are reported back in one combined result."

type branchSelfArgs struct {
	Prompts []string `json:"prompts" jsonschema_description:"Follow-up prompts, one per branch to explore."`
}

// EnableSelfBranching registers the branch_self builtin on the bot. The
// tool lets the model itself fork the live conversation; results re-attach
// under the node that was current when the model issued the call.
func (b *Bot) EnableSelfBranching() error {
	schema, err := tools.ReflectSchema(branchSelfArgs{})
	if err != nil {
		return err
	}
	return b.Registry.RegisterBuiltin(BranchSelfToolName, branchSelfDescription, schema, branchSelfFunc(b))
}

// builtinFuncs maps builtin tool names to their per-bot constructors; the
// loader and Clone use it to re-bind builtins that serialize as bare names.
// Populated in init, a literal would form an initialization cycle through
// branchSelfFunc -> RunBranches -> Clone -> bindBuiltins.
var builtinFuncs = map[string]func(*Bot) tools.ToolFunc{}

func init() {
	builtinFuncs[BranchSelfToolName] = branchSelfFunc
}

// bindBuiltins re-attaches live callables to builtin registry entries.
// Unknown builtins are left unbound and reported by the caller.
func (b *Bot) bindBuiltins() error {
	for _, def := range b.Registry.List() {
		if !def.Builtin {
			continue
		}
		factory, ok := builtinFuncs[def.Name]
		if !ok {
			continue
		}
		def.Bind(factory(b))
	}
	return nil
}

func branchSelfFunc(b *Bot) tools.ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var parsed branchSelfArgs
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", errors.Wrap(err, "unmarshaling branch_self arguments")
		}
		if len(parsed.Prompts) == 0 {
			return "", errors.New("branch_self requires at least one prompt")
		}

		// Capture the anchor now, before deep copies and concurrent
		// execution move anything. Current is the assistant node that
		// requested the branch.
		anchorID := b.Tree.CurrentID

		outcomes, err := b.RunBranches(ctx, anchorID, parsed.Prompts)
		if err != nil {
			return "", err
		}

		var sb strings.Builder
		for i, outcome := range outcomes {
			fmt.Fprintf(&sb, "Branch %d (%s):\n", i+1, outcome.Prompt)
			switch {
			case outcome.Err != nil:
				fmt.Fprintf(&sb, "Error: %s\n", outcome.Err.Error())
			case outcome.Content != "":
				sb.WriteString(outcome.Content)
				sb.WriteString("\n")
			default:
				sb.WriteString("(no response)\n")
			}
			if i < len(outcomes)-1 {
				sb.WriteString("\n")
			}
		}
		return sb.String(), nil
	}
}
