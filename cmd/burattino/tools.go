package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/burattino/pkg/bots"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
)

func newToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and edit the tool registry of a saved bot",
	}
	cmd.AddCommand(newToolsListCommand())
	cmd.AddCommand(newToolsAddCommand())
	cmd.AddCommand(newToolsRunCommand())
	return cmd
}

func loadBotFile(path string) (*bots.Bot, error) {
	b, toolErrs, err := bots.LoadFromFile(path, bots.WithEngine(engine.NewEchoEngine()))
	if err != nil {
		return nil, err
	}
	for _, toolErr := range toolErrs {
		fmt.Fprintf(os.Stderr, "warning: %s\n", toolErr)
	}
	return b, nil
}

func newToolsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <bot-file>",
		Short: "List the tools of a saved bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBotFile(args[0])
			if err != nil {
				return err
			}
			for _, def := range b.Registry.List() {
				kind := "script"
				if def.Builtin {
					kind = "builtin"
				}
				fmt.Printf("%-20s %-8s %s\n", def.Name, kind, def.Description)
				if len(def.Parameters) > 0 {
					fmt.Printf("  schema: %s\n", string(def.Parameters))
				}
			}
			return nil
		},
	}
}

func newToolsAddCommand() *cobra.Command {
	var name, description, sourceFile string

	cmd := &cobra.Command{
		Use:   "add <bot-file>",
		Short: "Register a JavaScript tool on a saved bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(sourceFile)
			if err != nil {
				return errors.Wrap(err, "reading tool source")
			}

			b, err := loadBotFile(args[0])
			if err != nil {
				return err
			}
			if err := b.RegisterScriptTool(name, description, string(source)); err != nil {
				return err
			}
			if err := b.SaveToFile(args[0]); err != nil {
				return err
			}
			fmt.Printf("registered %s on %s\n", name, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "tool name, must match the function name in the source")
	cmd.Flags().StringVar(&description, "description", "", "what the model is told the tool does")
	cmd.Flags().StringVar(&sourceFile, "source-file", "", "file containing the JavaScript function")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("source-file")

	return cmd
}

func newToolsRunCommand() *cobra.Command {
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "run <bot-file> <tool-name>",
		Short: "Invoke one of a saved bot's tools directly",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBotFile(args[0])
			if err != nil {
				return err
			}
			out, err := b.Registry.Execute(cmd.Context(), args[1], json.RawMessage(argsJSON))
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "{}", "tool arguments as a JSON object")
	return cmd
}
