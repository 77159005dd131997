package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/burattino/pkg/bots"
	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/events"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
	"github.com/go-go-golems/burattino/pkg/inference/engine/openai"
)

type chatSettings struct {
	botFile      string
	savePath     string
	name         string
	systemPrompt string
	model        string
	echo         bool
	branchTool   bool
	verbose      bool
}

func newChatCommand() *cobra.Command {
	settings := &chatSettings{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively with a bot",
		Long: `Start or resume an interactive conversation. Slash commands navigate the
tree: /up, /down, /left, /right, /root, /tree, /save <path>, /quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), settings)
		},
	}

	cmd.Flags().StringVarP(&settings.botFile, "bot-file", "f", "", "saved bot to resume (.json or .yaml)")
	cmd.Flags().StringVar(&settings.savePath, "save", "", "save the bot to this path on exit")
	cmd.Flags().StringVar(&settings.name, "name", "burattino", "bot name")
	cmd.Flags().StringVar(&settings.systemPrompt, "system", "", "system prompt")
	cmd.Flags().StringVar(&settings.model, "model", "", "model identifier")
	cmd.Flags().BoolVar(&settings.echo, "echo", false, "use the offline echo engine instead of a provider")
	cmd.Flags().BoolVar(&settings.branchTool, "branch-tool", true, "expose branch_self to the model")
	cmd.Flags().BoolVarP(&settings.verbose, "verbose", "v", false, "print tool and branch events")

	cmd.Flags().String("openai-api-key", "", "OpenAI API key")
	_ = viper.BindPFlag("openai-api-key", cmd.Flags().Lookup("openai-api-key"))
	_ = viper.BindEnv("openai-api-key", "OPENAI_API_KEY")

	return cmd
}

func buildEngine(settings *chatSettings, cfg engine.Config) (engine.Engine, error) {
	if settings.echo {
		return engine.NewEchoEngine(), nil
	}
	apiKey := viper.GetString("openai-api-key")
	if apiKey == "" {
		return nil, errors.New("no API key configured; set --openai-api-key, OPENAI_API_KEY, or pass --echo")
	}
	return openai.NewEngine(apiKey, cfg), nil
}

func loadOrCreateBot(settings *chatSettings, sink *events.PublisherManager) (*bots.Bot, error) {
	if settings.botFile == "" {
		return bots.NewBot(
			bots.WithName(settings.name),
			bots.WithSystemPrompt(settings.systemPrompt),
			bots.WithSink(sink),
		), nil
	}

	b, toolErrs, err := bots.LoadFromFile(settings.botFile, bots.WithSink(sink))
	if err != nil {
		return nil, errors.Wrapf(err, "loading bot from %s", settings.botFile)
	}
	for _, toolErr := range toolErrs {
		log.Warn().Err(toolErr).Msg("tool unavailable after load")
	}
	return b, nil
}

func runChat(ctx context.Context, settings *chatSettings) error {
	sink := events.NewPublisherManager()
	if settings.verbose {
		attachEventPrinter(ctx, sink)
	}

	b, err := loadOrCreateBot(settings, sink)
	if err != nil {
		return err
	}
	if settings.model != "" {
		b.Config.Engine = settings.model
	}

	// the engine is never persisted; build it from the (possibly loaded)
	// model parameters and attach it afterwards
	eng, err := buildEngine(settings, b.Config)
	if err != nil {
		return err
	}
	b.SetEngine(eng)

	if settings.branchTool && !b.Registry.Has(bots.BranchSelfToolName) {
		if err := b.EnableSelfBranching(); err != nil {
			return err
		}
	}

	fmt.Printf("chatting with %s (%s), /quit to exit\n", b.Name, b.Config.Engine)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleSlashCommand(b, line)
			if err != nil {
				fmt.Printf("error: %s\n", err)
			}
			if done {
				break
			}
			continue
		}

		node, err := b.Respond(ctx, line)
		if err != nil {
			return err
		}
		fmt.Println(node.Content)
	}

	if settings.savePath != "" {
		if err := b.SaveToFile(settings.savePath); err != nil {
			return errors.Wrap(err, "saving bot")
		}
		fmt.Printf("saved to %s\n", settings.savePath)
	}
	return nil
}

func handleSlashCommand(b *bots.Bot, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/up":
		return false, printMove(b.MoveUp())
	case "/down":
		return false, printMove(b.MoveDown())
	case "/left":
		return false, printMove(b.MoveLeft())
	case "/right":
		return false, printMove(b.MoveRight())
	case "/root":
		return false, printMove(b.MoveToRoot())
	case "/tree":
		printTree(os.Stdout, b.Tree)
		return false, nil
	case "/save":
		if len(fields) < 2 {
			return false, errors.New("usage: /save <path>")
		}
		if err := b.SaveToFile(fields[1]); err != nil {
			return false, err
		}
		fmt.Printf("saved to %s\n", fields[1])
		return false, nil
	default:
		return false, errors.Errorf("unknown command %s", fields[0])
	}
}

func printMove(n *conversation.Node, err error) error {
	if err != nil {
		return err
	}
	content := n.Content
	if content == "" {
		content = "(root)"
	}
	fmt.Printf("[%s] %s\n", n.Role, content)
	return nil
}

// attachEventPrinter wires an in-process pubsub channel to the bot's sink
// and prints tool and branch events as they happen.
func attachEventPrinter(ctx context.Context, sink *events.PublisherManager) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	messages, err := pubsub.Subscribe(ctx, "chat")
	if err != nil {
		log.Warn().Err(err).Msg("could not subscribe event printer")
		return
	}
	sink.SubscribePublisher("chat", pubsub)

	go func() {
		for msg := range messages {
			printEvent(msg)
			msg.Ack()
		}
	}()
}

func printEvent(msg *message.Message) {
	ev, err := events.FromMessage(msg)
	if err != nil {
		return
	}
	switch ev.Type {
	case events.EventTypeToolCall:
		fmt.Printf("  [tool] calling %s\n", ev.Tool)
	case events.EventTypeToolResult:
		fmt.Printf("  [tool] %s returned: %s\n", ev.Tool, ev.Text)
	case events.EventTypeBranchStarted:
		fmt.Printf("  [branch] exploring %d branches\n", ev.BranchCount)
	case events.EventTypeBranchMerged:
		fmt.Printf("  [branch] merged %d branches\n", ev.BranchCount)
	case events.EventTypeError:
		fmt.Printf("  [error] %s\n", ev.Error)
	}
}
