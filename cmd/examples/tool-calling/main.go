// Tool calling example: register a JavaScript tool, let the model call it,
// then save the bot and load it back with the tool intact.
//
// Runs against OpenAI when OPENAI_API_KEY is set, otherwise scripts the
// assistant locally so the example works offline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/burattino/pkg/bots"
	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
	"github.com/go-go-golems/burattino/pkg/inference/engine/openai"
	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

const fahrenheitSource = `function to_fahrenheit(celsius) { return celsius * 9 / 5 + 32; }`

func buildEngine() engine.Engine {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		return openai.NewEngine(apiKey, engine.DefaultConfig())
	}

	log.Info().Msg("OPENAI_API_KEY not set, using a scripted engine")
	return engine.NewCallbackEngine(func(_ context.Context, messages []*conversation.Node, _ []*tools.ToolDefinition) (*engine.Response, error) {
		last := messages[len(messages)-1]
		if last.Role == conversation.RoleTool {
			return &engine.Response{Content: fmt.Sprintf("21C is %s degrees Fahrenheit.", last.Content)}, nil
		}
		return &engine.Response{
			Content: "Converting that for you.",
			ToolCalls: []conversation.ToolCall{
				{ID: "call-1", Name: "to_fahrenheit", Arguments: json.RawMessage(`{"celsius": 21}`)},
			},
		}, nil
	})
}

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	ctx := context.Background()

	b := bots.NewBot(
		bots.WithName("converter"),
		bots.WithSystemPrompt("You convert temperatures. Use the to_fahrenheit tool."),
		bots.WithEngine(buildEngine()),
	)
	if err := b.RegisterScriptTool("to_fahrenheit", "convert celsius to fahrenheit", fahrenheitSource); err != nil {
		log.Fatal().Err(err).Msg("registering tool")
	}

	node, err := b.Respond(ctx, "What is 21 degrees celsius in fahrenheit?")
	if err != nil {
		log.Fatal().Err(err).Msg("turn failed")
	}
	fmt.Println("assistant:", node.Content)

	// the saved document embeds the tool source, so the loaded bot can
	// still execute it
	path := filepath.Join(os.TempDir(), "converter.json")
	if err := b.SaveToFile(path); err != nil {
		log.Fatal().Err(err).Msg("saving bot")
	}
	loaded, toolErrs, err := bots.LoadFromFile(path, bots.WithEngine(buildEngine()))
	if err != nil {
		log.Fatal().Err(err).Msg("loading bot")
	}
	for _, toolErr := range toolErrs {
		log.Warn().Err(toolErr).Msg("tool did not survive the round trip")
	}

	out, err := loaded.Registry.Execute(ctx, "to_fahrenheit", json.RawMessage(`{"celsius": 100}`))
	if err != nil {
		log.Fatal().Err(err).Msg("executing reloaded tool")
	}
	fmt.Println("reloaded tool says 100C =", out, "F")
}
