package bots

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/inference/engine"
	"github.com/go-go-golems/burattino/pkg/inference/tools"
)

// ToolDocument is the persisted form of one registry entry. Script tools
// embed their captured source - never a file path - so a saved bot loads
// on a machine that has never seen the original definition. Builtins
// persist as bare names and are re-bound by the loader.
type ToolDocument struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Source      string          `json:"source,omitempty"`
	Builtin     bool            `json:"builtin,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// BotDocument is the restorable form of an entire bot: parameters, tool
// registry and the full conversation tree (every branch, not just the
// current path), as a nested structure of primitive values.
type BotDocument struct {
	Name             string                    `json:"name"`
	ModelParameters  engine.Config             `json:"model_parameters"`
	SystemMessage    string                    `json:"system_message,omitempty"`
	ToolRegistry     []ToolDocument            `json:"tool_registry,omitempty"`
	ConversationTree conversation.NodeDocument `json:"conversation_tree"`
}

// Document converts the bot to its persisted form.
func (b *Bot) Document() BotDocument {
	doc := BotDocument{
		Name:             b.Name,
		ModelParameters:  b.Config,
		SystemMessage:    b.SystemPrompt,
		ConversationTree: b.Tree.ToDocument(),
	}
	for _, def := range b.Registry.List() {
		doc.ToolRegistry = append(doc.ToolRegistry, ToolDocument{
			Name:        def.Name,
			Description: def.Description,
			Source:      def.Source,
			Builtin:     def.Builtin,
			Schema:      append(json.RawMessage{}, def.Parameters...),
		})
	}
	return doc
}

// Load reconstructs a bot from its document. Tool reconstruction is a
// partial-failure affair: a tool whose source no longer compiles (or a
// builtin this build does not know) is reported in toolErrs and skipped,
// while the conversation history and the remaining tools come back intact.
//
// The engine is not part of the document; pass it via WithEngine.
func Load(doc BotDocument, options ...Option) (*Bot, []error, error) {
	tree, err := conversation.TreeFromDocument(doc.ConversationTree)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reconstructing conversation tree")
	}

	b := NewBot(options...)
	b.Name = doc.Name
	b.SystemPrompt = doc.SystemMessage
	b.Config = doc.ModelParameters
	b.Tree = tree

	var toolErrs []error
	for _, td := range doc.ToolRegistry {
		if td.Builtin {
			if _, known := builtinFuncs[td.Name]; !known {
				toolErrs = append(toolErrs, &tools.ReconstructionError{
					Tool: td.Name,
					Err:  errors.New("unknown builtin"),
				})
				continue
			}
			if err := b.Registry.RegisterBuiltin(td.Name, td.Description, td.Schema, nil); err != nil {
				toolErrs = append(toolErrs, err)
			}
			continue
		}

		if err := b.Registry.ReconstructScript(td.Name, td.Description, td.Source, td.Schema); err != nil {
			log.Warn().Err(err).Str("tool", td.Name).Msg("tool failed to reconstruct, skipping")
			toolErrs = append(toolErrs, err)
		}
	}

	if err := b.bindBuiltins(); err != nil {
		return nil, toolErrs, err
	}

	return b, toolErrs, nil
}

// MarshalJSON-style helpers for the two supported encodings.

func (b *Bot) MarshalDocument() ([]byte, error) {
	return json.MarshalIndent(b.Document(), "", "  ")
}

func (b *Bot) MarshalDocumentYAML() ([]byte, error) {
	data, err := json.Marshal(b.Document())
	if err != nil {
		return nil, err
	}
	// round-trip through interface{} so embedded raw JSON schemas come out
	// as structured YAML instead of base64 blobs
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return yaml.Marshal(v)
}

func UnmarshalDocument(data []byte) (BotDocument, error) {
	var doc BotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return BotDocument{}, errors.Wrap(err, "unmarshaling bot document")
	}
	return doc, nil
}

func UnmarshalDocumentYAML(data []byte) (BotDocument, error) {
	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return BotDocument{}, errors.Wrap(err, "unmarshaling yaml bot document")
	}
	jsonData, err := json.Marshal(v)
	if err != nil {
		return BotDocument{}, errors.Wrap(err, "converting yaml document to json")
	}
	return UnmarshalDocument(jsonData)
}

// SaveToFile persists the bot; the encoding follows the file extension
// (.yaml/.yml for YAML, JSON otherwise).
func (b *Bot) SaveToFile(path string) error {
	var data []byte
	var err error
	if isYAMLPath(path) {
		data, err = b.MarshalDocumentYAML()
	} else {
		data, err = b.MarshalDocument()
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFromFile reads and reconstructs a saved bot. See Load for the
// partial-failure semantics of toolErrs.
func LoadFromFile(path string, options ...Option) (*Bot, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var doc BotDocument
	if isYAMLPath(path) {
		doc, err = UnmarshalDocumentYAML(data)
	} else {
		doc, err = UnmarshalDocument(data)
	}
	if err != nil {
		return nil, nil, err
	}
	return Load(doc, options...)
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
