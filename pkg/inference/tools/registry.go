package tools

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/go-go-golems/burattino/pkg/scripting"
)

// Registry maps tool names to definitions. It is read-many/write-rarely:
// registration happens at bot construction, turn processing only reads.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*ToolDefinition
	order    []string
	truncate TruncateConfig
}

type RegistryOption func(*Registry)

func WithTruncateConfig(cfg TruncateConfig) RegistryOption {
	return func(r *Registry) {
		r.truncate = cfg
	}
}

func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		tools:    make(map[string]*ToolDefinition),
		truncate: DefaultTruncateConfig(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *Registry) TruncateConfig() TruncateConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.truncate
}

// RegisterScript captures the given JavaScript source as a tool. The
// source is compiled immediately, so a broken definition fails here and
// not on first use. The parameter schema is derived from the function's
// declared signature; the description is surfaced verbatim to the model.
func (r *Registry) RegisterScript(name, description, source string) error {
	tool, err := scripting.Compile(name, source)
	if err != nil {
		return &RegistrationError{Tool: name, Message: err.Error()}
	}

	def := &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  SchemaFromParams(tool.Params()),
		Source:      source,
		fn:          scriptFunc(tool),
	}
	return r.add(def)
}

// ReconstructScript re-registers a tool from its persisted document during
// load. Failures are reported as ReconstructionError so the caller can
// treat them as partial (the rest of the bot still loads).
func (r *Registry) ReconstructScript(name, description, source string, schema json.RawMessage) error {
	tool, err := scripting.Compile(name, source)
	if err != nil {
		return &ReconstructionError{Tool: name, Err: err}
	}

	if len(schema) == 0 {
		schema = SchemaFromParams(tool.Params())
	}
	def := &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Source:      source,
		fn:          scriptFunc(tool),
	}
	return r.add(def)
}

// RegisterFunc registers a native Go function alongside the script source
// that reproduces it. Native callables have no retrievable source of their
// own, so omitting the source would break save/load portability - it is a
// registration failure, not a warning.
func (r *Registry) RegisterFunc(name, description, source string, fn interface{}) error {
	if strings.TrimSpace(source) == "" {
		return &RegistrationError{
			Tool:    name,
			Message: "native functions have no retrievable source; provide the script equivalent or register a builtin",
		}
	}
	// the captured source must at least compile, or the saved bot is broken
	if _, err := scripting.Compile(name, source); err != nil {
		return &RegistrationError{Tool: name, Message: err.Error()}
	}

	wrapped, schema, err := funcFromNative(fn)
	if err != nil {
		return &RegistrationError{Tool: name, Message: err.Error()}
	}

	def := &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Source:      source,
		native:      true,
		fn:          wrapped,
	}
	return r.add(def)
}

// RegisterBuiltin registers a host-provided tool under a well-known name.
// Builtins persist as just their name; the loader re-binds them from its
// builtin table instead of compiling source.
func (r *Registry) RegisterBuiltin(name, description string, schema json.RawMessage, fn ToolFunc) error {
	def := &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Builtin:     true,
		fn:          fn,
	}
	return r.add(def)
}

func (r *Registry) add(def *ToolDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" {
		return &RegistrationError{Tool: def.Name, Message: "tool name cannot be empty"}
	}
	if _, exists := r.tools[def.Name]; exists {
		return &RegistrationError{Tool: def.Name, Message: "tool already registered"}
	}

	r.tools[def.Name] = def
	r.order = append(r.order, def.Name)
	log.Debug().Str("tool", def.Name).Bool("builtin", def.Builtin).Msg("registered tool")
	return nil
}

// Unregister removes a tool from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return errors.Errorf("tool not found: %s", name)
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (*ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// List returns all definitions in registration order.
func (r *Registry) List() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// Execute validates the arguments against the tool's schema, runs the
// callable and truncates oversized output. All failure modes come back as
// ExecutionError; the caller records them as error-flagged result nodes.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	def, ok := r.Get(name)
	if !ok {
		return "", &ExecutionError{Tool: name, Err: errors.New("tool not found")}
	}
	if def.fn == nil {
		return "", &ExecutionError{Tool: name, Err: errors.New("tool has no bound callable")}
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := r.validateArgs(def, args); err != nil {
		return "", &ExecutionError{Tool: name, Err: err}
	}

	out, err := def.fn(ctx, args)
	if err != nil {
		return "", &ExecutionError{Tool: name, Err: err}
	}
	return r.TruncateConfig().Apply(out), nil
}

func (r *Registry) validateArgs(def *ToolDefinition, args json.RawMessage) error {
	if len(def.Parameters) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(def.Parameters),
		gojsonschema.NewBytesLoader(args),
	)
	if err != nil {
		return errors.Wrap(err, "validating arguments")
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return errors.Errorf("arguments rejected by schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Clone produces an isolated copy of the registry. Script-backed tools are
// recompiled so each copy owns a private VM - parallel branches must not
// share interpreter state. Builtins are copied unbound; the owning bot
// re-binds them to itself.
func (r *Registry) Clone() (*Registry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cloned := &Registry{
		tools:    make(map[string]*ToolDefinition, len(r.tools)),
		order:    append([]string{}, r.order...),
		truncate: r.truncate,
	}

	for name, def := range r.tools {
		copied := &ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  append(json.RawMessage{}, def.Parameters...),
			Source:      def.Source,
			Builtin:     def.Builtin,
		}
		switch {
		case def.Builtin:
			// left unbound on purpose
		case def.native:
			copied.native = true
			copied.fn = def.fn
		case def.Source != "":
			tool, err := scripting.Compile(name, def.Source)
			if err != nil {
				return nil, errors.Wrapf(err, "recompiling tool %s", name)
			}
			copied.fn = scriptFunc(tool)
		default:
			copied.fn = def.fn
		}
		cloned.tools[name] = copied
	}

	return cloned, nil
}

func scriptFunc(tool *scripting.Tool) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		named := map[string]interface{}{}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &named); err != nil {
				return "", errors.Wrap(err, "unmarshaling arguments")
			}
		}
		return tool.Call(ctx, named)
	}
}
