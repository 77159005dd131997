package scripting

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Tool is a callable reconstructed from captured JavaScript source. Each
// Tool owns its own goja VM, so compiling the same source twice yields two
// fully isolated namespaces - that is what lets parallel bot copies run
// their tools without sharing any mutable state.
type Tool struct {
	name   string
	source string
	params []string

	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

// Compile evaluates the captured source in a fresh VM and binds the
// function named name. The source is expected to define that function at
// the top level, e.g. `function add(a, b) { return a + b; }`.
func Compile(name, source string) (*Tool, error) {
	if name == "" {
		return nil, errors.New("tool name is empty")
	}
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("tool source is empty")
	}

	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, errors.Wrapf(err, "evaluating source for tool %s", name)
	}

	v := vm.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, errors.Errorf("source does not define %s", name)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.Errorf("%s is not a function", name)
	}

	params := parseParams(v.String())
	log.Debug().Str("tool", name).Strs("params", params).Msg("compiled scripted tool")

	return &Tool{
		name:   name,
		source: source,
		params: params,
		vm:     vm,
		fn:     fn,
	}, nil
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Source() string {
	return t.source
}

// Params returns the declared parameter names, in order.
func (t *Tool) Params() []string {
	return append([]string{}, t.params...)
}

// Call maps the named arguments onto the function's positional parameters,
// invokes it and renders the result as text. The VM is interrupted when ctx
// is cancelled. A single Tool serializes its calls; isolation across
// concurrent bots comes from compiling per copy, not from this lock.
func (t *Tool) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	values := make([]goja.Value, 0, len(t.params))
	for _, param := range t.params {
		arg, ok := args[param]
		if !ok {
			values = append(values, goja.Undefined())
			continue
		}
		values = append(values, t.vm.ToValue(arg))
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			t.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	result, err := t.fn(goja.Undefined(), values...)

	// join the watcher before clearing, so a late Interrupt cannot land
	// after the clear and poison the next call on this VM
	close(done)
	<-stopped
	t.vm.ClearInterrupt()

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrapf(err, "calling tool %s", t.name)
	}

	return Stringify(result)
}

// Stringify renders a goja value the way the model should see it: bare
// strings and numbers stay plain, everything structured becomes JSON.
func Stringify(v goja.Value) (string, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}

	exported := v.Export()
	switch e := exported.(type) {
	case string:
		return e, nil
	case bool:
		return strconv.FormatBool(e), nil
	case int64:
		return strconv.FormatInt(e, 10), nil
	case float64:
		return strconv.FormatFloat(e, 'f', -1, 64), nil
	default:
		data, err := json.Marshal(exported)
		if err != nil {
			return fmt.Sprintf("%v", exported), nil
		}
		return string(data), nil
	}
}

// parseParams extracts parameter names from a function's string rendering,
// which covers both `function f(a, b)` and `(a, b) =>` forms.
func parseParams(rendered string) []string {
	open := strings.Index(rendered, "(")
	if open < 0 {
		return nil
	}
	depth := 0
	closeIdx := -1
	for i := open; i < len(rendered); i++ {
		switch rendered[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeIdx = i
			}
		}
		if closeIdx >= 0 {
			break
		}
	}
	if closeIdx < 0 {
		return nil
	}

	inner := rendered[open+1 : closeIdx]
	if strings.TrimSpace(inner) == "" {
		return nil
	}

	var params []string
	for _, part := range strings.Split(inner, ",") {
		name := strings.TrimSpace(part)
		// strip default values and rest markers
		if eq := strings.Index(name, "="); eq >= 0 {
			name = strings.TrimSpace(name[:eq])
		}
		name = strings.TrimPrefix(name, "...")
		if name != "" {
			params = append(params, name)
		}
	}
	return params
}
