package tools

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
)

// Registry maps tool names to tools, the names are unique.
type Registry struct {
	lock  sync.RWMutex
	tools map[string]ITool
	order []string
}

// NewRegistry returns a registry with the tools,
// or an error if the names are not unique.
func NewRegistry(list ...ITool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]ITool, len(list)),
	}
	for _, t := range list {
		if err := r.Add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers the tool
func (r *Registry) Add(t ITool) error {
	if t == nil || t.Name() == "" {
		return errors.New("tool name is empty")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return errors.Newf("tool %s already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool by name
func (r *Registry) Get(name string) (ITool, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.order)
}

// Names returns tool names in registration order
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return slices.Clone(r.order)
}

// Definitions returns function definitions for the generation call,
// in registration order.
func (r *Registry) Definitions() []llms.Tool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	defs := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
