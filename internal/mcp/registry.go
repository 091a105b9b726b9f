package mcp

import "context"

// ToolHandler executes one tool invocation. Domain failures are
// returned as errors; the invoker formats them.
type ToolHandler func(ctx context.Context, args Args) (*ToolResult, error)

// Tool is one built-in catalog entry.
type Tool struct {
	Name        string
	Description string
	Actions     []string
	IDFields    []string
	Handler     ToolHandler
	// LLMBound tools get the longer invocation deadline.
	LLMBound bool
}

// Descriptor renders the tools/list entry. Every built-in tool shares
// the action-dispatch input shape.
func (t *Tool) Descriptor() ToolDescriptor {
	props := map[string]interface{}{
		"action": map[string]interface{}{
			"type": "string",
			"enum": t.Actions,
		},
		"data": map[string]interface{}{
			"type":        "object",
			"description": "Action-specific payload",
		},
	}
	for _, f := range t.IDFields {
		props[f] = map[string]interface{}{"type": "number"}
	}
	return ToolDescriptor{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": props,
			"required":   []string{"action"},
		},
	}
}

// Registry is the immutable ordered tool catalog. Nothing registers
// after startup.
type Registry struct {
	order []string
	tools map[string]*Tool
}

// NewRegistry builds a registry preserving insertion order.
func NewRegistry(tools ...*Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.tools[t.Name]; dup {
			continue
		}
		r.order = append(r.order, t.Name)
		r.tools[t.Name] = t
	}
	return r
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in catalog order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// List returns descriptors in catalog order.
func (r *Registry) List() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor())
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }
