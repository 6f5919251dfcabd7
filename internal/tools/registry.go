// Package tools is the schema-validated, audited RPC surface (C5): tool
// definitions are registered once, dispatch resolves by name, input is
// validated against its JSON Schema before a handler ever runs, and every
// call — success or failure — is recorded as a ToolCallAudit the Dialog
// Runtime folds into its trace. Grounded on the teacher's agent.Tool
// interface (internal/agent/provider_types.go) generalized from one tool
// per struct to a name-keyed registry, the way internal/tools/gateway
// dispatches gateway actions by name.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// Handler executes one tool call against typed JSON input, returning a
// JSON-encodable output. It never panics; failures are returned as errors
// and classified by the Executor.
type Handler func(ctx *domain.ToolContext, input json.RawMessage) (any, error)

type registeredTool struct {
	def     domain.ToolDefinition
	handler Handler
}

// Registry is the in-memory mapping of tool name to definition and handler.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds a tool, overwriting any prior registration under the same
// name (the last registration wins, matching the teacher's plugin loader
// semantics for re-registration during hot reload).
func (r *Registry) Register(def domain.ToolDefinition, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = registeredTool{def: def, handler: handler}
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (domain.ToolDefinition, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return domain.ToolDefinition{}, nil, false
	}
	return t.def, t.handler, true
}

// List returns all tool definitions sorted by name, the shape served by the
// external `/tools/list` API.
func (r *Registry) List() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]domain.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ErrToolNotFound is returned by the Executor when no tool is registered
// under the requested name.
var ErrToolNotFound = fmt.Errorf("tools: %s", domain.ErrTypeToolNotFound)
