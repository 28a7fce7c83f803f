package toolchat

import (
	"log/slog"
	"slices"
	"sync"
)

// Registry maps (agent, tool name) to a Handler and stores the tool descriptors
// advertised per agent. It is built once at startup; during a conversation it
// is only read, so concurrent conversations may share one Registry freely.
type Registry struct {
	mu          sync.RWMutex
	handlers    map[string]Handler // wrapped with middlewares, used for dispatch
	rawHandlers map[string]Handler // unwrapped, used by Use() to re-apply middlewares from scratch
	tools       map[string][]ToolDescriptor
	middlewares []HandlerMiddleware
	logger      *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		handlers:    make(map[string]Handler),
		rawHandlers: make(map[string]Handler),
		tools:       make(map[string][]ToolDescriptor),
		logger:      o.logger,
	}
}

func handlerKey(agent, tool string) string {
	return agent + ":" + tool
}

// RegisterHandler adds a handler for (agent, tool). Stored middlewares (see Use)
// are applied before registration. Registering the same pair again overwrites;
// last registration wins.
func (r *Registry) RegisterHandler(agent, tool string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := handlerKey(agent, tool)
	r.rawHandlers[key] = h
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}
	r.handlers[key] = h
	r.logger.Debug("registered tool handler", "agent", agent, "tool", tool)
}

// Handler returns the handler for (agent, tool), or (nil, false) if none is registered.
func (r *Registry) Handler(agent, tool string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[handlerKey(agent, tool)]
	return h, ok
}

// HasHandler reports whether a handler is registered for (agent, tool).
func (r *Registry) HasHandler(agent, tool string) bool {
	_, ok := r.Handler(agent, tool)
	return ok
}

// HandlerKeys returns all registered "agent:tool" keys, sorted for deterministic output.
func (r *Registry) HandlerKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetTools stores the descriptor list advertised for an agent, replacing any
// previous list. Descriptors are not validated here; see LoadSchemas.
func (r *Registry) SetTools(agent string, descriptors []ToolDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[agent] = slices.Clone(descriptors)
}

// ToolsForAgent returns the descriptors advertised for an agent, or nil if none
// were loaded. The returned slice is a copy.
func (r *Registry) ToolsForAgent(agent string) []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.tools[agent])
}

// Agents returns all agent names with loaded descriptors, sorted.
func (r *Registry) Agents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
