// Package backend implements the intent-resolution and dispatch core: the
// module registry, the capability/context prompt builder, and the per-turn
// dispatcher that turns user text into executed actions or a conversational
// reply.
package backend

import (
	"log/slog"

	"github.com/mcravo/ava/internal/automation"
)

// Descriptor binds an action name to its owning module and descriptor.
type Descriptor struct {
	Name   string
	Module automation.Module
	Action automation.Action
}

// ModuleFactory instantiates one automation module. Factories are invoked at
// startup; a failing factory only removes that module from the registry.
type ModuleFactory func() (automation.Module, error)

// Registry holds every loaded module and the merged, flat action-name map.
// It is built once at startup and immutable afterwards.
type Registry struct {
	log     *slog.Logger
	modules []automation.Module
	actions map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:     log,
		actions: make(map[string]Descriptor),
	}
}

// LoadRegistry instantiates each module factory and registers the survivors.
// A factory error is logged and skipped; an empty registry is valid and
// leaves the assistant in chat-only mode.
func LoadRegistry(log *slog.Logger, factories []ModuleFactory) *Registry {
	r := NewRegistry(log)
	for _, factory := range factories {
		m, err := factory()
		if err != nil {
			log.Error("failed to load automation module", "error", err)
			continue
		}
		r.Register(m)
		log.Info("loaded automation module", "module", m.Description())
	}
	if len(r.modules) == 0 {
		log.Warn("no automation modules loaded; only chat functionality will be available")
	}
	return r
}

// Register merges a module's actions into the flat action map. The name
// space is global: on a duplicate action name the first registrant wins and
// a warning is logged.
func (r *Registry) Register(m automation.Module) {
	r.modules = append(r.modules, m)
	for name, action := range m.Actions() {
		if _, exists := r.actions[name]; exists {
			r.log.Warn("duplicate action name; first module takes precedence", "action", name)
			continue
		}
		r.actions[name] = Descriptor{Name: name, Module: m, Action: action}
	}
}

// Lookup resolves an action name to its descriptor.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.actions[name]
	return d, ok
}

// ActionCount returns the number of distinct registered action names.
func (r *Registry) ActionCount() int {
	return len(r.actions)
}

// Modules returns the loaded modules in registration order.
func (r *Registry) Modules() []automation.Module {
	return r.modules
}

// Descriptions returns each loaded module's capability description, in
// registration order.
func (r *Registry) Descriptions() []string {
	descs := make([]string, 0, len(r.modules))
	for _, m := range r.modules {
		descs = append(descs, m.Description())
	}
	return descs
}
