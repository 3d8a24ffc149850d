package dispatch

import (
	"fmt"
	"strings"

	"github.com/dablchess/operator/internal/services/operator/domain"
	"github.com/dablchess/operator/internal/services/operator/ledger"
)

// Registry maps template names to reactions. It is fixed at construction.
type Registry struct {
	reactions map[string]domain.Reaction
	templates []string
}

// NewRegistry builds a registry from routes. Templates are compared without
// their package id, and each may appear at most once.
func NewRegistry(routes []domain.Route) (*Registry, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("at least one route is required")
	}
	registry := &Registry{reactions: make(map[string]domain.Reaction, len(routes))}
	for _, route := range routes {
		name := ledger.TemplateName(route.TemplateID)
		if name == "" {
			return nil, fmt.Errorf("route template is required")
		}
		if strings.Count(name, ":") != 1 {
			return nil, fmt.Errorf("template %q must be Module:Entity", route.TemplateID)
		}
		if route.Reaction == nil {
			return nil, fmt.Errorf("template %s has no reaction", name)
		}
		if _, exists := registry.reactions[name]; exists {
			return nil, fmt.Errorf("template %s registered twice", name)
		}
		registry.reactions[name] = route.Reaction
		registry.templates = append(registry.templates, name)
	}
	return registry, nil
}

// Templates returns the registered template names in registration order.
func (r *Registry) Templates() []string {
	return append([]string(nil), r.templates...)
}

// Lookup returns the reaction for templateID.
func (r *Registry) Lookup(templateID string) (domain.Reaction, bool) {
	reaction, ok := r.reactions[ledger.TemplateName(templateID)]
	return reaction, ok
}
