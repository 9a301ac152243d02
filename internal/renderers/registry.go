package renderers

import (
	"context"

	"github.com/dejo1307/docdrift/internal/facts"
)

// Renderer produces output artifacts from a repository analysis.
type Renderer interface {
	// Name returns the renderer identifier (e.g. "review_prompts").
	Name() string
	// Render produces artifacts from the given analysis.
	Render(ctx context.Context, analysis *facts.RepositoryAnalysis) ([]facts.Artifact, error)
}

// Registry holds registered renderers.
type Registry struct {
	renderers []Renderer
}

// NewRegistry creates a new renderer registry.
func NewRegistry(rs ...Renderer) *Registry {
	r := &Registry{}
	for _, rnd := range rs {
		r.Register(rnd)
	}
	return r
}

// Register adds a renderer to the registry.
func (r *Registry) Register(rnd Renderer) {
	r.renderers = append(r.renderers, rnd)
}

// Get returns the renderer with the given name, or nil if not found.
func (r *Registry) Get(name string) Renderer {
	for _, rnd := range r.renderers {
		if rnd.Name() == name {
			return rnd
		}
	}
	return nil
}

// All returns all registered renderers.
func (r *Registry) All() []Renderer {
	return r.renderers
}
