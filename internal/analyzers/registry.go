package analyzers

import (
	"context"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

// Sub-analyzer names.
const (
	Structure     = "structure"
	Dependency    = "dependency"
	Pattern       = "pattern"
	Quality       = "quality"
	Security      = "security"
	Observability = "observability"
)

// Analyzer derives one facet of the code facts from a read-only snapshot.
type Analyzer interface {
	// Name returns the sub-analyzer identifier (e.g. "structure", "quality").
	Name() string
	// Analyze inspects the snapshot and returns the facts of its facet.
	// Implementations check ctx between files.
	Analyze(ctx context.Context, src snapshot.Source) (*Partial, error)
}

// Partial holds the facts contributed by a single sub-analyzer. Each
// sub-analyzer fills only the fields of its own facet.
type Partial struct {
	Languages     map[string]float64
	Frameworks    []string
	EntryPoints   []facts.EntryPoint
	ModuleGraph   *facts.ModuleGraph
	Directories   []string
	TestFileRatio float64

	Dependencies []facts.Dependency
	Manifests    []string
	Runtimes     []facts.RuntimeVersion

	Pattern       *facts.ArchitecturePattern
	Observability *facts.ObservabilityFacts
	Signals       []facts.QualitySignal

	// Warnings are non-fatal problems met while producing the facet,
	// such as an unparseable manifest.
	Warnings []facts.Warning
}

// Registry holds the injected, ordered list of sub-analyzers.
type Registry struct {
	analyzers []Analyzer
}

// NewRegistry creates a registry holding the given analyzers.
func NewRegistry(as ...Analyzer) *Registry {
	r := &Registry{}
	for _, a := range as {
		r.Register(a)
	}
	return r
}

// Register adds an analyzer to the registry.
func (r *Registry) Register(a Analyzer) {
	r.analyzers = append(r.analyzers, a)
}

// Get returns the analyzer with the given name, or nil if not found.
func (r *Registry) Get(name string) Analyzer {
	for _, a := range r.analyzers {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// All returns all registered analyzers.
func (r *Registry) All() []Analyzer {
	return r.analyzers
}

// Enabled returns the registered analyzers accepted by isEnabled, in
// registration order. A nil isEnabled enables everything.
func (r *Registry) Enabled(isEnabled func(name string) bool) []Analyzer {
	if isEnabled == nil {
		return r.analyzers
	}
	var out []Analyzer
	for _, a := range r.analyzers {
		if isEnabled(a.Name()) {
			out = append(out, a)
		}
	}
	return out
}
