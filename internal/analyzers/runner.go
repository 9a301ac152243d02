package analyzers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

// Options controls a Code Analyzer run.
type Options struct {
	// Workers bounds how many sub-analyzers run at once. Zero means unbounded.
	Workers int
	// Enabled selects the sub-analyzers to run by name. Nil runs all
	// registered ones.
	Enabled func(name string) bool
	// OnDone, if set, is called as each sub-analyzer finishes.
	OnDone func(name string, elapsed time.Duration, err error)
}

// webFrameworks are the frameworks whose presence implies an HTTP/REST surface.
var webFrameworks = map[string]bool{
	"Flask": true, "Django": true, "FastAPI": true, "Express": true, "Next.js": true,
	"Spring Boot": true, "Rails": true, "Gin": true, "Echo": true, "Chi": true,
}

// Run executes the enabled sub-analyzers concurrently over the snapshot and
// merges their facets into one CodeAnalysis. A failing sub-analyzer degrades
// to a warning and never fails the run.
//
// If ctx is done before every sub-analyzer finished, the facets that did
// complete are still merged, the result is marked Partial, and ctx.Err() is
// returned alongside it.
func Run(ctx context.Context, reg *Registry, src snapshot.Source, opts Options) (*facts.CodeAnalysis, error) {
	selected := reg.Enabled(opts.Enabled)
	results := make([]*Partial, len(selected))
	errs := make([]error, len(selected))

	var g errgroup.Group
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, a := range selected {
		g.Go(func() error {
			start := time.Now()
			results[i], errs[i] = analyzeSafely(ctx, a, src)
			elapsed := time.Since(start)
			klog.V(2).Infof("[analyzers] %s finished in %s", a.Name(), elapsed.Round(time.Millisecond))
			if opts.OnDone != nil {
				opts.OnDone(a.Name(), elapsed, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	ca := &facts.CodeAnalysis{
		Structure: facts.CodeStructureFacts{
			LanguageDistribution: make(map[string]float64),
			ModuleGraph:          facts.NewModuleGraph(),
		},
	}
	for i, a := range selected {
		if p := results[i]; p != nil {
			ca.Warnings = append(ca.Warnings, p.Warnings...)
		}
		switch err := errs[i]; {
		case err == nil:
			merge(ca, results[i])
			ca.Analyzers = append(ca.Analyzers, a.Name())
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			ca.Partial = true
			ca.Warnings = append(ca.Warnings, facts.Warning{
				Phase:    "code",
				Analyzer: a.Name(),
				Message:  "interrupted before completion: " + err.Error(),
			})
		default:
			klog.Warningf("[analyzers] %s degraded: %v", a.Name(), err)
			ca.Warnings = append(ca.Warnings, facts.Warning{
				Phase:    "code",
				Analyzer: a.Name(),
				Message:  err.Error(),
			})
		}
	}
	finish(ca)

	klog.Infof("[analyzers] %d/%d sub-analyzers completed, %d signals, %d warnings",
		len(ca.Analyzers), len(selected), len(ca.Signals), len(ca.Warnings))

	if err := ctx.Err(); err != nil {
		ca.Partial = true
		return ca, err
	}
	return ca, nil
}

func analyzeSafely(ctx context.Context, a Analyzer, src snapshot.Source) (p *Partial, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("panic in %s analyzer: %v", a.Name(), r)
		}
	}()
	p, err = a.Analyze(ctx, src)
	if err == nil && p == nil {
		p = &Partial{}
	}
	return p, err
}

func merge(ca *facts.CodeAnalysis, p *Partial) {
	s := &ca.Structure
	for lang, pct := range p.Languages {
		s.LanguageDistribution[lang] = pct
	}
	for _, f := range p.Frameworks {
		if !ca.HasFramework(f) {
			s.Frameworks = append(s.Frameworks, f)
		}
	}
	s.EntryPoints = append(s.EntryPoints, p.EntryPoints...)
	if p.ModuleGraph != nil {
		s.ModuleGraph = p.ModuleGraph
	}
	if len(p.Directories) > 0 {
		s.Directories = p.Directories
	}
	if p.TestFileRatio > 0 {
		s.TestFileRatio = p.TestFileRatio
	}
	s.Dependencies = append(s.Dependencies, p.Dependencies...)
	s.Manifests = append(s.Manifests, p.Manifests...)
	s.Runtimes = append(s.Runtimes, p.Runtimes...)

	if p.Pattern != nil {
		ca.Pattern = *p.Pattern
	}
	if p.Observability != nil {
		ca.Observability = *p.Observability
	}
	ca.Signals = append(ca.Signals, p.Signals...)
}

// finish derives the facts that need more than one facet: circular
// dependencies over the module graph and the exposed API styles.
func finish(ca *facts.CodeAnalysis) {
	s := &ca.Structure
	sort.Strings(s.Frameworks)
	sort.Strings(s.Manifests)
	sort.Slice(s.EntryPoints, func(i, j int) bool { return s.EntryPoints[i].Path < s.EntryPoints[j].Path })
	sort.SliceStable(ca.Signals, func(i, j int) bool {
		a, b := ca.Signals[i].Location, ca.Signals[j].Location
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})

	s.CircularDependencies = s.ModuleGraph.Cycles()
	s.APIStyles = apiStyles(s)
}

func apiStyles(s *facts.CodeStructureFacts) []string {
	found := make(map[string]bool)
	for _, e := range s.EntryPoints {
		switch e.Kind {
		case facts.EntryWeb:
			found["rest"] = true
		case facts.EntryGraphQL:
			found["graphql"] = true
		case facts.EntryGRPC:
			found["grpc"] = true
		}
	}
	for _, f := range s.Frameworks {
		switch {
		case f == "GraphQL":
			found["graphql"] = true
		case f == "gRPC":
			found["grpc"] = true
		case webFrameworks[f]:
			found["rest"] = true
		}
	}
	out := make([]string, 0, len(found))
	for style := range found {
		out = append(out, style)
	}
	sort.Strings(out)
	return out
}
