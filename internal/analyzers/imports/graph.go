package imports

import (
	"context"
	"path"

	"golang.org/x/mod/modfile"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

// Graph is the resolved import structure of a repository.
type Graph struct {
	// Modules is the directory-level module graph.
	Modules *facts.ModuleGraph
	// Targets maps each source file to the repository paths it imports.
	Targets map[string][]string
	// Inbound counts the distinct files importing each file. A directory
	// target (Go package) credits every file in it.
	Inbound map[string]int
	// External lists the import paths that did not resolve inside the repository.
	External map[string][]string
}

// Scan parses and resolves the imports of every supported source file.
func Scan(ctx context.Context, src snapshot.Source) (*Graph, error) {
	files := src.Files()
	paths := make([]string, 0, len(files))
	byDir := make(map[string][]string)
	for _, f := range files {
		paths = append(paths, f.Path)
		byDir[path.Dir(f.Path)] = append(byDir[path.Dir(f.Path)], f.Path)
	}

	var aliases map[string]string
	if data, err := src.ReadFile("tsconfig.json"); err == nil {
		aliases = TSConfigAliases(data)
	}
	resolver := NewResolver(paths, goModulePath(src), aliases)

	g := &Graph{
		Modules:  facts.NewModuleGraph(),
		Targets:  make(map[string][]string),
		Inbound:  make(map[string]int),
		External: make(map[string][]string),
	}
	credited := make(map[string]map[string]bool) // target file -> importing files

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return g, err
		}
		if !Supported(f.Path) {
			continue
		}
		content, err := src.ReadFile(f.Path)
		if err != nil {
			klog.V(2).Infof("[imports] skipping %s: %v", f.Path, err)
			continue
		}
		from := path.Dir(f.Path)
		g.Modules.AddNode(from)

		for _, imp := range Parse(f.Path, content) {
			target, ok := resolver.Resolve(f.Path, imp)
			if !ok {
				g.External[f.Path] = append(g.External[f.Path], imp.Path)
				continue
			}
			g.Targets[f.Path] = append(g.Targets[f.Path], target)

			targetFiles := []string{target}
			toModule := path.Dir(target)
			if !resolver.files[target] {
				targetFiles = byDir[target]
				toModule = target
			}
			g.Modules.AddEdge(from, toModule)
			for _, tf := range targetFiles {
				if tf == f.Path {
					continue
				}
				if credited[tf] == nil {
					credited[tf] = make(map[string]bool)
				}
				credited[tf][f.Path] = true
			}
		}
	}
	for tf, importers := range credited {
		g.Inbound[tf] = len(importers)
	}
	return g, nil
}

// goModulePath returns the module path declared in the root go.mod, if any.
func goModulePath(src snapshot.Source) string {
	data, err := src.ReadFile("go.mod")
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}
