// Package dependency parses build manifests into the unified dependency set
// and records the runtime versions they pin.
package dependency

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/analyzers"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
	"github.com/dejo1307/docdrift/internal/vocab"
)

// parseFunc parses one manifest. name is the repository path of the file.
type parseFunc func(name string, data []byte) (*manifest, error)

// manifest is what a single manifest file contributes.
type manifest struct {
	deps     []facts.Dependency
	runtimes []facts.RuntimeVersion
}

// parsers maps manifest basenames to their parser. A nil parser records the
// file as a build manifest without reading it.
var parsers = map[string]parseFunc{
	"go.mod":              parseGoMod,
	"package.json":        parsePackageJSON,
	"requirements.txt":    parseRequirements,
	"pyproject.toml":      parsePyProject,
	"Pipfile":             parsePipfile,
	"Cargo.toml":          parseCargo,
	"Gemfile":             parseGemfile,
	"pom.xml":             parsePom,
	"build.gradle":        parseGradle,
	"build.gradle.kts":    parseGradle,
	"composer.json":       parseComposer,
	"Dockerfile":          parseDockerfile,
	".python-version":     runtimeFile("python"),
	".nvmrc":              runtimeFile("node"),
	".node-version":       runtimeFile("node"),
	".ruby-version":       runtimeFile("ruby"),
	"runtime.txt":         parseRuntimeTxt,
	".tool-versions":      parseToolVersions,
	"rust-toolchain":      runtimeFile("rust"),
	"rust-toolchain.toml": parseRustToolchain,
	"setup.py":            nil,
	"setup.cfg":           nil,
	"Makefile":            nil,
	"makefile":            nil,
	"GNUmakefile":         nil,
	"docker-compose.yml":  nil,
	"docker-compose.yaml": nil,
	"compose.yml":         nil,
	"compose.yaml":        nil,
	"yarn.lock":           nil,
	"package-lock.json":   nil,
	"pnpm-lock.yaml":      nil,
	"poetry.lock":         nil,
	"go.sum":              nil,
	"Cargo.lock":          nil,
	"Gemfile.lock":        nil,
	"CMakeLists.txt":      nil,
	"Taskfile.yml":        nil,
	"justfile":            nil,
}

// Analyzer is the dependency sub-analyzer.
type Analyzer struct{}

// New creates a new dependency Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Name() string {
	return analyzers.Dependency
}

// IsManifest reports whether the file is a recognised build manifest.
func IsManifest(p string) bool {
	base := path.Base(p)
	if _, ok := parsers[base]; ok {
		return true
	}
	if strings.HasPrefix(base, "requirements") && strings.HasSuffix(base, ".txt") {
		return true
	}
	ext := path.Ext(base)
	return ext == ".csproj" || ext == ".sln" || ext == ".gemspec"
}

func parserFor(p string) parseFunc {
	base := path.Base(p)
	if fn, ok := parsers[base]; ok {
		return fn
	}
	if strings.HasPrefix(base, "requirements") && strings.HasSuffix(base, ".txt") {
		return parseRequirements
	}
	return nil
}

// Analyze parses every manifest in the snapshot. An unparseable manifest is
// recorded as a warning and skipped.
func (a *Analyzer) Analyze(ctx context.Context, src snapshot.Source) (*analyzers.Partial, error) {
	p := &analyzers.Partial{}
	frameworks := make(map[string]bool)
	seenDep := make(map[string]bool)

	for _, f := range src.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !IsManifest(f.Path) {
			continue
		}
		p.Manifests = append(p.Manifests, f.Path)

		parse := parserFor(f.Path)
		if parse == nil {
			continue
		}
		data, err := src.ReadFile(f.Path)
		if err != nil {
			p.Warnings = append(p.Warnings, warning(f.Path, err))
			continue
		}
		m, err := parse(f.Path, data)
		if err != nil {
			klog.Warningf("[dependency] unparseable manifest %s: %v", f.Path, err)
			p.Warnings = append(p.Warnings, warning(f.Path, fmt.Errorf("parsing manifest: %w", err)))
			continue
		}
		for _, d := range m.deps {
			d.Manifest = f.Path
			key := d.Ecosystem + "|" + d.Name + "|" + d.Scope
			if seenDep[key] {
				continue
			}
			seenDep[key] = true
			p.Dependencies = append(p.Dependencies, d)
			for _, t := range vocab.Technologies {
				if t.MatchesPackage(d.Name) {
					frameworks[t.Name] = true
				}
			}
		}
		for _, r := range m.runtimes {
			r.Source = f.Path
			if r.Version != "" {
				p.Runtimes = append(p.Runtimes, r)
			}
		}
	}

	sort.SliceStable(p.Dependencies, func(i, j int) bool {
		a, b := p.Dependencies[i], p.Dependencies[j]
		if a.Ecosystem != b.Ecosystem {
			return a.Ecosystem < b.Ecosystem
		}
		return a.Name < b.Name
	})
	for name := range frameworks {
		p.Frameworks = append(p.Frameworks, name)
	}
	sort.Strings(p.Frameworks)

	klog.V(2).Infof("[dependency] %d manifests, %d dependencies, %d runtimes",
		len(p.Manifests), len(p.Dependencies), len(p.Runtimes))
	return p, nil
}

func warning(file string, err error) facts.Warning {
	return facts.Warning{Phase: "code", Analyzer: analyzers.Dependency, File: file, Message: err.Error()}
}
