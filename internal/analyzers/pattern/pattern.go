// Package pattern proposes the architecture pattern of a repository by
// matching its module layout and import shape against a fixed catalogue.
// The result is a best-effort heuristic, not a proof.
package pattern

import (
	"context"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/analyzers"
	"github.com/dejo1307/docdrift/internal/analyzers/imports"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
	"github.com/dejo1307/docdrift/internal/vocab"
)

// Analyzer is the pattern sub-analyzer.
type Analyzer struct{}

// New creates a new pattern Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Name() string {
	return analyzers.Pattern
}

// layerDef defines how a layer is recognised from module path segments.
type layerDef struct {
	Name     string
	Patterns []string
	Level    int // lower = inner/domain, higher = outer/presentation
}

// signature is one layout-based catalogue entry.
type signature struct {
	Name     string
	Layers   []layerDef
	Required []string // at least one of these layers must be present
}

var catalogue = []signature{
	{
		Name: "layered",
		Layers: []layerDef{
			{Name: "presentation", Patterns: []string{"controller", "controllers", "handler", "handlers", "api", "routes", "router", "routers", "presentation", "web", "http", "rest", "endpoints", "resources"}, Level: 3},
			{Name: "service", Patterns: []string{"service", "services", "business", "logic", "usecase", "usecases", "application"}, Level: 2},
			{Name: "repository", Patterns: []string{"repository", "repositories", "repo", "repos", "dal", "dao", "data", "store", "storage", "persistence", "db", "database"}, Level: 1},
			{Name: "model", Patterns: []string{"model", "models", "entity", "entities", "domain", "schemas"}, Level: 0},
		},
		Required: []string{"service", "repository"},
	},
	{
		Name: "hexagonal",
		Layers: []layerDef{
			{Name: "domain", Patterns: []string{"domain", "entity", "entities", "core"}, Level: 0},
			{Name: "application", Patterns: []string{"application", "usecase", "usecases", "app"}, Level: 1},
			{Name: "port", Patterns: []string{"port", "ports"}, Level: 1},
			{Name: "adapter", Patterns: []string{"adapter", "adapters", "infrastructure", "infra", "gateway", "gateways"}, Level: 2},
		},
		Required: []string{"port", "adapter"},
	},
	{
		Name: "mvc",
		Layers: []layerDef{
			{Name: "model", Patterns: []string{"model", "models"}, Level: 0},
			{Name: "view", Patterns: []string{"view", "views", "templates"}, Level: 2},
			{Name: "controller", Patterns: []string{"controller", "controllers"}, Level: 1},
		},
		Required: []string{"controller"},
	},
	{
		Name: "mvvm",
		Layers: []layerDef{
			{Name: "model", Patterns: []string{"model", "models"}, Level: 0},
			{Name: "viewmodel", Patterns: []string{"viewmodel", "viewmodels"}, Level: 1},
			{Name: "view", Patterns: []string{"view", "views", "screens"}, Level: 2},
		},
		Required: []string{"viewmodel"},
	},
	{
		Name: "go-standard",
		Layers: []layerDef{
			{Name: "cmd", Patterns: []string{"cmd"}, Level: 3},
			{Name: "internal", Patterns: []string{"internal"}, Level: 1},
			{Name: "pkg", Patterns: []string{"pkg"}, Level: 0},
			{Name: "api", Patterns: []string{"api"}, Level: 2},
		},
		Required: []string{"cmd"},
	},
}

// match is a signature applied to the repository's modules.
type match struct {
	sig     *signature
	layers  map[string]*layerDef
	modules map[string]string // module -> layer name
}

// Analyze scores every catalogue entry and proposes the best one.
func (a *Analyzer) Analyze(ctx context.Context, src snapshot.Source) (*analyzers.Partial, error) {
	graph, err := imports.Scan(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("scanning imports: %w", err)
	}
	modules := sourceModules(src)

	var candidates []facts.PatternCandidate
	for i := range catalogue {
		if c, ok := scoreLayout(&catalogue[i], modules, graph.Modules); ok {
			candidates = append(candidates, c)
		}
	}
	if c, ok := scoreMicroservices(src); ok {
		candidates = append(candidates, c)
	}
	if c, ok := scoreEventDriven(modules, graph); ok {
		candidates = append(candidates, c)
	}
	if c, ok := scoreServerless(src); ok {
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Name < candidates[j].Name
	})

	result := &facts.ArchitecturePattern{Candidates: candidates}
	if len(candidates) > 0 {
		result.Name = candidates[0].Name
		result.Confidence = candidates[0].Confidence
		klog.V(2).Infof("[pattern] best match %s (%.0f%%) of %d candidates", result.Name, result.Confidence*100, len(candidates))
	}
	return &analyzers.Partial{Pattern: result}, nil
}

// sourceModules returns the directories holding source files, excluding the root.
func sourceModules(src snapshot.Source) []string {
	seen := make(map[string]bool)
	for _, f := range src.Files() {
		if snapshot.Language(f.Path) == "" {
			continue
		}
		if d := path.Dir(f.Path); d != "." {
			seen[d] = true
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func scoreLayout(sig *signature, modules []string, graph *facts.ModuleGraph) (facts.PatternCandidate, bool) {
	if len(modules) == 0 {
		return facts.PatternCandidate{}, false
	}
	m := &match{sig: sig, layers: make(map[string]*layerDef), modules: make(map[string]string)}
	for _, mod := range modules {
		for i, layer := range sig.Layers {
			if matchesLayer(mod, layer.Patterns) {
				m.layers[layer.Name] = &sig.Layers[i]
				m.modules[mod] = layer.Name
				break
			}
		}
	}
	if len(m.layers) < 2 {
		return facts.PatternCandidate{}, false
	}
	required := false
	for _, r := range sig.Required {
		if m.layers[r] != nil {
			required = true
			break
		}
	}
	if !required {
		return facts.PatternCandidate{}, false
	}

	coverage := float64(len(m.modules)) / float64(len(modules))
	layerCoverage := float64(len(m.layers)) / float64(len(sig.Layers))
	confidence := math.Min(coverage*0.6+layerCoverage*0.4, 1.0)

	violations, crossing := m.violations(graph)
	if crossing > 0 {
		confidence *= 1 - 0.5*float64(len(violations))/float64(crossing)
	}
	if confidence < 0.2 {
		return facts.PatternCandidate{}, false
	}

	var layers []string
	for _, l := range sig.Layers {
		if m.layers[l.Name] != nil {
			layers = append(layers, l.Name)
		}
	}
	var evidence []string
	for _, mod := range sortedKeys(m.modules) {
		evidence = append(evidence, fmt.Sprintf("module %q maps to layer %q", mod, m.modules[mod]))
	}
	evidence = append(evidence, violations...)
	return facts.PatternCandidate{
		Name:       sig.Name,
		Confidence: round2(confidence),
		Layers:     layers,
		Evidence:   evidence,
	}, true
}

// violations lists edges where an inner layer imports an outer one, and the
// number of edges crossing between classified layers.
func (m *match) violations(graph *facts.ModuleGraph) ([]string, int) {
	if graph == nil {
		return nil, 0
	}
	var out []string
	crossing := 0
	for _, from := range graph.Nodes() {
		fromLayer, ok := m.modules[from]
		if !ok {
			continue
		}
		for _, to := range graph.Edges[from] {
			toLayer, ok := m.modules[to]
			if !ok || toLayer == fromLayer {
				continue
			}
			crossing++
			if m.layers[fromLayer].Level < m.layers[toLayer].Level {
				out = append(out, fmt.Sprintf("layer violation: %s (%s) imports %s (%s)", from, fromLayer, to, toLayer))
			}
		}
	}
	return out, crossing
}

// serviceManifests mark a directory as an independently built service.
var serviceManifests = map[string]bool{
	"package.json": true, "go.mod": true, "Dockerfile": true, "requirements.txt": true,
	"pyproject.toml": true, "pom.xml": true, "build.gradle": true, "build.gradle.kts": true,
	"Cargo.toml": true, "Gemfile": true,
}

var composeFiles = []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"}

type composeFile struct {
	Services map[string]struct {
		Build any    `yaml:"build"`
		Image string `yaml:"image"`
	} `yaml:"services"`
}

func scoreMicroservices(src snapshot.Source) (facts.PatternCandidate, bool) {
	services := make(map[string]bool)
	for _, f := range src.Files() {
		dir := path.Dir(f.Path)
		if dir == "." || strings.Count(dir, "/") > 1 || !serviceManifests[path.Base(f.Path)] {
			continue
		}
		services[dir] = true
	}

	built := 0
	for _, name := range composeFiles {
		data, err := src.ReadFile(name)
		if err != nil {
			continue
		}
		var doc composeFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			klog.V(2).Infof("[pattern] unparseable %s: %v", name, err)
			continue
		}
		for _, svc := range doc.Services {
			if svc.Build != nil {
				built++
			}
		}
		break
	}

	if len(services) < 2 && built < 2 {
		return facts.PatternCandidate{}, false
	}
	confidence := math.Min(0.4+0.1*float64(len(services))+0.1*float64(built), 1.0)
	dirs := sortedKeys(services)
	evidence := make([]string, 0, len(dirs)+1)
	for _, d := range dirs {
		evidence = append(evidence, fmt.Sprintf("directory %q has its own build manifest", d))
	}
	if built > 0 {
		evidence = append(evidence, fmt.Sprintf("compose file builds %d services", built))
	}
	return facts.PatternCandidate{
		Name:       "microservice-per-directory",
		Confidence: round2(confidence),
		Layers:     dirs,
		Evidence:   evidence,
	}, true
}

var eventDirs = []string{"events", "event", "consumers", "consumer", "producers", "producer", "subscribers", "listeners", "publishers", "messaging", "queues", "workers", "sagas"}

func scoreEventDriven(modules []string, graph *imports.Graph) (facts.PatternCandidate, bool) {
	dirHits := make(map[string]bool)
	for _, mod := range modules {
		for _, part := range strings.Split(strings.ToLower(mod), "/") {
			for _, d := range eventDirs {
				if part == d {
					dirHits[d] = true
				}
			}
		}
	}
	libs := make(map[string]bool)
	for _, external := range graph.External {
		for _, imp := range external {
			for _, t := range vocab.Technologies {
				if t.Kind == vocab.KindMessaging && (t.MatchesPackage(imp) || t.MatchesPackage(rootPackage(imp))) {
					libs[t.Name] = true
				}
			}
		}
	}
	if len(dirHits)+len(libs) < 2 {
		return facts.PatternCandidate{}, false
	}
	confidence := math.Min(0.2*float64(len(dirHits))+0.3*float64(len(libs)), 1.0)
	if confidence < 0.2 {
		return facts.PatternCandidate{}, false
	}
	var evidence []string
	for _, d := range sortedKeys(dirHits) {
		evidence = append(evidence, fmt.Sprintf("event-oriented directory %q", d))
	}
	for _, l := range sortedKeys(libs) {
		evidence = append(evidence, fmt.Sprintf("messaging library %s imported", l))
	}
	return facts.PatternCandidate{Name: "event-driven", Confidence: round2(confidence), Evidence: evidence}, true
}

func scoreServerless(src snapshot.Source) (facts.PatternCandidate, bool) {
	var evidence []string
	confidence := 0.0
	functions := false
	for _, f := range src.Files() {
		switch {
		case f.Path == "serverless.yml" || f.Path == "serverless.yaml":
			confidence += 0.7
			evidence = append(evidence, "serverless framework config "+f.Path)
		case f.Path == "template.yaml" || f.Path == "template.yml":
			if data, err := src.ReadFile(f.Path); err == nil && strings.Contains(string(data), "AWS::Serverless") {
				confidence += 0.7
				evidence = append(evidence, "SAM template "+f.Path)
			}
		case !functions && snapshot.Language(f.Path) != "" &&
			(strings.HasPrefix(f.Path, "functions/") || strings.HasPrefix(f.Path, "netlify/functions/")):
			functions = true
			confidence += 0.3
			evidence = append(evidence, "function directory "+path.Dir(f.Path))
		}
	}
	if confidence < 0.3 {
		return facts.PatternCandidate{}, false
	}
	return facts.PatternCandidate{Name: "serverless", Confidence: round2(math.Min(confidence, 1.0)), Evidence: evidence}, true
}

// matchesLayer checks if a module path contains any of the given segments.
func matchesLayer(modulePath string, patterns []string) bool {
	parts := strings.Split(strings.ToLower(modulePath), "/")
	for _, part := range parts {
		for _, pattern := range patterns {
			if part == pattern {
				return true
			}
		}
	}
	return false
}

// rootPackage trims an import path to its first segment ("kafka.admin" -> "kafka").
func rootPackage(imp string) string {
	imp = strings.SplitN(imp, "/", 2)[0]
	return strings.SplitN(imp, ".", 2)[0]
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
