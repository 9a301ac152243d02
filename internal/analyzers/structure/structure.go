// Package structure derives the language mix, entry points, module graph and
// file-signalled frameworks of a repository.
package structure

import (
	"context"
	"fmt"
	"math"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/dejo1307/docdrift/internal/analyzers"
	"github.com/dejo1307/docdrift/internal/analyzers/imports"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
	"github.com/dejo1307/docdrift/internal/vocab"
)

// Analyzer is the structure sub-analyzer.
type Analyzer struct{}

// New creates a new structure Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Name() string {
	return analyzers.Structure
}

// Analyze computes language percentages, directories, test ratio, entry
// points, frameworks signalled by files and imports, and the module graph.
func (a *Analyzer) Analyze(ctx context.Context, src snapshot.Source) (*analyzers.Partial, error) {
	files := src.Files()
	p := &analyzers.Partial{Languages: make(map[string]float64)}

	bytesByLang := make(map[string]int64)
	var total int64
	var sources, tests int
	dirs := make(map[string]bool)
	frameworks := make(map[string]bool)

	for _, f := range files {
		for d := path.Dir(f.Path); d != "."; d = path.Dir(d) {
			dirs[d] = true
		}
		for _, t := range vocab.Technologies {
			if t.MatchesFile(f.Path) {
				frameworks[t.Name] = true
			}
		}
		lang := snapshot.Language(f.Path)
		if lang == "" {
			continue
		}
		sources++
		if snapshot.IsTestFile(f.Path) {
			tests++
		}
		bytesByLang[lang] += f.Size
		total += f.Size
	}
	for lang, n := range bytesByLang {
		if total > 0 {
			p.Languages[lang] = math.Round(float64(n)*1000/float64(total)) / 10
		}
	}
	if sources > 0 {
		p.TestFileRatio = math.Round(float64(tests)*1000/float64(sources)) / 1000
	}
	p.Directories = sortedKeys(dirs)

	entries, err := detectEntryPoints(ctx, src)
	if err != nil {
		return nil, err
	}
	p.EntryPoints = entries

	graph, err := imports.Scan(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("scanning imports: %w", err)
	}
	p.ModuleGraph = graph.Modules
	for file, external := range graph.External {
		for _, imp := range external {
			pkg := packageOf(file, imp)
			for _, t := range vocab.Technologies {
				if t.Kind != vocab.KindInfra && (t.MatchesPackage(pkg) || t.MatchesPackage(imp)) {
					frameworks[t.Name] = true
				}
			}
		}
	}
	p.Frameworks = sortedKeys(frameworks)
	return p, nil
}

// packageOf reduces an external import path to the name its package manager knows.
func packageOf(file, imp string) string {
	switch path.Ext(file) {
	case ".py":
		return strings.SplitN(imp, ".", 2)[0]
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		parts := strings.Split(imp, "/")
		if strings.HasPrefix(imp, "@") && len(parts) > 1 {
			return parts[0] + "/" + parts[1]
		}
		return parts[0]
	case ".rb":
		return strings.SplitN(imp, "/", 2)[0]
	}
	return imp
}

var entryNames = map[string]bool{
	"main.go": true,
	"app.py": true, "main.py": true, "wsgi.py": true, "asgi.py": true, "manage.py": true,
	"__main__.py": true, "server.py": true,
	"index.js": true, "index.ts": true, "server.js": true, "server.ts": true,
	"app.js": true, "app.ts": true, "main.js": true, "main.ts": true,
	"main.rs": true, "config.ru": true, "program.cs": true,
}

// entryKinds classifies an entry point by what its source sets up. The first
// matching kind wins.
var entryKinds = []struct {
	Kind string
	Re   *regexp.Regexp
}{
	{facts.EntryGraphQL, regexp.MustCompile(`(?i)graphql|ApolloServer|gqlgen|graphene|strawberry|ariadne|createYoga`)},
	{facts.EntryGRPC, regexp.MustCompile(`grpc\.NewServer|grpc\.server\(|@grpc/grpc-js|tonic::transport|io\.grpc\.ServerBuilder`)},
	{facts.EntryWeb, regexp.MustCompile(`Flask\(|FastAPI\(|django|express\(\)|fastify|new Koa|http\.ListenAndServe|http\.createServer|gin\.(?:Default|New)\(|echo\.New\(|chi\.NewRouter|mux\.NewRouter|@SpringBootApplication|@RestController|Rack::|run\s+\w+::Application|actix_web|axum::|WebApplication\.Create`)},
	{facts.EntryCLI, regexp.MustCompile(`cobra\.Command|argparse|click\.|typer\.|commander|yargs|clap::|flag\.Parse\(`)},
}

var (
	goMainRe    = regexp.MustCompile(`(?m)^package main\b`)
	javaMainRe  = regexp.MustCompile(`public\s+static\s+void\s+main\s*\(|@SpringBootApplication`)
	protoSvcRe  = regexp.MustCompile(`(?m)^\s*service\s+\w+\s*\{`)
	graphqlOpRe = regexp.MustCompile(`(?m)^\s*(?:type|extend type)\s+(?:Query|Mutation|Subscription)\b`)
)

func detectEntryPoints(ctx context.Context, src snapshot.Source) ([]facts.EntryPoint, error) {
	var out []facts.EntryPoint
	for _, f := range src.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if snapshot.IsTestFile(f.Path) {
			continue
		}
		base := strings.ToLower(path.Base(f.Path))
		ext := path.Ext(base)

		var kind string
		switch {
		case ext == ".proto":
			if content, err := src.ReadFile(f.Path); err == nil && protoSvcRe.Match(content) {
				kind = facts.EntryGRPC
			}
		case ext == ".graphql" || ext == ".gql":
			if content, err := src.ReadFile(f.Path); err == nil && graphqlOpRe.Match(content) {
				kind = facts.EntryGraphQL
			}
		case ext == ".java" || ext == ".kt":
			if !strings.HasSuffix(base, "application.java") && !strings.HasSuffix(base, "main.java") &&
				!strings.HasSuffix(base, "application.kt") && !strings.HasSuffix(base, "main.kt") {
				continue
			}
			content, err := src.ReadFile(f.Path)
			if err != nil || !javaMainRe.Match(content) {
				continue
			}
			kind = classify(content)
		case entryNames[base] || isBinScript(f.Path):
			content, err := src.ReadFile(f.Path)
			if err != nil {
				continue
			}
			if base == "main.go" && !goMainRe.Match(content) {
				continue
			}
			if !shallowEntry(f.Path, base) {
				continue
			}
			kind = classify(content)
			if base == "config.ru" || base == "wsgi.py" || base == "asgi.py" {
				kind = facts.EntryWeb
			}
		}
		if kind == "" {
			continue
		}
		out = append(out, facts.EntryPoint{Path: f.Path, Kind: kind, Language: snapshot.Language(f.Path)})
	}
	return out, nil
}

func classify(content []byte) string {
	for _, k := range entryKinds {
		if k.Re.Match(content) {
			return k.Kind
		}
	}
	return facts.EntryMain
}

// shallowEntry filters well-known entry names by depth. Go and Rust mains
// count anywhere; index files only at the root, under src/, or one level
// down; everything else up to two directories deep.
func shallowEntry(p, base string) bool {
	depth := strings.Count(p, "/")
	switch {
	case base == "main.go" || base == "main.rs" || isBinScript(p):
		return true
	case strings.HasPrefix(base, "index."):
		return depth <= 1 || path.Dir(p) == "src" || strings.HasSuffix(path.Dir(p), "/src") && depth <= 2
	}
	return depth <= 2
}

func isBinScript(p string) bool {
	return path.Dir(p) == "bin" && path.Ext(p) == ""
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
