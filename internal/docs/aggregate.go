package docs

import (
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/vocab"
)

var (
	componentHeadingRe = regexp.MustCompile(`(?m)^#+\s*([A-Z][^\n]+?)\s+(?:Component|Module|Service)s?\s*$`)
	componentBulletRe  = regexp.MustCompile(`(?m)^\s*[-*]\s+\*\*([A-Za-z][\w .-]*?)\*\*\s*:`)
	endpointRe         = regexp.MustCompile(`\b(GET|POST|PUT|DELETE|PATCH)\s+(/[\w\-{}:/.]*)`)
	envVarRe           = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})=`)
	lintersRe          = regexp.MustCompile(`(?i)\b(pylint|flake8|ruff|black|mypy|isort|eslint|prettier|tslint|rubocop|shellcheck|golangci-lint|gofmt|goimports|staticcheck|clippy|rustfmt|checkstyle|spotless|ktlint)\b`)
	testCommandRe      = regexp.MustCompile(`(?i)\b(?:go test|npm (?:run )?test|yarn test|pnpm test|pytest|tox|cargo test|make test|mvn test|gradle test|bundle exec rspec|rspec|jest|vitest)\b`)
)

// completenessWeights scores the presence of each documentation category.
var completenessWeights = map[string]float64{
	facts.CategoryPrimary:      30,
	facts.CategoryArchitecture: 20,
	facts.CategoryContributing: 15,
	facts.CategorySetup:        15,
	facts.CategoryAPI:          10,
	facts.CategoryChangelog:    5,
	facts.CategoryLicense:      5,
}

// docsIn returns the documents of the given categories, keeping priority order.
func docsIn(docs []facts.DocumentFile, categories ...string) []facts.DocumentFile {
	var out []facts.DocumentFile
	for _, d := range docs {
		for _, c := range categories {
			if d.Category == c {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// buildArchitecture aggregates architecture claims over architecture and primary docs.
func buildArchitecture(docs []facts.DocumentFile, claims []facts.Claim) facts.ArchitectureClaims {
	var arch facts.ArchitectureClaims
	sources := docsIn(docs, facts.CategoryArchitecture, facts.CategoryPrimary)
	components := make(map[string]bool)

	for _, d := range sources {
		content := d.Content
		if d.Category == facts.CategoryPrimary {
			content = extractSection(d.Content, "architecture", "design", "structure", "overview")
			if content == "" {
				continue
			}
		}
		used := false

		if arch.Pattern == "" {
			if p := vocab.ArchitecturePatterns(content); len(p) > 0 {
				arch.Pattern = p[0]
				used = true
			}
		}
		if len(arch.Layers) == 0 {
			for _, item := range extractListItems(extractSection(content, "layer")) {
				arch.Layers = append(arch.Layers, itemLabel(item))
				used = true
			}
		}
		for _, m := range componentHeadingRe.FindAllStringSubmatch(content, -1) {
			components[strings.TrimSpace(m[1])] = true
			used = true
		}
		for _, m := range componentBulletRe.FindAllStringSubmatch(content, -1) {
			components[strings.TrimSpace(m[1])] = true
			used = true
		}
		if arch.DataFlowDescription == "" {
			if flow := firstParagraph(extractSection(content, "data flow", "dataflow", "request flow")); flow != "" {
				arch.DataFlowDescription = flow
				used = true
			}
		}
		if used {
			arch.SourceDocs = append(arch.SourceDocs, d.Path)
		}
	}

	for _, c := range claims {
		if c.Category == facts.ClaimArchitecture && !containsString(arch.SourceDocs, c.SourceDoc) {
			arch.SourceDocs = append(arch.SourceDocs, c.SourceDoc)
		}
	}
	arch.Components = sortedKeys(components)
	sort.Strings(arch.SourceDocs)
	return arch
}

// buildSetup collects prerequisites, commands and environment variables.
func buildSetup(docs []facts.DocumentFile) facts.SetupGuide {
	var g facts.SetupGuide
	env := make(map[string]bool)

	for _, d := range docsIn(docs, facts.CategorySetup, facts.CategoryPrimary, facts.CategoryContributing) {
		if !isMarkdown(d.Path) {
			continue
		}
		used := false
		for _, item := range extractListItems(extractSection(d.Content, "prerequisite", "requirement", "dependencies")) {
			g.Prerequisites = appendUnique(g.Prerequisites, plainText(item))
			used = true
		}

		md := parseMarkdown(d.Content)
		for _, f := range md.Fences {
			if !isShellFence(f.Lang) {
				continue
			}
			heading := strings.ToLower(f.Heading)
			for _, l := range f.Lines {
				for _, cmd := range splitCommands(l) {
					switch {
					case testCommandRe.MatchString(cmd):
						g.TestCommands = appendUnique(g.TestCommands, cmd)
						used = true
					case strings.Contains(heading, "build"):
						g.BuildCommands = appendUnique(g.BuildCommands, cmd)
						used = true
					case setupHeadingRe.MatchString(heading):
						g.InstallCommands = appendUnique(g.InstallCommands, cmd)
						used = true
					}
				}
			}
		}
		for _, m := range envVarRe.FindAllStringSubmatch(d.Content, -1) {
			env[m[1]] = true
			used = true
		}
		if used {
			g.SourceDocs = append(g.SourceDocs, d.Path)
		}
	}
	g.EnvVars = sortedKeys(env)
	return g
}

// buildAPI determines the documented API style and endpoints.
func buildAPI(docs []facts.DocumentFile) facts.APISpec {
	var spec facts.APISpec
	seen := make(map[string]bool)
	addEndpoint := func(method, path string) {
		key := method + " " + path
		if seen[key] {
			return
		}
		seen[key] = true
		spec.Endpoints = append(spec.Endpoints, facts.Endpoint{Method: method, Path: path})
	}

	for _, d := range docsIn(docs, facts.CategoryAPI, facts.CategoryPrimary) {
		used := false
		if !isMarkdown(d.Path) {
			if endpoints, ok := parseOpenAPI(d.Content); ok {
				for _, e := range endpoints {
					addEndpoint(e.Method, e.Path)
				}
				if spec.Type == "" {
					spec.Type = "rest"
				}
				spec.SourceDocs = append(spec.SourceDocs, d.Path)
			}
			continue
		}

		lower := strings.ToLower(d.Content)
		if spec.Type == "" {
			switch {
			case strings.Contains(lower, "graphql"):
				spec.Type = "graphql"
				used = true
			case strings.Contains(lower, "grpc"):
				spec.Type = "grpc"
				used = true
			case d.Category == facts.CategoryAPI || strings.Contains(lower, "rest api") || strings.Contains(lower, "endpoint"):
				spec.Type = "rest"
				used = true
			}
		}
		for _, m := range endpointRe.FindAllStringSubmatch(d.Content, -1) {
			addEndpoint(m[1], m[2])
			used = true
		}
		if used {
			spec.SourceDocs = append(spec.SourceDocs, d.Path)
		}
	}
	return spec
}

// parseOpenAPI reads the path table of an OpenAPI/Swagger document (YAML or JSON).
func parseOpenAPI(content string) ([]facts.Endpoint, bool) {
	var doc struct {
		OpenAPI string                            `yaml:"openapi"`
		Swagger string                            `yaml:"swagger"`
		Paths   map[string]map[string]interface{} `yaml:"paths"`
	}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, false
	}
	if doc.OpenAPI == "" && doc.Swagger == "" {
		return nil, false
	}

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var endpoints []facts.Endpoint
	for _, p := range paths {
		methods := make([]string, 0, len(doc.Paths[p]))
		for m := range doc.Paths[p] {
			switch strings.ToLower(m) {
			case "get", "post", "put", "delete", "patch":
				methods = append(methods, strings.ToUpper(m))
			}
		}
		sort.Strings(methods)
		for _, m := range methods {
			endpoints = append(endpoints, facts.Endpoint{Method: m, Path: p})
		}
	}
	return endpoints, true
}

// openAPIClaim turns a parsed API specification into a testable API claim.
func openAPIClaim(d facts.DocumentFile) (facts.Claim, bool) {
	endpoints, ok := parseOpenAPI(d.Content)
	if !ok {
		return facts.Claim{}, false
	}
	return facts.Claim{
		SourceDoc:        d.Path,
		Category:         facts.ClaimAPI,
		Description:      "Exposes a REST API described by an OpenAPI document",
		Evidence:         d.Path,
		Rule:             RuleAPIStyle,
		Entities:         []string{"REST"},
		IsTestable:       len(endpoints) > 0,
		ValidationStatus: facts.StatusUnresolved,
	}, true
}

func buildQualityStandards(docs []facts.DocumentFile) []string {
	found := make(map[string]bool)
	for _, d := range docsIn(docs, facts.CategoryContributing, facts.CategoryPrimary) {
		for _, m := range lintersRe.FindAllStringSubmatch(d.Content, -1) {
			found[strings.ToLower(m[1])] = true
		}
	}
	return sortedKeys(found)
}

func buildKnownIssues(docs []facts.DocumentFile) []string {
	var issues []string
	for _, d := range docs {
		if !isMarkdown(d.Path) {
			continue
		}
		section := extractSection(d.Content, "known issue", "limitation", "caveat", "todo")
		for _, item := range extractListItems(section) {
			issues = appendUnique(issues, plainText(item))
		}
	}
	return issues
}

// completeness scores which documentation categories are present, in [0,1].
func completeness(docs []facts.DocumentFile) float64 {
	present := make(map[string]bool)
	for _, d := range docs {
		present[d.Category] = true
	}
	var score, total float64
	for cat, w := range completenessWeights {
		total += w
		if present[cat] {
			score += w
		}
	}
	return score / total
}

// itemLabel returns the label part of a list item such as "**Domain**: entities".
func itemLabel(item string) string {
	item = plainText(item)
	for _, sep := range []string{":", " - ", " – "} {
		if idx := strings.Index(item, sep); idx > 0 {
			return strings.TrimSpace(item[:idx])
		}
	}
	return item
}

func appendUnique(ss []string, s string) []string {
	if s == "" || containsString(ss, s) {
		return ss
	}
	return append(ss, s)
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
