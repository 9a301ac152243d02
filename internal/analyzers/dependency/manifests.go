package dependency

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	"github.com/dejo1307/docdrift/internal/facts"
)

var (
	versionNumberRe = regexp.MustCompile(`\d+(?:\.\d+){0,2}`)
	requirementRe   = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(?:\[[^\]]*\])?\s*(?:\(?\s*(==|>=|<=|~=|!=|>|<|===)\s*([^\s;,)]+))?`)
	gemRe           = regexp.MustCompile(`^\s*gem\s+['"]([^'"]+)['"](?:\s*,\s*['"]([^'"]+)['"])?`)
	gemRubyRe       = regexp.MustCompile(`^\s*ruby\s+['"]([^'"]+)['"]`)
	gemGroupRe      = regexp.MustCompile(`^\s*group\s+(.+?)\s+do\b`)
	gemEndRe        = regexp.MustCompile(`^\s*end\b`)
	gradleDepRe     = regexp.MustCompile(`(?m)^\s*(implementation|api|compile|compileOnly|runtimeOnly|testImplementation|testRuntimeOnly|kapt|annotationProcessor)\s*\(?\s*['"]([^:'"\s]+):([^:'"\s]+)(?::([^'"\s]+))?['"]`)
	gradlePluginRe  = regexp.MustCompile(`(?m)^\s*id\s*\(?\s*['"]([\w.-]+)['"]\s*\)?(?:\s*version\s*\(?\s*['"]([^'"]+)['"])?`)
	gradleJavaRe    = regexp.MustCompile(`JavaLanguageVersion\.of\(\s*(\d+)\s*\)|sourceCompatibility\s*=\s*['"]?(?:JavaVersion\.VERSION_)?(\d+(?:[._]\d+)?)`)
	dockerFromRe    = regexp.MustCompile(`(?im)^\s*FROM\s+(?:--platform=\S+\s+)?(?:[\w.-]+/)*(python|node|golang|ruby|openjdk|eclipse-temurin|amazoncorretto|rust|php):v?(\d+(?:\.\d+){0,2})`)
)

// dockerRuntimes maps official base image names to runtime tools.
var dockerRuntimes = map[string]string{
	"python": "python", "node": "node", "golang": "go", "ruby": "ruby", "rust": "rust", "php": "php",
	"openjdk": "java", "eclipse-temurin": "java", "amazoncorretto": "java",
}

// versionNumber extracts the first dotted version number from a constraint
// such as ">=3.11", "^18.2.0" or "python-3.11.4".
func versionNumber(s string) string {
	return versionNumberRe.FindString(s)
}

func parseGoMod(name string, data []byte) (*manifest, error) {
	f, err := modfile.Parse(name, data, nil)
	if err != nil {
		return nil, err
	}
	m := &manifest{}
	for _, r := range f.Require {
		if r.Indirect {
			continue
		}
		m.deps = append(m.deps, facts.Dependency{
			Name:      r.Mod.Path,
			Version:   r.Mod.Version,
			Scope:     facts.ScopeRuntime,
			Ecosystem: "go",
		})
	}
	if f.Go != nil {
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "go", Version: f.Go.Version})
	}
	return m, nil
}

func parsePackageJSON(_ string, data []byte) (*manifest, error) {
	var pkg struct {
		Dependencies     map[string]string `json:"dependencies"`
		DevDependencies  map[string]string `json:"devDependencies"`
		PeerDependencies map[string]string `json:"peerDependencies"`
		Engines          map[string]string `json:"engines"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	m := &manifest{}
	m.addMap("npm", facts.ScopeRuntime, pkg.Dependencies)
	m.addMap("npm", facts.ScopeRuntime, pkg.PeerDependencies)
	m.addMap("npm", facts.ScopeDevelopment, pkg.DevDependencies)
	if v := versionNumber(pkg.Engines["node"]); v != "" {
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "node", Version: v})
	}
	return m, nil
}

// addMap appends name -> constraint pairs in name order.
func (m *manifest) addMap(ecosystem, scope string, deps map[string]string) {
	names := make([]string, 0, len(deps))
	for n := range deps {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		m.deps = append(m.deps, facts.Dependency{Name: n, Version: deps[n], Scope: scope, Ecosystem: ecosystem})
	}
}

func parseRequirements(name string, data []byte) (*manifest, error) {
	scope := facts.ScopeRuntime
	base := strings.ToLower(path.Base(name))
	if strings.Contains(base, "dev") || strings.Contains(base, "test") {
		scope = facts.ScopeDevelopment
	}
	m := &manifest{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		l := strings.TrimSpace(sc.Text())
		if i := strings.Index(l, "#"); i >= 0 {
			l = strings.TrimSpace(l[:i])
		}
		if l == "" || strings.HasPrefix(l, "-") {
			continue
		}
		if d, ok := pep508(l, scope); ok {
			m.deps = append(m.deps, d)
		}
	}
	return m, sc.Err()
}

// pep508 parses a Python requirement specifier like "flask[async]>=2.0; python_version>'3'".
func pep508(spec, scope string) (facts.Dependency, bool) {
	match := requirementRe.FindStringSubmatch(strings.TrimSpace(spec))
	if match == nil {
		return facts.Dependency{}, false
	}
	version := ""
	if match[3] != "" {
		version = match[2] + match[3]
	}
	return facts.Dependency{
		Name:      strings.ToLower(match[1]),
		Version:   version,
		Scope:     scope,
		Ecosystem: "pypi",
	}, true
}

func parsePyProject(_ string, data []byte) (*manifest, error) {
	var doc struct {
		Project struct {
			RequiresPython       string              `toml:"requires-python"`
			Dependencies         []string            `toml:"dependencies"`
			OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies    map[string]any `toml:"dependencies"`
				DevDependencies map[string]any `toml:"dev-dependencies"`
				Group           map[string]struct {
					Dependencies map[string]any `toml:"dependencies"`
				} `toml:"group"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	m := &manifest{}
	for _, spec := range doc.Project.Dependencies {
		if d, ok := pep508(spec, facts.ScopeRuntime); ok {
			m.deps = append(m.deps, d)
		}
	}
	for _, extra := range sortedKeys(doc.Project.OptionalDependencies) {
		for _, spec := range doc.Project.OptionalDependencies[extra] {
			if d, ok := pep508(spec, facts.ScopeDevelopment); ok {
				m.deps = append(m.deps, d)
			}
		}
	}
	if v := versionNumber(doc.Project.RequiresPython); v != "" {
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "python", Version: v})
	}

	poetry := doc.Tool.Poetry
	if py, ok := poetry.Dependencies["python"]; ok {
		if v := versionNumber(constraintOf(py)); v != "" && len(m.runtimes) == 0 {
			m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "python", Version: v})
		}
	}
	m.addAny("pypi", facts.ScopeRuntime, poetry.Dependencies, "python")
	m.addAny("pypi", facts.ScopeDevelopment, poetry.DevDependencies)
	for _, g := range sortedKeys(poetry.Group) {
		m.addAny("pypi", facts.ScopeDevelopment, poetry.Group[g].Dependencies)
	}
	return m, nil
}

func parsePipfile(_ string, data []byte) (*manifest, error) {
	var doc struct {
		Packages    map[string]any `toml:"packages"`
		DevPackages map[string]any `toml:"dev-packages"`
		Requires    struct {
			PythonVersion string `toml:"python_version"`
		} `toml:"requires"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	m := &manifest{}
	m.addAny("pypi", facts.ScopeRuntime, doc.Packages)
	m.addAny("pypi", facts.ScopeDevelopment, doc.DevPackages)
	if v := versionNumber(doc.Requires.PythonVersion); v != "" {
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "python", Version: v})
	}
	return m, nil
}

func parseCargo(_ string, data []byte) (*manifest, error) {
	var doc struct {
		Package struct {
			RustVersion string `toml:"rust-version"`
		} `toml:"package"`
		Dependencies      map[string]any `toml:"dependencies"`
		DevDependencies   map[string]any `toml:"dev-dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	m := &manifest{}
	m.addAny("cargo", facts.ScopeRuntime, doc.Dependencies)
	m.addAny("cargo", facts.ScopeDevelopment, doc.DevDependencies)
	m.addAny("cargo", facts.ScopeBuild, doc.BuildDependencies)
	if v := versionNumber(doc.Package.RustVersion); v != "" {
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "rust", Version: v})
	}
	return m, nil
}

// addAny appends TOML dependency tables whose values are either a version
// string or an inline table carrying "version".
func (m *manifest) addAny(ecosystem, scope string, deps map[string]any, skip ...string) {
	for _, n := range sortedKeys(deps) {
		if contains(skip, n) {
			continue
		}
		name := n
		if ecosystem == "pypi" {
			name = strings.ToLower(n)
		}
		m.deps = append(m.deps, facts.Dependency{
			Name:      name,
			Version:   constraintOf(deps[n]),
			Scope:     scope,
			Ecosystem: ecosystem,
		})
	}
}

func constraintOf(v any) string {
	switch t := v.(type) {
	case string:
		if t == "*" {
			return ""
		}
		return t
	case map[string]any:
		if s, ok := t["version"].(string); ok {
			return s
		}
	}
	return ""
}

func parseGemfile(_ string, data []byte) (*manifest, error) {
	m := &manifest{}
	scope := facts.ScopeRuntime
	depth := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		l := sc.Text()
		if g := gemGroupRe.FindStringSubmatch(l); g != nil {
			depth++
			if strings.Contains(g[1], "development") || strings.Contains(g[1], "test") {
				scope = facts.ScopeDevelopment
			}
			continue
		}
		if depth > 0 && gemEndRe.MatchString(l) {
			depth--
			if depth == 0 {
				scope = facts.ScopeRuntime
			}
			continue
		}
		if r := gemRubyRe.FindStringSubmatch(l); r != nil {
			m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "ruby", Version: versionNumber(r[1])})
			continue
		}
		if g := gemRe.FindStringSubmatch(l); g != nil {
			m.deps = append(m.deps, facts.Dependency{Name: g[1], Version: g[2], Scope: scope, Ecosystem: "rubygems"})
		}
	}
	return m, sc.Err()
}

func parsePom(_ string, data []byte) (*manifest, error) {
	type coordinate struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
		Version    string `xml:"version"`
		Scope      string `xml:"scope"`
	}
	var pom struct {
		Parent     coordinate `xml:"parent"`
		Properties struct {
			JavaVersion     string `xml:"java.version"`
			CompilerSource  string `xml:"maven.compiler.source"`
			CompilerRelease string `xml:"maven.compiler.release"`
		} `xml:"properties"`
		Dependencies struct {
			Dependency []coordinate `xml:"dependency"`
		} `xml:"dependencies"`
	}
	if err := xml.Unmarshal(data, &pom); err != nil {
		return nil, err
	}

	m := &manifest{}
	if pom.Parent.GroupID != "" {
		m.deps = append(m.deps, facts.Dependency{
			Name:      pom.Parent.GroupID + ":" + pom.Parent.ArtifactID,
			Version:   pom.Parent.Version,
			Scope:     facts.ScopeBuild,
			Ecosystem: "maven",
		})
	}
	for _, d := range pom.Dependencies.Dependency {
		scope := facts.ScopeRuntime
		if d.Scope == "test" || d.Scope == "provided" {
			scope = facts.ScopeDevelopment
		}
		m.deps = append(m.deps, facts.Dependency{
			Name:      d.GroupID + ":" + d.ArtifactID,
			Version:   d.Version,
			Scope:     scope,
			Ecosystem: "maven",
		})
	}
	for _, v := range []string{pom.Properties.JavaVersion, pom.Properties.CompilerRelease, pom.Properties.CompilerSource} {
		if n := versionNumber(v); n != "" {
			m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "java", Version: n})
			break
		}
	}
	return m, nil
}

func parseGradle(_ string, data []byte) (*manifest, error) {
	m := &manifest{}
	for _, g := range gradleDepRe.FindAllSubmatch(data, -1) {
		scope := facts.ScopeRuntime
		if strings.HasPrefix(string(g[1]), "test") {
			scope = facts.ScopeDevelopment
		}
		m.deps = append(m.deps, facts.Dependency{
			Name:      string(g[2]) + ":" + string(g[3]),
			Version:   string(g[4]),
			Scope:     scope,
			Ecosystem: "maven",
		})
	}
	for _, g := range gradlePluginRe.FindAllSubmatch(data, -1) {
		id := string(g[1])
		if !strings.Contains(id, ".") {
			continue // core plugins such as "java"
		}
		m.deps = append(m.deps, facts.Dependency{
			Name:      id + ":plugin",
			Version:   string(g[2]),
			Scope:     facts.ScopeBuild,
			Ecosystem: "maven",
		})
	}
	if g := gradleJavaRe.FindSubmatch(data); g != nil {
		v := string(g[1])
		if v == "" {
			v = strings.ReplaceAll(string(g[2]), "_", ".")
		}
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "java", Version: v})
	}
	return m, nil
}

func parseComposer(_ string, data []byte) (*manifest, error) {
	var doc struct {
		Require    map[string]string `json:"require"`
		RequireDev map[string]string `json:"require-dev"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	m := &manifest{}
	if v := versionNumber(doc.Require["php"]); v != "" {
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "php", Version: v})
	}
	delete(doc.Require, "php")
	m.addMap("packagist", facts.ScopeRuntime, doc.Require)
	m.addMap("packagist", facts.ScopeDevelopment, doc.RequireDev)
	return m, nil
}

func parseDockerfile(_ string, data []byte) (*manifest, error) {
	m := &manifest{}
	for _, g := range dockerFromRe.FindAllSubmatch(data, -1) {
		tool := dockerRuntimes[strings.ToLower(string(g[1]))]
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: tool, Version: string(g[2])})
	}
	return m, nil
}

// runtimeFile parses single-value version files such as .python-version.
func runtimeFile(tool string) parseFunc {
	return func(_ string, data []byte) (*manifest, error) {
		first := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
		m := &manifest{}
		if v := versionNumber(first); v != "" {
			m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: tool, Version: v})
		}
		return m, nil
	}
}

// parseRuntimeTxt reads Heroku-style "python-3.11.4".
func parseRuntimeTxt(_ string, data []byte) (*manifest, error) {
	s := strings.TrimSpace(string(data))
	tool, _, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("unrecognised runtime %q", s)
	}
	m := &manifest{}
	if v := versionNumber(s); v != "" {
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: strings.ToLower(tool), Version: v})
	}
	return m, nil
}

// toolVersionNames maps asdf plugin names to runtime tools.
var toolVersionNames = map[string]string{
	"python": "python", "nodejs": "node", "node": "node", "golang": "go", "go": "go",
	"ruby": "ruby", "rust": "rust", "java": "java", "php": "php",
}

func parseToolVersions(_ string, data []byte) (*manifest, error) {
	m := &manifest{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		tool, ok := toolVersionNames[fields[0]]
		if !ok {
			continue
		}
		if v := versionNumber(fields[1]); v != "" {
			m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: tool, Version: v})
		}
	}
	return m, sc.Err()
}

func parseRustToolchain(_ string, data []byte) (*manifest, error) {
	var doc struct {
		Toolchain struct {
			Channel string `toml:"channel"`
		} `toml:"toolchain"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	m := &manifest{}
	if v := versionNumber(doc.Toolchain.Channel); v != "" {
		m.runtimes = append(m.runtimes, facts.RuntimeVersion{Tool: "rust", Version: v})
	}
	return m, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
