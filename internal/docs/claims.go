package docs

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/vocab"
)

// Claim extraction rules.
const (
	RuleTechnology = "technology"
	RuleVersion    = "version"
	RuleDirectory  = "directory"
	RuleCommand    = "command"
	RuleAPIStyle   = "api-style"
	RulePattern    = "pattern"
	RuleLanguage   = "language"
	RuleCapability = "capability"
)

var (
	runtimeVersionRe = regexp.MustCompile(`(?i)\b(python|node(?:\.?js)?|golang|go|java|jdk|ruby|rust|php|deno|dotnet|\.net)\s*(version\s*|v)?(>=|=>|≥|>|==|=|\^|~)?\s*(\d+(?:\.\d+){0,2})(\+|\s+or\s+(?:higher|later|newer|above|greater))?`)
	languageRe       = regexp.MustCompile(`(?i)\b(?:written in|built (?:with|in)|implemented in|powered by)\s+(go|golang|python|typescript|javascript|rust|java|ruby|kotlin|swift|php|scala|c\+\+|c#)\b`)
	backtickPathRe   = regexp.MustCompile("`(\\.?/?[A-Za-z0-9_][A-Za-z0-9_.\\-]*(?:/[A-Za-z0-9_.\\-]+)*/?)`")
	treeDirRe        = regexp.MustCompile(`^[\s│├└─|` + "`" + `+\-]*([A-Za-z0-9_.][A-Za-z0-9_.\-]*)/\s*(?:#.*)?$`)
	setupHeadingRe   = regexp.MustCompile(`(?i)install|setup|set up|build|getting started|quick ?start|development|running|usage|prerequisite`)
	capabilityRe     = regexp.MustCompile(`(?i)\b(?:aims? to|designed to|strives? to|intends? to|is meant to|makes? it easy|focus(?:es)? on|elegant|lightweight|blazing|powerful|easy to use|simple)\b`)
	securityRe       = regexp.MustCompile(`(?i)\b(?:auth\w*|encrypt\w*|tls|ssl|https|secrets?|passwords?|credentials?|security|sanitiz\w*|csrf|xss)\b`)
)

// commandManifests maps a command's leading tool to the manifest files
// (alternatives separated by "|") it requires to work.
var commandManifests = map[string]string{
	"npm":            "package.json",
	"yarn":           "package.json",
	"pnpm":           "package.json",
	"npx":            "package.json",
	"bun":            "package.json",
	"poetry":         "pyproject.toml",
	"pipenv":         "Pipfile",
	"go":             "go.mod",
	"cargo":          "Cargo.toml",
	"make":           "Makefile|makefile|GNUmakefile",
	"mvn":            "pom.xml",
	"./mvnw":         "pom.xml",
	"gradle":         "build.gradle|build.gradle.kts",
	"./gradlew":      "build.gradle|build.gradle.kts",
	"bundle":         "Gemfile",
	"composer":       "composer.json",
	"dotnet":         "*.csproj|*.sln",
	"docker-compose": "docker-compose.yml|docker-compose.yaml|compose.yml|compose.yaml",
}

// ExtractClaims runs the rule-based claim pass over one document.
// Claim IDs are assigned by the caller.
func ExtractClaims(doc facts.DocumentFile) []facts.Claim {
	switch doc.Category {
	case facts.CategoryLicense, facts.CategoryCodeOfConduct, facts.CategoryChangelog:
		return nil
	}
	if !isMarkdown(doc.Path) {
		return nil
	}

	x := &extractor{doc: doc, seen: make(map[string]bool)}
	md := parseMarkdown(doc.Content)

	for _, l := range md.Lines {
		if l.InFence {
			continue
		}
		x.proseLine(l)
	}
	for _, f := range md.Fences {
		x.fenceBlock(f)
	}
	return x.claims
}

type extractor struct {
	doc    facts.DocumentFile
	claims []facts.Claim
	seen   map[string]bool
}

func (x *extractor) add(c facts.Claim) bool {
	key := c.Rule + "|" + strings.ToLower(strings.Join(c.Entities, ","))
	if c.Rule == RuleCapability {
		key += "|" + c.Evidence
	}
	if x.seen[key] {
		return false
	}
	x.seen[key] = true

	c.SourceDoc = x.doc.Path
	c.ValidationStatus = facts.StatusUnresolved
	if x.doc.Category == facts.CategorySecurity || securityRe.MatchString(c.Evidence) {
		c.SecurityRelevant = true
	}
	x.claims = append(x.claims, c)
	return true
}

func (x *extractor) proseLine(l line) {
	trimmed := strings.TrimSpace(l.Text)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "<") ||
		strings.HasPrefix(trimmed, "[![") || strings.HasPrefix(trimmed, "|-") || strings.HasPrefix(trimmed, "---") {
		return
	}

	for _, raw := range sentences(trimmed) {
		s := plainText(raw)
		if s == "" {
			continue
		}
		produced := x.versionClaims(s, l.Num)
		produced = x.patternClaims(s, l.Num) || produced
		produced = x.apiClaims(s, l.Num) || produced
		produced = x.technologyClaims(s, l.Num) || produced
		produced = x.languageClaims(s, l.Num) || produced
		produced = x.directoryClaims(raw, s, l.Num) || produced

		if !produced && len(s) > 20 && capabilityRe.MatchString(s) {
			x.add(facts.Claim{
				Category:    facts.ClaimFeature,
				Description: "Descriptive statement: " + truncate(s, 120),
				Evidence:    s,
				Line:        l.Num,
				Rule:        RuleCapability,
				IsTestable:  false,
			})
		}
	}
}

// versionClaims handles runtime and technology version constraints.
func (x *extractor) versionClaims(s string, lineNum int) bool {
	produced := false
	for _, m := range runtimeVersionRe.FindAllStringSubmatch(s, -1) {
		if !isVersionConstraint(m) {
			continue
		}
		tool := normalizeTool(m[1])
		op := normalizeOperator(m[3], m[5])
		req := facts.VersionRequirement{Tool: tool, Version: m[4], Operator: op}
		if x.add(facts.Claim{
			Category:    facts.ClaimSetup,
			Description: fmt.Sprintf("Requires %s %s %s", tool, op, m[4]),
			Evidence:    s,
			Line:        lineNum,
			Rule:        RuleVersion,
			Entities:    []string{tool},
			Versions:    []facts.VersionRequirement{req},
			IsTestable:  true,
		}) {
			produced = true
		}
	}
	for _, t := range vocab.Mentions(s) {
		version, orLater, ok := t.VersionIn(s)
		if !ok {
			continue
		}
		op := "="
		if orLater {
			op = ">="
		}
		if x.add(facts.Claim{
			Category:    facts.ClaimSetup,
			Description: fmt.Sprintf("Requires %s %s %s", t.Name, op, version),
			Evidence:    s,
			Line:        lineNum,
			Rule:        RuleVersion,
			Entities:    []string{t.Name},
			Versions:    []facts.VersionRequirement{{Tool: t.Name, Version: version, Operator: op}},
			IsTestable:  true,
		}) {
			produced = true
		}
	}
	return produced
}

func (x *extractor) patternClaims(s string, lineNum int) bool {
	patterns := vocab.ArchitecturePatterns(s)
	if len(patterns) == 0 {
		return false
	}
	return x.add(facts.Claim{
		Category:    facts.ClaimArchitecture,
		Description: "Follows a " + strings.Join(patterns, "/") + " architecture",
		Evidence:    s,
		Line:        lineNum,
		Rule:        RulePattern,
		Entities:    patterns,
		IsTestable:  true,
	})
}

func (x *extractor) apiClaims(s string, lineNum int) bool {
	var styles []string
	for _, t := range vocab.Mentions(s) {
		if t.Kind == vocab.KindAPI {
			styles = append(styles, t.Name)
		}
	}
	if len(styles) == 0 {
		return false
	}
	return x.add(facts.Claim{
		Category:    facts.ClaimAPI,
		Description: "Exposes a " + strings.Join(styles, " and ") + " API",
		Evidence:    s,
		Line:        lineNum,
		Rule:        RuleAPIStyle,
		Entities:    styles,
		IsTestable:  true,
	})
}

func (x *extractor) technologyClaims(s string, lineNum int) bool {
	produced := false
	for _, t := range vocab.Mentions(s) {
		if t.Kind == vocab.KindAPI {
			continue
		}
		if x.add(facts.Claim{
			Category:         facts.ClaimFeature,
			Description:      "Uses " + t.Name,
			Evidence:         s,
			Line:             lineNum,
			Rule:             RuleTechnology,
			Entities:         []string{t.Name},
			IsTestable:       true,
			SecurityRelevant: t.Security,
		}) {
			produced = true
		}
	}
	return produced
}

func (x *extractor) languageClaims(s string, lineNum int) bool {
	m := languageRe.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	lang := canonicalLanguage(m[1])
	return x.add(facts.Claim{
		Category:    facts.ClaimFeature,
		Description: "Implemented in " + lang,
		Evidence:    s,
		Line:        lineNum,
		Rule:        RuleLanguage,
		Entities:    []string{lang},
		IsTestable:  true,
	})
}

// directoryClaims picks up backtick-quoted repository paths in prose.
func (x *extractor) directoryClaims(raw, s string, lineNum int) bool {
	var dirs []string
	for _, m := range backtickPathRe.FindAllStringSubmatch(raw, -1) {
		p := normalizeDocPath(m[1])
		if p == "" || !strings.Contains(p, "/") && !strings.HasSuffix(m[1], "/") {
			continue
		}
		dirs = append(dirs, p)
	}
	if len(dirs) == 0 {
		return false
	}
	return x.add(facts.Claim{
		Category:    facts.ClaimArchitecture,
		Description: "Describes repository paths " + strings.Join(dirs, ", "),
		Evidence:    s,
		Line:        lineNum,
		Rule:        RuleDirectory,
		Entities:    dirs,
		IsTestable:  true,
	})
}

func (x *extractor) fenceBlock(f fence) {
	// Directory tree listings
	var dirs []string
	for _, l := range f.Lines {
		if m := treeDirRe.FindStringSubmatch(l); m != nil {
			dirs = append(dirs, strings.TrimPrefix(m[1], "./"))
		}
	}
	if len(dirs) >= 2 {
		x.add(facts.Claim{
			Category:    facts.ClaimArchitecture,
			Description: "Documents a directory layout: " + strings.Join(dirs, "/, ") + "/",
			Evidence:    strings.Join(f.Lines, "\n"),
			Line:        f.StartLine,
			Rule:        RuleDirectory,
			Entities:    dirs,
			IsTestable:  true,
		})
		return
	}

	if !setupHeadingRe.MatchString(f.Heading) || !isShellFence(f.Lang) {
		return
	}
	for i, l := range f.Lines {
		for _, cmd := range splitCommands(l) {
			manifest, ok := requiredManifest(cmd)
			if !ok {
				continue
			}
			x.add(facts.Claim{
				Category:    facts.ClaimSetup,
				Description: "Setup command `" + cmd + "` (" + f.Heading + ")",
				Evidence:    cmd,
				Line:        f.StartLine + i + 1,
				Rule:        RuleCommand,
				Entities:    []string{manifest},
				IsTestable:  true,
			})
		}
	}
}

// splitCommands strips prompts and comments and splits chained commands.
func splitCommands(l string) []string {
	l = strings.TrimSpace(l)
	l = strings.TrimPrefix(l, "$ ")
	l = strings.TrimPrefix(l, "> ")
	if l == "" || strings.HasPrefix(l, "#") {
		return nil
	}
	var out []string
	for _, part := range strings.Split(l, "&&") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// requiredManifest returns the manifest a command depends on.
func requiredManifest(cmd string) (string, bool) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "", false
	}
	if fields[0] == "sudo" && len(fields) > 1 {
		fields = fields[1:]
	}
	tool := fields[0]

	switch tool {
	case "pip", "pip3":
		for i, f := range fields {
			if (f == "-r" || f == "--requirement") && i+1 < len(fields) {
				return fields[i+1], true
			}
		}
		if len(fields) > 2 && fields[1] == "install" && (fields[2] == "." || fields[2] == "-e") {
			return "pyproject.toml|setup.py", true
		}
		return "", false
	case "python", "python3":
		if len(fields) > 1 && strings.HasSuffix(fields[1], ".py") {
			return fields[1], true
		}
		if len(fields) > 2 && fields[1] == "-m" && fields[2] == "pip" {
			return requiredManifest(strings.Join(fields[2:], " "))
		}
		return "", false
	case "docker":
		if len(fields) > 1 && fields[1] == "compose" {
			return commandManifests["docker-compose"], true
		}
		if len(fields) > 1 && fields[1] == "build" {
			return "Dockerfile", true
		}
		return "", false
	}
	manifest, ok := commandManifests[tool]
	return manifest, ok
}

func isShellFence(lang string) bool {
	switch lang {
	case "", "sh", "bash", "shell", "console", "zsh", "shell-session", "powershell", "cmd", "text":
		return true
	}
	return false
}

func isMarkdown(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".rst") ||
		strings.HasSuffix(lower, ".txt") || !strings.Contains(lower[strings.LastIndex(lower, "/")+1:], ".")
}

func normalizeDocPath(p string) string {
	if strings.HasPrefix(p, "http") || strings.Contains(p, "://") {
		return ""
	}
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	return strings.TrimSuffix(p, "/")
}

func normalizeTool(tool string) string {
	t := strings.ToLower(tool)
	switch {
	case strings.HasPrefix(t, "node"):
		return "node"
	case t == "golang":
		return "go"
	case t == ".net":
		return "dotnet"
	case t == "jdk":
		return "java"
	}
	return t
}

// isVersionConstraint rejects bare counts such as "node 1" in prose. A match
// needs an operator, an or-later suffix, a version prefix, a dotted version,
// or the unambiguous Node.js spelling.
func isVersionConstraint(m []string) bool {
	switch {
	case m[3] != "", strings.TrimSpace(m[5]) != "", strings.TrimSpace(m[2]) != "":
		return true
	case strings.Contains(m[4], "."):
		return true
	}
	return strings.HasSuffix(strings.ToLower(m[1]), "js")
}

func normalizeOperator(op, suffix string) string {
	if strings.TrimSpace(suffix) != "" {
		return ">="
	}
	switch op {
	case ">=", "=>", "≥":
		return ">="
	case ">":
		return ">"
	case "^", "~":
		return op
	}
	return "="
}

func canonicalLanguage(s string) string {
	switch strings.ToLower(s) {
	case "go", "golang":
		return "Go"
	case "typescript":
		return "TypeScript"
	case "javascript":
		return "JavaScript"
	case "c++":
		return "C++"
	case "c#":
		return "C#"
	case "php":
		return "PHP"
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
