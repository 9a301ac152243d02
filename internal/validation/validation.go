// Package validation reconciles documentation claims against code facts and
// produces a drift report. Everything here is a pure function of its inputs.
package validation

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/dejo1307/docdrift/internal/docs"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/vocab"
)

// DefaultMatchThreshold is the match score a claim needs to be valid.
const DefaultMatchThreshold = 0.8

// Options tunes classification.
type Options struct {
	MatchThreshold float64
}

// resolution is the outcome of matching one claim against the code facts.
type resolution struct {
	resolved   int
	total      int
	evidence   []string
	missing    []string
	untestable bool
	// outdated is set when a stated version is older than the one the code pins.
	outdated string
}

func (r *resolution) hit(evidence string) {
	r.total++
	r.resolved++
	r.evidence = append(r.evidence, evidence)
}

// half counts an entity that resolves only weakly.
func (r *resolution) half(entity, evidence string) {
	r.total += 2
	r.resolved++
	r.evidence = append(r.evidence, evidence)
	r.missing = append(r.missing, entity)
}

func (r *resolution) miss(entity string) {
	r.total++
	r.missing = append(r.missing, entity)
}

func (r *resolution) score() float64 {
	if r.total == 0 {
		return 0
	}
	return float64(r.resolved) / float64(r.total)
}

// Validate resolves every testable claim in docs to exactly one
// ValidationResult. Untestable claims are not scored and produce no result.
func Validate(d *facts.DocumentationAnalysis, code *facts.CodeAnalysis, opts Options) *facts.DriftReport {
	threshold := opts.MatchThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}

	report := facts.NewDriftReport()
	if d == nil || code == nil {
		return report
	}

	for _, c := range d.Claims {
		if !c.IsTestable {
			continue
		}
		res := resolve(c, code)
		report.Add(classify(c, res, threshold))
	}

	undocumented, outdated := DetectDocumentationDrift(d, code)
	for _, u := range undocumented {
		report.AddUndocumented(u)
	}
	for _, o := range outdated {
		report.AddOutdated(o)
	}
	report.Sort()
	return report
}

// DetectDocumentationDrift returns the code facts no claim mentions
// (frameworks and entry points) and the documented versions older than the
// versions pinned by the code.
func DetectDocumentationDrift(d *facts.DocumentationAnalysis, code *facts.CodeAnalysis) (undocumented, outdated []string) {
	var entities []string
	for _, c := range d.Claims {
		entities = append(entities, c.Entities...)
	}

	for _, f := range code.Structure.Frameworks {
		if !mentioned(entities, f) {
			undocumented = append(undocumented, "Framework: "+f)
		}
	}
	for _, e := range code.Structure.EntryPoints {
		if !pathMentioned(entities, e.Path) {
			undocumented = append(undocumented, "Entry point: "+e.Path)
		}
	}

	for _, c := range d.Claims {
		if c.Rule != docs.RuleVersion {
			continue
		}
		for _, req := range c.Versions {
			if rt, ok := findRuntime(code, req.Tool); ok && compareVersions(req.Version, rt.Version) < 0 {
				outdated = append(outdated, outdatedRef(c, req, rt))
			}
		}
	}
	return undocumented, outdated
}

func resolve(c facts.Claim, code *facts.CodeAnalysis) *resolution {
	res := &resolution{}
	if len(c.Entities) == 0 {
		res.untestable = true
		return res
	}
	switch c.Rule {
	case docs.RulePattern:
		resolvePatterns(res, c.Entities, code)
	case docs.RuleDirectory:
		resolvePaths(res, c.Entities, code)
	case docs.RuleAPIStyle:
		resolveAPIStyles(res, c.Entities, code)
	case docs.RuleVersion:
		resolveVersions(res, c, code)
	case docs.RuleCommand:
		resolveManifests(res, c.Entities, code)
	case docs.RuleLanguage:
		resolveLanguages(res, c.Entities, code)
	case docs.RuleTechnology:
		resolveTechnologies(res, c.Entities, code)
	default:
		res.untestable = true
	}
	return res
}

func resolvePatterns(res *resolution, patterns []string, code *facts.CodeAnalysis) {
	for _, p := range patterns {
		aliases := vocab.PatternAliases[p]
		if len(aliases) == 0 {
			aliases = []string{p}
		}
		switch {
		case contains(aliases, code.Pattern.Name):
			res.hit(fmt.Sprintf("code layout classified as %s (confidence %.2f)", code.Pattern.Name, code.Pattern.Confidence))
		case candidateFor(code.Pattern, aliases) != "":
			name := candidateFor(code.Pattern, aliases)
			res.half(p, fmt.Sprintf("%s is only a secondary candidate; best match is %s", name, orNone(code.Pattern.Name)))
		default:
			res.miss(p)
			res.evidence = append(res.evidence, fmt.Sprintf("no %s signature found; best match is %s", p, orNone(code.Pattern.Name)))
		}
	}
}

func candidateFor(p facts.ArchitecturePattern, aliases []string) string {
	for _, a := range aliases {
		if _, ok := p.Candidate(a); ok {
			return a
		}
	}
	return ""
}

func resolvePaths(res *resolution, paths []string, code *facts.CodeAnalysis) {
	dirs := make(map[string]bool, len(code.Structure.Directories))
	for _, d := range code.Structure.Directories {
		dirs[d] = true
	}
	for _, p := range paths {
		switch {
		case dirs[p]:
			res.hit("directory "+p+" exists")
		case path.Ext(p) != "" && knownFile(code, p):
			res.hit("file "+p+" exists")
		case path.Ext(p) != "" && dirs[path.Dir(p)]:
			res.half(p, "directory "+path.Dir(p)+" exists but "+path.Base(p)+" was not confirmed")
		case code.Structure.ModuleGraph != nil && code.Structure.ModuleGraph.HasNode(p):
			res.hit("module "+p+" exists")
		default:
			res.miss(p)
		}
	}
}

// knownFile reports whether a file path appears among the manifests or entry points.
func knownFile(code *facts.CodeAnalysis, p string) bool {
	for _, m := range code.Structure.Manifests {
		if m == p {
			return true
		}
	}
	for _, e := range code.Structure.EntryPoints {
		if e.Path == p {
			return true
		}
	}
	return false
}

func resolveAPIStyles(res *resolution, styles []string, code *facts.CodeAnalysis) {
	for _, s := range styles {
		if contains(code.Structure.APIStyles, strings.ToLower(s)) {
			res.hit(s+" surface detected")
			continue
		}
		res.miss(s)
		res.evidence = append(res.evidence, fmt.Sprintf("no %s surface detected; code exposes %s", s, orNone(strings.Join(code.Structure.APIStyles, ", "))))
	}
}

// toolLanguages maps runtime names to the languages that imply them.
var toolLanguages = map[string][]string{
	"python": {"Python"},
	"node":   {"JavaScript", "TypeScript"},
	"deno":   {"TypeScript", "JavaScript"},
	"go":     {"Go"},
	"java":   {"Java", "Kotlin"},
	"ruby":   {"Ruby"},
	"rust":   {"Rust"},
	"php":    {"PHP"},
	"dotnet": {"C#"},
}

func resolveVersions(res *resolution, c facts.Claim, code *facts.CodeAnalysis) {
	for _, req := range c.Versions {
		rt, pinned := findRuntime(code, req.Tool)
		if !pinned {
			if toolPresent(code, req.Tool) {
				res.hit(req.Tool+" is used; no manifest pins a version")
			} else {
				res.miss(req.Tool)
				res.evidence = append(res.evidence, "no "+req.Tool+" sources, manifests or dependencies found")
			}
			continue
		}
		switch cmp := compareVersions(req.Version, rt.Version); {
		case cmp == 0:
			res.hit(fmt.Sprintf("%s %s pinned in %s", req.Tool, rt.Version, rt.Source))
		case cmp < 0:
			res.half(req.Tool, fmt.Sprintf("documentation states %s %s but %s pins %s", req.Tool, req.Version, rt.Source, rt.Version))
			res.outdated = outdatedRef(c, req, rt)
		default:
			res.half(req.Tool, fmt.Sprintf("documentation states %s %s, newer than %s pinned in %s", req.Tool, req.Version, rt.Version, rt.Source))
		}
	}
}

func findRuntime(code *facts.CodeAnalysis, tool string) (facts.RuntimeVersion, bool) {
	for _, rt := range code.Structure.Runtimes {
		if strings.EqualFold(rt.Tool, tool) {
			return rt, true
		}
	}
	return facts.RuntimeVersion{}, false
}

func toolPresent(code *facts.CodeAnalysis, tool string) bool {
	for _, lang := range toolLanguages[strings.ToLower(tool)] {
		if code.Structure.LanguageDistribution[lang] > 0 {
			return true
		}
	}
	return technologyUsed(code, tool)
}

// compareVersions compares a documented version with a pinned one at the
// documented precision: "3.11" equals "3.11.4".
func compareVersions(documented, pinned string) int {
	doc := "v" + strings.TrimPrefix(documented, "v")
	code := "v" + strings.TrimPrefix(pinned, "v")
	if !semver.IsValid(doc) || !semver.IsValid(code) {
		return strings.Compare(documented, pinned)
	}
	switch strings.Count(documented, ".") {
	case 0:
		code = semver.Major(code)
	case 1:
		code = semver.MajorMinor(code)
	}
	return semver.Compare(doc, code)
}

func outdatedRef(c facts.Claim, req facts.VersionRequirement, rt facts.RuntimeVersion) string {
	loc := c.SourceDoc
	if c.Line > 0 {
		loc = fmt.Sprintf("%s:%d", c.SourceDoc, c.Line)
	}
	return fmt.Sprintf("%s: %s %s %s (code pins %s in %s)", loc, req.Tool, req.Operator, req.Version, rt.Version, rt.Source)
}

func resolveManifests(res *resolution, entities []string, code *facts.CodeAnalysis) {
	for _, e := range entities {
		alternatives := strings.Split(e, "|")
		if found := findManifest(code, alternatives); found != "" {
			res.hit(found+" present")
			continue
		}
		res.miss(e)
		res.evidence = append(res.evidence, "none of "+strings.Join(alternatives, ", ")+" found")
	}
}

func findManifest(code *facts.CodeAnalysis, alternatives []string) string {
	candidates := append([]string{}, code.Structure.Manifests...)
	for _, ep := range code.Structure.EntryPoints {
		candidates = append(candidates, ep.Path)
	}
	for _, alt := range alternatives {
		for _, c := range candidates {
			if c == alt {
				return c
			}
			if strings.Contains(alt, "/") {
				continue
			}
			if ok, _ := path.Match(alt, path.Base(c)); ok {
				return c
			}
		}
	}
	return ""
}

func resolveLanguages(res *resolution, langs []string, code *facts.CodeAnalysis) {
	for _, l := range langs {
		if pct := languageShare(code, l); pct > 0 {
			res.hit(fmt.Sprintf("%s makes up %.1f%% of the sources", l, pct))
			continue
		}
		res.miss(l)
		res.evidence = append(res.evidence, "no "+l+" sources found")
	}
}

func languageShare(code *facts.CodeAnalysis, lang string) float64 {
	for l, pct := range code.Structure.LanguageDistribution {
		if strings.EqualFold(l, lang) {
			return pct
		}
	}
	return 0
}

func resolveTechnologies(res *resolution, names []string, code *facts.CodeAnalysis) {
	for _, n := range names {
		if technologyUsed(code, n) {
			res.hit(n+" detected in code")
			continue
		}
		res.miss(n)
		res.evidence = append(res.evidence, n+" not found in dependencies, imports or files")
	}
}

func technologyUsed(code *facts.CodeAnalysis, name string) bool {
	if code.HasFramework(name) {
		return true
	}
	obs := code.Observability
	for _, list := range [][]string{obs.Metrics, obs.Tracing, obs.LoggingLibraries} {
		for _, v := range list {
			if strings.EqualFold(v, name) {
				return true
			}
		}
	}
	t, ok := vocab.Lookup(name)
	if !ok {
		return false
	}
	for _, d := range code.Structure.Dependencies {
		if t.MatchesPackage(d.Name) {
			return true
		}
	}
	return false
}

func classify(c facts.Claim, res *resolution, threshold float64) facts.ValidationResult {
	out := facts.ValidationResult{
		ClaimID:  c.ID,
		Claim:    c,
		Score:    res.score(),
		Evidence: strings.Join(res.evidence, "; "),
	}
	switch {
	case res.untestable:
		out.Status = facts.StatusUntestable
		out.Evidence = "claim names nothing that can be checked against the code"
	case out.Score >= threshold:
		out.Status = facts.StatusValid
	case res.resolved > 0:
		out.Status = facts.StatusPartial
	default:
		out.Status = facts.StatusInvalid
	}
	out.Severity = severity(c, out.Status)
	out.Recommendation = recommendation(c, out.Status, res)
	out.Claim.ValidationStatus = out.Status
	return out
}

// severity assigns the rule-based severity of a result.
func severity(c facts.Claim, status string) facts.Severity {
	var sev facts.Severity
	switch {
	case status == facts.StatusInvalid && c.Category == facts.ClaimSetup:
		sev = facts.SeverityCritical
	case status == facts.StatusInvalid && (c.Category == facts.ClaimArchitecture || c.Category == facts.ClaimAPI):
		sev = facts.SeverityHigh
	case status == facts.StatusPartial:
		sev = facts.SeverityMedium
	default:
		sev = facts.SeverityLow
	}
	if c.SecurityRelevant && (status == facts.StatusInvalid || status == facts.StatusPartial) {
		sev = sev.Escalate()
	}
	return sev
}

func recommendation(c facts.Claim, status string, res *resolution) string {
	if status == facts.StatusValid || status == facts.StatusUntestable {
		return ""
	}
	missing := strings.Join(res.missing, ", ")
	switch c.Rule {
	case docs.RuleVersion:
		if res.outdated != "" {
			return "Update the documented version requirement to match the pinned runtime"
		}
		return "Pin " + missing + " in a manifest or correct the documented requirement"
	case docs.RuleCommand:
		return "Add the missing manifest (" + missing + ") or fix the setup instructions in " + c.SourceDoc
	case docs.RulePattern:
		return "Describe the architecture the code actually follows, or restructure toward " + missing
	case docs.RuleAPIStyle:
		return "Document the API styles the code exposes instead of " + missing
	case docs.RuleDirectory:
		return "Update the documented layout: " + missing + " not found"
	case docs.RuleLanguage, docs.RuleTechnology:
		return "Remove or correct the mention of " + missing + " in " + c.SourceDoc
	}
	return "Reconcile " + c.SourceDoc + " with the code"
}

func mentioned(entities []string, name string) bool {
	for _, e := range entities {
		if strings.EqualFold(e, name) {
			return true
		}
	}
	return false
}

// pathMentioned reports whether a claim names the path, one of its parent
// directories, or (for command manifests) its basename.
func pathMentioned(entities []string, p string) bool {
	for _, e := range entities {
		for _, alt := range strings.Split(e, "|") {
			if alt == p || strings.HasPrefix(p, alt+"/") || alt == path.Base(p) {
				return true
			}
		}
	}
	return false
}

func contains(ss []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
