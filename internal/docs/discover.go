package docs

import (
	"path"
	"sort"
	"strings"

	"github.com/dejo1307/docdrift/internal/facts"
)

// categoryPatterns is the ordered discovery table. The first group whose
// pattern matches a file decides its category.
var categoryPatterns = []struct {
	Category string
	Patterns []string
}{
	{facts.CategoryPrimary, []string{"README.md", "README.rst", "README.txt", "README"}},
	{facts.CategoryContributing, []string{"CONTRIBUTING.md", "CONTRIBUTING.rst", ".github/CONTRIBUTING.md"}},
	{facts.CategoryArchitecture, []string{"ARCHITECTURE.md", "docs/architecture.md", "docs/architecture/**/*.md", "ADR/*.md", "docs/adr/**/*.md"}},
	{facts.CategoryAPI, []string{"API.md", "docs/api/**/*.md", "openapi.yaml", "openapi.yml", "openapi.json", "swagger.json", "swagger.yaml"}},
	{facts.CategorySetup, []string{"INSTALL.md", "SETUP.md", "docs/setup/**/*.md"}},
	{facts.CategoryChangelog, []string{"CHANGELOG.md", "HISTORY.md", "RELEASES.md"}},
	{facts.CategorySecurity, []string{"SECURITY.md", ".github/SECURITY.md"}},
	{facts.CategoryLicense, []string{"LICENSE", "LICENSE.md", "LICENSE.txt", "COPYING"}},
	{facts.CategoryCodeOfConduct, []string{"CODE_OF_CONDUCT.md", ".github/CODE_OF_CONDUCT.md"}},
	{facts.CategoryOther, []string{"docs/**/*.md", "doc/**/*.md"}},
}

// categoryPriority is the fixed priority table (1 = highest).
var categoryPriority = map[string]int{
	facts.CategoryPrimary:       1,
	facts.CategoryContributing:  2,
	facts.CategoryArchitecture:  2,
	facts.CategorySetup:         2,
	facts.CategoryAPI:           3,
	facts.CategorySecurity:      3,
	facts.CategoryChangelog:     4,
	facts.CategoryLicense:       5,
	facts.CategoryCodeOfConduct: 5,
	facts.CategoryOther:         5,
}

// Classify returns the documentation category of a repository path.
func Classify(relPath string) (string, bool) {
	p := strings.ToLower(relPath)
	for _, group := range categoryPatterns {
		for _, pattern := range group.Patterns {
			if matchDocPattern(strings.ToLower(pattern), p) {
				return group.Category, true
			}
		}
	}
	return "", false
}

// Priority returns the priority of a category.
func Priority(category string) int {
	if p, ok := categoryPriority[category]; ok {
		return p
	}
	return 5
}

// matchDocPattern matches a slash path against a pattern supporting a single
// "**/" segment meaning any depth (including none).
func matchDocPattern(pattern, p string) bool {
	if idx := strings.Index(pattern, "**/"); idx >= 0 {
		prefix := pattern[:idx]
		rest := pattern[idx+3:]
		if !strings.HasPrefix(p, prefix) {
			return false
		}
		tail := strings.TrimPrefix(p, prefix)
		// try every suffix of the remaining path
		for {
			if ok, _ := path.Match(rest, tail); ok {
				return true
			}
			slash := strings.Index(tail, "/")
			if slash < 0 {
				return false
			}
			tail = tail[slash+1:]
		}
	}
	ok, _ := path.Match(pattern, p)
	return ok
}

// PrioritizeDocuments orders documents by (priority, path). It is pure and
// independent of input order.
func PrioritizeDocuments(docs []facts.DocumentFile) []facts.DocumentFile {
	out := make([]facts.DocumentFile, len(docs))
	copy(out, docs)
	for i := range out {
		out[i].Priority = Priority(out[i].Category)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Path < out[j].Path
	})
	return out
}
