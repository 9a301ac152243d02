package docs

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dejo1307/docdrift/internal/facts"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path     string
		category string
		ok       bool
	}{
		{"README.md", facts.CategoryPrimary, true},
		{"readme.rst", facts.CategoryPrimary, true},
		{"README", facts.CategoryPrimary, true},
		{".github/CONTRIBUTING.md", facts.CategoryContributing, true},
		{"ARCHITECTURE.md", facts.CategoryArchitecture, true},
		{"docs/architecture.md", facts.CategoryArchitecture, true},
		{"docs/adr/0001-use-postgres.md", facts.CategoryArchitecture, true},
		{"docs/architecture/deep/storage.md", facts.CategoryArchitecture, true},
		{"openapi.yaml", facts.CategoryAPI, true},
		{"docs/api/users.md", facts.CategoryAPI, true},
		{"docs/setup/linux.md", facts.CategorySetup, true},
		{"CHANGELOG.md", facts.CategoryChangelog, true},
		{"SECURITY.md", facts.CategorySecurity, true},
		{"LICENSE", facts.CategoryLicense, true},
		{"CODE_OF_CONDUCT.md", facts.CategoryCodeOfConduct, true},
		{"docs/guide/intro.md", facts.CategoryOther, true},
		{"docs/faq.md", facts.CategoryOther, true},
		{"src/readme.md", "", false},
		{"main.go", "", false},
		{"docs/diagram.png", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Classify(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.category, got)
		})
	}
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 1, Priority(facts.CategoryPrimary))
	assert.Equal(t, 2, Priority(facts.CategoryArchitecture))
	assert.Equal(t, 3, Priority(facts.CategoryAPI))
	assert.Equal(t, 4, Priority(facts.CategoryChangelog))
	assert.Equal(t, 5, Priority(facts.CategoryOther))
	assert.Equal(t, 5, Priority("unknown"))
}

func TestPrioritizeDocuments_Order(t *testing.T) {
	in := []facts.DocumentFile{
		{Path: "docs/guide.md", Category: facts.CategoryOther},
		{Path: "LICENSE", Category: facts.CategoryLicense},
		{Path: "SETUP.md", Category: facts.CategorySetup},
		{Path: "README.md", Category: facts.CategoryPrimary},
		{Path: "ARCHITECTURE.md", Category: facts.CategoryArchitecture},
		{Path: "CHANGELOG.md", Category: facts.CategoryChangelog},
	}
	out := PrioritizeDocuments(in)

	var paths []string
	for _, d := range out {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"README.md", "ARCHITECTURE.md", "SETUP.md", "CHANGELOG.md", "LICENSE", "docs/guide.md"}, paths)
	assert.Equal(t, 1, out[0].Priority)
	assert.Equal(t, 5, out[len(out)-1].Priority)

	// input is not mutated
	assert.Equal(t, "docs/guide.md", in[0].Path)
	assert.Zero(t, in[0].Priority)
}

func TestPrioritizeDocuments_PermutationInvariant(t *testing.T) {
	base := []facts.DocumentFile{
		{Path: "README.md", Category: facts.CategoryPrimary},
		{Path: "CONTRIBUTING.md", Category: facts.CategoryContributing},
		{Path: "ARCHITECTURE.md", Category: facts.CategoryArchitecture},
		{Path: "docs/setup/mac.md", Category: facts.CategorySetup},
		{Path: "API.md", Category: facts.CategoryAPI},
		{Path: "SECURITY.md", Category: facts.CategorySecurity},
		{Path: "docs/a.md", Category: facts.CategoryOther},
		{Path: "docs/b.md", Category: facts.CategoryOther},
	}
	want := PrioritizeDocuments(base)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		shuffled := make([]facts.DocumentFile, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, PrioritizeDocuments(shuffled), "trial %d", trial)
	}
}

func TestMatchDocPattern(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          bool
	}{
		{"docs/**/*.md", "docs/a.md", true},
		{"docs/**/*.md", "docs/x/y/z.md", true},
		{"docs/**/*.md", "src/docs/a.md", false},
		{"adr/*.md", "adr/0001.md", true},
		{"adr/*.md", "adr/sub/0001.md", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchDocPattern(tt.pattern, tt.path), "%s ~ %s", tt.pattern, tt.path)
	}
}
