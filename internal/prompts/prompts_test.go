package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/docdrift/internal/docs"
	"github.com/dejo1307/docdrift/internal/facts"
)

func ids(ps []facts.Prompt) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func result(id, doc, category, rule, status string, sev facts.Severity) facts.ValidationResult {
	return facts.ValidationResult{
		ClaimID: id,
		Claim: facts.Claim{
			ID: id, SourceDoc: doc, Category: category, Rule: rule,
			Description: "claim " + id, IsTestable: true,
		},
		Status:   status,
		Severity: sev,
		Evidence: "evidence " + id,
	}
}

func fixture() *facts.RepositoryAnalysis {
	report := facts.NewDriftReport()
	report.Add(result("C001", "README.md", facts.ClaimAPI, docs.RuleAPIStyle, facts.StatusInvalid, facts.SeverityHigh))
	report.Add(result("C002", "docs/architecture.md", facts.ClaimArchitecture, docs.RulePattern, facts.StatusInvalid, facts.SeverityHigh))
	report.Add(result("C003", "README.md", facts.ClaimSetup, docs.RuleCommand, facts.StatusInvalid, facts.SeverityCritical))
	report.Add(result("C004", "README.md", facts.ClaimFeature, docs.RuleTechnology, facts.StatusValid, facts.SeverityLow))
	report.AddUndocumented("Framework: Docker")

	return &facts.RepositoryAnalysis{
		RepoPath: "/repo",
		Documentation: &facts.DocumentationAnalysis{
			Documents: []facts.DocumentFile{
				{Path: "docs/architecture.md", Category: facts.CategoryArchitecture, Priority: 2, Content: "# Architecture\nLayered."},
				{Path: "README.md", Category: facts.CategoryPrimary, Priority: 1, Content: "# Demo\nA REST API."},
			},
			Claims: []facts.Claim{
				{ID: "C001", SourceDoc: "README.md", Category: facts.ClaimAPI, IsTestable: true},
				{ID: "C002", SourceDoc: "docs/architecture.md", Category: facts.ClaimArchitecture, IsTestable: true},
				{ID: "C003", SourceDoc: "README.md", Category: facts.ClaimSetup, IsTestable: true},
				{ID: "C004", SourceDoc: "README.md", Category: facts.ClaimFeature, IsTestable: true},
			},
			Setup: facts.SetupGuide{InstallCommands: []string{"npm install"}},
		},
		CodeFacts: &facts.CodeAnalysis{
			Structure: facts.CodeStructureFacts{
				LanguageDistribution: map[string]float64{"TypeScript": 100},
				Frameworks:           []string{"Docker", "GraphQL"},
				Dependencies:         []facts.Dependency{{Name: "graphql", Ecosystem: "npm", Scope: facts.ScopeRuntime}},
			},
		},
		QualitySignals: []facts.QualitySignal{
			{Kind: facts.SignalSecurity, Location: facts.Location{File: "src/db.ts", Line: 4}, Description: "SQL built by concatenation", Severity: facts.SeverityHigh},
			{Kind: facts.SignalTodoMarker, Location: facts.Location{File: "src/app.ts", Line: 1}, Description: "TODO: tidy"},
		},
		DriftReport: report,
	}
}

func TestGenerateAllPhases_Order(t *testing.T) {
	ps := GenerateAllPhases(fixture())

	assert.Equal(t, []string{"0.1", "0.2", "0.3", "1.1", "1.2", "2.1", "2.2", "2.3", "3.1", "3.2", "4.1"}, ids(ps))
	require.NoError(t, CheckOrder(ps))
	for i := 1; i < len(ps); i++ {
		assert.LessOrEqual(t, ps[i-1].Phase, ps[i].Phase)
	}
	for _, p := range ps {
		assert.Positive(t, p.EstimatedTokens, p.ID)
		assert.NotEmpty(t, p.Tasks, p.ID)
		assert.NotNil(t, p.DependsOn, p.ID)
	}
}

func TestGenerateAllPhases_Deterministic(t *testing.T) {
	a := fixture()
	first := GenerateAllPhases(a)
	second := GenerateAllPhases(a)
	assert.Equal(t, first, second)
}

func TestGenerateAllPhases_DependsOnlyOnEmittedPrompts(t *testing.T) {
	a := fixture()
	a.Documentation.Documents = a.Documentation.Documents[1:] // no architecture docs
	a.Documentation.Setup = facts.SetupGuide{}
	a.Documentation.Claims = a.Documentation.Claims[:1]
	a.CodeFacts.Structure.Dependencies = nil

	ps := GenerateAllPhases(a)

	assert.NotContains(t, ids(ps), "0.2")
	assert.NotContains(t, ids(ps), "0.3")
	assert.NotContains(t, ids(ps), "1.2")
	emitted := make(map[string]bool)
	for _, p := range ps {
		emitted[p.ID] = true
	}
	for _, p := range ps {
		for _, d := range p.DependsOn {
			assert.True(t, emitted[d], "%s depends on missing %s", p.ID, d)
		}
	}
	require.NoError(t, CheckOrder(ps))
	assert.Equal(t, []string{"0.1"}, Phase(ps, 1)[0].DependsOn)
}

func TestGenerateAllPhases_DocumentationOnly(t *testing.T) {
	a := fixture()
	a.CodeFacts = nil
	a.DriftReport = nil
	a.QualitySignals = nil

	ps := GenerateAllPhases(a)
	assert.Equal(t, []string{"0.1", "0.2", "0.3", "4.1"}, ids(ps))
	assert.Empty(t, Phase(ps, 4)[0].DependsOn)
}

func TestGenerateAllPhases_Nil(t *testing.T) {
	assert.Nil(t, GenerateAllPhases(nil))
}

func TestPhaseZero_ReadmeFirst(t *testing.T) {
	ps := GenerateAllPhases(fixture())
	p := Phase(ps, 0)[0]
	assert.Equal(t, "README.md", p.Context["readme_path"])
	assert.Equal(t, []string{"README.md (primary)", "docs/architecture.md (architecture)"}, p.Context["documents"])
}

func TestFindings_Ranking(t *testing.T) {
	g := New(Options{DocumentationPriority: true})
	findings := g.Findings(fixture())

	var got []string
	for _, f := range findings {
		got = append(got, string(f.Severity)+"|"+f.Category+"|"+f.Source)
	}
	assert.Equal(t, []string{
		"critical|documentation drift|README.md",
		"high|documentation drift|README.md",            // api-style, effort 2, README priority 1
		"high|security|src/db.ts:4",                     // effort 2, no document
		"high|documentation drift|docs/architecture.md", // pattern, effort 3
		"low|undocumented feature|",
	}, got)
}

func TestFindings_WithoutDocumentationPriority(t *testing.T) {
	a := fixture()
	a.DriftReport = facts.NewDriftReport()
	a.DriftReport.Add(result("C001", "docs/architecture.md", facts.ClaimFeature, docs.RuleTechnology, facts.StatusPartial, facts.SeverityMedium))
	a.DriftReport.Add(result("C000", "README.md", facts.ClaimFeature, docs.RuleTechnology, facts.StatusPartial, facts.SeverityMedium))
	a.QualitySignals = nil

	withPriority := New(Options{DocumentationPriority: true}).Findings(a)
	assert.Equal(t, "README.md", withPriority[0].Source)

	a.DriftReport.Features[0].Claim.Description = "b"
	a.DriftReport.Features[1].Claim.Description = "c"
	byDescription := New(Options{}).Findings(a)
	assert.Equal(t, "docs/architecture.md", byDescription[0].Source)
}

func TestRemediationCapsFindings(t *testing.T) {
	a := fixture()
	for i := 0; i < 40; i++ {
		a.QualitySignals = append(a.QualitySignals, facts.QualitySignal{
			Kind: facts.SignalObservabilityGap, Description: "gap", Location: facts.Location{File: "main.go"},
		})
	}
	p := Phase(New(Options{MaxFindings: 5}).GenerateAllPhases(a), 4)[0]
	assert.Len(t, p.Context["findings"], 5)
	assert.Equal(t, 45, p.Context["total_findings"])
}

func TestOrder(t *testing.T) {
	ps := []facts.Prompt{
		{ID: "4.1", Phase: 4, DependsOn: []string{"1.1"}},
		{ID: "1.1", Phase: 1, DependsOn: []string{"0.2", "0.1"}},
		{ID: "0.2", Phase: 0, DependsOn: []string{"0.1"}},
		{ID: "0.1", Phase: 0},
		{ID: "2.1", Phase: 2, DependsOn: []string{"missing"}},
	}
	ordered := Order(ps)
	assert.Equal(t, []string{"0.1", "0.2", "1.1", "2.1", "4.1"}, ids(ordered))
}

func TestOrder_CycleAppendedLast(t *testing.T) {
	ps := []facts.Prompt{
		{ID: "1.1", Phase: 1, DependsOn: []string{"1.2"}},
		{ID: "1.2", Phase: 1, DependsOn: []string{"1.1"}},
		{ID: "0.1", Phase: 0},
	}
	assert.Equal(t, []string{"0.1", "1.1", "1.2"}, ids(Order(ps)))
}

func TestCheckOrder(t *testing.T) {
	ok := []facts.Prompt{{ID: "0.1"}, {ID: "1.1", DependsOn: []string{"0.1"}}}
	assert.NoError(t, CheckOrder(ok))

	bad := []facts.Prompt{{ID: "1.1", DependsOn: []string{"0.1"}}, {ID: "0.1"}}
	assert.Error(t, CheckOrder(bad))
}

func TestPhaseName(t *testing.T) {
	assert.Equal(t, "Documentation Review", PhaseName(0))
	assert.Equal(t, "Remediation", PhaseName(4))
	assert.Equal(t, "Phase 7", PhaseName(7))
}

func TestByID(t *testing.T) {
	ps := GenerateAllPhases(fixture())
	got := ByID(ps, "2.2")
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Phase)
	assert.Empty(t, ByID(ps, "9.9"))
}

func TestArchitecturePrompts_MostImportedModules(t *testing.T) {
	a := fixture()
	g := facts.NewModuleGraph()
	g.AddEdge("src/api", "src/db")
	g.AddEdge("src/jobs", "src/db")
	g.AddEdge("src/api", "src/auth")
	a.CodeFacts.Structure.ModuleGraph = g

	ps := GenerateAllPhases(a)
	want := []facts.ModuleFanIn{{Module: "src/db", FanIn: 2}, {Module: "src/auth", FanIn: 1}}

	arch := ByID(ps, "1.1")
	require.Len(t, arch, 1)
	structure, ok := arch[0].Context["actual_structure"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, want, structure["most_imported_modules"])

	deps := ByID(ps, "1.2")
	require.Len(t, deps, 1)
	assert.Equal(t, want, deps[0].Context["most_imported_modules"])
}
