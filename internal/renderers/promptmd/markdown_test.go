package promptmd

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/dejo1307/docdrift/internal/facts"
)

func makeAnalysis(ps []facts.Prompt, report *facts.DriftReport) *facts.RepositoryAnalysis {
	return &facts.RepositoryAnalysis{
		RunID:       "run-1",
		RepoPath:    "/repo",
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:    "1s",
		Outcome:     facts.OutcomeComplete,
		Prompts:     ps,
		DriftReport: report,
	}
}

func longPrompts() []facts.Prompt {
	var ps []facts.Prompt
	for phase := 0; phase < 5; phase++ {
		ps = append(ps, facts.Prompt{
			ID:          string(rune('0'+phase)) + ".1",
			Phase:       phase,
			Title:       "Review",
			Objective:   strings.Repeat("objective ", 40),
			Tasks:       []string{strings.Repeat("task ", 50)},
			Deliverable: "report",
			DependsOn:   []string{},
			Complexity:  "medium",
		})
	}
	return ps
}

func TestTokenBudgetEnforcement(t *testing.T) {
	r := New(100)
	artifacts, err := r.Render(context.Background(), makeAnalysis(longPrompts(), nil))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}

	content := string(artifacts[0].Content)
	if !strings.Contains(content, "*[Truncated in: Phase 0: Documentation Review]*") {
		t.Errorf("expected truncation marker in output:\n%s", content)
	}
	if !strings.Contains(content, "*[Omitted: Phase 1: Architecture Analysis") {
		t.Error("expected later phases to be listed as omitted")
	}
	if strings.Contains(content, "## Phase 1") {
		t.Error("phase 1 should not be rendered")
	}
	// Budget (400 chars) plus the truncation and omission markers.
	if maxExpected := 100*4 + 200; len(content) > maxExpected {
		t.Errorf("content length %d exceeds expected truncated size %d", len(content), maxExpected)
	}
}

func TestTinyBudgetOmitsEverything(t *testing.T) {
	r := New(10)
	artifacts, err := r.Render(context.Background(), makeAnalysis(longPrompts(), nil))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	content := string(artifacts[0].Content)
	if !strings.HasPrefix(content, "# AI Code Review Prompts") {
		t.Error("expected header")
	}
	if !strings.Contains(content, "*[Omitted: Summary, Phase 0: Documentation Review") {
		t.Errorf("expected every section omitted, got:\n%s", content)
	}
}

func TestRender_PhasesInOrder(t *testing.T) {
	ps := []facts.Prompt{
		{ID: "0.1", Phase: 0, Title: "README Analysis", Tasks: []string{"read"}, DependsOn: []string{}},
		{ID: "1.1", Phase: 1, Title: "Architecture", Tasks: []string{"compare"}, DependsOn: []string{"0.1"},
			Context: map[string]any{"pattern": "layered"}},
		{ID: "4.1", Phase: 4, Title: "Remediation", Tasks: []string{"plan"}, DependsOn: []string{"1.1"}},
	}
	r := New(4000)
	artifacts, err := r.Render(context.Background(), makeAnalysis(ps, nil))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	content := string(artifacts[0].Content)

	order := []string{
		"# AI Code Review Prompts",
		"## Summary",
		"## Phase 0: Documentation Review",
		"### 0.1 README Analysis",
		"## Phase 1: Architecture Analysis",
		"**Depends on**: 0.1",
		"\"pattern\": \"layered\"",
		"## Phase 4: Remediation",
		"*Run run-1 generated at 2024-01-01T00:00:00Z",
	}
	last := -1
	for _, want := range order {
		idx := strings.Index(content, want)
		if idx < 0 {
			t.Fatalf("missing %q in:\n%s", want, content)
		}
		if idx < last {
			t.Errorf("%q out of order", want)
		}
		last = idx
	}
	if strings.Contains(content, "## Phase 2") || strings.Contains(content, "## Phase 3") {
		t.Error("phases without prompts should not be rendered")
	}
	if strings.Contains(content, "Truncated") || strings.Contains(content, "Omitted") {
		t.Error("unexpected truncation with a generous budget")
	}
}

func TestRender_SummaryCounts(t *testing.T) {
	report := facts.NewDriftReport()
	report.Add(facts.ValidationResult{ClaimID: "C001", Claim: facts.Claim{Category: facts.ClaimAPI}, Status: facts.StatusInvalid, Severity: facts.SeverityHigh})
	report.Add(facts.ValidationResult{ClaimID: "C002", Claim: facts.Claim{Category: facts.ClaimSetup}, Status: facts.StatusValid, Severity: facts.SeverityLow})
	report.AddUndocumented("Framework: Docker")

	r := New(4000)
	artifacts, err := r.Render(context.Background(), makeAnalysis(nil, report))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	content := string(artifacts[0].Content)
	for _, want := range []string{
		"**Overall severity**: high",
		"**Claims validated**: 1 valid, 0 partial, 1 invalid",
		"**Undocumented features**: 1",
		"| high | 1 |",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in summary:\n%s", want, content)
		}
	}
}

func TestRender_NoValidation(t *testing.T) {
	r := New(4000)
	artifacts, err := r.Render(context.Background(), makeAnalysis(nil, nil))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(artifacts[0].Content), "_not run_") {
		t.Error("expected validation to be reported as not run")
	}
}

func TestPrompts_GroupsByPhase(t *testing.T) {
	ps := longPrompts()
	ps = append(ps[:2], facts.Prompt{ID: "1.2", Phase: 1, Title: "Second", Tasks: []string{"look"}})

	md, err := Prompts(ps)
	if err != nil {
		t.Fatalf("Prompts: %v", err)
	}
	if got := strings.Count(md, "## Phase 1: "); got != 1 {
		t.Errorf("phase 1 heading count = %d, want 1", got)
	}
	if !strings.HasPrefix(md, "## Phase 0: Documentation Review") {
		t.Errorf("output should start with phase 0:\n%s", md)
	}
	if strings.Index(md, "### 1.1") > strings.Index(md, "### 1.2") {
		t.Error("1.1 should precede 1.2")
	}
	if strings.Contains(md, "# AI Code Review Prompts") {
		t.Error("prompt listing should not carry the document header")
	}
}

func TestCut_RuneBoundary(t *testing.T) {
	s := "ab→cd" // → spans bytes 2..4
	tests := []struct {
		n    int
		want string
	}{
		{2, "ab"},
		{3, "ab"},
		{4, "ab"},
		{5, "ab→"},
		{100, s},
		{0, ""},
	}
	for _, tt := range tests {
		got := cut(s, tt.n)
		if got != tt.want {
			t.Errorf("cut(%q, %d) = %q, want %q", s, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("cut(%q, %d) produced invalid UTF-8", s, tt.n)
		}
	}
}
