package quality

import (
	"context"
	"strings"
	"testing"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

const original = `package calc

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
`

const copied = `package stats

// TODO: handle overflow
func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
`

func byKind(ss []facts.QualitySignal, kind string) []facts.QualitySignal {
	var out []facts.QualitySignal
	for _, s := range ss {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func analyzeRepo(t *testing.T, files map[string]string) []facts.QualitySignal {
	t.Helper()
	p, err := New(4).Analyze(context.Background(), snapshot.NewMemory(files))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return p.Signals
}

func TestAnalyze(t *testing.T) {
	signals := analyzeRepo(t, map[string]string{
		"go.mod":                "module example.com/demo\n",
		"cmd/app/main.go":       "package main\n\nimport \"example.com/demo/internal/calc\"\n\nfunc main() { calc.Sum() }\n",
		"internal/calc/sum.go":  original,
		"internal/stats/sum.go": copied,
	})

	todos := byKind(signals, facts.SignalTodoMarker)
	if len(todos) != 1 {
		t.Fatalf("todo markers = %+v, want 1", todos)
	}
	if todos[0].Location != (facts.Location{File: "internal/stats/sum.go", Line: 3}) || todos[0].Description != "TODO: handle overflow" {
		t.Errorf("todo = %+v", todos[0])
	}

	dups := byKind(signals, facts.SignalDuplicateBlock)
	if len(dups) != 1 {
		t.Fatalf("duplicate blocks = %+v, want 1 merged block", dups)
	}
	d := dups[0]
	if d.Location != (facts.Location{File: "internal/stats/sum.go", Line: 4, EndLine: 9}) {
		t.Errorf("duplicate location = %+v", d.Location)
	}
	if len(d.Related) != 1 || d.Related[0] != (facts.Location{File: "internal/calc/sum.go", Line: 3, EndLine: 8}) {
		t.Errorf("duplicate related = %+v", d.Related)
	}

	dead := byKind(signals, facts.SignalDeadCode)
	if len(dead) != 1 || dead[0].Location.File != "internal/stats/sum.go" {
		t.Errorf("dead code = %+v, want only internal/stats/sum.go", dead)
	}
}

func TestAnalyze_MarkersNeedCommentContext(t *testing.T) {
	signals := analyzeRepo(t, map[string]string{
		"app.py": "# FIXME: flaky\nname = \"TODO list\"\nx = 1  # HACK around bug\n",
	})
	todos := byKind(signals, facts.SignalTodoMarker)
	if len(todos) != 2 {
		t.Fatalf("markers = %+v, want FIXME and HACK only", todos)
	}
	if todos[0].Rule != "fixme" || todos[1].Rule != "hack" || todos[1].Location.Line != 3 {
		t.Errorf("markers = %+v", todos)
	}
}

func TestAnalyze_NoDeadCodeWithoutImports(t *testing.T) {
	signals := analyzeRepo(t, map[string]string{
		"scripts_one.py": "print(1)\n",
		"scripts_two.py": "print(2)\n",
	})
	if dead := byKind(signals, facts.SignalDeadCode); len(dead) != 0 {
		t.Errorf("dead code = %+v, want none when nothing imports anything", dead)
	}
}

func TestComplexity(t *testing.T) {
	deep := "function f() {\n" + strings.Repeat("if (x) {\n", 6) + strings.Repeat("}\n", 7)
	signals := complexity("deep.js", strings.Split(deep, "\n"))
	if len(signals) != 1 || signals[0].Rule != "nesting-depth" || signals[0].Value != 7 || signals[0].Location.Line != 7 {
		t.Errorf("signals = %+v, want nesting depth 7 at line 7", signals)
	}

	long := strings.Split(strings.Repeat("x = 1\n", MaxFileLines+1), "\n")
	signals = complexity("long.py", long)
	if len(signals) != 1 || signals[0].Rule != "file-length" {
		t.Errorf("signals = %+v, want file-length", signals)
	}
}

func TestNesting_IgnoresBracesInStringsAndComments(t *testing.T) {
	lines := []string{
		`const s = "{{{{{{{{";`,
		`// {{{{{{{{`,
		`if (a) {`,
		`}`,
	}
	if depth, _ := nesting("x.ts", lines); depth != 1 {
		t.Errorf("depth = %d, want 1", depth)
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(6).Analyze(ctx, snapshot.NewMemory(map[string]string{"a.go": "package a\n"}))
	if err == nil {
		t.Fatal("expected context error")
	}
}
