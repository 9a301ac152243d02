package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dejo1307/docdrift/internal/config"
	"github.com/dejo1307/docdrift/internal/engine"
	"github.com/dejo1307/docdrift/internal/facts"
)

func TestReadSourceWindow(t *testing.T) {
	// Create a 10-line temp file
	dir := t.TempDir()
	path := filepath.Join(dir, "test.go")
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, "line "+string(rune('0'+i)))
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		centerLine   int
		contextLines int
		wantStart    int
		wantEnd      int
	}{
		{"center middle", 5, 6, 2, 8},
		{"center at start", 1, 10, 1, 6},
		{"center at end", 10, 10, 5, 10},
		{"context larger than file", 5, 20, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readSourceWindow(path, tt.centerLine, tt.contextLines)
			if err != nil {
				t.Fatalf("readSourceWindow: %v", err)
			}

			outputLines := strings.Split(strings.TrimRight(got, "\n"), "\n")

			// Verify first line starts with expected line number
			firstLine := outputLines[0]
			if !strings.Contains(firstLine, "│") {
				t.Fatalf("expected line number format with │, got: %s", firstLine)
			}

			// Count output lines
			expectedCount := tt.wantEnd - tt.wantStart + 1
			if len(outputLines) != expectedCount {
				t.Errorf("got %d output lines, want %d (lines %d-%d)",
					len(outputLines), expectedCount, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestReadSourceWindow_SingleLineFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "single.go")
	if err := os.WriteFile(path, []byte("only line"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readSourceWindow(path, 1, 30)
	if err != nil {
		t.Fatalf("readSourceWindow: %v", err)
	}

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line for single-line file, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "only line") {
		t.Errorf("expected output to contain 'only line', got: %s", lines[0])
	}
}

func TestReadSourceWindow_LineNumberFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.go")
	if err := os.WriteFile(path, []byte("a\nb\nc\nd\ne"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readSourceWindow(path, 3, 4)
	if err != nil {
		t.Fatalf("readSourceWindow: %v", err)
	}

	// Should have format "   N│ content"
	for _, line := range strings.Split(strings.TrimRight(got, "\n"), "\n") {
		if !strings.Contains(line, "│") {
			t.Errorf("line missing │ separator: %q", line)
		}
	}
}

// --- test helpers ---

const readme = "# Demo\n\nA small service written in Go.\n\n## Installation\n\n```bash\nnpm install\n```\n"

// newTestServer analyzes a small repository whose README promises an npm
// setup the code cannot back.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"README.md": readme,
		"go.mod":    "module example.com/demo\n\ngo 1.22\n",
		"main.go":   "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\") // TODO: use a logger\n}\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	cfg.Repo = root
	cfg.Output.Dir = t.TempDir()
	s, err := New(engine.New(cfg), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, root
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(r.Content))
	}
	text, ok := r.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", r.Content[0])
	}
	return text.Text
}

func TestToolsBeforeAnalysis(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		result *mcp.CallToolResult
	}{
		{"get_prompts", s.getPrompts(getPromptsArgs{})},
		{"get_drift_report", s.getDrift(getDriftArgs{})},
		{"query_signals", s.querySignals(querySignalsArgs{})},
		{"show_source", s.showSource(showSourceArgs{File: "main.go"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.result.IsError {
				t.Errorf("%s should fail before analyze_repository", tt.name)
			}
			if !strings.Contains(resultText(t, tt.result), "analyze_repository") {
				t.Errorf("%s error should point at analyze_repository", tt.name)
			}
		})
	}

	for _, r := range resources {
		if _, err := s.readResource(r); err == nil {
			t.Errorf("%s readable before any analysis", r.URI)
		}
	}
}

func TestAnalyzeRepository(t *testing.T) {
	s, root := newTestServer(t)

	res := s.analyze(context.Background(), analyzeArgs{})
	if res.IsError {
		t.Fatalf("analyze failed: %s", resultText(t, res))
	}
	text := resultText(t, res)
	for _, want := range []string{"Analysis completed successfully", root, "overall severity critical", "Prompts:"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}

	if _, err := os.Stat(filepath.Join(s.cfg.Output.Dir, "review_prompts.md")); err != nil {
		t.Errorf("artifacts not written: %v", err)
	}

	for _, r := range resources {
		content, err := s.readResource(r)
		if err != nil {
			t.Errorf("%s: %v", r.URI, err)
			continue
		}
		if len(content) == 0 {
			t.Errorf("%s is empty", r.URI)
		}
	}
}

func TestAnalyzeRepository_Strict(t *testing.T) {
	s, _ := newTestServer(t)

	res := s.analyze(context.Background(), analyzeArgs{Strict: true})
	if !res.IsError {
		t.Fatal("strict analysis with critical drift should be reported as an error")
	}
	if text := resultText(t, res); !strings.Contains(text, "strict validation") {
		t.Errorf("unexpected summary:\n%s", text)
	}
	// Results stay readable.
	if s.getPrompts(getPromptsArgs{}).IsError {
		t.Error("prompts should be available after a critical drift run")
	}
}

func TestAnalyzeRepository_MissingRepo(t *testing.T) {
	s, _ := newTestServer(t)
	res := s.analyze(context.Background(), analyzeArgs{RepoPath: filepath.Join(t.TempDir(), "missing")})
	if !res.IsError {
		t.Fatal("expected an error for a missing repository")
	}
	if !strings.Contains(resultText(t, res), "analysis failed") {
		t.Errorf("unexpected error text: %s", resultText(t, res))
	}
}

func TestGetPrompts(t *testing.T) {
	s, _ := newTestServer(t)
	s.analyze(context.Background(), analyzeArgs{})

	md := resultText(t, s.getPrompts(getPromptsArgs{}))
	if !strings.HasPrefix(md, "## Phase 0: Documentation Review") {
		t.Errorf("markdown should start with phase 0:\n%s", md)
	}

	phase := 4
	res := s.getPrompts(getPromptsArgs{Phase: &phase, Format: "json"})
	var ps []facts.Prompt
	if err := json.Unmarshal([]byte(resultText(t, res)), &ps); err != nil {
		t.Fatalf("decoding prompts: %v", err)
	}
	if len(ps) != 1 || ps[0].ID != "4.1" {
		t.Errorf("phase 4 prompts = %+v", ps)
	}

	res = s.getPrompts(getPromptsArgs{ID: "0.1", Format: "json"})
	if err := json.Unmarshal([]byte(resultText(t, res)), &ps); err != nil {
		t.Fatalf("decoding prompts: %v", err)
	}
	if len(ps) != 1 || ps[0].Title != "README Analysis & Claims Extraction" {
		t.Errorf("prompt 0.1 = %+v", ps)
	}

	if !s.getPrompts(getPromptsArgs{ID: "9.9"}).IsError {
		t.Error("unknown prompt id should be an error")
	}
}

func TestGetDriftReport(t *testing.T) {
	s, _ := newTestServer(t)
	s.analyze(context.Background(), analyzeArgs{})

	var out struct {
		OverallSeverity facts.Severity           `json:"overall_severity"`
		Drift           []facts.ValidationResult `json:"drift"`
	}
	if err := json.Unmarshal([]byte(resultText(t, s.getDrift(getDriftArgs{MinSeverity: "critical"}))), &out); err != nil {
		t.Fatalf("decoding drift: %v", err)
	}
	if out.OverallSeverity != facts.SeverityCritical {
		t.Errorf("overall severity = %s, want critical", out.OverallSeverity)
	}
	if len(out.Drift) == 0 {
		t.Fatal("expected critical drift for the npm setup claim")
	}
	for _, r := range out.Drift {
		if r.Severity != facts.SeverityCritical {
			t.Errorf("%s has severity %s below the requested floor", r.ClaimID, r.Severity)
		}
	}

	if !s.getDrift(getDriftArgs{MinSeverity: "urgent"}).IsError {
		t.Error("unknown severity should be an error")
	}
}

func TestQuerySignals(t *testing.T) {
	s, _ := newTestServer(t)
	s.analyze(context.Background(), analyzeArgs{})

	var signals []facts.QualitySignal
	res := s.querySignals(querySignalsArgs{Kind: facts.SignalTodoMarker, File: "main"})
	if err := json.Unmarshal([]byte(resultText(t, res)), &signals); err != nil {
		t.Fatalf("decoding signals: %v", err)
	}
	if len(signals) != 1 || signals[0].Location.File != "main.go" {
		t.Errorf("todo signals = %+v", signals)
	}
}

func TestQuerySignals_ExactFile(t *testing.T) {
	s, _ := newTestServer(t)
	s.analyze(context.Background(), analyzeArgs{})

	var signals []facts.QualitySignal
	res := s.querySignals(querySignalsArgs{File: "main.go", Text: "LOGGER"})
	if err := json.Unmarshal([]byte(resultText(t, res)), &signals); err != nil {
		t.Fatalf("decoding signals: %v", err)
	}
	if len(signals) == 0 {
		t.Fatal("expected the TODO signal of main.go")
	}
	for _, sig := range signals {
		if sig.Location.File != "main.go" {
			t.Errorf("signal from %s, want main.go only", sig.Location.File)
		}
	}

	res = s.querySignals(querySignalsArgs{File: "main.go", Kind: facts.SignalSecurity})
	if text := resultText(t, res); text != "null" {
		t.Errorf("security signals of main.go = %s, want none", text)
	}
}

func TestShowSource(t *testing.T) {
	s, _ := newTestServer(t)
	s.analyze(context.Background(), analyzeArgs{})

	text := resultText(t, s.showSource(showSourceArgs{File: "main.go", Line: 6, ContextLines: 2}))
	if !strings.Contains(text, "   6│") || !strings.Contains(text, "TODO: use a logger") {
		t.Errorf("unexpected window:\n%s", text)
	}

	for _, f := range []string{"../secret.txt", "/etc/passwd", ""} {
		if !s.showSource(showSourceArgs{File: f}).IsError {
			t.Errorf("show_source(%q) should fail", f)
		}
	}
}
