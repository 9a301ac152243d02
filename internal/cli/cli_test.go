package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/docdrift/internal/config"
	"github.com/dejo1307/docdrift/internal/engine"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/server"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func goRepo(t *testing.T) string {
	return writeRepo(t, map[string]string{
		"README.md": "# Demo\n\nA small service written in Go.\n\n## Installation\n\n```bash\ngo build ./...\n```\n",
		"go.mod":    "module example.com/demo\n\ngo 1.22\n",
		"main.go":   "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n",
	})
}

// execute runs the root command and returns stdout and the command error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitError, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitCriticalDrift, ExitCode(&engine.CriticalDriftError{Report: facts.NewDriftReport()}))
	assert.Equal(t, ExitTimedOut, ExitCode(fmt.Errorf("run: %w", &engine.TimedOutError{Phase: engine.PhaseCode, Timeout: time.Second})))
	assert.Equal(t, ExitError, ExitCode(&engine.DiscoveryError{Path: "/x", Cause: os.ErrNotExist}))
}

func TestAnalyze_WritesArtifacts(t *testing.T) {
	repo := goRepo(t)

	out, err := execute(t, "analyze", repo, "--quiet=false")
	require.NoError(t, err)

	assert.Contains(t, out, "Analysis complete")
	assert.Contains(t, out, "Languages:")
	for _, name := range []string{"review_prompts.md", "analysis.json", "prompts.json", "signals.jsonl"} {
		assert.FileExists(t, filepath.Join(repo, ".docdrift", name))
	}
}

func TestAnalyze_Quiet(t *testing.T) {
	out, err := execute(t, "analyze", goRepo(t), "-q")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAnalyze_FormatAndOutputDir(t *testing.T) {
	repo := goRepo(t)
	dir := t.TempDir()

	_, err := execute(t, "analyze", repo, "--format", "json", "--output-dir", dir, "-q")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "analysis.json"))
	assert.NoFileExists(t, filepath.Join(dir, "review_prompts.md"))
	assert.NoDirExists(t, filepath.Join(repo, ".docdrift"))
}

func TestAnalyze_UnknownFormat(t *testing.T) {
	_, err := execute(t, "analyze", goRepo(t), "--format", "pdf")
	require.Error(t, err)
	assert.Equal(t, ExitError, ExitCode(err))
}

func TestAnalyze_StrictCriticalDrift(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"README.md": "# Web\n\n## Installation\n\n```bash\nnpm install\n```\n",
		"main.go":   "package main\n\nfunc main() {}\n",
	})

	_, err := execute(t, "analyze", repo, "-q")
	require.NoError(t, err)

	out, err := execute(t, "analyze", repo, "--strict")
	assert.Equal(t, ExitCriticalDrift, ExitCode(err), "got %v", err)
	assert.Contains(t, out, facts.OutcomeCriticalDrift)
	assert.FileExists(t, filepath.Join(repo, ".docdrift", "review_prompts.md"))
}

func TestAnalyze_TimeoutWritesPartialAnalysis(t *testing.T) {
	repo := goRepo(t)

	_, err := execute(t, "analyze", repo, "--timeout", "1ns", "-q")
	assert.Equal(t, ExitTimedOut, ExitCode(err), "got %v", err)

	assert.FileExists(t, filepath.Join(repo, ".docdrift", "analysis.json"))
	assert.NoFileExists(t, filepath.Join(repo, ".docdrift", "review_prompts.md"))
}

func TestAnalyze_NoValidate(t *testing.T) {
	out, err := execute(t, "analyze", goRepo(t), "--no-validate")
	require.NoError(t, err)
	assert.Contains(t, out, "not validated")
}

func TestAnalyze_MissingRepo(t *testing.T) {
	_, err := execute(t, "analyze", filepath.Join(t.TempDir(), "missing"))
	var discovery *engine.DiscoveryError
	require.True(t, errors.As(err, &discovery), "got %v", err)
	assert.Equal(t, ExitError, ExitCode(err))
}

func TestAnalyze_ConfigFile(t *testing.T) {
	repo := goRepo(t)
	cfgPath := filepath.Join(t.TempDir(), "docdrift.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output:\n  dir: reports\nrenderers:\n  - json_export\n"), 0o644))

	_, err := execute(t, "analyze", repo, "--config", cfgPath, "--format", "both", "-q")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(repo, "reports", "analysis.json"))
	assert.FileExists(t, filepath.Join(repo, "reports", "review_prompts.md"), "--format overrides configured renderers")
}

func TestAnalyze_ExplicitConfigMissing(t *testing.T) {
	_, err := execute(t, "analyze", goRepo(t), "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrompts(t *testing.T) {
	repo := goRepo(t)
	_, err := execute(t, "analyze", repo, "-q")
	require.NoError(t, err)

	md, err := execute(t, "prompts", repo, "--phase", "0")
	require.NoError(t, err)
	assert.Contains(t, md, "## Phase 0: Documentation Review")
	assert.NotContains(t, md, "## Phase 1")

	raw, err := execute(t, "prompts", repo, "--id", "0.1", "--format", "json")
	require.NoError(t, err)
	var ps []facts.Prompt
	require.NoError(t, json.Unmarshal([]byte(raw), &ps))
	require.Len(t, ps, 1)
	assert.Equal(t, "0.1", ps[0].ID)

	_, err = execute(t, "prompts", repo, "--id", "9.9")
	assert.Error(t, err)
}

func TestPrompts_NoAnalysis(t *testing.T) {
	_, err := execute(t, "prompts", goRepo(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docdrift analyze")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "docdrift "+server.Version+"\n", out)
}

func TestRerunnerSkipsUnchangedListing(t *testing.T) {
	repo := goRepo(t)
	cfg := config.Default()
	r := newRerunner(engine.New(cfg), cfg, repo)

	ran, err := r.run(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = r.run(context.Background())
	require.NoError(t, err)
	assert.False(t, ran, "artifacts under .docdrift must not count as changes")

	require.NoError(t, os.WriteFile(filepath.Join(repo, "util.go"), []byte("package main\n"), 0o644))
	ran, err = r.run(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRerunner_IgnoresCustomOutputDir(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = "out/reports"
	r := newRerunner(engine.New(cfg), cfg, t.TempDir())
	assert.Contains(t, r.ignore, "out/reports/**")
	assert.Len(t, r.ignore, len(cfg.Ignore)+1)
}

func TestServeMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, addr, err := serveMetrics(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	m.RecordRun(&facts.RepositoryAnalysis{Outcome: facts.OutcomeComplete})

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `docdrift_runs_total{outcome="complete"} 1`)
}

func TestLoadPrevious(t *testing.T) {
	repo := goRepo(t)
	_, err := execute(t, "analyze", repo, "-q")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Repo = repo
	eng := engine.New(cfg)
	loadPrevious(context.Background(), eng, cfg)
	require.NotNil(t, eng.Analysis())
	assert.NotEmpty(t, eng.Analysis().Prompts)

	empty := config.Default()
	empty.Repo = t.TempDir()
	eng = engine.New(empty)
	loadPrevious(context.Background(), eng, empty)
	assert.Nil(t, eng.Analysis())
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, "none detected", languages(nil))
	assert.Equal(t, "Go 75.0%, Shell 12.5%, YAML 12.5%",
		languages(map[string]float64{"YAML": 12.5, "Go": 75, "Shell": 12.5}))
}

func TestPrinterPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false)
	assert.False(t, p.color)
	assert.Equal(t, "critical", p.severity(facts.SeverityCritical))
}
