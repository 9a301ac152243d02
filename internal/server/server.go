package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/config"
	"github.com/dejo1307/docdrift/internal/engine"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/prompts"
	"github.com/dejo1307/docdrift/internal/renderers/promptmd"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

const maxSignals = 100

// Server wraps the MCP server and connects it to the analysis engine.
type Server struct {
	mcp *mcp.Server
	eng *engine.Engine
	cfg *config.Config
}

// New creates a new MCP server wired to the given engine.
func New(eng *engine.Engine, cfg *config.Config) (*Server, error) {
	s := &Server{
		eng: eng,
		cfg: cfg,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "docdrift",
		Version: Version,
	}, nil)

	s.mcp = mcpServer
	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	klog.Info("[server] starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// resource is one read-only view of the last analysis.
type resource struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
	Artifact    string
}

var resources = []resource{
	{"review://prompts", "Review Prompts", "Dependency-ordered review prompts of the last analysis, as markdown", "text/markdown", "review_prompts.md"},
	{"review://analysis", "Repository Analysis", "The complete last analysis as JSON", "application/json", "analysis.json"},
	{"review://drift", "Drift Report", "Documentation drift found by the last analysis", "application/json", ""},
}

// registerResources adds MCP resources for the analysis artifacts.
func (s *Server) registerResources() {
	for _, r := range resources {
		s.mcp.AddResource(&mcp.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MIMEType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			content, err := s.readResource(r)
			if err != nil {
				return nil, fmt.Errorf("no analysis available: %w (run analyze_repository first)", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: req.Params.URI, Text: string(content), MIMEType: r.MIMEType},
				},
			}, nil
		})
	}
}

func (s *Server) readResource(r resource) ([]byte, error) {
	if r.Artifact != "" {
		return s.eng.GetArtifact(r.Artifact)
	}
	a := s.eng.Analysis()
	if a == nil {
		return nil, engine.ErrNoAnalysis
	}
	return json.MarshalIndent(a.DriftReport, "", "  ")
}

// analyzeArgs are the arguments for the analyze_repository tool.
type analyzeArgs struct {
	RepoPath       string `json:"repo_path,omitempty" jsonschema:"Path to the repository to analyze. Defaults to the configured repo path."`
	Strict         bool   `json:"strict,omitempty" jsonschema:"Fail when documentation drift is critical"`
	SkipValidation bool   `json:"skip_validation,omitempty" jsonschema:"Skip validating documentation claims against the code"`
	TimeoutMinutes int    `json:"timeout_minutes,omitempty" jsonschema:"Overrides the configured run timeout"`
}

// getPromptsArgs are the arguments for the get_prompts tool.
type getPromptsArgs struct {
	Phase  *int   `json:"phase,omitempty" jsonschema:"Only return prompts of this phase (0-4)"`
	ID     string `json:"id,omitempty" jsonschema:"Only return the prompt with this id (e.g. 2.1)"`
	Format string `json:"format,omitempty" jsonschema:"markdown (default) or json"`
}

// getDriftArgs are the arguments for the get_drift_report tool.
type getDriftArgs struct {
	MinSeverity string `json:"min_severity,omitempty" jsonschema:"Only return drift at or above this severity: low, medium, high or critical"`
}

// querySignalsArgs are the arguments for the query_signals tool.
type querySignalsArgs struct {
	Kind string `json:"kind,omitempty" jsonschema:"Filter by signal kind: todoMarker, complexityMetric, duplicateBlock, deadCodeCandidate, securityFinding or observabilityGap"`
	File string `json:"file,omitempty" jsonschema:"Filter by file path, or by path prefix when no file has that exact path"`
	Text string `json:"text,omitempty" jsonschema:"Filter by description substring"`
}

// showSourceArgs are the arguments for the show_source tool.
type showSourceArgs struct {
	File         string `json:"file" jsonschema:"required,Repository-relative file path (e.g. from a quality signal)"`
	Line         int    `json:"line,omitempty" jsonschema:"Line to center the window on"`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"Number of source lines to show around the line (default 30)"`
}

// registerTools adds MCP tools for running the analysis and reading its results.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze_repository",
		Description: "Analyze a repository: extract documentation claims, derive code facts, validate the claims against the code and generate dependency-ordered review prompts.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args analyzeArgs) (*mcp.CallToolResult, any, error) {
		return s.analyze(ctx, args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_prompts",
		Description: "Return the review prompts of the last analysis, optionally filtered by phase or id.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getPromptsArgs) (*mcp.CallToolResult, any, error) {
		return s.getPrompts(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_drift_report",
		Description: "Return the documentation drift of the last analysis: invalid and partial claims, undocumented features and outdated references.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getDriftArgs) (*mcp.CallToolResult, any, error) {
		return s.getDrift(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_signals",
		Description: "Query the quality signals of the last analysis by kind, file prefix or text. Returns matching signals as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args querySignalsArgs) (*mcp.CallToolResult, any, error) {
		return s.querySignals(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "show_source",
		Description: "Show source lines of the analyzed repository around a location, for example one reported by query_signals.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args showSourceArgs) (*mcp.CallToolResult, any, error) {
		return s.showSource(args), nil, nil
	})
}

func (s *Server) analyze(ctx context.Context, args analyzeArgs) *mcp.CallToolResult {
	repoPath := args.RepoPath
	if repoPath == "" {
		repoPath = s.cfg.Repo
	}
	opts := s.cfg.Options
	if args.Strict {
		opts.StrictValidation = true
	}
	if args.SkipValidation {
		opts.ValidateClaims = false
	}
	if args.TimeoutMinutes > 0 {
		opts.Limits.TimeoutMinutes = args.TimeoutMinutes
	}

	a, err := s.eng.RunFullAnalysis(ctx, repoPath, opts, nil)
	var timedOut *engine.TimedOutError
	var critical *engine.CriticalDriftError
	switch {
	case err == nil:
	case errors.As(err, &timedOut), errors.As(err, &critical):
		// a holds the partial or complete analysis
	default:
		return errorResult(fmt.Sprintf("analysis failed: %v", err))
	}

	if _, werr := s.eng.WriteArtifacts(""); werr != nil {
		klog.Warningf("[server] failed to write artifacts: %v", werr)
	}

	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary(a, err)},
		},
	}
	if critical != nil {
		result.IsError = true
	}
	return result
}

func summary(a *facts.RepositoryAnalysis, err error) string {
	var sb strings.Builder
	switch a.Outcome {
	case facts.OutcomeTimedOut:
		sb.WriteString(fmt.Sprintf("Analysis incomplete: %v. Partial results follow.\n\n", err))
	case facts.OutcomeCriticalDrift:
		sb.WriteString(fmt.Sprintf("Analysis failed strict validation: %v.\n\n", err))
	default:
		sb.WriteString("Analysis completed successfully.\n\n")
	}

	sb.WriteString(fmt.Sprintf("- Repository: %s\n", a.RepoPath))
	sb.WriteString(fmt.Sprintf("- Run: %s (%s)\n", a.RunID, a.Duration))
	if d := a.Documentation; d != nil {
		sb.WriteString(fmt.Sprintf("- Documents: %d, claims: %d (%d testable)\n",
			len(d.Documents), len(d.Claims), len(d.TestableClaims())))
	}
	if c := a.CodeFacts; c != nil {
		sb.WriteString(fmt.Sprintf("- Sub-analyzers: %v\n", c.Analyzers))
	}
	sb.WriteString(fmt.Sprintf("- Quality signals: %d\n", len(a.QualitySignals)))
	if r := a.DriftReport; r != nil {
		counts := r.CountByStatus()
		sb.WriteString(fmt.Sprintf("- Drift: %d invalid, %d partial, overall severity %s\n",
			counts[facts.StatusInvalid], counts[facts.StatusPartial], r.OverallSeverity))
		sb.WriteString(fmt.Sprintf("- Undocumented features: %d, outdated references: %d\n",
			len(r.UndocumentedFeatures), len(r.OutdatedDocumentation)))
	}
	sb.WriteString(fmt.Sprintf("- Prompts: %d\n", len(a.Prompts)))
	sb.WriteString(fmt.Sprintf("- Warnings: %d\n\n", len(a.Warnings)))
	sb.WriteString("Use the review://prompts resource or the get_prompts tool to read the review prompts.")
	return sb.String()
}

func (s *Server) getPrompts(args getPromptsArgs) *mcp.CallToolResult {
	a := s.eng.Analysis()
	if a == nil || len(a.Prompts) == 0 {
		return errorResult("No prompts available. Run analyze_repository first.")
	}

	ps := a.Prompts
	if args.Phase != nil {
		ps = prompts.Phase(ps, *args.Phase)
	}
	if args.ID != "" {
		ps = prompts.ByID(ps, args.ID)
	}
	if len(ps) == 0 {
		return errorResult("No prompts match the filter.")
	}

	if args.Format == "json" {
		data, err := json.MarshalIndent(ps, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("failed to marshal prompts: %v", err))
		}
		return textResult(string(data))
	}
	md, err := promptmd.Prompts(ps)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to render prompts: %v", err))
	}
	return textResult(md)
}

func (s *Server) getDrift(args getDriftArgs) *mcp.CallToolResult {
	a := s.eng.Analysis()
	if a == nil {
		return errorResult("No analysis available. Run analyze_repository first.")
	}
	if a.DriftReport == nil {
		return errorResult("The last analysis did not validate claims.")
	}
	floor := facts.Severity(args.MinSeverity)
	if args.MinSeverity == "" {
		floor = facts.SeverityLow
	}
	if !floor.Valid() {
		return errorResult(fmt.Sprintf("unknown severity %q", args.MinSeverity))
	}

	var drift []facts.ValidationResult
	for _, r := range a.DriftReport.Results() {
		if r.Drift() && facts.SeverityRank(r.Severity) >= facts.SeverityRank(floor) {
			drift = append(drift, r)
		}
	}
	out := struct {
		OverallSeverity       facts.Severity           `json:"overall_severity"`
		Drift                 []facts.ValidationResult `json:"drift"`
		UndocumentedFeatures  []string                 `json:"undocumented_features"`
		OutdatedDocumentation []string                 `json:"outdated_documentation"`
	}{
		OverallSeverity:       a.DriftReport.OverallSeverity,
		Drift:                 drift,
		UndocumentedFeatures:  a.DriftReport.UndocumentedFeatures,
		OutdatedDocumentation: a.DriftReport.OutdatedDocumentation,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal drift: %v", err))
	}
	return textResult(string(data))
}

func (s *Server) querySignals(args querySignalsArgs) *mcp.CallToolResult {
	if s.eng.Analysis() == nil {
		return errorResult("No analysis available. Run analyze_repository first.")
	}
	store := s.eng.Signals()
	var results []facts.QualitySignal
	if exact := store.ByFile(args.File); len(exact) > 0 {
		results = filterSignals(exact, args.Kind, args.Text)
	} else {
		results = store.Query(args.Kind, args.File, args.Text)
	}

	// Limit output
	total := len(results)
	truncated := false
	if total > maxSignals {
		results = results[:maxSignals]
		truncated = true
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal results: %v", err))
	}

	text := string(data)
	if truncated {
		text += fmt.Sprintf("\n\n... (showing %d of %d results, refine your query)", maxSignals, total)
	}
	return textResult(text)
}

// filterSignals keeps the signals of the given kind whose description
// contains text. Empty filters match everything.
func filterSignals(ss []facts.QualitySignal, kind, text string) []facts.QualitySignal {
	text = strings.ToLower(text)
	var out []facts.QualitySignal
	for _, sig := range ss {
		if kind != "" && sig.Kind != kind {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(sig.Description), text) {
			continue
		}
		out = append(out, sig)
	}
	return out
}

func (s *Server) showSource(args showSourceArgs) *mcp.CallToolResult {
	a := s.eng.Analysis()
	if a == nil {
		return errorResult("No analysis available. Run analyze_repository first.")
	}
	if args.File == "" {
		return errorResult("file is required")
	}
	rel := filepath.Clean(filepath.FromSlash(args.File))
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") {
		return errorResult(fmt.Sprintf("%s is outside the repository", args.File))
	}

	contextLines := args.ContextLines
	if contextLines <= 0 {
		contextLines = 30
	}
	line := args.Line
	if line <= 0 {
		line = contextLines / 2
	}

	source, err := readSourceWindow(filepath.Join(a.RepoPath, rel), line, contextLines)
	if err != nil {
		return errorResult(fmt.Sprintf("could not read source: %v", err))
	}
	return textResult(fmt.Sprintf("### %s\n\n```\n%s```\n", filepath.ToSlash(rel), source))
}

// readSourceWindow reads lines from a file centered around the given line number.
func readSourceWindow(absFile string, centerLine, contextLines int) (string, error) {
	data, err := os.ReadFile(absFile)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	startLine := centerLine - contextLines/2
	if startLine < 1 {
		startLine = 1
	}
	endLine := centerLine + contextLines/2
	if endLine > len(lines) {
		endLine = len(lines)
	}

	var sb strings.Builder
	for i := startLine; i <= endLine; i++ {
		sb.WriteString(fmt.Sprintf("%4d│ %s\n", i, lines[i-1]))
	}
	return sb.String(), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
