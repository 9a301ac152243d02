package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/analyzers"
	"github.com/dejo1307/docdrift/internal/analyzers/dependency"
	"github.com/dejo1307/docdrift/internal/analyzers/observability"
	"github.com/dejo1307/docdrift/internal/analyzers/pattern"
	"github.com/dejo1307/docdrift/internal/analyzers/quality"
	"github.com/dejo1307/docdrift/internal/analyzers/security"
	"github.com/dejo1307/docdrift/internal/analyzers/structure"
	"github.com/dejo1307/docdrift/internal/config"
	"github.com/dejo1307/docdrift/internal/docs"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/prompts"
	"github.com/dejo1307/docdrift/internal/renderers"
	"github.com/dejo1307/docdrift/internal/renderers/jsonexport"
	"github.com/dejo1307/docdrift/internal/renderers/promptmd"
	"github.com/dejo1307/docdrift/internal/snapshot"
	"github.com/dejo1307/docdrift/internal/telemetry"
	"github.com/dejo1307/docdrift/internal/validation"
)

// cacheEntries bounds the file-content cache shared by both analyzers.
const cacheEntries = 1024

// Engine orchestrates the analysis pipeline:
// discover -> (documentation || code) -> validate -> prompts -> render.
type Engine struct {
	cfg       *config.Config
	analyzers *analyzers.Registry
	renderers *renderers.Registry
	metrics   *telemetry.Metrics

	runMu sync.Mutex // serializes runs

	mu       sync.RWMutex
	analysis *facts.RepositoryAnalysis
	signals  *facts.SignalStore
}

// New creates an Engine with the default sub-analyzers and renderers for cfg.
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{
		cfg:       cfg,
		analyzers: DefaultAnalyzers(cfg),
		renderers: DefaultRenderers(cfg),
		signals:   facts.NewSignalStore(),
	}
}

// DefaultAnalyzers returns the six sub-analyzers in their canonical order.
func DefaultAnalyzers(cfg *config.Config) *analyzers.Registry {
	return analyzers.NewRegistry(
		structure.New(),
		dependency.New(),
		pattern.New(),
		quality.New(cfg.Quality.MinDuplicateLines),
		security.New(),
		observability.New(),
	)
}

// DefaultRenderers returns the markdown and JSON renderers.
func DefaultRenderers(cfg *config.Config) *renderers.Registry {
	return renderers.NewRegistry(
		promptmd.New(cfg.Output.MaxPromptTokens),
		jsonexport.New(),
	)
}

// SetAnalyzers replaces the sub-analyzer registry.
func (e *Engine) SetAnalyzers(reg *analyzers.Registry) {
	e.analyzers = reg
}

// SetMetrics enables run metrics.
func (e *Engine) SetMetrics(m *telemetry.Metrics) {
	e.metrics = m
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Analysis returns the last analysis, or nil.
func (e *Engine) Analysis() *facts.RepositoryAnalysis {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.analysis
}

// Signals returns the quality signals of the last analysis.
func (e *Engine) Signals() *facts.SignalStore {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.signals
}

// RunFullAnalysis runs the pipeline with a default engine.
func RunFullAnalysis(ctx context.Context, repoPath string, opts config.Options, progress ProgressFunc) (*facts.RepositoryAnalysis, error) {
	cfg := config.Default()
	cfg.Options = opts
	return New(cfg).RunFullAnalysis(ctx, repoPath, opts, progress)
}

// RunFullAnalysis analyzes the repository at repoPath.
//
// On a *DiscoveryError the analysis is nil. On a *TimedOutError the partial
// analysis is returned with Outcome "timed_out"; validation and prompt
// generation are skipped. On a *CriticalDriftError (strict mode only) the
// complete analysis is returned with Outcome "critical_drift".
func (e *Engine) RunFullAnalysis(ctx context.Context, repoPath string, opts config.Options, progress ProgressFunc) (*facts.RepositoryAnalysis, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if repoPath == "" {
		repoPath = e.cfg.Repo
	}
	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, &DiscoveryError{Path: repoPath, Cause: err}
	}

	start := time.Now()
	timeout := opts.Timeout()
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := newRun(progress, e.metrics)
	a := &facts.RepositoryAnalysis{
		RunID:     uuid.NewString(),
		RepoPath:  absRepo,
		Timestamp: start.UTC(),
		Outcome:   facts.OutcomeComplete,
	}

	// 1. Discover the repository listing shared by both analyzers.
	r.enter(PhaseDiscovery)
	snap, err := snapshot.Build(ctx, absRepo, snapshot.Options{
		Ignore:       e.cfg.Ignore,
		MaxFileSize:  opts.MaxFileSize(),
		MaxRepoSize:  opts.MaxRepoSize(),
		AllowLarge:   opts.AllowLargeRepo,
		CacheEntries: cacheEntries,
	})
	r.leave(PhaseDiscovery)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return e.finish(a, r, start, &TimedOutError{Phase: PhaseDiscovery, Timeout: timeout})
		}
		e.metrics.RecordRun(nil)
		return nil, &DiscoveryError{Path: absRepo, Cause: err}
	}
	r.warn(snap.Warnings()...)
	a.Fingerprint = snap.Fingerprint()
	klog.Infof("[engine] found %d files (%d bytes) in %s", len(snap.Files()), snap.TotalSize(), absRepo)

	// 2. Documentation and code are independent; both finish before validation.
	var (
		doc     *facts.DocumentationAnalysis
		code    *facts.CodeAnalysis
		docErr  error
		codeErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		r.enter(PhaseDocumentation)
		defer r.leave(PhaseDocumentation)
		doc, docErr = docs.New().Analyze(ctx, snap)
		return nil
	})
	g.Go(func() error {
		r.enter(PhaseCode)
		defer r.leave(PhaseCode)
		code, codeErr = analyzers.Run(ctx, e.analyzers, snap, analyzers.Options{
			Workers: opts.Limits.ParallelWorkers,
			Enabled: e.cfg.IsAnalyzerEnabled,
		})
		return nil
	})
	_ = g.Wait()

	if doc != nil {
		r.warn(doc.Warnings...)
	}
	if code != nil {
		r.warn(code.Warnings...)
		a.QualitySignals = code.Signals
	}
	a.Documentation = doc
	a.CodeFacts = code

	if ctx.Err() != nil {
		phase := PhaseDocumentation
		if code != nil && code.Partial {
			phase = PhaseCode
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return e.finish(a, r, start, &TimedOutError{Phase: phase, Timeout: timeout})
		}
		a.Outcome = facts.OutcomeTimedOut
		return e.finish(a, r, start, fmt.Errorf("analysis canceled during %s: %w", phase, ctx.Err()))
	}
	if docErr != nil {
		klog.Warningf("[engine] documentation analysis degraded: %v", docErr)
		r.warn(facts.Warning{Phase: PhaseDocumentation, Message: docErr.Error()})
		a.Documentation = &facts.DocumentationAnalysis{}
	}
	if codeErr != nil {
		r.warn(facts.Warning{Phase: PhaseCode, Message: codeErr.Error()})
	}

	// 3. Validate claims against code facts.
	if opts.ValidateClaims {
		r.enter(PhaseValidation)
		report := validation.Validate(a.Documentation, a.CodeFacts, validation.Options{
			MatchThreshold: e.cfg.Validation.MatchThreshold,
		})
		a.DriftReport = report
		a.Documentation = a.Documentation.WithResolutions(report)
		r.leave(PhaseValidation)
		counts := report.CountByStatus()
		klog.Infof("[engine] validation: %d valid, %d partial, %d invalid, overall severity %s",
			counts[facts.StatusValid], counts[facts.StatusPartial], counts[facts.StatusInvalid], report.OverallSeverity)
	}

	// 4. Generate prompts.
	r.enter(PhasePrompts)
	gen := prompts.New(prompts.Options{DocumentationPriority: opts.DocumentationPriority})
	a.Prompts = gen.GenerateAllPhases(a)
	r.leave(PhasePrompts)
	if err := prompts.CheckOrder(a.Prompts); err != nil {
		return nil, fmt.Errorf("generating prompts: %w", err)
	}
	klog.Infof("[engine] generated %d prompts", len(a.Prompts))

	var runErr error
	if opts.StrictValidation && a.DriftReport != nil && a.DriftReport.OverallSeverity == facts.SeverityCritical {
		a.Outcome = facts.OutcomeCriticalDrift
		runErr = &CriticalDriftError{Report: a.DriftReport}
	}

	// 5. Render artifacts.
	r.enter(PhaseRendering)
	e.render(ctx, a, r)
	r.leave(PhaseRendering)

	return e.finish(a, r, start, runErr)
}

// render runs the enabled renderers. A failing renderer degrades to a warning.
func (e *Engine) render(ctx context.Context, a *facts.RepositoryAnalysis, r *run) {
	for _, rnd := range e.renderers.All() {
		if !e.cfg.IsRendererEnabled(rnd.Name()) {
			continue
		}
		artifacts, err := rnd.Render(ctx, a)
		if err != nil {
			klog.Warningf("[engine] renderer %s error: %v", rnd.Name(), err)
			r.warn(facts.Warning{Phase: PhaseRendering, Analyzer: rnd.Name(), Message: err.Error()})
			continue
		}
		a.Artifacts = append(a.Artifacts, artifacts...)
	}
	klog.V(2).Infof("[engine] produced %d artifacts", len(a.Artifacts))
}

// renderPartial exports a timed-out analysis as JSON so the partial facts
// can be written. The run context has expired by then.
func (e *Engine) renderPartial(a *facts.RepositoryAnalysis) {
	rnd := jsonexport.New()
	artifacts, err := rnd.Render(context.Background(), a)
	if err != nil {
		klog.Warningf("[engine] renderer %s error: %v", rnd.Name(), err)
		a.Warnings = append(a.Warnings, facts.Warning{Phase: PhaseRendering, Analyzer: rnd.Name(), Message: err.Error()})
		return
	}
	a.Artifacts = append(a.Artifacts, artifacts...)
}

// finish stamps the analysis, stores it as the last result and records metrics.
func (e *Engine) finish(a *facts.RepositoryAnalysis, r *run, start time.Time, err error) (*facts.RepositoryAnalysis, error) {
	var timedOut *TimedOutError
	if errors.As(err, &timedOut) {
		a.Outcome = facts.OutcomeTimedOut
		klog.Warningf("[engine] %v, returning partial results", err)
	}
	a.Warnings = r.collected()
	a.Duration = time.Since(start).Round(time.Millisecond).String()
	if timedOut != nil {
		e.renderPartial(a)
	}

	store := facts.NewSignalStore()
	store.Add(a.QualitySignals...)

	e.mu.Lock()
	e.analysis = a
	e.signals = store
	e.mu.Unlock()

	e.metrics.RecordRun(a)
	klog.Infof("[engine] analysis %s %s in %s (%d warnings)", a.RunID, a.Outcome, a.Duration, len(a.Warnings))
	return a, err
}
