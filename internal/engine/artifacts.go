package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/renderers/jsonexport"
)

// OutputDir returns the directory artifacts of the last analysis are written to.
func (e *Engine) OutputDir() (string, error) {
	a := e.Analysis()
	if a == nil {
		return "", ErrNoAnalysis
	}
	if filepath.IsAbs(e.cfg.Output.Dir) {
		return e.cfg.Output.Dir, nil
	}
	return filepath.Join(a.RepoPath, e.cfg.Output.Dir), nil
}

// WriteArtifacts writes every artifact of the last analysis to dir, or to
// OutputDir when dir is empty, and returns the paths written.
func (e *Engine) WriteArtifacts(dir string) ([]string, error) {
	a := e.Analysis()
	if a == nil {
		return nil, ErrNoAnalysis
	}
	if dir == "" {
		var err error
		if dir, err = e.OutputDir(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	var written []string
	for _, art := range a.Artifacts {
		path := filepath.Join(dir, art.Name)
		if err := os.WriteFile(path, art.Content, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", art.Name, err)
		}
		klog.Infof("[engine] wrote %s (%d bytes)", path, len(art.Content))
		written = append(written, path)
	}
	return written, nil
}

// GetArtifact returns the content of a named artifact of the last analysis.
// analysis.json, prompts.json and signals.jsonl are always available, even
// when the JSON renderer is disabled.
func (e *Engine) GetArtifact(name string) ([]byte, error) {
	a := e.Analysis()
	if a == nil {
		return nil, ErrNoAnalysis
	}
	for _, art := range a.Artifacts {
		if art.Name == name {
			return art.Content, nil
		}
	}

	switch name {
	case jsonexport.AnalysisArtifact:
		var buf bytes.Buffer
		if err := a.WriteJSON(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case jsonexport.PromptsArtifact:
		return json.MarshalIndent(a.Prompts, "", "  ")
	case jsonexport.SignalsArtifact:
		var buf bytes.Buffer
		if err := e.Signals().WriteJSONL(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("artifact %q not found", name)
	}
}

// LoadAnalysis restores an analysis.json written by an earlier run so its
// results can be served without analyzing again. Artifacts are re-rendered
// from the loaded analysis.
func (e *Engine) LoadAnalysis(ctx context.Context, path string) (*facts.RepositoryAnalysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening analysis: %w", err)
	}
	defer f.Close()

	a, err := facts.ReadAnalysis(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	a.Artifacts = nil

	store := facts.NewSignalStore()
	store.Add(a.QualitySignals...)
	if len(a.QualitySignals) == 0 {
		if err := restoreSignals(store, filepath.Join(filepath.Dir(path), jsonexport.SignalsArtifact)); err != nil {
			klog.Warningf("[engine] %v", err)
		}
		a.QualitySignals = store.All()
		if a.CodeFacts != nil {
			a.CodeFacts.Signals = a.QualitySignals
		}
	}
	e.render(ctx, a, newRun(nil, nil))

	e.mu.Lock()
	e.analysis = a
	e.signals = store
	e.mu.Unlock()

	klog.Infof("[engine] loaded analysis %s (%d prompts, %d signals)", a.RunID, len(a.Prompts), store.Count())
	return a, nil
}

// restoreSignals reads a signals.jsonl written next to an analysis that was
// saved without its signals. A missing file is not an error.
func restoreSignals(store *facts.SignalStore, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening signals: %w", err)
	}
	defer f.Close()
	if err := store.ReadJSONL(f); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
