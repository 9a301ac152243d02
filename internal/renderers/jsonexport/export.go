// Package jsonexport writes the analysis, the prompts and the quality signals
// as machine-readable JSON artifacts.
package jsonexport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dejo1307/docdrift/internal/facts"
)

// Artifact names.
const (
	AnalysisArtifact = "analysis.json"
	PromptsArtifact  = "prompts.json"
	SignalsArtifact  = "signals.jsonl"
)

// Renderer produces analysis.json, prompts.json and signals.jsonl.
type Renderer struct{}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{}
}

func (r *Renderer) Name() string {
	return "json_export"
}

// Render encodes the analysis. The prompts are written even when empty so
// consumers can rely on the file.
func (r *Renderer) Render(ctx context.Context, a *facts.RepositoryAnalysis) ([]facts.Artifact, error) {
	var analysis bytes.Buffer
	if err := a.WriteJSON(&analysis); err != nil {
		return nil, err
	}

	ps := a.Prompts
	if ps == nil {
		ps = []facts.Prompt{}
	}
	promptsJSON, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding prompts: %w", err)
	}

	store := facts.NewSignalStore()
	store.Add(a.QualitySignals...)
	var signals bytes.Buffer
	if err := store.WriteJSONL(&signals); err != nil {
		return nil, err
	}

	return []facts.Artifact{
		{Name: AnalysisArtifact, Content: analysis.Bytes(), Type: "application/json"},
		{Name: PromptsArtifact, Content: append(promptsJSON, '\n'), Type: "application/json"},
		{Name: SignalsArtifact, Content: signals.Bytes(), Type: "application/x-ndjson"},
	}, nil
}
