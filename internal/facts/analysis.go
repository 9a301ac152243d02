package facts

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Run outcomes.
const (
	OutcomeComplete      = "complete"
	OutcomeTimedOut      = "timed_out"
	OutcomeCriticalDrift = "critical_drift"
)

// RepositoryAnalysis is the terminal, serializable result of one run.
type RepositoryAnalysis struct {
	RunID          string                 `json:"run_id"`
	RepoPath       string                 `json:"repo_path"`
	Timestamp      time.Time              `json:"timestamp"`
	Duration       string                 `json:"duration"`
	Outcome        string                 `json:"outcome"`
	Documentation  *DocumentationAnalysis `json:"documentation"`
	CodeFacts      *CodeAnalysis          `json:"code_facts"`
	QualitySignals []QualitySignal        `json:"quality_signals"`
	DriftReport    *DriftReport           `json:"drift_report,omitempty"`
	Prompts        []Prompt               `json:"prompts,omitempty"`
	Warnings       []Warning              `json:"warnings,omitempty"`
	Fingerprint    string                 `json:"fingerprint,omitempty"`
	Artifacts      []Artifact             `json:"artifacts,omitempty"`
}

// WriteJSON encodes the analysis as indented JSON.
func (a *RepositoryAnalysis) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	return nil
}

// ReadAnalysis decodes an analysis previously written by WriteJSON.
func ReadAnalysis(r io.Reader) (*RepositoryAnalysis, error) {
	var a RepositoryAnalysis
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}
	if a.CodeFacts != nil {
		a.CodeFacts.Signals = a.QualitySignals
	}
	return &a, nil
}

// SignalsByKind returns the quality signals of the given kind.
func (a *RepositoryAnalysis) SignalsByKind(kind string) []QualitySignal {
	var out []QualitySignal
	for _, s := range a.QualitySignals {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
