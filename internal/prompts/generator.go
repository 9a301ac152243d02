// Package prompts turns a repository analysis into dependency-ordered review
// prompts, grouped into five fixed phases.
package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/dejo1307/docdrift/internal/facts"
)

// PhaseNames are the display names of phases 0 through 4.
var PhaseNames = []string{
	"Documentation Review",
	"Architecture Analysis",
	"Implementation Deep-Dive",
	"Development Workflow",
	"Remediation",
}

// PhaseName returns the display name of a phase.
func PhaseName(n int) string {
	if n < 0 || n >= len(PhaseNames) {
		return fmt.Sprintf("Phase %d", n)
	}
	return PhaseNames[n]
}

// Options tunes prompt generation.
type Options struct {
	// DocumentationPriority orders documents and tie-breaks remediation
	// findings by the documentation priority table. When false, paths are
	// used instead.
	DocumentationPriority bool
	// MaxFindings caps the remediation list. Zero means DefaultMaxFindings.
	MaxFindings int
}

// DefaultMaxFindings caps the findings listed in the remediation prompt.
const DefaultMaxFindings = 25

// phase builds the prompts of one phase.
type phase struct {
	Number int
	Build  func(g *Generator, a *facts.RepositoryAnalysis) []facts.Prompt
}

// phases is the fixed, closed set of phase builders.
var phases = []phase{
	{0, (*Generator).documentationPhase},
	{1, (*Generator).architecturePhase},
	{2, (*Generator).implementationPhase},
	{3, (*Generator).workflowPhase},
	{4, (*Generator).remediationPhase},
}

// Generator produces review prompts. It holds no state between calls.
type Generator struct {
	opts Options
}

// New creates a new Generator.
func New(opts Options) *Generator {
	if opts.MaxFindings <= 0 {
		opts.MaxFindings = DefaultMaxFindings
	}
	return &Generator{opts: opts}
}

// GenerateAllPhases returns the prompts of all phases in an order that is a
// topological sort of their dependencies, phase number first. Identical input
// yields identical output.
func (g *Generator) GenerateAllPhases(a *facts.RepositoryAnalysis) []facts.Prompt {
	if a == nil {
		return nil
	}
	var all []facts.Prompt
	for _, p := range phases {
		all = append(all, p.Build(g, a)...)
	}
	all = pruneDependencies(all)
	for i := range all {
		all[i].EstimatedTokens = estimateTokens(all[i])
	}
	return Order(all)
}

// GenerateAllPhases runs a Generator with default options.
func GenerateAllPhases(a *facts.RepositoryAnalysis) []facts.Prompt {
	return New(Options{DocumentationPriority: true}).GenerateAllPhases(a)
}

// Phase returns the prompts of a single phase, in order.
func Phase(all []facts.Prompt, n int) []facts.Prompt {
	var out []facts.Prompt
	for _, p := range all {
		if p.Phase == n {
			out = append(out, p)
		}
	}
	return out
}

// ByID returns the prompts with the given id.
func ByID(all []facts.Prompt, id string) []facts.Prompt {
	var out []facts.Prompt
	for _, p := range all {
		if p.ID == id {
			out = append(out, p)
		}
	}
	return out
}

// pruneDependencies drops references to prompts that were not emitted.
func pruneDependencies(all []facts.Prompt) []facts.Prompt {
	emitted := make(map[string]bool, len(all))
	for _, p := range all {
		emitted[p.ID] = true
	}
	for i := range all {
		deps := make([]string, 0, len(all[i].DependsOn))
		for _, d := range all[i].DependsOn {
			if emitted[d] {
				deps = append(deps, d)
			}
		}
		all[i].DependsOn = deps
	}
	return all
}

// estimateTokens approximates a prompt's size at 4 characters per token.
func estimateTokens(p facts.Prompt) int {
	n := len(p.Title) + len(p.Objective) + len(p.Deliverable)
	for _, t := range p.Tasks {
		n += len(t)
	}
	if p.Context != nil {
		if data, err := json.Marshal(p.Context); err == nil {
			n += len(data)
		}
	}
	return n/4 + 1
}
