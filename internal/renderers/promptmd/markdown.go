// Package promptmd renders the review prompts as a single markdown document
// sized for an LLM context window.
package promptmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/prompts"
)

// ArtifactName is the file name of the rendered prompts.
const ArtifactName = "review_prompts.md"

// Renderer produces review_prompts.md using progressive summarization.
type Renderer struct {
	maxTokens int
}

// New creates a new Renderer with the given token budget.
func New(maxTokens int) *Renderer {
	if maxTokens <= 0 {
		maxTokens = 24000
	}
	return &Renderer{maxTokens: maxTokens}
}

func (r *Renderer) Name() string {
	return "review_prompts"
}

// section holds a rendered section with its display name.
type section struct {
	name    string
	content string
}

// Render produces the review_prompts.md artifact. Sections are ordered by
// priority; later phases are truncated or omitted first when the token
// budget is tight.
func (r *Renderer) Render(ctx context.Context, a *facts.RepositoryAnalysis) ([]facts.Artifact, error) {
	sections := []section{{"Summary", r.renderSummary(a)}}
	for n := range prompts.PhaseNames {
		ps := prompts.Phase(a.Prompts, n)
		if len(ps) == 0 {
			continue
		}
		content, err := renderPhase(n, ps)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section{fmt.Sprintf("Phase %d: %s", n, prompts.PhaseName(n)), content})
	}
	sections = append(sections, section{"Meta", r.renderMeta(a)})

	header := "# AI Code Review Prompts\n\n"
	maxChars := r.maxTokens * 4 // rough estimate: 1 token ~= 4 chars
	remaining := maxChars - len(header)

	var sb strings.Builder
	sb.WriteString(header)

	for i, sec := range sections {
		if sec.content == "" {
			continue
		}
		if len(sec.content) <= remaining {
			sb.WriteString(sec.content)
			remaining -= len(sec.content)
		} else if remaining > 200 {
			sb.WriteString(cut(sec.content, remaining-100))
			sb.WriteString(fmt.Sprintf("\n\n---\n*[Truncated in: %s]*\n", sec.name))
			if rest := omitted(sections[i+1:]); rest != "" {
				sb.WriteString(fmt.Sprintf("*[Omitted: %s]*\n", rest))
			}
			break
		} else {
			sb.WriteString(fmt.Sprintf("\n\n---\n*[Omitted: %s]*\n", omitted(sections[i:])))
			break
		}
	}

	return []facts.Artifact{
		{
			Name:    ArtifactName,
			Content: []byte(sb.String()),
			Type:    "text/markdown",
		},
	}, nil
}

// Prompts renders ps grouped by phase, without the summary or a token budget.
// ps must already be in phase order.
func Prompts(ps []facts.Prompt) (string, error) {
	var sb strings.Builder
	for start := 0; start < len(ps); {
		end := start
		for end < len(ps) && ps[end].Phase == ps[start].Phase {
			end++
		}
		content, err := renderPhase(ps[start].Phase, ps[start:end])
		if err != nil {
			return "", err
		}
		sb.WriteString(content)
		start = end
	}
	return sb.String(), nil
}

func omitted(ss []section) string {
	var names []string
	for _, s := range ss {
		if s.content != "" {
			names = append(names, s.name)
		}
	}
	return strings.Join(names, ", ")
}

func (r *Renderer) renderSummary(a *facts.RepositoryAnalysis) string {
	var sb strings.Builder
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Repository**: `%s`\n", a.RepoPath))
	if a.Outcome != "" {
		sb.WriteString(fmt.Sprintf("- **Outcome**: %s\n", a.Outcome))
	}

	report := a.DriftReport
	if report == nil {
		sb.WriteString("- **Validation**: _not run_\n\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("- **Overall severity**: %s\n", report.OverallSeverity))

	status := report.CountByStatus()
	sb.WriteString(fmt.Sprintf("- **Claims validated**: %d valid, %d partial, %d invalid\n",
		status[facts.StatusValid], status[facts.StatusPartial], status[facts.StatusInvalid]))
	if n := len(report.UndocumentedFeatures); n > 0 {
		sb.WriteString(fmt.Sprintf("- **Undocumented features**: %d\n", n))
	}
	if n := len(report.OutdatedDocumentation); n > 0 {
		sb.WriteString(fmt.Sprintf("- **Outdated references**: %d\n", n))
	}
	sb.WriteString("\n")

	bySeverity := report.CountBySeverity()
	if len(bySeverity) == 0 {
		return sb.String()
	}
	sevs := make([]facts.Severity, 0, len(bySeverity))
	for s := range bySeverity {
		sevs = append(sevs, s)
	}
	sort.Slice(sevs, func(i, j int) bool {
		return facts.SeverityRank(sevs[i]) > facts.SeverityRank(sevs[j])
	})
	sb.WriteString("| Severity | Drift |\n")
	sb.WriteString("|----------|-------|\n")
	for _, s := range sevs {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", s, bySeverity[s]))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderPhase(n int, ps []facts.Prompt) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Phase %d: %s\n\n", n, prompts.PhaseName(n)))

	for _, p := range ps {
		sb.WriteString(fmt.Sprintf("### %s %s\n\n", p.ID, p.Title))
		sb.WriteString(fmt.Sprintf("**Objective**: %s\n\n", p.Objective))
		if len(p.DependsOn) > 0 {
			sb.WriteString(fmt.Sprintf("**Depends on**: %s\n\n", strings.Join(p.DependsOn, ", ")))
		}
		sb.WriteString("**Tasks**:\n")
		for i, t := range p.Tasks {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, t))
		}
		sb.WriteString("\n")

		if len(p.Context) > 0 {
			data, err := json.MarshalIndent(p.Context, "", "  ")
			if err != nil {
				return "", fmt.Errorf("encoding context of prompt %s: %w", p.ID, err)
			}
			sb.WriteString("<details><summary>Context</summary>\n\n```json\n")
			sb.Write(data)
			sb.WriteString("\n```\n\n</details>\n\n")
		}

		sb.WriteString(fmt.Sprintf("**Deliverable**: %s\n\n", p.Deliverable))
		sb.WriteString(fmt.Sprintf("*Complexity: %s, ~%d tokens*\n\n", p.Complexity, p.EstimatedTokens))
	}
	return sb.String(), nil
}

func (r *Renderer) renderMeta(a *facts.RepositoryAnalysis) string {
	var sb strings.Builder
	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Run %s generated at %s in %s. %d prompts, %d warnings.*\n",
		a.RunID, a.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), a.Duration,
		len(a.Prompts), len(a.Warnings)))
	return sb.String()
}

// cut returns the longest prefix of s no longer than n bytes that does not
// split a rune.
func cut(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
