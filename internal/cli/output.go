package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/dejo1307/docdrift/internal/facts"
)

var (
	colorOK       = lipgloss.Color("#2CD7C7")
	colorLow      = lipgloss.Color("#20B9B4")
	colorMedium   = lipgloss.Color("#F4D03F")
	colorHigh     = lipgloss.Color("#E67E22")
	colorCritical = lipgloss.Color("#E74C3C")
	colorMuted    = lipgloss.Color("#5C7A84")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	severityStyles = map[facts.Severity]lipgloss.Style{
		facts.SeverityLow:      lipgloss.NewStyle().Foreground(colorLow),
		facts.SeverityMedium:   lipgloss.NewStyle().Foreground(colorMedium),
		facts.SeverityHigh:     lipgloss.NewStyle().Foreground(colorHigh).Bold(true),
		facts.SeverityCritical: lipgloss.NewStyle().Foreground(colorCritical).Bold(true),
	}

	outcomeStyles = map[string]lipgloss.Style{
		facts.OutcomeComplete:      lipgloss.NewStyle().Foreground(colorOK).Bold(true),
		facts.OutcomeTimedOut:      lipgloss.NewStyle().Foreground(colorMedium).Bold(true),
		facts.OutcomeCriticalDrift: lipgloss.NewStyle().Foreground(colorCritical).Bold(true),
	}
)

// printer writes human-readable output, styled only when w is a terminal.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer, noColor bool) *printer {
	color := false
	if f, ok := w.(*os.File); ok && !noColor {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &printer{w: w, color: color}
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) severity(s facts.Severity) string {
	st, ok := severityStyles[s]
	if !ok {
		return string(s)
	}
	return p.style(st, string(s))
}

func (p *printer) row(label, format string, args ...any) {
	fmt.Fprintf(p.w, "  %s %s\n", p.style(labelStyle, fmt.Sprintf("%-13s", label+":")), fmt.Sprintf(format, args...))
}

// summary prints the result of one analysis.
func (p *printer) summary(a *facts.RepositoryAnalysis, written []string) {
	outcome := a.Outcome
	if st, ok := outcomeStyles[outcome]; ok {
		outcome = p.style(st, outcome)
	}
	fmt.Fprintf(p.w, "\n%s %s\n", p.style(titleStyle, "Analysis"), outcome)
	p.row("Repository", "%s", a.RepoPath)
	p.row("Run", "%s (%s)", a.RunID, a.Duration)

	if d := a.Documentation; d != nil {
		p.row("Documents", "%d (%d claims, %d testable, completeness %.0f%%)",
			len(d.Documents), len(d.Claims), len(d.TestableClaims()), d.CompletenessScore*100)
	}
	if c := a.CodeFacts; c != nil {
		p.row("Languages", "%s", languages(c.Structure.LanguageDistribution))
		if c.Pattern.Name != "" {
			p.row("Pattern", "%s", c.Pattern.Name)
		}
	}
	p.row("Signals", "%d", len(a.QualitySignals))

	if r := a.DriftReport; r != nil {
		counts := r.CountByStatus()
		p.row("Claims", "%d valid, %d partial, %d invalid, %d untestable",
			counts[facts.StatusValid], counts[facts.StatusPartial], counts[facts.StatusInvalid], counts[facts.StatusUntestable])
		p.row("Drift", "%s", p.severity(r.OverallSeverity))
		bySeverity := r.CountBySeverity()
		var parts []string
		for _, s := range []facts.Severity{facts.SeverityCritical, facts.SeverityHigh, facts.SeverityMedium, facts.SeverityLow} {
			if n := bySeverity[s]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, p.severity(s)))
			}
		}
		if len(parts) > 0 {
			p.row("Findings", "%s", strings.Join(parts, ", "))
		}
		if len(r.UndocumentedFeatures) > 0 || len(r.OutdatedDocumentation) > 0 {
			p.row("Stale", "%d undocumented features, %d outdated references",
				len(r.UndocumentedFeatures), len(r.OutdatedDocumentation))
		}
	} else {
		p.row("Claims", "%s", p.style(mutedStyle, "not validated"))
	}

	p.row("Prompts", "%d", len(a.Prompts))
	p.row("Warnings", "%d", len(a.Warnings))
	for _, path := range written {
		p.row("Wrote", "%s", path)
	}
}

func (p *printer) warnings(ws []facts.Warning) {
	for _, w := range ws {
		fmt.Fprintf(p.w, "  %s %s\n", p.style(severityStyles[facts.SeverityMedium], "warning:"), w)
	}
}

// languages formats a language distribution, largest share first.
func languages(dist map[string]float64) string {
	if len(dist) == 0 {
		return "none detected"
	}
	names := make([]string, 0, len(dist))
	for name := range dist {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if dist[names[i]] != dist[names[j]] {
			return dist[names[i]] > dist[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", name, dist[name]))
	}
	return strings.Join(parts, ", ")
}
