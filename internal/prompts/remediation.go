package prompts

import (
	"sort"
	"strconv"

	"github.com/dejo1307/docdrift/internal/docs"
	"github.com/dejo1307/docdrift/internal/facts"
)

// Finding categories.
const (
	FindingDrift         = "documentation drift"
	FindingUndocumented  = "undocumented feature"
	FindingOutdated      = "outdated documentation"
	FindingSecurity      = "security"
	FindingObservability = "observability"
)

// Finding is one ranked remediation item.
type Finding struct {
	Category       string         `json:"category"`
	Severity       facts.Severity `json:"severity"`
	Effort         int            `json:"effort"` // 1 = documentation edit, 3 = restructuring
	Description    string         `json:"description"`
	Source         string         `json:"source,omitempty"`
	Recommendation string         `json:"recommendation,omitempty"`

	docPriority int
}

// ruleEffort estimates the effort to resolve drift produced by each claim heuristic.
var ruleEffort = map[string]int{
	docs.RuleVersion:    1,
	docs.RuleCommand:    1,
	docs.RuleLanguage:   1,
	docs.RuleTechnology: 1,
	docs.RuleAPIStyle:   2,
	docs.RuleDirectory:  2,
	docs.RulePattern:    3,
}

// Findings collects the drift results, derived drift lists and
// security/observability signals, ranked by severity (descending), then
// effort (ascending), then documentation priority, then description.
func (g *Generator) Findings(a *facts.RepositoryAnalysis) []Finding {
	var out []Finding

	if r := a.DriftReport; r != nil {
		for _, res := range r.Results() {
			if !res.Drift() {
				continue
			}
			effort := ruleEffort[res.Claim.Rule]
			if effort == 0 {
				effort = 2
			}
			out = append(out, Finding{
				Category:       FindingDrift,
				Severity:       res.Severity,
				Effort:         effort,
				Description:    res.Claim.Description + ": " + res.Evidence,
				Source:         res.Claim.SourceDoc,
				Recommendation: res.Recommendation,
				docPriority:    g.docPriority(a, res.Claim.SourceDoc),
			})
		}
		for _, u := range r.UndocumentedFeatures {
			out = append(out, Finding{
				Category:       FindingUndocumented,
				Severity:       facts.SeverityLow,
				Effort:         1,
				Description:    u,
				Recommendation: "Document it in the README",
				docPriority:    99,
			})
		}
		for _, o := range r.OutdatedDocumentation {
			out = append(out, Finding{
				Category:       FindingOutdated,
				Severity:       facts.SeverityMedium,
				Effort:         1,
				Description:    o,
				Recommendation: "Update the documented version",
				docPriority:    99,
			})
		}
	}

	for _, s := range a.QualitySignals {
		switch s.Kind {
		case facts.SignalSecurity:
			sev := s.Severity
			if !sev.Valid() {
				sev = facts.SeverityMedium
			}
			out = append(out, Finding{
				Category:    FindingSecurity,
				Severity:    sev,
				Effort:      2,
				Description: s.Description,
				Source:      location(s.Location),
				docPriority: 99,
			})
		case facts.SignalObservabilityGap:
			out = append(out, Finding{
				Category:    FindingObservability,
				Severity:    facts.SeverityLow,
				Effort:      2,
				Description: s.Description,
				Source:      location(s.Location),
				docPriority: 99,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := facts.SeverityRank(a.Severity), facts.SeverityRank(b.Severity); ra != rb {
			return ra > rb
		}
		if a.Effort != b.Effort {
			return a.Effort < b.Effort
		}
		if a.docPriority != b.docPriority {
			return a.docPriority < b.docPriority
		}
		if a.Description != b.Description {
			return a.Description < b.Description
		}
		return a.Source < b.Source
	})
	return out
}

func (g *Generator) docPriority(a *facts.RepositoryAnalysis, path string) int {
	if !g.opts.DocumentationPriority || a.Documentation == nil {
		return 99
	}
	return a.Documentation.DocPriority(path)
}

func location(l facts.Location) string {
	if l.File == "" {
		return ""
	}
	if l.Line == 0 {
		return l.File
	}
	return l.File + ":" + strconv.Itoa(l.Line)
}
