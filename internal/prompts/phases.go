package prompts

import (
	"sort"

	"github.com/dejo1307/docdrift/internal/facts"
)

const (
	complexityLow    = "low"
	complexityMedium = "medium"
	complexityHigh   = "high"

	maxExcerpt = 5000
	maxSamples = 10
	maxHubs    = 10
)

// claimView is the context shape of a claim.
type claimView struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Testable    bool   `json:"testable"`
	Status      string `json:"status"`
}

// resultView is the context shape of a validation result.
type resultView struct {
	ClaimID        string         `json:"claim_id"`
	Claim          string         `json:"claim"`
	Status         string         `json:"status"`
	Severity       facts.Severity `json:"severity"`
	Evidence       string         `json:"evidence"`
	Recommendation string         `json:"recommendation,omitempty"`
}

func (g *Generator) documentationPhase(a *facts.RepositoryAnalysis) []facts.Prompt {
	d := a.Documentation
	if d == nil {
		return nil
	}
	documents := g.orderedDocuments(d.Documents)

	readme := facts.DocumentFile{Path: "N/A", Content: "No README found"}
	for _, doc := range documents {
		if doc.Category == facts.CategoryPrimary {
			readme = doc
			break
		}
	}

	var docList []string
	for _, doc := range documents {
		docList = append(docList, doc.Path+" ("+doc.Category+")")
	}

	out := []facts.Prompt{{
		ID:        "0.1",
		Phase:     0,
		Title:     "README Analysis & Claims Extraction",
		Objective: "Extract and catalog all claims about project architecture, features, and setup from the README",
		Tasks: []string{
			"Identify the stated project purpose and scope",
			"List all claimed technologies and frameworks",
			"Extract the documented architecture pattern, if any",
			"Note all setup and installation claims",
			"Catalog documented features and capabilities",
			"Note which language and framework versions are claimed",
		},
		Context: map[string]any{
			"readme_path":       readme.Path,
			"readme_excerpt":    excerpt(readme.Content, maxExcerpt),
			"documents":         docList,
			"claims":            claimViews(d.Claims, a.DriftReport),
			"completeness":      d.CompletenessScore,
			"quality_standards": d.QualityStandards,
			"known_issues":      d.KnownIssues,
		},
		Deliverable: "Structured list of testable claims with source locations for validation against the code",
		DependsOn:   []string{},
		Complexity:  complexityMedium,
	}}

	if d.HasCategory(facts.CategoryArchitecture) {
		var archDocs []string
		for _, doc := range documents {
			if doc.Category == facts.CategoryArchitecture && len(archDocs) < 3 {
				archDocs = append(archDocs, "## "+doc.Path+"\n"+excerpt(doc.Content, 3000))
			}
		}
		out = append(out, facts.Prompt{
			ID:        "0.2",
			Phase:     0,
			Title:     "Architecture Documentation Analysis",
			Objective: "Understand the documented system architecture and design decisions",
			Tasks: []string{
				"Identify the architectural style (monolith, microservices, etc.)",
				"List all documented components and their responsibilities",
				"Extract documented data flows and communication patterns",
				"Note documented technology choices and their rationale",
				"Identify documented architectural constraints and decision records",
			},
			Context: map[string]any{
				"architecture_docs": archDocs,
				"claimed_pattern":   d.Architecture.Pattern,
				"layers":            d.Architecture.Layers,
				"components":        d.Architecture.Components,
				"data_flow":         d.Architecture.DataFlowDescription,
			},
			Deliverable: "Architectural understanding ready for validation against the actual code",
			DependsOn:   []string{"0.1"},
			Complexity:  complexityHigh,
		})
	}

	if !d.Setup.Empty() || hasClaimCategory(d.Claims, facts.ClaimSetup) {
		out = append(out, facts.Prompt{
			ID:        "0.3",
			Phase:     0,
			Title:     "Setup & Build Documentation Review",
			Objective: "Understand the documented development workflow and prerequisites",
			Tasks: []string{
				"List all documented prerequisites (tools, versions)",
				"Document the claimed build process step by step",
				"Identify all mentioned environment variables and their purpose",
				"Identify testing instructions",
				"Flag any missing or unclear setup steps",
			},
			Context: map[string]any{
				"prerequisites":    d.Setup.Prerequisites,
				"install_commands": d.Setup.InstallCommands,
				"build_commands":   d.Setup.BuildCommands,
				"test_commands":    d.Setup.TestCommands,
				"env_vars":         d.Setup.EnvVars,
				"documented_in":    d.Setup.SourceDocs,
			},
			Deliverable: "Development workflow checklist for validation against the actual configuration files",
			DependsOn:   []string{"0.1"},
			Complexity:  complexityMedium,
		})
	}
	return out
}

func (g *Generator) architecturePhase(a *facts.RepositoryAnalysis) []facts.Prompt {
	code := a.CodeFacts
	if code == nil {
		return nil
	}
	s := code.Structure

	var claimed map[string]any
	if d := a.Documentation; d != nil {
		claimed = map[string]any{
			"pattern":    d.Architecture.Pattern,
			"layers":     d.Architecture.Layers,
			"components": d.Architecture.Components,
		}
	}
	var entries []string
	for _, e := range s.EntryPoints {
		entries = append(entries, e.Path+" ("+e.Kind+")")
	}
	var drift []resultView
	if a.DriftReport != nil {
		drift = resultViews(a.DriftReport.Architecture)
	}
	hubs := s.ModuleGraph.Hubs(maxHubs)

	out := []facts.Prompt{{
		ID:        "1.1",
		Phase:     1,
		Title:     "Validate Documented Architecture Against Actual Code",
		Objective: "Verify that the actual code structure matches the documented architecture",
		Tasks: []string{
			"Compare the claimed architectural pattern with the detected one",
			"Verify that documented modules and layers exist in the code",
			"Check that the technology stack matches the documentation",
			"Identify undocumented components or services",
			"Review circular dependencies between modules",
			"Assess overall architecture quality and fit",
		},
		Context: map[string]any{
			"claimed_architecture": claimed,
			"actual_structure": map[string]any{
				"languages":             s.LanguageDistribution,
				"frameworks":            s.Frameworks,
				"entry_points":          entries,
				"api_styles":            s.APIStyles,
				"pattern":               code.Pattern,
				"cycles":                s.CircularDependencies,
				"most_imported_modules": hubs,
			},
			"validation_results": drift,
		},
		Deliverable: "Architecture validation report with discrepancies highlighted and recommendations",
		DependsOn:   []string{"0.1", "0.2"},
		Complexity:  complexityHigh,
	}}

	if len(s.Dependencies) > 0 {
		deps := s.Dependencies
		if len(deps) > 50 {
			deps = deps[:50]
		}
		var prerequisites []string
		if a.Documentation != nil {
			prerequisites = a.Documentation.Setup.Prerequisites
		}
		out = append(out, facts.Prompt{
			ID:        "1.2",
			Phase:     1,
			Title:     "Dependency Analysis and Health Check",
			Objective: "Analyze project dependencies for health, security and documentation accuracy",
			Tasks: []string{
				"Review all external dependencies and their purposes",
				"Identify outdated or deprecated dependencies",
				"Check for potential security concerns",
				"Verify dependencies match documented prerequisites",
				"Assess dependency management practices",
			},
			Context: map[string]any{
				"dependencies":             deps,
				"total_count":              len(s.Dependencies),
				"manifests":                s.Manifests,
				"runtimes":                 s.Runtimes,
				"documented_prerequisites": prerequisites,
				"most_imported_modules":    hubs,
			},
			Deliverable: "Dependency health report with recommendations for updates or documentation",
			DependsOn:   []string{"0.1", "0.3"},
			Complexity:  complexityMedium,
		})
	}
	return out
}

func (g *Generator) implementationPhase(a *facts.RepositoryAnalysis) []facts.Prompt {
	if a.CodeFacts == nil {
		return nil
	}
	todos := a.SignalsByKind(facts.SignalTodoMarker)
	complexity := a.SignalsByKind(facts.SignalComplexity)
	duplicates := a.SignalsByKind(facts.SignalDuplicateBlock)
	dead := a.SignalsByKind(facts.SignalDeadCode)
	security := a.SignalsByKind(facts.SignalSecurity)
	gaps := a.SignalsByKind(facts.SignalObservabilityGap)

	sort.SliceStable(security, func(i, j int) bool {
		return facts.SeverityRank(security[i].Severity) > facts.SeverityRank(security[j].Severity)
	})

	var secureClaims []claimView
	if a.Documentation != nil {
		for _, c := range claimViews(a.Documentation.Claims, a.DriftReport) {
			if isSecurityRelevant(a.Documentation.Claims, c.ID) {
				secureClaims = append(secureClaims, c)
			}
		}
	}

	return []facts.Prompt{
		{
			ID:        "2.1",
			Phase:     2,
			Title:     "Code Quality and Technical Debt Assessment",
			Objective: "Assess code quality and identify technical debt",
			Tasks: []string{
				"Review TODO/FIXME markers for patterns and urgency",
				"Examine the most complex and deeply nested files",
				"Decide which duplicated blocks should be consolidated",
				"Confirm or dismiss the dead-code candidates",
				"Evaluate error handling patterns and code organization",
			},
			Context: map[string]any{
				"todo_count":            len(todos),
				"todos":                 sample(todos),
				"complexity":            sample(complexity),
				"duplicate_count":       len(duplicates),
				"duplicates":            sample(duplicates),
				"dead_code":             sample(dead),
				"circular_dependencies": a.CodeFacts.Structure.CircularDependencies,
			},
			Deliverable: "Code quality report with prioritized remediation recommendations",
			DependsOn:   []string{"1.1"},
			Complexity:  complexityHigh,
		},
		{
			ID:        "2.2",
			Phase:     2,
			Title:     "Security Review",
			Objective: "Verify the security findings and the documented security posture",
			Tasks: []string{
				"Confirm each hard-coded secret finding and plan credential rotation",
				"Trace shell and SQL construction findings to untrusted input",
				"Check that documented authentication and crypto claims hold in code",
				"Identify security controls the documentation promises but the code lacks",
			},
			Context: map[string]any{
				"finding_count":   len(security),
				"findings":        sample(security),
				"security_claims": secureClaims,
			},
			Deliverable: "Security assessment with confirmed findings ranked by exploitability",
			DependsOn:   []string{"1.1"},
			Complexity:  complexityHigh,
		},
		{
			ID:        "2.3",
			Phase:     2,
			Title:     "Observability and Operational Maturity",
			Objective: "Assess logging, monitoring and operational readiness",
			Tasks: []string{
				"Evaluate logging practices (structure, consistency, level usage)",
				"Identify metrics and tracing instrumentation and its gaps",
				"Check health and readiness endpoints",
				"Recommend the smallest change closing each observability gap",
			},
			Context: map[string]any{
				"observability": a.CodeFacts.Observability,
				"gaps":          sample(gaps),
				"frameworks":    a.CodeFacts.Structure.Frameworks,
			},
			Deliverable: "Observability assessment with gaps and recommendations",
			DependsOn:   []string{"1.1"},
			Complexity:  complexityMedium,
		},
	}
}

func (g *Generator) workflowPhase(a *facts.RepositoryAnalysis) []facts.Prompt {
	if a.Documentation == nil || a.CodeFacts == nil {
		return nil
	}
	d := a.Documentation
	var setupDrift []resultView
	var undocumented, outdated []string
	if a.DriftReport != nil {
		setupDrift = resultViews(a.DriftReport.Setup)
		undocumented = a.DriftReport.UndocumentedFeatures
		outdated = a.DriftReport.OutdatedDocumentation
	}

	return []facts.Prompt{
		{
			ID:        "3.1",
			Phase:     3,
			Title:     "Validate Setup and Build Instructions",
			Objective: "Verify the documented setup instructions are accurate and complete",
			Tasks: []string{
				"Trace documented setup steps to the actual configuration files",
				"Identify prerequisites that are used but not documented",
				"Correct outdated version requirements",
				"Note environment variables used but not documented",
				"Identify undocumented build steps or scripts",
			},
			Context: map[string]any{
				"documented_setup":       d.Setup,
				"validation_results":     setupDrift,
				"outdated_documentation": outdated,
				"undocumented_features":  undocumented,
				"manifests":              a.CodeFacts.Structure.Manifests,
			},
			Deliverable: "Setup documentation accuracy report with the specific corrections needed",
			DependsOn:   []string{"0.1", "0.3", "1.2"},
			Complexity:  complexityMedium,
		},
		{
			ID:        "3.2",
			Phase:     3,
			Title:     "Testing Strategy and Coverage Review",
			Objective: "Assess testing practices, coverage and quality",
			Tasks: []string{
				"Identify the test types present (unit, integration, end-to-end)",
				"Evaluate test organization and naming conventions",
				"Estimate coverage from the test file ratio",
				"Check that documented test commands run against the current layout",
				"Identify gaps in test coverage",
			},
			Context: map[string]any{
				"test_file_ratio":   a.CodeFacts.Structure.TestFileRatio,
				"test_commands":     d.Setup.TestCommands,
				"languages":         a.CodeFacts.Structure.LanguageDistribution,
				"quality_standards": d.QualityStandards,
			},
			Deliverable: "Testing assessment with recommendations for improvement",
			DependsOn:   []string{"1.1"},
			Complexity:  complexityMedium,
		},
	}
}

func (g *Generator) remediationPhase(a *facts.RepositoryAnalysis) []facts.Prompt {
	findings := g.Findings(a)
	counts := map[facts.Severity]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}
	top := findings
	if len(top) > g.opts.MaxFindings {
		top = top[:g.opts.MaxFindings]
	}
	overall := facts.SeverityLow
	if a.DriftReport != nil {
		overall = a.DriftReport.OverallSeverity
	}

	return []facts.Prompt{{
		ID:        "4.1",
		Phase:     4,
		Title:     "Prioritized Remediation Plan",
		Objective: "Turn the findings into a prioritized, actionable remediation plan",
		Tasks: []string{
			"Present the findings grouped by severity and category",
			"Confirm effort estimates for the top findings",
			"Separate quick documentation fixes from code changes",
			"Group related findings into themes",
			"Produce an ordered action plan starting with critical drift",
		},
		Context: map[string]any{
			"overall_severity": overall,
			"total_findings":   len(findings),
			"by_severity": map[string]int{
				string(facts.SeverityCritical): counts[facts.SeverityCritical],
				string(facts.SeverityHigh):     counts[facts.SeverityHigh],
				string(facts.SeverityMedium):   counts[facts.SeverityMedium],
				string(facts.SeverityLow):      counts[facts.SeverityLow],
			},
			"findings": top,
		},
		Deliverable: "Prioritized, actionable remediation plan ready for execution",
		DependsOn:   []string{"1.1", "2.1", "2.2", "3.1"},
		Complexity:  complexityMedium,
	}}
}

// orderedDocuments returns the documents in priority order, or by path when
// documentation priority is off.
func (g *Generator) orderedDocuments(docs []facts.DocumentFile) []facts.DocumentFile {
	out := append([]facts.DocumentFile(nil), docs...)
	sort.SliceStable(out, func(i, j int) bool {
		if g.opts.DocumentationPriority && out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func claimViews(claims []facts.Claim, report *facts.DriftReport) []claimView {
	status := make(map[string]string)
	if report != nil {
		for _, r := range report.Results() {
			status[r.ClaimID] = r.Status
		}
	}
	out := make([]claimView, 0, len(claims))
	for _, c := range claims {
		s := c.ValidationStatus
		if v, ok := status[c.ID]; ok {
			s = v
		}
		out = append(out, claimView{
			ID:          c.ID,
			Source:      c.SourceDoc,
			Category:    c.Category,
			Description: c.Description,
			Testable:    c.IsTestable,
			Status:      s,
		})
	}
	return out
}

func resultViews(rs []facts.ValidationResult) []resultView {
	out := make([]resultView, 0, len(rs))
	for _, r := range rs {
		out = append(out, resultView{
			ClaimID:        r.ClaimID,
			Claim:          r.Claim.Description,
			Status:         r.Status,
			Severity:       r.Severity,
			Evidence:       r.Evidence,
			Recommendation: r.Recommendation,
		})
	}
	return out
}

func hasClaimCategory(claims []facts.Claim, category string) bool {
	for _, c := range claims {
		if c.Category == category {
			return true
		}
	}
	return false
}

func isSecurityRelevant(claims []facts.Claim, id string) bool {
	for _, c := range claims {
		if c.ID == id {
			return c.SecurityRelevant
		}
	}
	return false
}

func sample(ss []facts.QualitySignal) []facts.QualitySignal {
	if len(ss) > maxSamples {
		return ss[:maxSamples]
	}
	return ss
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n[...]"
}
