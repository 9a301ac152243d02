package facts

import (
	"strings"
	"time"
)

// Document category constants.
const (
	CategoryPrimary       = "primary"
	CategoryContributing  = "contributing"
	CategoryArchitecture  = "architecture"
	CategoryAPI           = "api"
	CategorySetup         = "setup"
	CategoryChangelog     = "changelog"
	CategorySecurity      = "security"
	CategoryLicense       = "license"
	CategoryCodeOfConduct = "code_of_conduct"
	CategoryOther         = "other"
)

// Claim category constants.
const (
	ClaimArchitecture = "architecture"
	ClaimSetup        = "setup"
	ClaimAPI          = "api"
	ClaimFeature      = "feature"
)

// Validation status constants.
const (
	StatusUnresolved = "unresolved"
	StatusValid      = "valid"
	StatusInvalid    = "invalid"
	StatusPartial    = "partial"
	StatusUntestable = "untestable"
)

// DocumentFile is a documentation file discovered in the repository.
type DocumentFile struct {
	Path         string    `json:"path"`
	Category     string    `json:"category"`
	Content      string    `json:"content"`
	Priority     int       `json:"priority"` // 1 = highest
	LastModified time.Time `json:"last_modified"`
}

// Claim is a discrete, sourced assertion extracted from documentation.
type Claim struct {
	ID               string               `json:"id"`
	SourceDoc        string               `json:"source_doc"`
	Category         string               `json:"category"`
	Description      string               `json:"description"`
	Evidence         string               `json:"evidence"` // raw sentence span
	Line             int                  `json:"line,omitempty"`
	Rule             string               `json:"rule"` // heuristic that produced the claim
	Entities         []string             `json:"entities,omitempty"`
	Versions         []VersionRequirement `json:"versions,omitempty"`
	IsTestable       bool                 `json:"is_testable"`
	SecurityRelevant bool                 `json:"security_relevant,omitempty"`
	ValidationStatus string               `json:"validation_status"`
}

// VersionRequirement is a tool/version pair stated in documentation.
type VersionRequirement struct {
	Tool     string `json:"tool"`
	Version  string `json:"version"`
	Operator string `json:"operator,omitempty"` // ">=", ">", "=", "^", "~"
}

// ArchitectureClaims aggregates architecture claims across documents.
type ArchitectureClaims struct {
	Pattern             string   `json:"pattern,omitempty"`
	Layers              []string `json:"layers,omitempty"`
	Components          []string `json:"components,omitempty"`
	DataFlowDescription string   `json:"data_flow_description,omitempty"`
	SourceDocs          []string `json:"source_docs,omitempty"`
}

// SetupGuide holds the setup instructions found in documentation.
type SetupGuide struct {
	Prerequisites   []string `json:"prerequisites,omitempty"`
	InstallCommands []string `json:"install_commands,omitempty"`
	BuildCommands   []string `json:"build_commands,omitempty"`
	TestCommands    []string `json:"test_commands,omitempty"`
	EnvVars         []string `json:"env_vars,omitempty"`
	SourceDocs      []string `json:"source_docs,omitempty"`
}

// Empty reports whether no setup information was found.
func (g SetupGuide) Empty() bool {
	return len(g.Prerequisites) == 0 && len(g.InstallCommands) == 0 &&
		len(g.BuildCommands) == 0 && len(g.TestCommands) == 0 && len(g.EnvVars) == 0
}

// Endpoint is a documented HTTP endpoint.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// APISpec describes the API surface claimed by documentation.
type APISpec struct {
	Type       string     `json:"type,omitempty"` // rest, graphql, grpc
	Endpoints  []Endpoint `json:"endpoints,omitempty"`
	SourceDocs []string   `json:"source_docs,omitempty"`
}

// DocumentationAnalysis is the output of the documentation analyzer.
type DocumentationAnalysis struct {
	Documents         []DocumentFile     `json:"documents"`
	Claims            []Claim            `json:"claims"`
	Architecture      ArchitectureClaims `json:"architecture"`
	Setup             SetupGuide         `json:"setup"`
	API               APISpec            `json:"api"`
	QualityStandards  []string           `json:"quality_standards,omitempty"`
	KnownIssues       []string           `json:"known_issues,omitempty"`
	CompletenessScore float64            `json:"completeness_score"`
	Warnings          []Warning          `json:"warnings,omitempty"`
}

// DocPriority returns the priority of the document at path, or the lowest priority if unknown.
func (d *DocumentationAnalysis) DocPriority(path string) int {
	for _, doc := range d.Documents {
		if doc.Path == path {
			return doc.Priority
		}
	}
	return 99
}

// HasCategory returns true if at least one document of the category was found.
func (d *DocumentationAnalysis) HasCategory(category string) bool {
	for _, doc := range d.Documents {
		if doc.Category == category {
			return true
		}
	}
	return false
}

// TestableClaims returns the claims with a checkable predicate.
func (d *DocumentationAnalysis) TestableClaims() []Claim {
	var out []Claim
	for _, c := range d.Claims {
		if c.IsTestable {
			out = append(out, c)
		}
	}
	return out
}

// WithResolutions returns a copy of the analysis whose claims carry the
// validation status recorded in the report.
func (d *DocumentationAnalysis) WithResolutions(report *DriftReport) *DocumentationAnalysis {
	out := *d
	out.Claims = make([]Claim, len(d.Claims))
	copy(out.Claims, d.Claims)
	if report == nil {
		return &out
	}

	status := make(map[string]string)
	for _, r := range report.Results() {
		status[r.ClaimID] = r.Status
	}
	for i := range out.Claims {
		if s, ok := status[out.Claims[i].ID]; ok {
			out.Claims[i].ValidationStatus = s
		}
	}
	return &out
}

// Dependency scope constants.
const (
	ScopeRuntime     = "runtime"
	ScopeDevelopment = "development"
	ScopeBuild       = "build"
)

// Dependency is a declared package dependency.
type Dependency struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Scope     string `json:"scope"`
	Ecosystem string `json:"ecosystem"` // go, npm, pypi, cargo, ...
	Manifest  string `json:"manifest"`
}

// RuntimeVersion is a language runtime version pinned by a manifest.
type RuntimeVersion struct {
	Tool    string `json:"tool"` // python, node, go, rust, ruby, java
	Version string `json:"version"`
	Source  string `json:"source"`
}

// Entry point kinds.
const (
	EntryMain    = "main"
	EntryWeb     = "web"
	EntryGraphQL = "graphql"
	EntryGRPC    = "grpc"
	EntryCLI     = "cli"
)

// EntryPoint is a detected program entry point.
type EntryPoint struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Language string `json:"language,omitempty"`
}

// CodeStructureFacts is the structural view of the repository derived from code only.
type CodeStructureFacts struct {
	LanguageDistribution map[string]float64 `json:"language_distribution"`
	Frameworks           []string           `json:"frameworks"`
	EntryPoints          []EntryPoint       `json:"entry_points"`
	ModuleGraph          *ModuleGraph       `json:"module_graph"`
	Dependencies         []Dependency       `json:"dependencies"`
	Manifests            []string           `json:"manifests,omitempty"`
	Runtimes             []RuntimeVersion   `json:"runtimes,omitempty"`
	APIStyles            []string           `json:"api_styles,omitempty"`
	Directories          []string           `json:"directories,omitempty"`
	CircularDependencies [][]string         `json:"circular_dependencies,omitempty"`
	TestFileRatio        float64            `json:"test_file_ratio"`
}

// PatternCandidate is one scored architecture signature.
type PatternCandidate struct {
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"`
	Layers     []string `json:"layers,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
}

// ArchitecturePattern is the best-effort architecture classification of the code.
type ArchitecturePattern struct {
	Name       string             `json:"name,omitempty"`
	Confidence float64            `json:"confidence"`
	Candidates []PatternCandidate `json:"candidates,omitempty"`
}

// Candidate returns the scored candidate with the given name.
func (p ArchitecturePattern) Candidate(name string) (PatternCandidate, bool) {
	for _, c := range p.Candidates {
		if c.Name == name {
			return c, true
		}
	}
	return PatternCandidate{}, false
}

// ObservabilityFacts records which observability capabilities the code has.
type ObservabilityFacts struct {
	StructuredLogging bool     `json:"structured_logging"`
	LoggingLibraries  []string `json:"logging_libraries,omitempty"`
	Metrics           []string `json:"metrics,omitempty"`
	Tracing           []string `json:"tracing,omitempty"`
	HealthEndpoints   []string `json:"health_endpoints,omitempty"`
}

// CodeAnalysis is the merged, immutable output of all sub-analyzers.
type CodeAnalysis struct {
	Structure     CodeStructureFacts  `json:"structure"`
	Pattern       ArchitecturePattern `json:"pattern"`
	Observability ObservabilityFacts  `json:"observability"`
	Signals       []QualitySignal     `json:"-"` // lifted to RepositoryAnalysis.QualitySignals
	Analyzers     []string            `json:"analyzers"`
	Warnings      []Warning           `json:"warnings,omitempty"`
	Partial       bool                `json:"partial,omitempty"`
}

// HasFramework reports whether the named framework was detected (case-insensitive).
func (c *CodeAnalysis) HasFramework(name string) bool {
	for _, f := range c.Structure.Frameworks {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// Signal kinds.
const (
	SignalTodoMarker       = "todoMarker"
	SignalComplexity       = "complexityMetric"
	SignalDuplicateBlock   = "duplicateBlock"
	SignalDeadCode         = "deadCodeCandidate"
	SignalSecurity         = "securityFinding"
	SignalObservabilityGap = "observabilityGap"
)

// Location points at a span in a repository file.
type Location struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	EndLine int    `json:"end_line,omitempty"`
}

// QualitySignal is a tagged quality observation. Kind selects the variant.
type QualitySignal struct {
	Kind        string     `json:"kind"`
	Location    Location   `json:"location"`
	Description string     `json:"description"`
	Rule        string     `json:"rule,omitempty"`
	Severity    Severity   `json:"severity,omitempty"` // securityFinding only
	Value       float64    `json:"value,omitempty"`    // complexityMetric only
	Related     []Location `json:"related,omitempty"`  // duplicateBlock only
}

// Warning is a non-fatal degradation recorded during a run.
type Warning struct {
	Phase    string `json:"phase"`
	Analyzer string `json:"analyzer,omitempty"`
	File     string `json:"file,omitempty"`
	Message  string `json:"message"`
}

func (w Warning) String() string {
	var sb strings.Builder
	sb.WriteString(w.Phase)
	if w.Analyzer != "" {
		sb.WriteString("/" + w.Analyzer)
	}
	if w.File != "" {
		sb.WriteString(" " + w.File)
	}
	sb.WriteString(": " + w.Message)
	return sb.String()
}

// Prompt is a structured review prompt. Immutable once generated.
type Prompt struct {
	ID              string         `json:"id"`
	Phase           int            `json:"phase"`
	Title           string         `json:"title"`
	Objective       string         `json:"objective"`
	Tasks           []string       `json:"tasks"`
	Context         map[string]any `json:"context,omitempty"`
	Deliverable     string         `json:"deliverable"`
	DependsOn       []string       `json:"depends_on"`
	EstimatedTokens int            `json:"estimated_tokens"`
	Complexity      string         `json:"complexity"`
}

// Artifact represents a generated output file.
type Artifact struct {
	Name    string `json:"name"`    // e.g. "review_prompts.md"
	Content []byte `json:"-"`       // Raw content
	Type    string `json:"type"`    // MIME type hint
}
