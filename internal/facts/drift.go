package facts

import "sort"

// ValidationResult is the resolution of one testable claim. Never mutated once created.
type ValidationResult struct {
	ClaimID        string   `json:"claim_id"`
	Claim          Claim    `json:"claim"`
	Status         string   `json:"status"`
	Severity       Severity `json:"severity"`
	Score          float64  `json:"score"`
	Evidence       string   `json:"evidence"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Drift reports whether the result is a discrepancy rather than a confirmation.
func (r ValidationResult) Drift() bool {
	return r.Status == StatusInvalid || r.Status == StatusPartial
}

// DriftReport aggregates validation results by claim category.
type DriftReport struct {
	Architecture          []ValidationResult `json:"architecture"`
	Setup                 []ValidationResult `json:"setup"`
	API                   []ValidationResult `json:"api"`
	Features              []ValidationResult `json:"features"`
	UndocumentedFeatures  []string           `json:"undocumented_features"`
	OutdatedDocumentation []string           `json:"outdated_documentation"`
	OverallSeverity       Severity           `json:"overall_severity"`
}

// NewDriftReport returns an empty report. An empty report rolls up to low.
func NewDriftReport() *DriftReport {
	return &DriftReport{OverallSeverity: SeverityLow}
}

// Add appends a result to its category partition and raises the rollup.
// The rollup never decreases.
func (r *DriftReport) Add(res ValidationResult) {
	switch res.Claim.Category {
	case ClaimArchitecture:
		r.Architecture = append(r.Architecture, res)
	case ClaimSetup:
		r.Setup = append(r.Setup, res)
	case ClaimAPI:
		r.API = append(r.API, res)
	default:
		r.Features = append(r.Features, res)
	}
	r.OverallSeverity = MaxSeverity(r.OverallSeverity, res.Severity)
	if !r.OverallSeverity.Valid() {
		r.OverallSeverity = SeverityLow
	}
}

// AddUndocumented records a code fact with no corresponding claim.
func (r *DriftReport) AddUndocumented(feature string) {
	r.UndocumentedFeatures = addToSet(r.UndocumentedFeatures, feature)
}

// AddOutdated records a documentation reference older than the code.
func (r *DriftReport) AddOutdated(ref string) {
	r.OutdatedDocumentation = addToSet(r.OutdatedDocumentation, ref)
}

// Results returns all results in category order.
func (r *DriftReport) Results() []ValidationResult {
	out := make([]ValidationResult, 0, len(r.Architecture)+len(r.Setup)+len(r.API)+len(r.Features))
	out = append(out, r.Architecture...)
	out = append(out, r.Setup...)
	out = append(out, r.API...)
	out = append(out, r.Features...)
	return out
}

// CountByStatus returns how many results carry each status.
func (r *DriftReport) CountByStatus() map[string]int {
	counts := make(map[string]int)
	for _, res := range r.Results() {
		counts[res.Status]++
	}
	return counts
}

// CountBySeverity returns how many drifting results carry each severity.
func (r *DriftReport) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, res := range r.Results() {
		if res.Drift() {
			counts[res.Severity]++
		}
	}
	return counts
}

// Sort orders the derived sets for stable output.
func (r *DriftReport) Sort() {
	sort.Strings(r.UndocumentedFeatures)
	sort.Strings(r.OutdatedDocumentation)
}

func addToSet(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}
