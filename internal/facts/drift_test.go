package facts

import (
	"bytes"
	"math/rand"
	"testing"
)

func result(category, status string, sev Severity) ValidationResult {
	return ValidationResult{
		ClaimID:  category + "-" + string(sev),
		Claim:    Claim{Category: category},
		Status:   status,
		Severity: sev,
	}
}

func TestSeverityRankOrder(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if SeverityRank(order[i]) <= SeverityRank(order[i-1]) {
			t.Errorf("%s should rank above %s", order[i], order[i-1])
		}
	}
}

func TestSeverityEscalate(t *testing.T) {
	tests := []struct {
		in, want Severity
	}{
		{SeverityLow, SeverityMedium},
		{SeverityMedium, SeverityHigh},
		{SeverityHigh, SeverityCritical},
		{SeverityCritical, SeverityCritical},
	}
	for _, tt := range tests {
		if got := tt.in.Escalate(); got != tt.want {
			t.Errorf("%s.Escalate() = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDriftReport_Partitions(t *testing.T) {
	r := NewDriftReport()
	r.Add(result(ClaimArchitecture, StatusInvalid, SeverityHigh))
	r.Add(result(ClaimSetup, StatusValid, SeverityLow))
	r.Add(result(ClaimAPI, StatusPartial, SeverityMedium))
	r.Add(result(ClaimFeature, StatusInvalid, SeverityLow))

	if len(r.Architecture) != 1 || len(r.Setup) != 1 || len(r.API) != 1 || len(r.Features) != 1 {
		t.Errorf("unexpected partition sizes: %d/%d/%d/%d", len(r.Architecture), len(r.Setup), len(r.API), len(r.Features))
	}
	if r.OverallSeverity != SeverityHigh {
		t.Errorf("OverallSeverity = %s, want high", r.OverallSeverity)
	}
	if got := r.CountBySeverity()[SeverityLow]; got != 1 {
		t.Errorf("drifting low count = %d, want 1 (valid results excluded)", got)
	}
}

func TestDriftReport_EmptyIsLow(t *testing.T) {
	if got := NewDriftReport().OverallSeverity; got != SeverityLow {
		t.Errorf("empty report severity = %s, want low", got)
	}
}

func TestDriftReport_OverallSeverityMonotonic(t *testing.T) {
	severities := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	categories := []string{ClaimArchitecture, ClaimSetup, ClaimAPI, ClaimFeature}
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		r := NewDriftReport()
		prev := SeverityRank(r.OverallSeverity)
		for i := 0; i < 12; i++ {
			sev := severities[rng.Intn(len(severities))]
			r.Add(result(categories[rng.Intn(len(categories))], StatusPartial, sev))
			cur := SeverityRank(r.OverallSeverity)
			if cur < prev {
				t.Fatalf("trial %d: severity decreased from %d to %d after adding %s", trial, prev, cur, sev)
			}
			if cur < SeverityRank(sev) {
				t.Fatalf("trial %d: rollup %s below constituent %s", trial, r.OverallSeverity, sev)
			}
			prev = cur
		}
	}
}

func TestDriftReport_SetsDeduplicate(t *testing.T) {
	r := NewDriftReport()
	r.AddUndocumented("Framework: Docker")
	r.AddUndocumented("Framework: Docker")
	r.AddOutdated("README.md: python 3.8")
	if len(r.UndocumentedFeatures) != 1 || len(r.OutdatedDocumentation) != 1 {
		t.Errorf("expected deduplicated sets, got %v / %v", r.UndocumentedFeatures, r.OutdatedDocumentation)
	}
}

func TestRepositoryAnalysis_RoundTripKeepsSeverities(t *testing.T) {
	report := NewDriftReport()
	report.Add(result(ClaimSetup, StatusInvalid, SeverityCritical))
	report.Add(result(ClaimAPI, StatusInvalid, SeverityHigh))
	report.Add(result(ClaimArchitecture, StatusPartial, SeverityMedium))

	a := &RepositoryAnalysis{
		RunID:          "run-1",
		RepoPath:       "/tmp/repo",
		Outcome:        OutcomeComplete,
		Documentation:  &DocumentationAnalysis{},
		CodeFacts:      &CodeAnalysis{Structure: CodeStructureFacts{ModuleGraph: NewModuleGraph()}},
		QualitySignals: sampleSignals(),
		DriftReport:    report,
	}

	var buf bytes.Buffer
	if err := a.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got, err := ReadAnalysis(&buf)
	if err != nil {
		t.Fatalf("ReadAnalysis: %v", err)
	}

	if got.DriftReport.OverallSeverity != report.OverallSeverity {
		t.Errorf("OverallSeverity = %s, want %s", got.DriftReport.OverallSeverity, report.OverallSeverity)
	}
	want := report.Results()
	have := got.DriftReport.Results()
	if len(have) != len(want) {
		t.Fatalf("results = %d, want %d", len(have), len(want))
	}
	for i := range want {
		if have[i].Severity != want[i].Severity || have[i].Status != want[i].Status {
			t.Errorf("result %d = %s/%s, want %s/%s", i, have[i].Status, have[i].Severity, want[i].Status, want[i].Severity)
		}
	}
	if len(got.CodeFacts.Signals) != len(a.QualitySignals) {
		t.Errorf("code signals not restored: %d", len(got.CodeFacts.Signals))
	}
}

func TestWithResolutions(t *testing.T) {
	docs := &DocumentationAnalysis{Claims: []Claim{
		{ID: "C1", Category: ClaimAPI, IsTestable: true, ValidationStatus: StatusUnresolved},
		{ID: "C2", Category: ClaimFeature, IsTestable: false, ValidationStatus: StatusUnresolved},
	}}
	report := NewDriftReport()
	report.Add(ValidationResult{ClaimID: "C1", Claim: docs.Claims[0], Status: StatusInvalid, Severity: SeverityHigh})

	resolved := docs.WithResolutions(report)
	if resolved.Claims[0].ValidationStatus != StatusInvalid {
		t.Errorf("C1 status = %s, want invalid", resolved.Claims[0].ValidationStatus)
	}
	if resolved.Claims[1].ValidationStatus != StatusUnresolved {
		t.Errorf("untestable claim was touched: %s", resolved.Claims[1].ValidationStatus)
	}
	if docs.Claims[0].ValidationStatus != StatusUnresolved {
		t.Error("original analysis mutated")
	}
}
