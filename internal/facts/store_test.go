package facts

import (
	"bytes"
	"strings"
	"testing"
)

func sampleSignals() []QualitySignal {
	return []QualitySignal{
		{Kind: SignalSecurity, Location: Location{File: "internal/db/query.go", Line: 12}, Description: "SQL built by string concatenation", Severity: SeverityHigh},
		{Kind: SignalDeadCode, Location: Location{File: "internal/legacy/old.go"}, Description: "no inbound references"},
		{Kind: SignalComplexity, Location: Location{File: "internal/db/query.go"}, Description: "deep nesting", Value: 7},
	}
}

func TestSignalStore_Indexes(t *testing.T) {
	s := NewSignalStore()
	s.Add(sampleSignals()...)

	if s.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", s.Count())
	}
	if got := len(s.ByKind(SignalSecurity)); got != 1 {
		t.Errorf("ByKind(security) = %d, want 1", got)
	}
	if got := len(s.ByFile("internal/db/query.go")); got != 2 {
		t.Errorf("ByFile = %d, want 2", got)
	}
}

func TestSignalStore_Query(t *testing.T) {
	s := NewSignalStore()
	s.Add(sampleSignals()...)

	tests := []struct {
		name   string
		kind   string
		prefix string
		text   string
		want   int
	}{
		{"all", "", "", "", 3},
		{"by prefix", "", "internal/db", "", 2},
		{"by text case-insensitive", "", "", "sql", 1},
		{"kind and prefix", SignalDeadCode, "internal/db", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(s.Query(tt.kind, tt.prefix, tt.text)); got != tt.want {
				t.Errorf("Query(%q, %q, %q) = %d, want %d", tt.kind, tt.prefix, tt.text, got, tt.want)
			}
		})
	}
}

func TestSignalStore_JSONLRoundTrip(t *testing.T) {
	s := NewSignalStore()
	s.Add(sampleSignals()...)

	var buf bytes.Buffer
	if err := s.WriteJSONL(&buf); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 3 {
		t.Errorf("expected 3 lines, got %d", lines)
	}

	loaded := NewSignalStore()
	if err := loaded.ReadJSONL(&buf); err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	got := loaded.ByKind(SignalSecurity)
	if len(got) != 1 || got[0].Severity != SeverityHigh {
		t.Errorf("security signal after round trip = %+v", got)
	}
}
