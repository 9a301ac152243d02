package observability

import (
	"context"
	"reflect"
	"testing"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

const goService = `package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/users", nil)
	slog.Info("listening")
	http.ListenAndServe(":8080", mux)
}
`

func rules(ss []facts.QualitySignal) []string {
	var out []string
	for _, s := range ss {
		out = append(out, s.Rule)
	}
	return out
}

func TestAnalyze_GoService(t *testing.T) {
	p, err := New().Analyze(context.Background(), snapshot.NewMemory(map[string]string{
		"main.go": goService,
	}))
	if err != nil {
		t.Fatal(err)
	}
	obs := p.Observability
	if !obs.StructuredLogging || !reflect.DeepEqual(obs.LoggingLibraries, []string{"slog"}) {
		t.Errorf("logging = %v structured=%v", obs.LoggingLibraries, obs.StructuredLogging)
	}
	if !reflect.DeepEqual(obs.Metrics, []string{"Prometheus"}) {
		t.Errorf("metrics = %v", obs.Metrics)
	}
	if !reflect.DeepEqual(obs.HealthEndpoints, []string{"/healthz"}) {
		t.Errorf("health = %v", obs.HealthEndpoints)
	}
	if got := rules(p.Signals); !reflect.DeepEqual(got, []string{"no-tracing"}) {
		t.Errorf("gaps = %v, want only no-tracing", got)
	}
	if p.Signals[0].Location.File != "main.go" {
		t.Errorf("gap should point at the server entry, got %+v", p.Signals[0].Location)
	}
}

func TestAnalyze_PythonService(t *testing.T) {
	p, err := New().Analyze(context.Background(), snapshot.NewMemory(map[string]string{
		"app/main.py": "import logging\nfrom fastapi import FastAPI\nfrom opentelemetry import trace\n\napp = FastAPI()\n\n@app.get(\"/api/ping\")\ndef ping():\n    return {}\n",
	}))
	if err != nil {
		t.Fatal(err)
	}
	obs := p.Observability
	if obs.StructuredLogging {
		t.Error("stdlib logging should not count as structured")
	}
	if !reflect.DeepEqual(obs.Tracing, []string{"OpenTelemetry"}) {
		t.Errorf("tracing = %v", obs.Tracing)
	}
	if !reflect.DeepEqual(obs.HealthEndpoints, []string{"/api/ping"}) {
		t.Errorf("health = %v", obs.HealthEndpoints)
	}
	if got := rules(p.Signals); !reflect.DeepEqual(got, []string{"unstructured-logging", "no-metrics"}) {
		t.Errorf("gaps = %v", got)
	}
}

func TestAnalyze_LibraryWithoutServer(t *testing.T) {
	p, err := New().Analyze(context.Background(), snapshot.NewMemory(map[string]string{
		"lib/util.js": "export const add = (a, b) => a + b\n",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got := rules(p.Signals); !reflect.DeepEqual(got, []string{"no-logging"}) {
		t.Errorf("gaps = %v, want only no-logging for a library", got)
	}
}

func TestAnalyze_NoSources(t *testing.T) {
	p, err := New().Analyze(context.Background(), snapshot.NewMemory(map[string]string{"README.md": "# x\n"}))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Signals) != 0 {
		t.Errorf("gaps = %v, want none without source files", rules(p.Signals))
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		imp  string
		want string
	}{
		{"go.uber.org/zap", "zap"},
		{"go.uber.org/zap/zapcore", "zap"},
		{"log", "log"},
		{"logging.handlers", "logging"},
		{"org.slf4j.LoggerFactory", "slf4j"},
		{"pino-http", ""},
	}
	for _, tt := range tests {
		l, _ := lookup(loggingLibs, tt.imp)
		if l.Name != tt.want {
			t.Errorf("lookup(%q) = %q, want %q", tt.imp, l.Name, tt.want)
		}
	}
}
