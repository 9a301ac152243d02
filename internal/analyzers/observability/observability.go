// Package observability detects logging, metrics and tracing libraries and
// health-check endpoints, and reports the gaps.
package observability

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/analyzers"
	"github.com/dejo1307/docdrift/internal/analyzers/imports"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

// Analyzer is the observability sub-analyzer.
type Analyzer struct{}

// New creates a new observability Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Name() string {
	return analyzers.Observability
}

// library is a known import surface. A prefix matches the import itself or
// any sub-package of it.
type library struct {
	Name       string
	Prefixes   []string
	Structured bool
}

var loggingLibs = []library{
	{"slog", []string{"log/slog"}, true},
	{"zap", []string{"go.uber.org/zap"}, true},
	{"logrus", []string{"github.com/sirupsen/logrus"}, true},
	{"zerolog", []string{"github.com/rs/zerolog"}, true},
	{"klog", []string{"k8s.io/klog"}, true},
	{"log", []string{"log"}, false},
	{"structlog", []string{"structlog"}, true},
	{"loguru", []string{"loguru"}, true},
	{"logging", []string{"logging"}, false},
	{"winston", []string{"winston"}, true},
	{"pino", []string{"pino"}, true},
	{"bunyan", []string{"bunyan"}, true},
	{"slf4j", []string{"org.slf4j"}, true},
	{"log4j", []string{"org.apache.logging.log4j", "org.apache.log4j"}, false},
	{"semantic_logger", []string{"semantic_logger"}, true},
}

var metricsLibs = []library{
	{"Prometheus", []string{"github.com/prometheus/client_golang", "prometheus_client", "prom-client", "io.prometheus"}, false},
	{"Micrometer", []string{"io.micrometer"}, false},
	{"StatsD", []string{"statsd", "hot-shots", "github.com/DataDog/datadog-go", "datadog"}, false},
	{"OpenTelemetry Metrics", []string{"go.opentelemetry.io/otel/metric", "@opentelemetry/sdk-metrics", "opentelemetry.metrics"}, false},
	{"expvar", []string{"expvar"}, false},
}

var tracingLibs = []library{
	{"OpenTelemetry", []string{"go.opentelemetry.io/otel", "@opentelemetry/api", "@opentelemetry/sdk-trace-node", "opentelemetry.trace", "opentelemetry", "io.opentelemetry"}, false},
	{"Jaeger", []string{"github.com/uber/jaeger-client-go", "jaeger_client", "jaeger-client"}, false},
	{"Zipkin", []string{"github.com/openzipkin", "zipkin", "py_zipkin"}, false},
	{"Datadog APM", []string{"gopkg.in/DataDog/dd-trace-go.v1", "ddtrace", "dd-trace"}, false},
}

var (
	healthPathRe = regexp.MustCompile(`(?i)^/(?:[\w.-]+/)*(?:health|healthz|healthcheck|health-check|ready|readyz|readiness|live|livez|liveness|ping)$`)
	healthLitRe  = regexp.MustCompile("[\"'`](/[\\w./-]*)[\"'`]")
	serverRe     = regexp.MustCompile(`http\.ListenAndServe|\.listen\(\s*\w*(?:port|PORT|\d)|uvicorn|gunicorn|Flask\(|FastAPI\(|express\(\)|@SpringBootApplication|grpc\.NewServer|app\.run\(|actix_web::|axum::|gin\.(?:Default|New)\(|echo\.New\(`)
)

// routeMethods are the router calls whose first argument is a path.
var routeMethods = map[string]bool{
	"HandleFunc": true, "Handle": true, "Get": true, "GET": true, "Head": true, "HEAD": true,
	"Any": true, "Method": true, "Path": true,
}

// Analyze reports the observability facts and one observabilityGap signal
// per missing capability.
func (a *Analyzer) Analyze(ctx context.Context, src snapshot.Source) (*analyzers.Partial, error) {
	logging := make(map[string]bool)
	metrics := make(map[string]bool)
	tracing := make(map[string]bool)
	health := make(map[string]bool)
	structured := false
	server := ""
	sources := 0

	for _, f := range src.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if snapshot.Language(f.Path) == "" || snapshot.IsTestFile(f.Path) {
			continue
		}
		sources++
		content, err := src.ReadFile(f.Path)
		if err != nil || snapshot.IsBinary(content) {
			continue
		}

		for _, imp := range imports.Parse(f.Path, content) {
			if l, ok := lookup(loggingLibs, imp.Path); ok {
				logging[l.Name] = true
				structured = structured || l.Structured
			}
			if l, ok := lookup(metricsLibs, imp.Path); ok {
				metrics[l.Name] = true
			}
			if l, ok := lookup(tracingLibs, imp.Path); ok {
				tracing[l.Name] = true
			}
		}
		for _, h := range healthEndpoints(f.Path, content) {
			health[h] = true
		}
		if server == "" && serverRe.Match(content) {
			server = f.Path
		}
	}

	obs := &facts.ObservabilityFacts{
		StructuredLogging: structured,
		LoggingLibraries:  sortedKeys(logging),
		Metrics:           sortedKeys(metrics),
		Tracing:           sortedKeys(tracing),
		HealthEndpoints:   sortedKeys(health),
	}
	p := &analyzers.Partial{Observability: obs}
	if sources > 0 {
		p.Signals = gaps(obs, server)
	}
	klog.V(2).Infof("[observability] logging=%v metrics=%v tracing=%v health=%v",
		obs.LoggingLibraries, obs.Metrics, obs.Tracing, obs.HealthEndpoints)
	return p, nil
}

func gaps(obs *facts.ObservabilityFacts, server string) []facts.QualitySignal {
	var out []facts.QualitySignal
	gap := func(rule, desc string) {
		out = append(out, facts.QualitySignal{
			Kind:        facts.SignalObservabilityGap,
			Location:    facts.Location{File: server},
			Description: desc,
			Rule:        rule,
		})
	}
	switch {
	case len(obs.LoggingLibraries) == 0:
		gap("no-logging", "no logging library is used")
	case !obs.StructuredLogging:
		gap("unstructured-logging", "logging is unstructured ("+strings.Join(obs.LoggingLibraries, ", ")+")")
	}
	if server == "" {
		return out
	}
	if len(obs.Metrics) == 0 {
		gap("no-metrics", "the service exports no metrics")
	}
	if len(obs.Tracing) == 0 {
		gap("no-tracing", "the service has no distributed tracing")
	}
	if len(obs.HealthEndpoints) == 0 {
		gap("no-health-endpoint", "the service exposes no health-check endpoint")
	}
	return out
}

func lookup(libs []library, imp string) (library, bool) {
	for _, l := range libs {
		for _, p := range l.Prefixes {
			if imp == p || strings.HasPrefix(imp, p+"/") || strings.HasPrefix(imp, p+".") {
				return l, true
			}
		}
	}
	return library{}, false
}

// healthEndpoints returns the health-check paths registered in a file. Go
// sources are inspected through their syntax tree; other languages by
// string literal.
func healthEndpoints(file string, content []byte) []string {
	if path.Ext(file) == ".go" {
		return goHealthRoutes(file, content)
	}
	var out []string
	for _, m := range healthLitRe.FindAllSubmatch(content, -1) {
		if p := string(m[1]); healthPathRe.MatchString(p) {
			out = append(out, p)
		}
	}
	return out
}

// goHealthRoutes finds router registrations such as
// mux.HandleFunc("/healthz", h) or r.Get("/ready", h).
func goHealthRoutes(file string, content []byte) []string {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file, content, parser.SkipObjectResolution)
	if err != nil {
		klog.V(2).Infof("[observability] skipping %s: %v", file, err)
		return nil
	}
	var out []string
	ast.Inspect(f, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !routeMethods[sel.Sel.Name] {
			return true
		}
		p := stringArg(call, 0)
		// Go 1.22 patterns carry the method: "GET /healthz".
		if _, rest, ok := strings.Cut(p, " "); ok {
			p = rest
		}
		if healthPathRe.MatchString(p) {
			out = append(out, p)
		}
		return true
	})
	return out
}

// stringArg returns the string value of the argument at the given index, or "".
func stringArg(call *ast.CallExpr, index int) string {
	if index >= len(call.Args) {
		return ""
	}
	lit, ok := call.Args[index].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return ""
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return ""
	}
	return s
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
