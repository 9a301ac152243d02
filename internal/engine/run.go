package engine

import (
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/telemetry"
)

// Phase labels passed to the progress callback.
const (
	PhaseDiscovery     = "discovery"
	PhaseDocumentation = "documentation"
	PhaseCode          = "code"
	PhaseValidation    = "validation"
	PhasePrompts       = "prompts"
	PhaseRendering     = "rendering"
)

// ProgressFunc is called with the phase label at each phase transition.
type ProgressFunc func(phase string)

// run is the state threaded through the phases of one analysis. The
// documentation and code phases run concurrently, so it is guarded.
type run struct {
	progress ProgressFunc
	metrics  *telemetry.Metrics

	mu       sync.Mutex
	warnings []facts.Warning
	active   map[string]time.Time
}

func newRun(progress ProgressFunc, metrics *telemetry.Metrics) *run {
	return &run{
		progress: progress,
		metrics:  metrics,
		active:   make(map[string]time.Time),
	}
}

// enter marks the start of a phase and reports it.
func (r *run) enter(phase string) {
	r.mu.Lock()
	r.active[phase] = time.Now()
	r.mu.Unlock()

	klog.Infof("[engine] phase %s", phase)
	if r.progress != nil {
		r.progress(phase)
	}
}

// leave marks the end of a phase and records its duration.
func (r *run) leave(phase string) {
	r.mu.Lock()
	start, ok := r.active[phase]
	delete(r.active, phase)
	r.mu.Unlock()
	if !ok {
		return
	}
	elapsed := time.Since(start)
	klog.V(2).Infof("[engine] phase %s took %s", phase, elapsed.Round(time.Millisecond))
	r.metrics.ObservePhase(phase, elapsed)
}

func (r *run) warn(ws ...facts.Warning) {
	if len(ws) == 0 {
		return
	}
	r.mu.Lock()
	r.warnings = append(r.warnings, ws...)
	r.mu.Unlock()
}

func (r *run) collected() []facts.Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]facts.Warning(nil), r.warnings...)
}
