package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

// ErrRepoTooLarge is wrapped by the DiscoveryError returned when the
// repository exceeds the size limit and no override was given.
var ErrRepoTooLarge = snapshot.ErrRepoTooLarge

// ErrNoAnalysis is returned when results are requested before any run.
var ErrNoAnalysis = errors.New("no analysis has been run")

// DiscoveryError reports a repository that could not be listed. It is fatal.
type DiscoveryError struct {
	Path  string
	Cause error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovering repository %s: %v", e.Path, e.Cause)
}

func (e *DiscoveryError) Unwrap() error { return e.Cause }

// TimedOutError reports a run that exceeded its deadline. It is returned
// together with the partial analysis.
type TimedOutError struct {
	Phase   string
	Timeout time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("analysis timed out after %s during %s", e.Timeout.Round(time.Millisecond), e.Phase)
}

func (e *TimedOutError) Unwrap() error { return context.DeadlineExceeded }

// CriticalDriftError is returned in strict mode, together with the complete
// analysis, when the drift report's overall severity is critical.
type CriticalDriftError struct {
	Report *facts.DriftReport
}

func (e *CriticalDriftError) Error() string {
	n := e.Report.CountBySeverity()[facts.SeverityCritical]
	return fmt.Sprintf("critical documentation drift: %d critical finding(s)", n)
}
