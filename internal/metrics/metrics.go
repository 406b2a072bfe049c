// Package metrics records ingestion counters and step timings through a
// pluggable Backend.
//
// The process-wide backend defaults to a no-op, so instrumented code never
// checks whether metrics are enabled. Concrete systems live in subpackages
// (prompush, datadog) and are installed once from main with SetBackend.
// Instrumented code records through a Recorder bound to its job name.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal    = "ingest_step_total"
	StepDuration = "ingest_step_duration_seconds"
	PointsTotal  = "ingest_points_total"
	BatchesTotal = "ingest_batches_total"
)

// Point kinds recorded under PointsTotal.
const (
	KindWritten       = "written"
	KindSkippedFields = "skipped_fields"
	KindSkippedRows   = "skipped_rows"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by each metrics system.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered values; called once before exit.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

// holder gives atomic.Pointer a concrete type to point at.
type holder struct{ b Backend }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{b: nopBackend{}}) }

func active() Backend { return current.Load().b }

// SetBackend installs b and returns the backend it replaced. A nil b keeps
// the existing backend.
func SetBackend(b Backend) (prev Backend) {
	prev = active()
	if b != nil {
		current.Store(&holder{b: b})
	}
	return prev
}

// Flush delegates to the installed backend.
func Flush() error { return active().Flush() }

// Recorder records metrics for one job. The zero value records under an
// empty job label.
type Recorder struct {
	job string
}

// For returns a Recorder labelling every metric with job.
func For(job string) Recorder { return Recorder{job: job} }

// Step counts one execution of step and records its duration; err selects
// the status label (success or failure).
func (r Recorder) Step(step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": r.job, "step": step, "status": status}
	b := active()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Timed runs fn as step and records it.
func (r Recorder) Timed(step string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.Step(step, err, time.Since(start))
	return err
}

// Points adds n points of kind. Non-positive n records nothing.
func (r Recorder) Points(kind string, n int) {
	if n <= 0 {
		return
	}
	active().IncCounter(PointsTotal, float64(n), Labels{"job": r.job, "kind": kind})
}

// Batches adds n written batches. Non-positive n records nothing.
func (r Recorder) Batches(n int) {
	if n <= 0 {
		return
	}
	active().IncCounter(BatchesTotal, float64(n), Labels{"job": r.job})
}
