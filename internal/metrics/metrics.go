// Package metrics tracks per-run synchronizer metrics with Prometheus collectors.
//
// A run is a short-lived batch job, so there is no /metrics endpoint to scrape.
// Instead the registry is written once at the end of the run in the text exposition
// format, ready for a node_exporter textfile collector. All methods are nil-safe so
// callers can run without metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "phivolcs"

// Recorder holds the collectors of one run
type Recorder struct {
	registry *prometheus.Registry

	candidates  prometheus.Counter
	appended    *prometheus.CounterVec
	created     prometheus.Counter
	duplicates  prometheus.Counter
	skipped     prometheus.Counter
	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// New creates a Recorder with its own registry
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.candidates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "candidates_total",
		Help:      "Rows obtained from the listing page",
	})
	r.appended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "appended_total",
		Help:      "Records appended, by partition",
	}, []string{"partition"})
	r.created = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "partitions_created_total",
		Help:      "Partition files created",
	})
	r.duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "duplicates_total",
		Help:      "Candidates already present in their partition",
	})
	r.skipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "skipped_total",
		Help:      "Malformed candidates skipped",
	})
	r.duration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Wall time of the last run",
	})
	r.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful run",
	})

	r.registry.MustRegister(
		r.candidates, r.appended, r.created,
		r.duplicates, r.skipped, r.duration, r.lastSuccess,
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// AddCandidates counts rows fetched from the source
func (r *Recorder) AddCandidates(n int) {
	if r == nil {
		return
	}
	r.candidates.Add(float64(n))
}

// AddAppended counts rows appended to a partition
func (r *Recorder) AddAppended(partition string, n int) {
	if r == nil {
		return
	}
	r.appended.WithLabelValues(partition).Add(float64(n))
}

// IncCreated counts a newly created partition file
func (r *Recorder) IncCreated() {
	if r == nil {
		return
	}
	r.created.Inc()
}

// AddDuplicates counts candidates that were already stored
func (r *Recorder) AddDuplicates(n int) {
	if r == nil {
		return
	}
	r.duplicates.Add(float64(n))
}

// IncSkipped counts one malformed candidate
func (r *Recorder) IncSkipped() {
	if r == nil {
		return
	}
	r.skipped.Inc()
}

// ObserveRun records the run duration and, on success, the completion time
func (r *Recorder) ObserveRun(duration time.Duration, succeeded bool, now time.Time) {
	if r == nil {
		return
	}
	r.duration.Set(duration.Seconds())
	if succeeded {
		r.lastSuccess.Set(float64(now.Unix()))
	}
}

// WriteTextfile writes all metrics to path in the Prometheus text format
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}
