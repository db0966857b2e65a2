// Package metrics exports merge counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psaab/srxmerge/pkg/merge"
)

const namespace = "srxmerge"

// Result labels for merges_total.
const (
	ResultOK       = "ok"
	ResultFatal    = "fatal"
	ResultError    = "error"
	ResultCanceled = "canceled"
)

// Recorder counts merge passes. It implements merge.Observer.
type Recorder struct {
	merges      *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	directives  *prometheus.CounterVec
	duration    prometheus.Histogram
	policies    prometheus.Gauge
}

// NewRecorder creates unregistered metrics.
func NewRecorder() *Recorder {
	return &Recorder{
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Merge passes by result.",
		}, []string{"result"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics emitted by kind and severity.",
		}, []string{"kind", "severity"}),
		directives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directives_total",
			Help:      "Directives applied by verb and final state.",
		}, []string{"verb", "state"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_duration_seconds",
			Help:      "Wall time of a merge pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		policies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_merge_policies",
			Help:      "Policies compiled by the most recent successful pass.",
		}),
	}
}

// Register adds every metric to reg.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	for _, c := range r.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{r.merges, r.diagnostics, r.directives, r.duration, r.policies}
}

// ObserveMerge records one pass.
func (r *Recorder) ObserveMerge(res *merge.ResolvedConfig, elapsed time.Duration, err error) {
	r.duration.Observe(elapsed.Seconds())
	r.merges.WithLabelValues(Result(err)).Inc()
	if res == nil {
		return
	}
	for _, d := range res.Diagnostics {
		r.diagnostics.WithLabelValues(string(d.Kind), d.Severity.String()).Inc()
	}
	for _, o := range res.Outcomes {
		r.directives.WithLabelValues(o.Directive.Verb().String(), o.State.String()).Inc()
	}
	if err == nil {
		r.policies.Set(float64(len(res.Policies)))
	}
}

// Result maps a Merge error to its merges_total label.
func Result(err error) string {
	var failed *merge.FailedError
	switch {
	case err == nil:
		return ResultOK
	case errors.As(err, &failed):
		return ResultFatal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	default:
		return ResultError
	}
}

var _ merge.Observer = (*Recorder)(nil)
