// Package obs wires otel tracing and prometheus metrics around scheduler
// flush and commit phases — grounded on the teacher's pkg/middleware/
// otel.go and metrics.go.
package obs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "loom"

// Metrics bundles the prometheus collectors the scheduler/commit packages
// report through, mirroring the teacher's metrics.go naming.
type Metrics struct {
	FlushDuration   prometheus.Histogram
	DirtyInstances  prometheus.Counter
	FastlaneHits    prometheus.Counter
	FastlaneMisses  prometheus.Counter
	CommitFailures  prometheus.Counter
}

// NewMetrics registers loom's collectors on reg (pass prometheus.NewRegistry()
// or prometheus.DefaultRegisterer's registry in production).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loom",
			Name:      "flush_duration_seconds",
			Help:      "Duration of a scheduler flush from drain-start to drain-empty.",
			Buckets:   prometheus.DefBuckets,
		}),
		DirtyInstances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "dirty_instances_total",
			Help:      "Count of instance renders triggered across all flushes.",
		}),
		FastlaneHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "fastlane_hits_total",
			Help:      "Count of keyed child-list reconciliations that took the fast-lane path.",
		}),
		FastlaneMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "fastlane_misses_total",
			Help:      "Count of keyed child-list reconciliations that fell back to the general path.",
		}),
		CommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "commit_failures_total",
			Help:      "Count of COMMIT-phase failures.",
		}),
	}
	reg.MustRegister(m.FlushDuration, m.DirtyInstances, m.FastlaneHits, m.FastlaneMisses, m.CommitFailures)
	return m
}

// Tracer returns loom's otel tracer, named the way the teacher's
// middleware/otel.go names its default tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// TraceFlush wraps a scheduler flush in a span, recording its duration into
// m.FlushDuration.
func TraceFlush(ctx context.Context, m *Metrics, fn func() error) error {
	ctx, span := Tracer().Start(ctx, "scheduler.flush")
	defer span.End()

	start := time.Now()
	err := fn()
	if m != nil {
		m.FlushDuration.Observe(time.Since(start).Seconds())
	}
	return err
}

// TraceCommit wraps the COMMIT step of a commit-root BuildAndCommit call
// (BUILD runs before it, outside the span) in a span, tagging it
// with the root instance id (empty for a bare-container mount with no owning
// Instance) so a trace backend can group commits by mounted tree.
func TraceCommit(ctx context.Context, m *Metrics, instanceID string, fn func() error) error {
	_, span := Tracer().Start(ctx, "commit.build_and_commit",
		trace.WithAttributes(attribute.String("loom.instance_id", instanceID)))
	defer span.End()

	err := fn()
	if err != nil && m != nil {
		m.CommitFailures.Inc()
	}
	return err
}
