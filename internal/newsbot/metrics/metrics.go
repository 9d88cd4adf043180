// Package metrics exports harvest counters to Prometheus from pipeline events.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/gate"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/pipeline"
)

// Namespace prefixes every metric.
const Namespace = "newsdesk"

// Metrics holds the harvest collectors.
type Metrics struct {
	ItemsTotal          *prometheus.CounterVec
	SourceFailuresTotal *prometheus.CounterVec
	SweepsTotal         prometheus.Counter
	SweepDuration       prometheus.Histogram
	LastSweep           prometheus.Gauge
}

// NewMetrics creates and registers the collectors on reg, or on the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_total",
			Help:      "Items processed by the persistence gate, by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "source_failures_total",
			Help:      "Sources whose listing page could not be fetched or parsed.",
		}, []string{"source"}),
		SweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sweeps_total",
			Help:      "Completed sweeps.",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of a full sweep.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		LastSweep: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time the last sweep finished.",
		}),
	}
}

// Record updates collectors for one event.
func (m *Metrics) Record(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.SourceDone:
		if ev.Source == nil {
			return
		}
		if ev.Source.Failed() {
			m.SourceFailuresTotal.WithLabelValues(ev.Source.Source).Inc()
		}
		for _, o := range gate.Outcomes() {
			if n := ev.Source.Count(o); n > 0 {
				m.ItemsTotal.WithLabelValues(ev.Source.Source, o.String()).Add(float64(n))
			}
		}
	case pipeline.SweepDone:
		if ev.Sweep == nil {
			return
		}
		m.SweepsTotal.Inc()
		m.SweepDuration.Observe(ev.Sweep.Duration().Seconds())
		m.LastSweep.Set(float64(ev.Sweep.Finished.Unix()))
	}
}

// Observe records events until ctx is done or events is closed.
func (m *Metrics) Observe(ctx context.Context, events <-chan pipeline.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Record(ev)
		}
	}
}
