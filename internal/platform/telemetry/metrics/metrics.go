package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "operator"

// Metrics records operator activity.
type Metrics struct {
	gatherer         prometheus.Gatherer
	reactions        *prometheus.CounterVec
	reactionDuration *prometheus.HistogramVec
	submissions      *prometheus.CounterVec
	reconnects       prometheus.Counter
	ready            prometheus.Gauge
}

// New registers the operator metric families on reg. A nil reg gets a fresh
// registry that also carries the Go and process collectors.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		if err := reg.Register(collectors.NewGoCollector()); err != nil {
			return nil, fmt.Errorf("register go collector: %w", err)
		}
		if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, fmt.Errorf("register process collector: %w", err)
		}
	}

	m := &Metrics{
		gatherer: reg,
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_total",
			Help:      "Reaction attempts by template and outcome.",
		}, []string{"template", "outcome"}),
		reactionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reaction_duration_seconds",
			Help:      "Time spent running one reaction, ledger round trips included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"template"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Ledger create and exercise submissions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Times the event stream was reopened after a failure.",
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready",
			Help:      "1 once the initial active contracts have loaded.",
		}),
	}
	for _, collector := range []prometheus.Collector{m.reactions, m.reactionDuration, m.submissions, m.reconnects, m.ready} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register operator metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveReaction counts one reaction attempt and its latency.
func (m *Metrics) ObserveReaction(template, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reactions.WithLabelValues(template, outcome).Inc()
	m.reactionDuration.WithLabelValues(template).Observe(elapsed.Seconds())
}

// ObserveSubmission counts one create or exercise submission.
func (m *Metrics) ObserveSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind, outcome).Inc()
}

// StreamReconnected counts one event stream reopen.
func (m *Metrics) StreamReconnected() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// SetReady flips the readiness gauge.
func (m *Metrics) SetReady(ready bool) {
	if m == nil {
		return
	}
	if ready {
		m.ready.Set(1)
		return
	}
	m.ready.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
