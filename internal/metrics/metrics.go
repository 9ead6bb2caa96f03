// Package metrics exposes state hub activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lyric-companion/backend/internal/model"
)

const namespace = "companion"

// Collector counts sessions, frames and state writes. It satisfies
// ws.Observer and owns a private registry so tests can create many.
type Collector struct {
	registry *prometheus.Registry

	sessionsActive prometheus.Gauge
	sessionsOpened prometheus.Counter
	sessionsClosed *prometheus.CounterVec
	framesIn       *prometheus.CounterVec
	framesOut      prometheus.Counter
	stateSets      prometheus.Counter
	protocolErrors prometheus.Counter
	stateVersion   prometheus.GaugeFunc
	buildInfo      *prometheus.GaugeVec
}

// New creates a Collector. stateVersion is sampled on every scrape; it may be nil.
func New(version string, stateVersion func() float64) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of connected state hub sessions.",
		}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Total state hub sessions accepted.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total state hub sessions ended, by reason.",
		}, []string{"reason"}),
		framesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Decoded client frames, by kind.",
		}, []string{"kind"}),
		framesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to clients.",
		}),
		stateSets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_sets_total",
			Help:      "State replacements received from clients.",
		}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Frames rejected as unrecognized.",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Server version, always 1.",
		}, []string{"version"}),
	}

	if stateVersion == nil {
		stateVersion = func() float64 { return 0 }
	}
	c.stateVersion = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "state_version",
		Help:      "Number of state replacements since start.",
	}, stateVersion)

	c.registry.MustRegister(
		c.sessionsActive,
		c.sessionsOpened,
		c.sessionsClosed,
		c.framesIn,
		c.framesOut,
		c.stateSets,
		c.protocolErrors,
		c.stateVersion,
		c.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.buildInfo.WithLabelValues(version).Set(1)

	return c
}

// Registry returns the registry holding every metric.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) SessionOpened() {
	c.sessionsOpened.Inc()
	c.sessionsActive.Inc()
}

func (c *Collector) SessionClosed(reason model.CloseReason) {
	c.sessionsActive.Dec()
	c.sessionsClosed.WithLabelValues(string(reason)).Inc()
}

func (c *Collector) FrameIn(kind string) {
	c.framesIn.WithLabelValues(kind).Inc()
}

func (c *Collector) FrameOut() {
	c.framesOut.Inc()
}

func (c *Collector) StateSet() {
	c.stateSets.Inc()
}

func (c *Collector) ProtocolError() {
	c.protocolErrors.Inc()
}
