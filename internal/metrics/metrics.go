package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "picbot"

// Search outcomes.
const (
	SearchOK     = "ok"
	SearchEmpty  = "empty"
	SearchFailed = "failed"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	searches        *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	sessionsCreated prometheus.Counter
	navigations     *prometheus.CounterVec
	publishes       prometheus.Counter
	notices         *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Image searches by outcome.",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Latency of image search provider calls.",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 20},
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Browsing sessions installed, replacements included.",
		}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Applied navigation commands.",
		}, []string{"command"}),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Images published to a channel.",
		}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_total",
			Help:      "Ephemeral notices sent instead of a result, by reason.",
		}, []string{"reason"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.searches, m.searchDuration, m.sessionsCreated, m.navigations, m.publishes, m.notices,
	)
	return m
}

// TrackSessions exposes the live session count reported by fn.
func (m *Metrics) TrackSessions(fn func() int) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently held by the in-memory store.",
	}, func() float64 { return float64(fn()) }))
}

func (m *Metrics) Search(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(took.Seconds())
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) Navigated(command string) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(command).Inc()
}

func (m *Metrics) Published() {
	if m == nil {
		return
	}
	m.publishes.Inc()
}

func (m *Metrics) Notice(reason string) {
	if m == nil {
		return
	}
	m.notices.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
