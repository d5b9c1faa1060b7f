package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the control plane.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	SignalsRelayed   *prometheus.CounterVec
	ReapedBroadcasts prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsInto(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsInto registers into an explicit registerer so tests can use
// a throwaway registry.
func NewMetricsInto(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active broadcast and call sessions.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		SignalsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_relayed_total",
			Help:      "Relayed signaling messages by type.",
		}, []string{"type"}),
		ReapedBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaped_broadcasts_total",
			Help:      "Broadcasts ended by the staleness sweep.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
