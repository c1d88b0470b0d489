// Package metrics exposes Prometheus collectors for the agent's sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the agent-side collectors.
type Metrics struct {
	QueueDepth         prometheus.Gauge
	DirectSubmissions  prometheus.Counter
	QueuedSubmissions  prometheus.Counter
	ReplayAttempts     prometheus.Counter
	ReplayAcks         prometheus.Counter
	ReplayFailures     prometheus.Counter
	GeofenceRejections prometheus.Counter
}

// New registers the collectors with the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "salestrack_offline_queue_depth",
			Help: "Number of visits waiting in the offline queue.",
		}),
		DirectSubmissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "salestrack_visits_submitted_direct_total",
			Help: "Visits delivered directly while online.",
		}),
		QueuedSubmissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "salestrack_visits_queued_total",
			Help: "Visits persisted locally for later sync.",
		}),
		ReplayAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "salestrack_replay_attempts_total",
			Help: "Delivery attempts made by the sync replayer.",
		}),
		ReplayAcks: factory.NewCounter(prometheus.CounterOpts{
			Name: "salestrack_replay_acks_total",
			Help: "Queued visits acknowledged by the server and deleted locally.",
		}),
		ReplayFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "salestrack_replay_failures_total",
			Help: "Replay attempts that failed and left the entry queued.",
		}),
		GeofenceRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "salestrack_geofence_rejections_total",
			Help: "Submissions blocked by the geofence re-check.",
		}),
	}
}
