// Package admin exposes a node's health, status, peer list, and
// Prometheus metrics over HTTP, and carries the rate-limiting and
// security-header middleware every admin endpoint runs behind.
// Adapted from the teacher's internal/node.Server and
// internal/node.SecurityMiddleware, generalized from a data-plane
// PUT/GET API to a read-only membership/gossip introspection surface.
package admin

import "github.com/prometheus/client_golang/prometheus"

// metricSet is the Prometheus gauges this node's admin surface exposes,
// refreshed on a ticker from a ClusterInfo snapshot rather than
// incremented inline, since the counters they mirror already live
// atomically on ClusterInfo.
type metricSet struct {
	crdsEntries           prometheus.Gauge
	knownPeers            prometheus.Gauge
	pushMessagesSent      prometheus.Gauge
	pullRequestsSent      prometheus.Gauge
	pullResponsesSent     prometheus.Gauge
	pruneMessagesSent     prometheus.Gauge
	pruneMessagesRejected prometheus.Gauge
	purgeEvictions        prometheus.Gauge
	requestTotal          *prometheus.CounterVec
	requestDuration       *prometheus.HistogramVec
}

func newMetricSet(registry *prometheus.Registry) *metricSet {
	m := &metricSet{
		crdsEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gossipmesh_crds_entries",
			Help: "Number of values currently held in the CRDS store.",
		}),
		knownPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gossipmesh_known_peers",
			Help: "Number of peers reachable on the gossip socket.",
		}),
		pushMessagesSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gossipmesh_push_messages_sent_total",
			Help: "Cumulative push messages sent.",
		}),
		pullRequestsSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gossipmesh_pull_requests_sent_total",
			Help: "Cumulative pull requests sent.",
		}),
		pullResponsesSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gossipmesh_pull_responses_sent_total",
			Help: "Cumulative pull responses sent.",
		}),
		pruneMessagesSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gossipmesh_prune_messages_sent_total",
			Help: "Cumulative prune feedback messages sent.",
		}),
		pruneMessagesRejected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gossipmesh_prune_messages_rejected_total",
			Help: "Cumulative inbound prune messages rejected (bad destination or stale).",
		}),
		purgeEvictions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gossipmesh_purge_evictions_total",
			Help: "Cumulative CRDS entries evicted by purge.",
		}),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gossipmesh_admin_requests_total",
				Help: "Total number of admin HTTP requests.",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gossipmesh_admin_request_duration_seconds",
				Help: "Admin HTTP request duration in seconds.",
			},
			[]string{"method", "endpoint"},
		),
	}

	registry.MustRegister(
		m.crdsEntries, m.knownPeers,
		m.pushMessagesSent, m.pullRequestsSent, m.pullResponsesSent,
		m.pruneMessagesSent, m.pruneMessagesRejected, m.purgeEvictions,
		m.requestTotal, m.requestDuration,
	)
	return m
}

func (m *metricSet) refresh(s Snapshot) {
	m.crdsEntries.Set(float64(s.CrdsEntries))
	m.knownPeers.Set(float64(s.KnownPeers))
	m.pushMessagesSent.Set(float64(s.Counters.PushMessagesSent))
	m.pullRequestsSent.Set(float64(s.Counters.PullRequestsSent))
	m.pullResponsesSent.Set(float64(s.Counters.PullResponsesSent))
	m.pruneMessagesSent.Set(float64(s.Counters.PruneMessagesSent))
	m.pruneMessagesRejected.Set(float64(s.Counters.PruneMessagesRejected))
	m.purgeEvictions.Set(float64(s.Counters.PurgeEvictions))
}
