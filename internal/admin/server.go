package admin

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gossipmesh/internal/cluster"
	"gossipmesh/internal/crds"
)

// ClusterView is the slice of ClusterInfo the admin surface needs: peer
// views, counters, and identity. Kept as an interface so this package
// tests against a fake rather than standing up a full ClusterInfo.
type ClusterView interface {
	SelfID() crds.Pubkey
	CrdsEntryCount() int
	KnownPeerCount() int
	Counters() cluster.Counters
	GossipPeers() []*crds.ContactInfo
}

// Snapshot is one point-in-time read of a ClusterView, used both to
// refresh Prometheus gauges and to serve /status and /peers.
type Snapshot struct {
	SelfID      crds.Pubkey
	CrdsEntries int
	KnownPeers  int
	Counters    cluster.Counters
	Peers       []*crds.ContactInfo
}

func snapshot(c ClusterView) Snapshot {
	return Snapshot{
		SelfID:      c.SelfID(),
		CrdsEntries: c.CrdsEntryCount(),
		KnownPeers:  c.KnownPeerCount(),
		Counters:    c.Counters(),
		Peers:       c.GossipPeers(),
	}
}

// Server is the node's admin HTTP surface: /health, /status, /metrics,
// /peers, behind rate-limiting and security-header middleware.
type Server struct {
	cluster   ClusterView
	registry  *prometheus.Registry
	metrics   *metricSet
	security  *SecurityMiddleware
	startedAt time.Time
	stopPoll  chan struct{}
}

// NewServer wires an admin surface around cluster. rateLimit/burst tune
// the per-IP token bucket; the teacher's defaults (100 rps, burst 200)
// are reused by callers that don't need a different shape.
func NewServer(c ClusterView, rateLimit, burst int) *Server {
	registry := prometheus.NewRegistry()
	s := &Server{
		cluster:   c,
		registry:  registry,
		metrics:   newMetricSet(registry),
		security:  NewSecurityMiddleware(registry, rateLimit, burst, 1<<20),
		startedAt: time.Now(),
		stopPoll:  make(chan struct{}),
	}
	go s.pollMetrics()
	return s
}

func (s *Server) pollMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.metrics.refresh(snapshot(s.cluster))
		case <-s.stopPoll:
			return
		}
	}
}

// Close stops the background metrics poller and the rate limiter's
// cleanup goroutine.
func (s *Server) Close() error {
	close(s.stopPoll)
	s.security.Close()
	return nil
}

// Router builds the mux.Router serving this node's admin endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.security.Middleware)
	r.Use(TimeoutMiddleware(10 * time.Second))

	r.HandleFunc("/health", s.instrument("health", s.healthHandler)).Methods(http.MethodGet)
	r.HandleFunc("/status", s.instrument("status", s.statusHandler)).Methods(http.MethodGet)
	r.HandleFunc("/peers", s.instrument("peers", s.peersHandler)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

func (s *Server) instrument(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(wrapped, r)
		s.metrics.requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		s.metrics.requestTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(wrapped.statusCode)).Inc()
	}
}

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	snap := snapshot(s.cluster)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]any{
		"self_id":     hexID(snap.SelfID),
		"uptime":      time.Since(s.startedAt).String(),
		"crds_entries": snap.CrdsEntries,
		"known_peers": snap.KnownPeers,
		"counters":    snap.Counters,
		"goroutines":  runtime.NumGoroutine(),
		"memory": map[string]any{
			"alloc":      mem.Alloc,
			"total_alloc": mem.TotalAlloc,
			"sys":        mem.Sys,
			"num_gc":     mem.NumGC,
		},
	})
}

func (s *Server) peersHandler(w http.ResponseWriter, r *http.Request) {
	peers := s.cluster.GossipPeers()
	out := make([]map[string]string, 0, len(peers))
	for _, p := range peers {
		out = append(out, map[string]string{
			"id":     hexID(p.ID),
			"gossip": p.Gossip.String(),
			"tvu":    p.TVU.String(),
			"tpu":    p.TPU.String(),
			"rpc":    p.RPC.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func hexID(p crds.Pubkey) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(p)*2)
	for i, b := range p {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
