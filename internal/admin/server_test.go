package admin

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"

	"gossipmesh/internal/cluster"
	"gossipmesh/internal/crds"
)

type fakeClusterView struct {
	selfID  crds.Pubkey
	entries int
	peers   []*crds.ContactInfo
}

func (f *fakeClusterView) SelfID() crds.Pubkey             { return f.selfID }
func (f *fakeClusterView) CrdsEntryCount() int              { return f.entries }
func (f *fakeClusterView) KnownPeerCount() int              { return len(f.peers) }
func (f *fakeClusterView) Counters() cluster.Counters       { return cluster.Counters{PushMessagesSent: 3} }
func (f *fakeClusterView) GossipPeers() []*crds.ContactInfo { return f.peers }

func TestHealthEndpointReturnsHealthy(t *testing.T) {
	s := NewServer(&fakeClusterView{}, 1000, 2000)
	defer s.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.Router().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy status, got %v", body)
	}
}

func TestPeersEndpointListsKnownPeers(t *testing.T) {
	peer := &crds.ContactInfo{
		ID:     crds.Pubkey{1, 2, 3},
		Gossip: crds.Endpoint{IP: net.ParseIP("127.0.0.1"), Port: 9001},
	}
	s := NewServer(&fakeClusterView{peers: []*crds.ContactInfo{peer}}, 1000, 2000)
	defer s.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/peers", nil)
	s.Router().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body []map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 || body[0]["gossip"] != "127.0.0.1:9001" {
		t.Fatalf("unexpected peers response: %v", body)
	}
}

func TestRateLimiterBlocksBurstOverflow(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatalf("expected first two requests within burst to be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("expected third immediate request to be rate-limited")
	}
}
