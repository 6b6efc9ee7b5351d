package cluster

import (
	"context"
	"math/rand"
	"net"
	"testing"
	"time"

	"gossipmesh/internal/bank"
	"gossipmesh/internal/bloom"
	"gossipmesh/internal/crds"
	"gossipmesh/internal/crypto"
	"gossipmesh/internal/gossip"
	"gossipmesh/internal/ledger"
	"gossipmesh/internal/signer"
	"gossipmesh/internal/transport"
)

// fakeTransport satisfies transport.Transport without touching a real
// socket; Send just records what was sent.
type fakeTransport struct {
	addr string
	sent []sentMessage
}

type sentMessage struct {
	addr    string
	payload []byte
}

func (f *fakeTransport) Start(ctx context.Context) error { return nil }
func (f *fakeTransport) Stop() error                     { return nil }
func (f *fakeTransport) Send(ctx context.Context, addr string, payload []byte) error {
	f.sent = append(f.sent, sentMessage{addr: addr, payload: payload})
	return nil
}
func (f *fakeTransport) SetMessageHandler(h transport.Handler) {}
func (f *fakeTransport) LocalAddr() string                     { return f.addr }

func newTestClusterInfo(t *testing.T, gossipPort uint16) *ClusterInfo {
	t.Helper()
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	cfg := Config{
		Keypair:   kp,
		Transport: &fakeTransport{addr: "127.0.0.1:0"},
		Ledger:    ledger.NewBlobStore(1 << 20),
		Stakes:    bank.NewMemoryStakeSource(),
		Signer:    signer.NewLocalSigner(kp),
		Gossip:    crds.Endpoint{IP: net.ParseIP("127.0.0.1"), Port: gossipPort},
	}
	return New(cfg, rand.New(rand.NewSource(1)))
}

func insertTestPeer(t *testing.T, ci *ClusterInfo, port uint16) *crds.ContactInfo {
	t.Helper()
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	var id crds.Pubkey
	copy(id[:], kp.PublicKey)

	peer := &crds.ContactInfo{
		ID:         id,
		Gossip:     crds.Endpoint{IP: net.ParseIP("127.0.0.1"), Port: port},
		Wallclock_: uint64(time.Now().UnixMilli()),
	}
	crds.Sign(peer, kp)
	if _, err := ci.gossip.Store.Insert(peer, time.Now().UnixMilli()); err != nil {
		t.Fatalf("insert peer: %v", err)
	}
	return peer
}

// S4: window_index_request with only self known returns NoPeers.
func TestWindowIndexRequestNoPeersWithOnlySelf(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)
	if _, _, err := ci.WindowIndexRequest(7); err != ErrNoPeers {
		t.Fatalf("expected ErrNoPeers, got %v", err)
	}
}

// S5: with two repair-capable peers known, requests are distributed
// between both over many draws rather than always landing on one.
func TestWindowIndexRequestRandomizesAcrossPeers(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)
	p1 := insertTestPeer(t, ci, 9001)
	p2 := insertTestPeer(t, ci, 9002)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		addr, payload, err := ci.WindowIndexRequest(uint64(i))
		if err != nil {
			t.Fatalf("window index request: %v", err)
		}
		if len(payload) == 0 {
			t.Fatalf("expected non-empty encoded request")
		}
		seen[addr] = true
	}
	if !seen[p1.Gossip.String()] || !seen[p2.Gossip.String()] {
		t.Fatalf("expected requests to reach both peers, got %v", seen)
	}
}

// S6: vote gating by local acceptance timestamp.
func TestPushVoteAndGetVotes(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)

	since := time.Now().UnixMilli() - 1000
	votes, ts := ci.GetVotes(since)
	if votes != nil {
		t.Fatalf("expected no votes, got %v", votes)
	}
	if ts != since {
		t.Fatalf("expected unchanged since %d, got %d", since, ts)
	}

	tx := []byte("vote-transaction")
	if err := ci.PushVote(tx); err != nil {
		t.Fatalf("push vote: %v", err)
	}

	nowMinusOne := time.Now().UnixMilli() - 1
	votes, maxTs := ci.GetVotes(nowMinusOne)
	if len(votes) != 1 {
		t.Fatalf("expected exactly one vote, got %d", len(votes))
	}
	if maxTs < nowMinusOne {
		t.Fatalf("expected max_ts >= %d, got %d", nowMinusOne, maxTs)
	}

	votes, ts2 := ci.GetVotes(maxTs)
	if len(votes) != 0 {
		t.Fatalf("expected no votes past max_ts, got %d", len(votes))
	}
	if ts2 != maxTs {
		t.Fatalf("expected max_ts %d unchanged, got %d", maxTs, ts2)
	}
}

func TestGetGossipTopLeaderNoLeaderKnown(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)
	if _, err := ci.GetGossipTopLeader(); err != ErrNoLeader {
		t.Fatalf("expected ErrNoLeader, got %v", err)
	}
}

func TestGetGossipTopLeaderPicksHighestTally(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)
	favored := insertTestPeer(t, ci, 9001)
	other := insertTestPeer(t, ci, 9002)

	recordVote := func(voterPort uint16, leader crds.Pubkey) {
		kp, err := crypto.GenerateKeypair()
		if err != nil {
			t.Fatalf("generate keypair: %v", err)
		}
		var voterID crds.Pubkey
		copy(voterID[:], kp.PublicKey)
		l := &crds.LeaderId{From: voterID, Leader: leader, Wallclock_: uint64(time.Now().UnixMilli())}
		crds.Sign(l, kp)
		if _, err := ci.gossip.Store.Insert(l, time.Now().UnixMilli()); err != nil {
			t.Fatalf("insert leader vote: %v", err)
		}
	}

	recordVote(1, favored.ID)
	recordVote(2, favored.ID)
	recordVote(3, other.ID)

	top, err := ci.GetGossipTopLeader()
	if err != nil {
		t.Fatalf("get gossip top leader: %v", err)
	}
	if top.ID != favored.ID {
		t.Fatalf("expected favored leader, got %x", top.ID)
	}
}

func TestHandleProtocolPullRequestRepliesToSender(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)
	insertTestPeer(t, ci, 9001)

	rng := rand.New(rand.NewSource(2))
	filter := bloom.NewFilter(1, 0.01, rng.Uint64())

	requesterKp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	var requesterID crds.Pubkey
	copy(requesterID[:], requesterKp.PublicKey)
	requester := &crds.ContactInfo{ID: requesterID, Wallclock_: uint64(time.Now().UnixMilli())}
	crds.Sign(requester, requesterKp)

	env := &gossip.Envelope{
		Tag:         gossip.TagPullRequest,
		PullRequest: &gossip.PullRequest{Filter: filter, Caller: requester},
	}
	raw, err := gossip.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := ci.HandleProtocol("198.51.100.7:4000", raw)
	if err != nil {
		t.Fatalf("handle protocol: %v", err)
	}
	if len(out) != 1 || out[0].Addr != "198.51.100.7:4000" {
		t.Fatalf("expected one reply addressed to the observed sender, got %v", out)
	}

	decoded, err := gossip.Decode(out[0].Payload)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if decoded.Tag != gossip.TagPullResponse {
		t.Fatalf("expected PullResponse, got tag %d", decoded.Tag)
	}
}

func TestHandleProtocolPullRequestIgnoresSelfCaller(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)

	rng := rand.New(rand.NewSource(3))
	filter := bloom.NewFilter(1, 0.01, rng.Uint64())

	env := &gossip.Envelope{
		Tag:         gossip.TagPullRequest,
		PullRequest: &gossip.PullRequest{Filter: filter, Caller: ci.selfContactInfo()},
	}
	raw, err := gossip.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := ci.HandleProtocol("198.51.100.7:4000", raw)
	if err != nil {
		t.Fatalf("handle protocol: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no reply to a self pull request, got %v", out)
	}
}

func TestHandleProtocolPullRequestIgnoresNonContactInfoCaller(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)

	voterKp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	var voterID crds.Pubkey
	copy(voterID[:], voterKp.PublicKey)
	vote := &crds.Vote{From: voterID, Transaction: []byte("tx"), Wallclock_: uint64(time.Now().UnixMilli())}
	crds.Sign(vote, voterKp)

	rng := rand.New(rand.NewSource(4))
	filter := bloom.NewFilter(1, 0.01, rng.Uint64())

	env := &gossip.Envelope{
		Tag:         gossip.TagPullRequest,
		PullRequest: &gossip.PullRequest{Filter: filter, Caller: vote},
	}
	raw, err := gossip.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := ci.HandleProtocol("198.51.100.7:4000", raw)
	if err != nil {
		t.Fatalf("handle protocol: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no reply for a non-ContactInfo caller, got %v", out)
	}
}

// S: window index requests from self are ignored rather than served.
func TestRunWindowRequestIgnoresSelf(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)
	req := &gossip.RequestWindowIndex{Requester: ci.selfContactInfo(), Index: 0}

	if _, ok := ci.RunWindowRequest(req); ok {
		t.Fatalf("expected self-originated window request to be ignored")
	}
}

// S6b: when no vote is newer than since, max_ts must not regress below it.
func TestGetVotesDoesNotRegressCursorWhenNothingNewer(t *testing.T) {
	ci := newTestClusterInfo(t, 9000)

	if err := ci.PushVote([]byte("vote-transaction")); err != nil {
		t.Fatalf("push vote: %v", err)
	}

	future := time.Now().UnixMilli() + 1_000_000
	votes, ts := ci.GetVotes(future)
	if len(votes) != 0 {
		t.Fatalf("expected no votes newer than future cursor, got %d", len(votes))
	}
	if ts != future {
		t.Fatalf("expected cursor to remain %d, got %d", future, ts)
	}
}
