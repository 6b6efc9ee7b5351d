// Package cluster owns ClusterInfo: node identity, the signing keypair,
// role-filtered peer views, broadcast/retransmit, window-index repair,
// leader election tallying, and the gossip/listen worker goroutines. It
// holds no lock of its own; synchronization is delegated to the
// per-component locks on the underlying CRDS store and push/pull state
// (Store, Push, Pull), with the inviolable rule that no I/O happens
// while any of those locks is held.
package cluster

import (
	"math/rand"
	"time"

	"gossipmesh/internal/bank"
	"gossipmesh/internal/crds"
	"gossipmesh/internal/crypto"
	"gossipmesh/internal/gossip"
	"gossipmesh/internal/ledger"
	"gossipmesh/internal/logging"
	"gossipmesh/internal/signer"
	"gossipmesh/internal/transport"
)

// ErrNoPeers mirrors gossip.ErrNoPeers at the ClusterInfo boundary for
// operations (window_index_request) that have no gossip.Pull dependency.
var ErrNoPeers = gossip.ErrNoPeers

// ErrNoLeader is returned when no non-default LeaderId is known.
var ErrNoLeader = errNoLeader{}

type errNoLeader struct{}

func (errNoLeader) Error() string { return "cluster: no leader known" }

// ClusterInfo is the node's view of the cluster: its own identity and
// signing key, the CRDS-backed gossip facade, and the external
// collaborators (transport, ledger, bank, vote signer) it coordinates.
type ClusterInfo struct {
	selfID  crds.Pubkey
	keypair *crypto.Keypair

	gossip *gossip.CrdsGossip

	transport transport.Transport
	blobs     *ledger.BlobStore
	stakes    bank.StakeSource
	signer    signer.VoteSigner

	rng *rand.Rand

	counters counterState
}

// Config bundles ClusterInfo's external collaborators.
type Config struct {
	Keypair   *crypto.Keypair
	Transport transport.Transport
	Ledger    *ledger.BlobStore
	Stakes    bank.StakeSource
	Signer    signer.VoteSigner
	Gossip    crds.Endpoint
	TVU       crds.Endpoint
	TPU       crds.Endpoint
	Storage   crds.Endpoint
	RPC       crds.Endpoint
	RPCPubsub crds.Endpoint
}

// New constructs a ClusterInfo and inserts this node's own signed
// ContactInfo into the CRDS.
func New(cfg Config, rng *rand.Rand) *ClusterInfo {
	var selfID crds.Pubkey
	copy(selfID[:], cfg.Keypair.PublicKey)

	ci := &ClusterInfo{
		selfID:    selfID,
		keypair:   cfg.Keypair,
		gossip:    gossip.NewCrdsGossip(rng),
		transport: cfg.Transport,
		blobs:     cfg.Ledger,
		stakes:    cfg.Stakes,
		signer:    cfg.Signer,
		rng:       rng,
	}

	self := &crds.ContactInfo{
		ID:         selfID,
		Gossip:     cfg.Gossip,
		TVU:        cfg.TVU,
		TPU:        cfg.TPU,
		Storage:    cfg.Storage,
		RPC:        cfg.RPC,
		RPCPubsub:  cfg.RPCPubsub,
		Wallclock_: uint64(time.Now().UnixMilli()),
	}
	crds.Sign(self, ci.keypair)
	if _, err := ci.gossip.Store.Insert(self, time.Now().UnixMilli()); err != nil {
		logging.Warn("[cluster] failed to insert self ContactInfo: %v", err)
	}

	return ci
}

// SelfID returns this node's public identity.
func (ci *ClusterInfo) SelfID() crds.Pubkey { return ci.selfID }

// pushSelf re-signs and re-inserts this node's own ContactInfo with a
// fresh wallclock, used as the gossip thread's keepalive.
func (ci *ClusterInfo) pushSelf(now time.Time) {
	entry, ok := ci.gossip.Store.Lookup(crds.Label{Tag: crds.TagContactInfo, Origin: ci.selfID})
	if !ok {
		return
	}
	self, ok := entry.Value.(*crds.ContactInfo)
	if !ok {
		return
	}

	updated := *self
	updated.Wallclock_ = uint64(now.UnixMilli())
	crds.Sign(&updated, ci.keypair)
	if _, err := ci.gossip.Store.Insert(&updated, now.UnixMilli()); err != nil {
		logging.Warn("[cluster] self keepalive insert failed: %v", err)
	}
}

// selfContactInfo returns this node's current signed ContactInfo.
func (ci *ClusterInfo) selfContactInfo() *crds.ContactInfo {
	entry, ok := ci.gossip.Store.Lookup(crds.Label{Tag: crds.TagContactInfo, Origin: ci.selfID})
	if !ok {
		return nil
	}
	self, _ := entry.Value.(*crds.ContactInfo)
	return self
}
