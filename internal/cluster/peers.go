package cluster

import (
	"sort"

	"gossipmesh/internal/crds"
)

// allContactInfos snapshots every ContactInfo currently in the CRDS,
// excluding self.
func (ci *ClusterInfo) allContactInfos() []*crds.ContactInfo {
	entries := ci.gossip.Store.ValuesFiltered(func(e *crds.Entry) bool {
		return e.Value.Label().Tag == crds.TagContactInfo && e.Value.Pubkey() != ci.selfID
	})
	out := make([]*crds.ContactInfo, 0, len(entries))
	for _, e := range entries {
		if c, ok := e.Value.(*crds.ContactInfo); ok {
			out = append(out, c)
		}
	}
	return out
}

func filterByEndpoint(peers []*crds.ContactInfo, endpointOf func(*crds.ContactInfo) crds.Endpoint) []*crds.ContactInfo {
	out := make([]*crds.ContactInfo, 0, len(peers))
	for _, p := range peers {
		if !endpointOf(p).IsUnspecified() {
			out = append(out, p)
		}
	}
	return out
}

// TPUPeers returns peers with a usable transaction-ingest endpoint,
// excluding self.
func (ci *ClusterInfo) TPUPeers() []*crds.ContactInfo {
	return filterByEndpoint(ci.allContactInfos(), func(c *crds.ContactInfo) crds.Endpoint { return c.TPU })
}

// TVUPeers returns peers with a usable block-ingest endpoint, excluding
// self.
func (ci *ClusterInfo) TVUPeers() []*crds.ContactInfo {
	return filterByEndpoint(ci.allContactInfos(), func(c *crds.ContactInfo) crds.Endpoint { return c.TVU })
}

// RPCPeers returns peers with a usable RPC endpoint, excluding self.
func (ci *ClusterInfo) RPCPeers() []*crds.ContactInfo {
	return filterByEndpoint(ci.allContactInfos(), func(c *crds.ContactInfo) crds.Endpoint { return c.RPC })
}

// GossipPeers returns peers with a usable gossip endpoint, excluding
// self. A node never advertises or stores a peer whose gossip address is
// the unspecified sentinel in outbound gossip destinations.
func (ci *ClusterInfo) GossipPeers() []*crds.ContactInfo {
	return filterByEndpoint(ci.allContactInfos(), func(c *crds.ContactInfo) crds.Endpoint { return c.Gossip })
}

// RepairPeers returns peers capable of serving window-index repair
// requests: those with a usable gossip endpoint (the repair protocol
// rides the gossip socket's addressing, per spec §6).
func (ci *ClusterInfo) RepairPeers() []*crds.ContactInfo {
	return ci.GossipPeers()
}

// RetransmitPeers computes the same set as TVUPeers. The spec flags this
// as an open question — whether the two are meant to diverge (e.g.
// stake-filtered) is left to the maintainer; we match cluster_info.rs
// exactly and keep them identical.
func (ci *ClusterInfo) RetransmitPeers() []*crds.ContactInfo {
	return ci.TVUPeers()
}

// StakedPeer pairs a peer with its stake weight.
type StakedPeer struct {
	Stake uint64
	Peer  *crds.ContactInfo
}

// SortByStake sorts peers ascending by the stake obtained from the
// external bank collaborator.
func (ci *ClusterInfo) SortByStake(peers []*crds.ContactInfo) []StakedPeer {
	out := make([]StakedPeer, len(peers))
	for i, p := range peers {
		out[i] = StakedPeer{Stake: ci.stakes.GetBalance(p.ID), Peer: p}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stake < out[j].Stake })
	return out
}
