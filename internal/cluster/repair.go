package cluster

import (
	"fmt"

	"gossipmesh/internal/crds"
	"gossipmesh/internal/gossip"
	"gossipmesh/internal/ledger"
)

// WindowIndexRequest picks a uniformly random repair-capable peer and
// returns a RequestWindowIndex envelope addressed to its gossip socket.
func (ci *ClusterInfo) WindowIndexRequest(ix uint64) (addr string, payload []byte, err error) {
	peers := ci.RepairPeers()
	if len(peers) == 0 {
		return "", nil, ErrNoPeers
	}
	peer := peers[ci.rng.Intn(len(peers))]

	self := ci.selfContactInfo()
	env := &gossip.Envelope{
		Tag: gossip.TagRequestWindowIndex,
		RequestWindowIndex: &gossip.RequestWindowIndex{
			Requester: self,
			Index:     ix,
		},
	}
	encoded, err := gossip.Encode(env)
	if err != nil {
		return "", nil, fmt.Errorf("cluster: encode window index request: %w", err)
	}
	return peer.Gossip.String(), encoded, nil
}

// RunWindowRequest is the server-side half: it records the requester's
// contact info, then scans slots 0..=MaxReceivedSlot of the ledger for a
// blob at the requested index, returning the first hit. A request that
// originated from this node itself is ignored.
func (ci *ClusterInfo) RunWindowRequest(req *gossip.RequestWindowIndex) (ledger.Blob, bool) {
	requester, ok := req.Requester.(*crds.ContactInfo)
	if !ok || requester.Pubkey() == ci.selfID {
		return ledger.Blob{}, false
	}
	if crds.Verify(requester) {
		ci.gossip.Store.Insert(requester, nowMillis())
	}
	return ci.blobs.FindByIndex(req.Index)
}
