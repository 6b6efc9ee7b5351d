package cluster

import (
	"context"

	"gossipmesh/internal/bloom"
	"gossipmesh/internal/gossip"
	"gossipmesh/internal/logging"
)

// Bootstrap sends an initial pull request directly to each seed gossip
// address. This is the only way a node with an empty CRDS store ever
// learns its first peer: the ordinary gossip loop only pulls from peers
// already present in the store, which a freshly started node has none
// of.
func (ci *ClusterInfo) Bootstrap(ctx context.Context, seedAddrs []string) {
	self := ci.selfContactInfo()
	if self == nil || len(seedAddrs) == 0 {
		return
	}

	entries := ci.gossip.Store.All()
	filter := bloom.NewFilter(len(entries)+1, gossip.BloomFalsePositiveRate, ci.rng.Uint64())
	for _, e := range entries {
		filter.Add(e.Hash)
	}

	env := &gossip.Envelope{
		Tag:         gossip.TagPullRequest,
		PullRequest: &gossip.PullRequest{Filter: filter, Caller: self},
	}
	encoded, err := gossip.Encode(env)
	if err != nil {
		logging.Warn("[cluster] failed to encode bootstrap pull request: %v", err)
		return
	}

	for _, addr := range seedAddrs {
		if err := ci.transport.Send(ctx, addr, encoded); err != nil {
			logging.Warn("[cluster] bootstrap pull to seed %s failed: %v", addr, err)
		}
	}
}
