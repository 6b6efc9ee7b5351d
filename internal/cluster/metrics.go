package cluster

import "sync/atomic"

// counterState holds the cumulative protocol event counts. All fields
// are updated with atomic operations so the gossip and listen
// goroutines can increment them without any additional lock.
type counterState struct {
	pushMessagesSent      uint64
	pullRequestsSent      uint64
	pullResponsesSent     uint64
	pruneMessagesSent     uint64
	pruneMessagesRejected uint64
	purgeEvictions        uint64
}

// Counters is a point-in-time snapshot of counterState, safe to read
// from any goroutine (admin surfaces poll this to populate Prometheus
// gauges).
type Counters struct {
	PushMessagesSent      uint64
	PullRequestsSent      uint64
	PullResponsesSent     uint64
	PruneMessagesSent     uint64
	PruneMessagesRejected uint64
	PurgeEvictions        uint64
}

// Counters returns a snapshot of this node's cumulative protocol event
// counts.
func (ci *ClusterInfo) Counters() Counters {
	return Counters{
		PushMessagesSent:      atomic.LoadUint64(&ci.counters.pushMessagesSent),
		PullRequestsSent:      atomic.LoadUint64(&ci.counters.pullRequestsSent),
		PullResponsesSent:     atomic.LoadUint64(&ci.counters.pullResponsesSent),
		PruneMessagesSent:     atomic.LoadUint64(&ci.counters.pruneMessagesSent),
		PruneMessagesRejected: atomic.LoadUint64(&ci.counters.pruneMessagesRejected),
		PurgeEvictions:        atomic.LoadUint64(&ci.counters.purgeEvictions),
	}
}

// CrdsEntryCount returns the number of values currently held in the CRDS
// store.
func (ci *ClusterInfo) CrdsEntryCount() int { return ci.gossip.Store.Len() }

// KnownPeerCount returns the number of peers (excluding self) reachable
// on the gossip socket.
func (ci *ClusterInfo) KnownPeerCount() int { return len(ci.GossipPeers()) }
