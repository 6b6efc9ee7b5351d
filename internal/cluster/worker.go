package cluster

import (
	"context"
	"sync/atomic"
	"time"

	"gossipmesh/internal/crds"
	"gossipmesh/internal/gossip"
	"gossipmesh/internal/logging"
)

// Run starts the two long-lived goroutines that drive gossip: the
// transport's own receive loop dispatches inbound datagrams through
// onMessage, while a second goroutine here ticks every GossipSleepMillis
// to refresh the active push set, flush pending pushes, and issue one
// pull request. Run blocks until ctx is cancelled, then stops the
// transport and returns.
func (ci *ClusterInfo) Run(ctx context.Context) error {
	ci.transport.SetMessageHandler(ci.onMessage)
	if err := ci.transport.Start(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ci.gossipLoop(ctx)
	}()

	<-ctx.Done()
	<-done
	return ci.transport.Stop()
}

// onMessage is the transport's inbound handler. It never holds any lock
// across the Send calls it issues — HandleProtocol only touches the
// independently-synchronized CRDS store, push, and pull state.
func (ci *ClusterInfo) onMessage(from string, payload []byte) {
	outbound, err := ci.HandleProtocol(from, payload)
	if err != nil {
		logging.Warn("[cluster] failed to decode message from %s: %v", from, err)
		return
	}
	for _, out := range outbound {
		if err := ci.transport.Send(context.Background(), out.Addr, out.Payload); err != nil {
			logging.Warn("[cluster] failed to send reply to %s: %v", out.Addr, err)
		}
	}
}

func (ci *ClusterInfo) gossipLoop(ctx context.Context) {
	ticker := time.NewTicker(gossip.GossipSleepMillis * time.Millisecond)
	defer ticker.Stop()

	keepaliveInterval := (gossip.CrdsGossipPullCrdsTimeoutMs / 2) * time.Millisecond
	var lastKeepalive time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			ci.gossipTick(now)
			if lastKeepalive.IsZero() || now.Sub(lastKeepalive) >= keepaliveInterval {
				ci.pushSelf(now)
				lastKeepalive = now
			}
		}
	}
}

func (ci *ClusterInfo) gossipTick(now time.Time) {
	if evicted := ci.gossip.Purge(now); evicted > 0 {
		atomic.AddUint64(&ci.counters.purgeEvictions, uint64(evicted))
	}

	peers := ci.GossipPeers()
	ci.gossip.Push.RefreshActiveSet(peers, ci.selfID)

	ci.flushPushMessages()
	ci.issuePullRequest(peers, now)
}

func (ci *ClusterInfo) flushPushMessages() {
	destinations, values := ci.gossip.Push.NewPushMessages()
	if len(values) == 0 {
		return
	}

	for _, peer := range destinations {
		if peer.Gossip.IsUnspecified() {
			continue
		}
		filtered := ci.gossip.Push.FilterForPeer(peer.ID, values)
		if len(filtered) == 0 {
			continue
		}

		env := &gossip.Envelope{
			Tag:         gossip.TagPushMessage,
			PushMessage: &gossip.PushMessage{From: ci.selfID, Values: filtered},
		}
		encoded, err := gossip.Encode(env)
		if err != nil {
			logging.Warn("[cluster] failed to encode push message: %v", err)
			continue
		}
		if err := ci.transport.Send(context.Background(), peer.Gossip.String(), encoded); err != nil {
			logging.Warn("[cluster] push to %s failed: %v", peer.Gossip.String(), err)
			continue
		}
		atomic.AddUint64(&ci.counters.pushMessagesSent, 1)
	}
}

func (ci *ClusterInfo) issuePullRequest(peers []*crds.ContactInfo, now time.Time) {
	self := ci.selfContactInfo()
	if self == nil {
		return
	}

	peer, filter, caller, err := ci.gossip.Pull.NewPullRequest(ci.gossip.Store, peers, self, now)
	if err != nil {
		if err != gossip.ErrNoPeers {
			logging.Warn("[cluster] failed to build pull request: %v", err)
		}
		return
	}

	env := &gossip.Envelope{
		Tag:         gossip.TagPullRequest,
		PullRequest: &gossip.PullRequest{Filter: filter, Caller: caller},
	}
	encoded, err := gossip.Encode(env)
	if err != nil {
		logging.Warn("[cluster] failed to encode pull request: %v", err)
		return
	}
	if err := ci.transport.Send(context.Background(), peer.Gossip.String(), encoded); err != nil {
		logging.Warn("[cluster] pull request to %s failed: %v", peer.Gossip.String(), err)
		return
	}
	atomic.AddUint64(&ci.counters.pullRequestsSent, 1)
	ci.gossip.Pull.MarkPullRequestCreationTime(peer.ID, now)
}
