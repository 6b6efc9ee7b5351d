package cluster

import (
	"sync/atomic"

	"gossipmesh/internal/crds"
	"gossipmesh/internal/gossip"
	"gossipmesh/internal/logging"
)

// Outbound is one envelope (or, for window-index repair, a raw blob) that
// handling an inbound datagram requires sending out.
type Outbound struct {
	Addr    string
	Payload []byte
}

// HandleProtocol decodes one inbound datagram received from fromAddr and
// applies it to the gossip store, returning any replies that must be
// sent. Replies are always addressed to fromAddr — the socket the
// datagram actually arrived from — rather than to any address a caller's
// own ContactInfo advertises, so a caller behind a NAT with an
// unspecified gossip endpoint is still reachable.
func (ci *ClusterInfo) HandleProtocol(fromAddr string, raw []byte) ([]Outbound, error) {
	env, err := gossip.Decode(raw)
	if err != nil {
		return nil, err
	}
	now := nowMillis()

	switch env.Tag {
	case gossip.TagPullRequest:
		return ci.handlePullRequest(fromAddr, env.PullRequest, now)

	case gossip.TagPullResponse:
		ci.gossip.Pull.ProcessPullResponse(ci.gossip.Store, env.PullResponse.From, env.PullResponse.Values, now)
		return nil, nil

	case gossip.TagPushMessage:
		return ci.handlePushMessage(fromAddr, env.PushMessage, now)

	case gossip.TagPruneMessage:
		result := ci.gossip.Push.ProcessPruneMessage(env.PruneMessage.From, &env.PruneMessage.Data, ci.selfID, now)
		if result != gossip.PruneOK {
			atomic.AddUint64(&ci.counters.pruneMessagesRejected, 1)
			logging.Warn("[cluster] prune message from %s rejected: %d", fromAddr, result)
		}
		return nil, nil

	case gossip.TagRequestWindowIndex:
		return ci.handleWindowIndexRequest(fromAddr, env.RequestWindowIndex)

	default:
		return nil, nil
	}
}

func (ci *ClusterInfo) handlePullRequest(fromAddr string, req *gossip.PullRequest, now int64) ([]Outbound, error) {
	caller, ok := req.Caller.(*crds.ContactInfo)
	if !ok || caller.Pubkey() == ci.selfID {
		return nil, nil
	}

	values := ci.gossip.Pull.ProcessPullRequest(ci.gossip.Store, req.Caller, req.Filter, now)

	resp := &gossip.Envelope{
		Tag:          gossip.TagPullResponse,
		PullResponse: &gossip.PullResponse{From: ci.selfID, Values: values},
	}
	encoded, err := gossip.Encode(resp)
	if err != nil {
		return nil, err
	}
	atomic.AddUint64(&ci.counters.pullResponsesSent, 1)
	return []Outbound{{Addr: fromAddr, Payload: encoded}}, nil
}

func (ci *ClusterInfo) handlePushMessage(fromAddr string, msg *gossip.PushMessage, now int64) ([]Outbound, error) {
	prunes := ci.gossip.Push.ProcessPushMessage(ci.gossip.Store, msg.Values, now)
	if len(prunes) == 0 {
		return nil, nil
	}

	data := gossip.PruneData{
		Pubkey:      ci.selfID,
		Prunes:      prunes,
		Destination: msg.From,
		Wallclock:   uint64(now),
	}
	gossip.SignPruneData(&data, ci.keypair)

	reply := &gossip.Envelope{
		Tag:          gossip.TagPruneMessage,
		PruneMessage: &gossip.PruneMessage{From: ci.selfID, Data: data},
	}
	encoded, err := gossip.Encode(reply)
	if err != nil {
		return nil, err
	}
	atomic.AddUint64(&ci.counters.pruneMessagesSent, 1)
	return []Outbound{{Addr: fromAddr, Payload: encoded}}, nil
}

func (ci *ClusterInfo) handleWindowIndexRequest(fromAddr string, req *gossip.RequestWindowIndex) ([]Outbound, error) {
	blob, ok := ci.RunWindowRequest(req)
	if !ok {
		return nil, nil
	}
	return []Outbound{{Addr: fromAddr, Payload: blob.Payload}}, nil
}
