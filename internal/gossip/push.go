package gossip

import (
	"math/rand"
	"sync"

	"gossipmesh/internal/crds"
)

// pushDestination is one member of the active push set: a peer we
// forward newly-learned values to, plus the set of origin pubkeys that
// peer has pruned (told us it already has via another route).
type pushDestination struct {
	peer          *crds.ContactInfo
	prunedOrigins map[crds.Pubkey]bool
}

// Push implements CrdsGossipPush: the active push set and prune
// feedback. The zero value is not usable; use NewPush.
type Push struct {
	mu      sync.Mutex
	active  map[crds.Pubkey]*pushDestination
	pending []crds.Value
	rng     *rand.Rand
	fanout  int
}

func NewPush(rng *rand.Rand) *Push {
	return &Push{
		active: make(map[crds.Pubkey]*pushDestination),
		rng:    rng,
		fanout: PushFanout,
	}
}

// RefreshActiveSet rebuilds the active push set from the current known
// peers (excluding selfID), taking a bounded random sample. Existing
// prune state for peers that remain in the set is preserved.
func (p *Push) RefreshActiveSet(peers []*crds.ContactInfo, selfID crds.Pubkey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := make([]*crds.ContactInfo, 0, len(peers))
	for _, peer := range peers {
		if peer.ID != selfID {
			candidates = append(candidates, peer)
		}
	}
	p.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if len(candidates) > p.fanout {
		candidates = candidates[:p.fanout]
	}

	next := make(map[crds.Pubkey]*pushDestination, len(candidates))
	for _, peer := range candidates {
		if existing, ok := p.active[peer.ID]; ok {
			existing.peer = peer
			next[peer.ID] = existing
		} else {
			next[peer.ID] = &pushDestination{peer: peer, prunedOrigins: make(map[crds.Pubkey]bool)}
		}
	}
	p.active = next
}

// RecordInserted queues a newly-accepted value for the next push batch.
func (p *Push) RecordInserted(v crds.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, v)
}

// NewPushMessages drains up to PushBatchSize pending values and returns
// them paired with a snapshot of the current active set. Each
// destination's own prune filter is applied by the caller via
// FilterForPeer before actually sending.
func (p *Push) NewPushMessages() (peers []*crds.ContactInfo, values []crds.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.pending)
	if n > PushBatchSize {
		n = PushBatchSize
	}
	values = append(values, p.pending[:n]...)
	p.pending = p.pending[n:]

	for _, dest := range p.active {
		peers = append(peers, dest.peer)
	}
	return peers, values
}

// FilterForPeer removes values whose origin the given peer has pruned.
func (p *Push) FilterForPeer(peerID crds.Pubkey, values []crds.Value) []crds.Value {
	p.mu.Lock()
	dest, ok := p.active[peerID]
	p.mu.Unlock()
	if !ok || len(dest.prunedOrigins) == 0 {
		return values
	}

	out := make([]crds.Value, 0, len(values))
	for _, v := range values {
		if !dest.prunedOrigins[v.Pubkey()] {
			out = append(out, v)
		}
	}
	return out
}

// ProcessPushMessage attempts to insert each incoming value into store.
// Values that were rejected as ErrDuplicateOrOlder are reported back as
// origins the sender should be told to prune.
func (p *Push) ProcessPushMessage(store *crds.Store, values []crds.Value, now int64) (prunes []crds.Pubkey) {
	for _, v := range values {
		if _, err := store.Insert(v, now); err != nil {
			if err == crds.ErrDuplicateOrOlder {
				prunes = append(prunes, v.Pubkey())
			}
			continue
		}
		p.RecordInserted(v)
	}
	return prunes
}

// ProcessPruneResult is the outcome of ProcessPruneMessage.
type ProcessPruneResult int

const (
	PruneOK ProcessPruneResult = iota
	PruneMessageTimeout
	BadPruneDestination
)

// ProcessPruneMessage applies a prune feedback message: if it is
// addressed to selfID and not stale, it records that `from` should no
// longer be sent values originated by any pubkey in data.Prunes.
func (p *Push) ProcessPruneMessage(from crds.Pubkey, data *PruneData, selfID crds.Pubkey, nowMs int64) ProcessPruneResult {
	if data.Destination != selfID {
		return BadPruneDestination
	}
	if nowMs-int64(data.Wallclock) > PruneTimeoutMs {
		return PruneMessageTimeout
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	dest, ok := p.active[from]
	if !ok {
		return PruneOK
	}
	for _, origin := range data.Prunes {
		dest.prunedOrigins[origin] = true
	}
	return PruneOK
}
