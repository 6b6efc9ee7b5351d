package gossip

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"gossipmesh/internal/bloom"
	"gossipmesh/internal/crds"
)

// ErrNoPeers is returned when no eligible peer exists for a pull round.
var ErrNoPeers = errors.New("gossip: no peers")

// Pull implements CrdsGossipPull: per-round peer sampling, Bloom-filtered
// request/response, and last-request pacing.
type Pull struct {
	mu           sync.Mutex
	lastRequest  map[crds.Pubkey]time.Time
	rng          *rand.Rand
}

func NewPull(rng *rand.Rand) *Pull {
	return &Pull{
		lastRequest: make(map[crds.Pubkey]time.Time),
		rng:         rng,
	}
}

// NewPullRequest chooses one peer (favoring peers not recently
// contacted), builds a Bloom of store's current value hashes, and
// returns it paired with self's signed ContactInfo so the callee learns
// how to reach us.
func (p *Pull) NewPullRequest(store *crds.Store, peers []*crds.ContactInfo, self crds.Value, now time.Time) (*crds.ContactInfo, *bloom.Filter, crds.Value, error) {
	peer := p.choosePeer(peers, now)
	if peer == nil {
		return nil, nil, nil, ErrNoPeers
	}

	entries := store.All()
	filter := bloom.NewFilter(len(entries)+1, BloomFalsePositiveRate, p.rng.Uint64())
	for _, e := range entries {
		filter.Add(e.Hash)
	}

	return peer, filter, self, nil
}

// choosePeer picks uniformly among peers not contacted within
// PullRequestMinInterval, preferring ones never contacted at all.
func (p *Pull) choosePeer(peers []*crds.ContactInfo, now time.Time) *crds.ContactInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	var eligible []*crds.ContactInfo
	var neverContacted []*crds.ContactInfo
	for _, peer := range peers {
		last, ok := p.lastRequest[peer.ID]
		if !ok {
			neverContacted = append(neverContacted, peer)
			continue
		}
		if now.Sub(last) >= PullRequestMinInterval {
			eligible = append(eligible, peer)
		}
	}

	if len(neverContacted) > 0 {
		return neverContacted[p.rng.Intn(len(neverContacted))]
	}
	if len(eligible) > 0 {
		return eligible[p.rng.Intn(len(eligible))]
	}
	return nil
}

// MarkPullRequestCreationTime records that peer was just pulled from, so
// subsequent rounds pace requests to it.
func (p *Pull) MarkPullRequestCreationTime(peer crds.Pubkey, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRequest[peer] = now
}

// ProcessPullRequest inserts the caller's own value, then returns every
// locally-held value whose hash the caller's filter does not already
// contain, bounded by PullResponseBudget.
func (p *Pull) ProcessPullRequest(store *crds.Store, caller crds.Value, filter *bloom.Filter, now int64) []crds.Value {
	if caller != nil {
		store.Insert(caller, now) // ErrDuplicateOrOlder is expected and fine here
	}

	missing := store.ValuesFiltered(func(e *crds.Entry) bool {
		return !filter.Contains(e.Hash)
	})

	if len(missing) > PullResponseBudget {
		missing = missing[:PullResponseBudget]
	}

	out := make([]crds.Value, len(missing))
	for i, e := range missing {
		out[i] = e.Value
	}
	return out
}

// ProcessPullResponse inserts each returned value and updates pacing
// state for the responding peer.
func (p *Pull) ProcessPullResponse(store *crds.Store, from crds.Pubkey, values []crds.Value, now int64) {
	for _, v := range values {
		store.Insert(v, now) // errors (duplicate/older/bad sig) are expected and ignored
	}
	p.MarkPullRequestCreationTime(from, time.UnixMilli(now))
}
