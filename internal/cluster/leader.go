package cluster

import "gossipmesh/internal/crds"

// GetGossipTopLeader tallies LeaderId values, ignoring the default
// (zero) pubkey, and returns the ContactInfo of the most-voted
// candidate. Ties are broken by map iteration order, which is
// nondeterministic — the spec flags this as an open question and we
// preserve the behavior rather than impose an arbitrary tie-break.
func (ci *ClusterInfo) GetGossipTopLeader() (*crds.ContactInfo, error) {
	tallies := make(map[crds.Pubkey]int)

	leaderEntries := ci.gossip.Store.ValuesFiltered(func(e *crds.Entry) bool {
		return e.Value.Label().Tag == crds.TagLeaderId
	})
	for _, e := range leaderEntries {
		l, ok := e.Value.(*crds.LeaderId)
		if !ok || l.Leader.IsZero() {
			continue
		}
		tallies[l.Leader]++
	}

	var top crds.Pubkey
	best := -1
	for candidate, count := range tallies {
		if count > best {
			best = count
			top = candidate
		}
	}
	if best < 0 {
		return nil, ErrNoLeader
	}

	entry, ok := ci.gossip.Store.Lookup(crds.Label{Tag: crds.TagContactInfo, Origin: top})
	if !ok {
		return nil, ErrNoLeader
	}
	contact, ok := entry.Value.(*crds.ContactInfo)
	if !ok {
		return nil, ErrNoLeader
	}
	return contact, nil
}
