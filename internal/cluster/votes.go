package cluster

import (
	"fmt"

	"gossipmesh/internal/crds"
)

// PushVote has the external vote signer sign tx, wraps the result as a
// CRDS Vote value, and inserts it under this node's own label. Only one
// outstanding vote is tracked per node, as for any other CRDS label: a
// later push_vote replaces the earlier one once its wallclock is
// greater.
func (ci *ClusterInfo) PushVote(tx []byte) error {
	signedTx, err := ci.signer.SignVote(tx)
	if err != nil {
		return fmt.Errorf("cluster: sign vote: %w", err)
	}

	v := &crds.Vote{From: ci.selfID, Transaction: signedTx, Wallclock_: uint64(nowMillis())}
	crds.Sign(v, ci.keypair)
	_, err = ci.gossip.Store.Insert(v, nowMillis())
	return err
}

// GetVotes returns every known vote transaction accepted (local_timestamp,
// not wallclock) strictly after since, paired with the highest
// local_timestamp among those returned votes. With no votes known, or no
// votes newer than since, it returns (nil, since) unchanged.
func (ci *ClusterInfo) GetVotes(since int64) ([][]byte, int64) {
	entries := ci.gossip.Store.ValuesFiltered(func(e *crds.Entry) bool {
		return e.Value.Label().Tag == crds.TagVote && e.LocalTimestamp > since
	})

	maxTs := since
	var out [][]byte
	for _, e := range entries {
		if e.LocalTimestamp > maxTs {
			maxTs = e.LocalTimestamp
		}
		if v, ok := e.Value.(*crds.Vote); ok {
			out = append(out, v.Transaction)
		}
	}
	return out, maxTs
}
