package gossip

import (
	"math/rand"
	"testing"

	"gossipmesh/internal/crds"
	"gossipmesh/internal/crypto"
)

func testContactInfo(id byte) *crds.ContactInfo {
	var pk crds.Pubkey
	pk[0] = id
	return &crds.ContactInfo{ID: pk, Wallclock_: 1}
}

func TestRefreshActiveSetExcludesSelfAndBoundsFanout(t *testing.T) {
	push := NewPush(rand.New(rand.NewSource(1)))
	self := testContactInfo(0)

	var peers []*crds.ContactInfo
	for i := byte(1); i <= 20; i++ {
		peers = append(peers, testContactInfo(i))
	}
	peers = append(peers, self)

	push.RefreshActiveSet(peers, self.ID)

	if len(push.active) > PushFanout {
		t.Fatalf("expected active set bounded by fanout %d, got %d", PushFanout, len(push.active))
	}
	if _, ok := push.active[self.ID]; ok {
		t.Fatalf("active set must never include self")
	}
}

func TestProcessPushMessageReportsDuplicatesAsPrunes(t *testing.T) {
	store := crds.NewStore()
	push := NewPush(rand.New(rand.NewSource(1)))

	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	var id crds.Pubkey
	copy(id[:], kp.PublicKey)
	v := &crds.Vote{From: id, Transaction: []byte("a"), Wallclock_: 100}
	crds.Sign(v, kp)

	if _, err := store.Insert(v, 1000); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	dup := &crds.Vote{From: id, Transaction: []byte("a"), Wallclock_: 100}
	crds.Sign(dup, kp)

	prunes := push.ProcessPushMessage(store, []crds.Value{dup}, 2000)
	if len(prunes) != 1 || prunes[0] != id {
		t.Fatalf("expected one prune for origin %v, got %v", id, prunes)
	}
}

func TestProcessPruneMessageRejectsWrongDestinationAndStale(t *testing.T) {
	push := NewPush(rand.New(rand.NewSource(1)))
	self := testContactInfo(0)
	other := testContactInfo(1)
	push.RefreshActiveSet([]*crds.ContactInfo{other}, self.ID)

	var wrongDest crds.Pubkey
	wrongDest[0] = 99

	data := &PruneData{Pubkey: other.ID, Destination: wrongDest, Wallclock: 1000}
	if got := push.ProcessPruneMessage(other.ID, data, self.ID, 1000); got != BadPruneDestination {
		t.Fatalf("expected BadPruneDestination, got %v", got)
	}

	stale := &PruneData{Pubkey: other.ID, Destination: self.ID, Wallclock: 0}
	if got := push.ProcessPruneMessage(other.ID, stale, self.ID, PruneTimeoutMs+1); got != PruneMessageTimeout {
		t.Fatalf("expected PruneMessageTimeout, got %v", got)
	}

	var origin crds.Pubkey
	origin[0] = 5
	ok := &PruneData{Pubkey: other.ID, Destination: self.ID, Wallclock: 1000, Prunes: []crds.Pubkey{origin}}
	if got := push.ProcessPruneMessage(other.ID, ok, self.ID, 1500); got != PruneOK {
		t.Fatalf("expected PruneOK, got %v", got)
	}

	filtered := push.FilterForPeer(other.ID, []crds.Value{&crds.Vote{From: origin}})
	if len(filtered) != 0 {
		t.Fatalf("expected pruned origin's values filtered out, got %d", len(filtered))
	}
}
