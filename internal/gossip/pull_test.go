package gossip

import (
	"math/rand"
	"testing"
	"time"

	"gossipmesh/internal/bloom"
	"gossipmesh/internal/crds"
	"gossipmesh/internal/crypto"
)

func TestNewPullRequestNoPeersReturnsError(t *testing.T) {
	pull := NewPull(rand.New(rand.NewSource(1)))
	store := crds.NewStore()
	_, _, _, err := pull.NewPullRequest(store, nil, nil, time.Now())
	if err != ErrNoPeers {
		t.Fatalf("expected ErrNoPeers, got %v", err)
	}
}

func TestNewPullRequestPacesRepeatContacts(t *testing.T) {
	pull := NewPull(rand.New(rand.NewSource(1)))
	store := crds.NewStore()
	peer := testContactInfo(1)

	now := time.Now()
	got, _, _, err := pull.NewPullRequest(store, []*crds.ContactInfo{peer}, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != peer.ID {
		t.Fatalf("expected the only peer to be chosen")
	}

	pull.MarkPullRequestCreationTime(peer.ID, now)
	_, _, _, err = pull.NewPullRequest(store, []*crds.ContactInfo{peer}, nil, now.Add(1*time.Millisecond))
	if err != ErrNoPeers {
		t.Fatalf("expected recently-contacted peer to be paced out, got err=%v", err)
	}

	_, _, _, err = pull.NewPullRequest(store, []*crds.ContactInfo{peer}, nil, now.Add(PullRequestMinInterval+time.Millisecond))
	if err != nil {
		t.Fatalf("expected peer eligible again after pacing interval: %v", err)
	}
}

func TestProcessPullRequestReturnsOnlyMissingValues(t *testing.T) {
	store := crds.NewStore()
	pull := NewPull(rand.New(rand.NewSource(1)))

	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	var id crds.Pubkey
	copy(id[:], kp.PublicKey)
	known := &crds.Vote{From: id, Transaction: []byte("known"), Wallclock_: 10}
	crds.Sign(known, kp)
	if _, err := store.Insert(known, 1000); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	filter := bloom.NewFilter(4, 0.01, 42)
	filter.Add(crds.ValueHash(known))

	missing := pull.ProcessPullRequest(store, nil, filter, 2000)
	if len(missing) != 0 {
		t.Fatalf("expected no missing values when filter already has the only entry, got %d", len(missing))
	}

	emptyFilter := bloom.NewFilter(4, 0.01, 43)
	missing = pull.ProcessPullRequest(store, nil, emptyFilter, 2000)
	if len(missing) != 1 {
		t.Fatalf("expected the one stored value to be returned, got %d", len(missing))
	}
}
