package crds

import (
	"testing"

	"gossipmesh/internal/crypto"
)

func signedContactInfo(t *testing.T, kp *crypto.Keypair, wallclock uint64) *ContactInfo {
	t.Helper()
	var id Pubkey
	copy(id[:], kp.PublicKey)
	ci := &ContactInfo{ID: id, Wallclock_: wallclock}
	Sign(ci, kp)
	return ci
}

func newKeypair(t *testing.T) *crypto.Keypair {
	t.Helper()
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return kp
}

func TestInsertNewLabelSucceeds(t *testing.T) {
	s := NewStore()
	kp := newKeypair(t)
	ci := signedContactInfo(t, kp, 100)

	displaced, err := s.Insert(ci, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if displaced != nil {
		t.Fatalf("expected no displaced entry on first insert")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}

func TestInsertRejectsInvalidSignature(t *testing.T) {
	s := NewStore()
	kp := newKeypair(t)
	ci := signedContactInfo(t, kp, 100)
	ci.Sig[0] ^= 0xFF // corrupt signature

	_, err := s.Insert(ci, 1000)
	if err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestInsertOlderWallclockRejected(t *testing.T) {
	s := NewStore()
	kp := newKeypair(t)

	newer := signedContactInfo(t, kp, 200)
	if _, err := s.Insert(newer, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	older := signedContactInfo(t, kp, 100)
	_, err := s.Insert(older, 2000)
	if err != ErrDuplicateOrOlder {
		t.Fatalf("expected ErrDuplicateOrOlder, got %v", err)
	}

	entry, ok := s.Lookup(newer.Label())
	if !ok || entry.Value.Wallclock() != 200 {
		t.Fatalf("expected stored wallclock to remain 200")
	}
}

func TestInsertNewerWallclockReplaces(t *testing.T) {
	s := NewStore()
	kp := newKeypair(t)

	older := signedContactInfo(t, kp, 100)
	if _, err := s.Insert(older, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newer := signedContactInfo(t, kp, 200)
	displaced, err := s.Insert(newer, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if displaced == nil || displaced.Value.Wallclock() != 100 {
		t.Fatalf("expected displaced entry with wallclock 100")
	}

	entry, ok := s.Lookup(newer.Label())
	if !ok || entry.Value.Wallclock() != 200 {
		t.Fatalf("expected stored wallclock to be 200")
	}
}

func TestPurgeRemovesExpiredEntries(t *testing.T) {
	s := NewStore()
	kp := newKeypair(t)
	ci := signedContactInfo(t, kp, 100)

	if _, err := s.Insert(ci, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	evicted := s.Purge(1500, 1000) // 1000+1000 = 2000, not yet expired
	if evicted != 0 {
		t.Fatalf("expected no eviction yet, got %d", evicted)
	}

	evicted = s.Purge(2500, 1000) // 1000+1000=2000 < 2500
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if s.Len() != 0 {
		t.Fatalf("expected store to be empty after purge")
	}
}

func TestValuesFilteredAppliesPredicate(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		kp := newKeypair(t)
		ci := signedContactInfo(t, kp, uint64(100+i))
		if _, err := s.Insert(ci, 1000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all := s.ValuesFiltered(func(e *Entry) bool { return e.Value.Wallclock() >= 102 })
	if len(all) != 3 {
		t.Fatalf("expected 3 filtered entries, got %d", len(all))
	}
}
