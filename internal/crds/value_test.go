package crds

import (
	"net"
	"testing"

	"gossipmesh/internal/crypto"
)

func TestContactInfoSignVerifyRoundTrip(t *testing.T) {
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	var id Pubkey
	copy(id[:], kp.PublicKey)

	ci := &ContactInfo{
		ID:         id,
		Gossip:     Endpoint{IP: net.ParseIP("127.0.0.1"), Port: 8001},
		Wallclock_: 42,
	}
	Sign(ci, kp)

	if !Verify(ci) {
		t.Fatalf("expected signature to verify")
	}

	ci.Wallclock_ = 43 // tamper after signing
	if Verify(ci) {
		t.Fatalf("expected tampered value to fail verification")
	}
}

func TestUnspecifiedEndpoint(t *testing.T) {
	var e Endpoint
	if !e.IsUnspecified() {
		t.Fatalf("expected zero-value endpoint to be unspecified")
	}

	e2 := Endpoint{IP: net.ParseIP("10.0.0.1"), Port: 9000}
	if e2.IsUnspecified() {
		t.Fatalf("expected populated endpoint to be specified")
	}
}

func TestLabelsDistinguishVariantsAndOrigins(t *testing.T) {
	var a, b Pubkey
	a[0] = 1
	b[0] = 2

	ci := &ContactInfo{ID: a}
	lid := &LeaderId{From: a}
	vote := &Vote{From: a}
	ciB := &ContactInfo{ID: b}

	if ci.Label() == lid.Label() {
		t.Fatalf("expected different tags to produce different labels")
	}
	if ci.Label() == ciB.Label() {
		t.Fatalf("expected different origins to produce different labels")
	}
	if vote.Label().Tag != TagVote {
		t.Fatalf("expected vote label tag to be TagVote")
	}
}
