package gossip

import (
	"testing"

	"gossipmesh/internal/bloom"
	"gossipmesh/internal/crds"
	"gossipmesh/internal/crypto"
)

func signedVote(t *testing.T, wallclock uint64) (*crds.Vote, *crypto.Keypair) {
	t.Helper()
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	var id crds.Pubkey
	copy(id[:], kp.PublicKey)
	v := &crds.Vote{From: id, Transaction: []byte("tx"), Wallclock_: wallclock}
	crds.Sign(v, kp)
	return v, kp
}

func TestPushMessageEnvelopeRoundTrip(t *testing.T) {
	v, _ := signedVote(t, 1)
	env := &Envelope{Tag: TagPushMessage, PushMessage: &PushMessage{From: v.From, Values: []crds.Value{v}}}

	encoded, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Tag != TagPushMessage {
		t.Fatalf("expected TagPushMessage, got %v", decoded.Tag)
	}
	if len(decoded.PushMessage.Values) != 1 {
		t.Fatalf("expected 1 value, got %d", len(decoded.PushMessage.Values))
	}
	got := decoded.PushMessage.Values[0].(*crds.Vote)
	if string(got.Transaction) != "tx" {
		t.Fatalf("unexpected transaction payload: %q", got.Transaction)
	}
}

func TestPullRequestEnvelopeRoundTrip(t *testing.T) {
	v, _ := signedVote(t, 1)
	filter := bloom.NewFilter(10, 0.01, 7)
	filter.Add(crds.ValueHash(v))

	env := &Envelope{Tag: TagPullRequest, PullRequest: &PullRequest{Filter: filter, Caller: v}}
	encoded, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !decoded.PullRequest.Filter.Contains(crds.ValueHash(v)) {
		t.Fatalf("decoded filter lost membership of the added hash")
	}
}

func TestPruneMessageEnvelopeRoundTripAndSignableBytesStable(t *testing.T) {
	var pub, dest crds.Pubkey
	pub[0] = 1
	dest[0] = 2
	data := PruneData{Pubkey: pub, Prunes: []crds.Pubkey{dest}, Destination: dest, Wallclock: 42, Signature: []byte("sig")}

	before := data.SignableBytes()

	env := &Envelope{Tag: TagPruneMessage, PruneMessage: &PruneMessage{From: pub, Data: data}}
	encoded, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	after := decoded.PruneMessage.Data.SignableBytes()
	if string(before) != string(after) {
		t.Fatalf("signable bytes changed across the wire: %x != %x", before, after)
	}
	if string(decoded.PruneMessage.Data.Signature) != "sig" {
		t.Fatalf("signature not preserved across the wire")
	}
}

func TestRequestWindowIndexEnvelopeRoundTrip(t *testing.T) {
	v, _ := signedVote(t, 1) // stand-in Value; real usage carries a ContactInfo
	env := &Envelope{Tag: TagRequestWindowIndex, RequestWindowIndex: &RequestWindowIndex{Requester: v, Index: 7}}

	encoded, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.RequestWindowIndex.Index != 7 {
		t.Fatalf("expected index 7, got %d", decoded.RequestWindowIndex.Index)
	}
}
