// Package crds implements the Cluster Replication Data Store: the
// eventually-consistent, versioned key-value map that gossip
// reconciles across peers.
package crds

import (
	"bytes"
	"encoding/binary"
	"net"

	"gossipmesh/internal/crypto"
)

// Pubkey is a node's opaque 32-byte public identity.
type Pubkey [32]byte

func (p Pubkey) IsZero() bool { return p == Pubkey{} }

// Endpoint is a UDP socket endpoint advertised by a peer. The zero value
// (nil IP, port 0) is the "unspecified" sentinel: callers MUST treat it
// as "do not contact on this role".
type Endpoint struct {
	IP   net.IP
	Port uint16
}

// IsUnspecified reports whether e is the "do not contact" sentinel.
func (e Endpoint) IsUnspecified() bool {
	return e.Port == 0 || e.IP == nil || e.IP.IsUnspecified()
}

func (e Endpoint) String() string {
	if e.IP == nil {
		return "0.0.0.0:0"
	}
	return (&net.UDPAddr{IP: e.IP, Port: int(e.Port)}).String()
}

func (e Endpoint) encode(buf *bytes.Buffer) {
	ip4 := e.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	buf.Write(ip4)
	binary.Write(buf, binary.BigEndian, e.Port)
}

// ValueTag identifies which CrdsValue variant a label/wire entry is.
type ValueTag byte

const (
	TagContactInfo ValueTag = 0
	TagLeaderId    ValueTag = 1
	TagVote        ValueTag = 2
)

// Label is the CRDS primary key: (variant tag, originator pubkey). At
// most one entry exists in the store per label.
type Label struct {
	Tag    ValueTag
	Origin Pubkey
}

// Value is the tagged-union interface every CRDS payload implements.
// Variants are told apart by Label().Tag or by a type switch over the
// three concrete types; there is no type hierarchy.
type Value interface {
	Label() Label
	Pubkey() Pubkey
	Wallclock() uint64
	SignableData() []byte
	Signature() []byte
	SetSignature(sig []byte)
}

// Sign computes and attaches a value's signature under keypair. The
// keypair's public key must match the value's originator pubkey.
func Sign(v Value, kp *crypto.Keypair) {
	v.SetSignature(kp.Sign(v.SignableData()))
}

// Verify checks a value's signature against its own originator pubkey.
func Verify(v Value) bool {
	pub := v.Pubkey()
	return crypto.Verify(pub[:], v.SignableData(), v.Signature())
}

// ContactInfo is a peer's identity and addressing record.
type ContactInfo struct {
	ID         Pubkey
	Gossip     Endpoint
	TVU        Endpoint
	TPU        Endpoint
	Storage    Endpoint
	RPC        Endpoint
	RPCPubsub  Endpoint
	Wallclock_ uint64
	Sig        []byte
}

func (c *ContactInfo) Label() Label         { return Label{Tag: TagContactInfo, Origin: c.ID} }
func (c *ContactInfo) Pubkey() Pubkey       { return c.ID }
func (c *ContactInfo) Wallclock() uint64    { return c.Wallclock_ }
func (c *ContactInfo) Signature() []byte    { return c.Sig }
func (c *ContactInfo) SetSignature(s []byte) { c.Sig = s }

func (c *ContactInfo) SignableData() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(TagContactInfo))
	buf.Write(c.ID[:])
	c.Gossip.encode(&buf)
	c.TVU.encode(&buf)
	c.TPU.encode(&buf)
	c.Storage.encode(&buf)
	c.RPC.encode(&buf)
	c.RPCPubsub.encode(&buf)
	binary.Write(&buf, binary.BigEndian, c.Wallclock_)
	return buf.Bytes()
}

// LeaderId carries one node's current opinion of who the leader is.
type LeaderId struct {
	From       Pubkey
	Leader     Pubkey
	Wallclock_ uint64
	Sig        []byte
}

func (l *LeaderId) Label() Label         { return Label{Tag: TagLeaderId, Origin: l.From} }
func (l *LeaderId) Pubkey() Pubkey       { return l.From }
func (l *LeaderId) Wallclock() uint64    { return l.Wallclock_ }
func (l *LeaderId) Signature() []byte    { return l.Sig }
func (l *LeaderId) SetSignature(s []byte) { l.Sig = s }

func (l *LeaderId) SignableData() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(TagLeaderId))
	buf.Write(l.From[:])
	buf.Write(l.Leader[:])
	binary.Write(&buf, binary.BigEndian, l.Wallclock_)
	return buf.Bytes()
}

// Vote is an opaque ledger-level vote transaction gossiped by its signer.
type Vote struct {
	From        Pubkey
	Transaction []byte
	Wallclock_  uint64
	Sig         []byte
}

func (v *Vote) Label() Label         { return Label{Tag: TagVote, Origin: v.From} }
func (v *Vote) Pubkey() Pubkey       { return v.From }
func (v *Vote) Wallclock() uint64    { return v.Wallclock_ }
func (v *Vote) Signature() []byte    { return v.Sig }
func (v *Vote) SetSignature(s []byte) { v.Sig = s }

func (v *Vote) SignableData() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(TagVote))
	buf.Write(v.From[:])
	binary.Write(&buf, binary.BigEndian, uint32(len(v.Transaction)))
	buf.Write(v.Transaction)
	binary.Write(&buf, binary.BigEndian, v.Wallclock_)
	return buf.Bytes()
}

// ValueHash returns the cached hash used for wallclock-tie-break and
// Bloom filter membership: the digest of the value's signed bytes.
func ValueHash(v Value) crypto.Hash {
	data := append(append([]byte{}, v.SignableData()...), v.Signature()...)
	return crypto.HashBytes(data)
}
