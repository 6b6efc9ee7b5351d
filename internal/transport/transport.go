// Package transport carries opaque gossip envelopes between nodes. It
// knows nothing about CRDS values or the gossip protocol — it moves
// length-prefixed byte payloads and hands inbound ones to a registered
// handler, mirroring the shape of the teacher's internal/gossip.Transport
// interface but generalized to a byte-oriented envelope instead of a
// JSON Message struct.
package transport

import "context"

// BlobSize is the maximum payload a single envelope may occupy, matching
// spec's BLOB_SIZE precondition on broadcast and gossip sends.
const BlobSize = 64 * 1024

// Handler is invoked once per inbound envelope, with the sender's
// address in "host:port" form.
type Handler func(from string, payload []byte)

// Transport is the external collaborator boundary for sending and
// receiving gossip envelopes. Broadcast/retransmit fan-out is done by
// the caller issuing one Send per recipient; Transport never batches.
type Transport interface {
	Start(ctx context.Context) error
	Stop() error
	Send(ctx context.Context, addr string, payload []byte) error
	SetMessageHandler(h Handler)
	LocalAddr() string
}
