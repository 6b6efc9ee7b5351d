package gossip

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"gossipmesh/internal/bloom"
	"gossipmesh/internal/crds"
)

// EnvelopeTag identifies which of the four gossip messages (plus the
// repair request) a datagram carries.
type EnvelopeTag byte

const (
	TagPullRequest       EnvelopeTag = 0
	TagPullResponse      EnvelopeTag = 1
	TagPushMessage       EnvelopeTag = 2
	TagPruneMessage      EnvelopeTag = 3
	TagRequestWindowIndex EnvelopeTag = 4
)

// Envelope is the decoded form of one datagram. Exactly one of the typed
// fields is set, selected by Tag.
type Envelope struct {
	Tag EnvelopeTag

	PullRequest       *PullRequest
	PullResponse      *PullResponse
	PushMessage       *PushMessage
	PruneMessage      *PruneMessage
	RequestWindowIndex *RequestWindowIndex
}

// PullRequest carries a summary of values the caller already holds, plus
// its own signed ContactInfo so the callee can learn how to reach it.
type PullRequest struct {
	Filter *bloom.Filter
	Caller crds.Value
}

// PullResponse carries values selected to fill gaps implied by a prior
// PullRequest's filter.
type PullResponse struct {
	From   crds.Pubkey
	Values []crds.Value
}

// PushMessage carries newly-learned values this node is forwarding.
type PushMessage struct {
	From   crds.Pubkey
	Values []crds.Value
}

// PruneData is the signed payload of a prune feedback message. Its
// signature covers exactly {Pubkey, Prunes, Destination, Wallclock}; the
// signature field itself is always excluded.
type PruneData struct {
	Pubkey      crds.Pubkey
	Prunes      []crds.Pubkey
	Signature   []byte
	Destination crds.Pubkey
	Wallclock   uint64
}

// SignableBytes reproduces the exact byte sequence PruneData's signature
// covers: pubkey, prunes, destination, wallclock, in that order, with no
// signature field present.
func (d *PruneData) SignableBytes() []byte {
	var buf bytes.Buffer
	buf.Write(d.Pubkey[:])
	binary.Write(&buf, binary.BigEndian, uint32(len(d.Prunes)))
	for _, p := range d.Prunes {
		buf.Write(p[:])
	}
	buf.Write(d.Destination[:])
	binary.Write(&buf, binary.BigEndian, d.Wallclock)
	return buf.Bytes()
}

// PruneMessage addresses a PruneData to a specific peer.
type PruneMessage struct {
	From crds.Pubkey
	Data PruneData
}

// RequestWindowIndex asks a repair-capable peer for the blob at a given
// index in any slot up to the highest slot it has received.
type RequestWindowIndex struct {
	Requester crds.Value // ContactInfo
	Index     uint64
}

// Encode serializes an Envelope to its wire form: a tag byte followed by
// the variant's fields in the fixed order spec §6 defines.
func Encode(e *Envelope) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(e.Tag))

	switch e.Tag {
	case TagPullRequest:
		if e.PullRequest == nil {
			return nil, fmt.Errorf("gossip: nil PullRequest")
		}
		filterBytes, err := e.PullRequest.Filter.MarshalBinary()
		if err != nil {
			return nil, err
		}
		writeBytes(&buf, filterBytes)
		writeBytes(&buf, crds.EncodeValue(e.PullRequest.Caller))

	case TagPullResponse:
		if e.PullResponse == nil {
			return nil, fmt.Errorf("gossip: nil PullResponse")
		}
		buf.Write(e.PullResponse.From[:])
		writeValues(&buf, e.PullResponse.Values)

	case TagPushMessage:
		if e.PushMessage == nil {
			return nil, fmt.Errorf("gossip: nil PushMessage")
		}
		buf.Write(e.PushMessage.From[:])
		writeValues(&buf, e.PushMessage.Values)

	case TagPruneMessage:
		if e.PruneMessage == nil {
			return nil, fmt.Errorf("gossip: nil PruneMessage")
		}
		buf.Write(e.PruneMessage.From[:])
		encodePruneData(&buf, &e.PruneMessage.Data)

	case TagRequestWindowIndex:
		if e.RequestWindowIndex == nil {
			return nil, fmt.Errorf("gossip: nil RequestWindowIndex")
		}
		writeBytes(&buf, crds.EncodeValue(e.RequestWindowIndex.Requester))
		binary.Write(&buf, binary.BigEndian, e.RequestWindowIndex.Index)

	default:
		return nil, fmt.Errorf("gossip: unknown envelope tag %d", e.Tag)
	}

	return buf.Bytes(), nil
}

// Decode parses an Envelope from its wire form.
func Decode(data []byte) (*Envelope, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("gossip: empty envelope")
	}
	tag := EnvelopeTag(data[0])
	rest := data[1:]

	switch tag {
	case TagPullRequest:
		filterBytes, rest, err := readBytes(rest)
		if err != nil {
			return nil, err
		}
		filter := new(bloom.Filter)
		if err := filter.UnmarshalBinary(filterBytes); err != nil {
			return nil, err
		}
		callerBytes, _, err := readBytes(rest)
		if err != nil {
			return nil, err
		}
		caller, _, err := crds.DecodeValue(callerBytes)
		if err != nil {
			return nil, err
		}
		return &Envelope{Tag: tag, PullRequest: &PullRequest{Filter: filter, Caller: caller}}, nil

	case TagPullResponse:
		if len(rest) < 32 {
			return nil, fmt.Errorf("gossip: truncated PullResponse")
		}
		var from crds.Pubkey
		copy(from[:], rest[:32])
		values, err := readValues(rest[32:])
		if err != nil {
			return nil, err
		}
		return &Envelope{Tag: tag, PullResponse: &PullResponse{From: from, Values: values}}, nil

	case TagPushMessage:
		if len(rest) < 32 {
			return nil, fmt.Errorf("gossip: truncated PushMessage")
		}
		var from crds.Pubkey
		copy(from[:], rest[:32])
		values, err := readValues(rest[32:])
		if err != nil {
			return nil, err
		}
		return &Envelope{Tag: tag, PushMessage: &PushMessage{From: from, Values: values}}, nil

	case TagPruneMessage:
		if len(rest) < 32 {
			return nil, fmt.Errorf("gossip: truncated PruneMessage")
		}
		var from crds.Pubkey
		copy(from[:], rest[:32])
		data, err := decodePruneData(rest[32:])
		if err != nil {
			return nil, err
		}
		return &Envelope{Tag: tag, PruneMessage: &PruneMessage{From: from, Data: *data}}, nil

	case TagRequestWindowIndex:
		requesterBytes, rest, err := readBytes(rest)
		if err != nil {
			return nil, err
		}
		requester, _, err := crds.DecodeValue(requesterBytes)
		if err != nil {
			return nil, err
		}
		if len(rest) < 8 {
			return nil, fmt.Errorf("gossip: truncated RequestWindowIndex")
		}
		index := binary.BigEndian.Uint64(rest)
		return &Envelope{Tag: tag, RequestWindowIndex: &RequestWindowIndex{Requester: requester, Index: index}}, nil

	default:
		return nil, fmt.Errorf("gossip: unknown envelope tag %d", tag)
	}
}

func encodePruneData(buf *bytes.Buffer, d *PruneData) {
	buf.Write(d.Pubkey[:])
	binary.Write(buf, binary.BigEndian, uint32(len(d.Prunes)))
	for _, p := range d.Prunes {
		buf.Write(p[:])
	}
	writeBytes(buf, d.Signature)
	buf.Write(d.Destination[:])
	binary.Write(buf, binary.BigEndian, d.Wallclock)
}

func decodePruneData(data []byte) (*PruneData, error) {
	if len(data) < 32+4 {
		return nil, fmt.Errorf("gossip: truncated PruneData header")
	}
	d := &PruneData{}
	copy(d.Pubkey[:], data[:32])
	off := 32
	count := int(binary.BigEndian.Uint32(data[off : off+4]))
	off += 4
	for i := 0; i < count; i++ {
		if len(data) < off+32 {
			return nil, fmt.Errorf("gossip: truncated PruneData prunes")
		}
		var p crds.Pubkey
		copy(p[:], data[off:off+32])
		d.Prunes = append(d.Prunes, p)
		off += 32
	}

	sig, rest, err := readBytes(data[off:])
	if err != nil {
		return nil, err
	}
	d.Signature = sig

	if len(rest) < 32+8 {
		return nil, fmt.Errorf("gossip: truncated PruneData tail")
	}
	copy(d.Destination[:], rest[:32])
	d.Wallclock = binary.BigEndian.Uint64(rest[32:40])
	return d, nil
}

func writeValues(buf *bytes.Buffer, values []crds.Value) {
	binary.Write(buf, binary.BigEndian, uint32(len(values)))
	for _, v := range values {
		writeBytes(buf, crds.EncodeValue(v))
	}
}

func readValues(data []byte) ([]crds.Value, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("gossip: truncated value count")
	}
	count := int(binary.BigEndian.Uint32(data))
	data = data[4:]

	values := make([]crds.Value, 0, count)
	for i := 0; i < count; i++ {
		vb, rest, err := readBytes(data)
		if err != nil {
			return nil, err
		}
		v, _, err := crds.DecodeValue(vb)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		data = rest
	}
	return values, nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

func readBytes(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("gossip: truncated length prefix")
	}
	n := int(binary.BigEndian.Uint32(data))
	data = data[4:]
	if len(data) < n {
		return nil, nil, fmt.Errorf("gossip: truncated byte field")
	}
	return data[:n], data[n:], nil
}
