package crds

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// EncodeValue serializes v's full wire form: tag, fields, signature.
// This differs from SignableData only in appending the signature,
// preceded by its length as a big-endian uint16.
func EncodeValue(v Value) []byte {
	var buf bytes.Buffer
	switch val := v.(type) {
	case *ContactInfo:
		buf.WriteByte(byte(TagContactInfo))
		buf.Write(val.ID[:])
		val.Gossip.encode(&buf)
		val.TVU.encode(&buf)
		val.TPU.encode(&buf)
		val.Storage.encode(&buf)
		val.RPC.encode(&buf)
		val.RPCPubsub.encode(&buf)
		binary.Write(&buf, binary.BigEndian, val.Wallclock_)
	case *LeaderId:
		buf.WriteByte(byte(TagLeaderId))
		buf.Write(val.From[:])
		buf.Write(val.Leader[:])
		binary.Write(&buf, binary.BigEndian, val.Wallclock_)
	case *Vote:
		buf.WriteByte(byte(TagVote))
		buf.Write(val.From[:])
		binary.Write(&buf, binary.BigEndian, uint32(len(val.Transaction)))
		buf.Write(val.Transaction)
		binary.Write(&buf, binary.BigEndian, val.Wallclock_)
	}
	sig := v.Signature()
	binary.Write(&buf, binary.BigEndian, uint16(len(sig)))
	buf.Write(sig)
	return buf.Bytes()
}

// DecodeValue parses a single wire-encoded value from the front of data,
// returning it and the number of bytes consumed.
func DecodeValue(data []byte) (Value, int, error) {
	if len(data) < 1 {
		return nil, 0, fmt.Errorf("crds: empty value encoding")
	}
	tag := ValueTag(data[0])
	off := 1

	var v Value
	switch tag {
	case TagContactInfo:
		ci := &ContactInfo{}
		if len(data) < off+32 {
			return nil, 0, fmt.Errorf("crds: truncated ContactInfo id")
		}
		copy(ci.ID[:], data[off:off+32])
		off += 32

		endpoints := []*Endpoint{&ci.Gossip, &ci.TVU, &ci.TPU, &ci.Storage, &ci.RPC, &ci.RPCPubsub}
		for _, ep := range endpoints {
			e, n, err := decodeEndpoint(data[off:])
			if err != nil {
				return nil, 0, err
			}
			*ep = e
			off += n
		}

		if len(data) < off+8 {
			return nil, 0, fmt.Errorf("crds: truncated ContactInfo wallclock")
		}
		ci.Wallclock_ = binary.BigEndian.Uint64(data[off : off+8])
		off += 8
		v = ci

	case TagLeaderId:
		l := &LeaderId{}
		if len(data) < off+72 {
			return nil, 0, fmt.Errorf("crds: truncated LeaderId")
		}
		copy(l.From[:], data[off:off+32])
		off += 32
		copy(l.Leader[:], data[off:off+32])
		off += 32
		l.Wallclock_ = binary.BigEndian.Uint64(data[off : off+8])
		off += 8
		v = l

	case TagVote:
		vt := &Vote{}
		if len(data) < off+36 {
			return nil, 0, fmt.Errorf("crds: truncated Vote header")
		}
		copy(vt.From[:], data[off:off+32])
		off += 32
		txLen := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4
		if len(data) < off+txLen+8 {
			return nil, 0, fmt.Errorf("crds: truncated Vote body")
		}
		vt.Transaction = append([]byte{}, data[off:off+txLen]...)
		off += txLen
		vt.Wallclock_ = binary.BigEndian.Uint64(data[off : off+8])
		off += 8
		v = vt

	default:
		return nil, 0, fmt.Errorf("crds: unknown value tag %d", tag)
	}

	if len(data) < off+2 {
		return nil, 0, fmt.Errorf("crds: truncated signature length")
	}
	sigLen := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2
	if len(data) < off+sigLen {
		return nil, 0, fmt.Errorf("crds: truncated signature")
	}
	v.SetSignature(append([]byte{}, data[off:off+sigLen]...))
	off += sigLen

	return v, off, nil
}

func decodeEndpoint(data []byte) (Endpoint, int, error) {
	if len(data) < 6 {
		return Endpoint{}, 0, fmt.Errorf("crds: truncated endpoint")
	}
	ip := net.IPv4(data[0], data[1], data[2], data[3])
	port := binary.BigEndian.Uint16(data[4:6])
	return Endpoint{IP: ip, Port: port}, 6, nil
}
