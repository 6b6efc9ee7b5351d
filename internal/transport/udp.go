package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"gossipmesh/internal/logging"
)

// UDPTransport is the primary, spec-mandated transport: one UDP socket,
// one receive goroutine, length-prefixed framing. It never runs a send
// while holding any internal lock and never blocks the caller beyond a
// single WriteTo.
type UDPTransport struct {
	conn    *net.UDPConn
	mu      sync.RWMutex
	handler Handler
	done    chan struct{}
}

// NewUDPTransport binds bindAddr (e.g. ":9001") and returns an unstarted
// transport.
func NewUDPTransport(bindAddr string) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", bindAddr, err)
	}
	return &UDPTransport{conn: conn, done: make(chan struct{})}, nil
}

func (t *UDPTransport) LocalAddr() string {
	return t.conn.LocalAddr().String()
}

func (t *UDPTransport) SetMessageHandler(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// Start launches the single receive goroutine. It exits when ctx is
// cancelled or the socket is closed by Stop.
func (t *UDPTransport) Start(ctx context.Context) error {
	go t.receiveLoop(ctx)
	logging.Info("[transport] udp listening on %s", t.LocalAddr())
	return nil
}

func (t *UDPTransport) Stop() error {
	close(t.done)
	return t.conn.Close()
}

func (t *UDPTransport) receiveLoop(ctx context.Context) {
	buf := make([]byte, BlobSize+8)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				logging.Warn("[transport] udp read error: %v", err)
				continue
			}
		}

		payload, ok := unframe(buf[:n])
		if !ok {
			logging.Warn("[transport] dropped malformed datagram from %s", from)
			continue
		}

		t.mu.RLock()
		h := t.handler
		t.mu.RUnlock()
		if h != nil {
			h(from.String(), payload)
		}
	}
}

// Send frames payload with a 4-byte length prefix and writes it as a
// single datagram. payload must fit within BlobSize.
func (t *UDPTransport) Send(ctx context.Context, addr string, payload []byte) error {
	if len(payload) > BlobSize {
		return fmt.Errorf("transport: payload %d bytes exceeds BlobSize %d", len(payload), BlobSize)
	}
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("transport: resolve %s: %w", addr, err)
	}
	framed := frame(payload)
	_, err = t.conn.WriteToUDP(framed, raddr)
	return err
}

func frame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

func unframe(datagram []byte) ([]byte, bool) {
	if len(datagram) < 4 {
		return nil, false
	}
	n := binary.BigEndian.Uint32(datagram)
	if int(n) != len(datagram)-4 {
		return nil, false
	}
	return datagram[4:], true
}
