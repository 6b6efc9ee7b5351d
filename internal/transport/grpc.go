package transport

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"gossipmesh/internal/logging"
)

// rawMessage is the only type the gossipmesh-raw codec ever (de)serializes:
// the gossip codec's own output, passed straight through with no extra
// framing, since gRPC already length-prefixes its frames.
type rawMessage struct {
	data []byte
}

type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(*rawMessage)
	if !ok {
		return nil, fmt.Errorf("transport: rawCodec cannot marshal %T", v)
	}
	return m.data, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(*rawMessage)
	if !ok {
		return fmt.Errorf("transport: rawCodec cannot unmarshal into %T", v)
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return "gossipmesh-raw" }

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// gossipServer is the minimal server-side contract the hand-built
// ServiceDesc dispatches to. There is no .proto file: Send's wire shape
// is exactly the gossip codec's envelope bytes.
type gossipServer interface {
	handleEnvelope(ctx context.Context, in *rawMessage) (*rawMessage, error)
}

var gossipServiceDesc = grpc.ServiceDesc{
	ServiceName: "gossipmesh.Gossip",
	HandlerType: (*gossipServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Send",
			Handler:    gossipSendHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/grpc.go",
}

func gossipSendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(rawMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(gossipServer).handleEnvelope(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/gossipmesh.Gossip/Send"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(gossipServer).handleEnvelope(ctx, req.(*rawMessage))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCTransport is the alternate backend for deployments where raw UDP
// is blocked (load balancers, some container networks). It carries the
// same opaque envelope bytes the gossip codec produces, one per unary
// Send call, with no protoc step.
type GRPCTransport struct {
	bindAddr string
	server   *grpc.Server

	mu      sync.RWMutex
	handler Handler
	conns   map[string]*grpc.ClientConn
}

func NewGRPCTransport(bindAddr string) *GRPCTransport {
	return &GRPCTransport{
		bindAddr: bindAddr,
		conns:    make(map[string]*grpc.ClientConn),
	}
}

func (t *GRPCTransport) LocalAddr() string { return t.bindAddr }

func (t *GRPCTransport) SetMessageHandler(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *GRPCTransport) handleEnvelope(ctx context.Context, in *rawMessage) (*rawMessage, error) {
	t.mu.RLock()
	h := t.handler
	t.mu.RUnlock()

	peerAddr := "unknown"
	if p, ok := peerAddrFromContext(ctx); ok {
		peerAddr = p
	}
	if h != nil {
		h(peerAddr, in.data)
	}
	return &rawMessage{}, nil
}

func (t *GRPCTransport) Start(ctx context.Context) error {
	lis, err := newListener(t.bindAddr)
	if err != nil {
		return fmt.Errorf("transport: grpc listen %s: %w", t.bindAddr, err)
	}
	t.server = grpc.NewServer()
	t.server.RegisterService(&gossipServiceDesc, t)

	go func() {
		if err := t.server.Serve(lis); err != nil {
			logging.Warn("[transport] grpc server stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		t.server.GracefulStop()
	}()

	logging.Info("[transport] grpc listening on %s", t.bindAddr)
	return nil
}

func (t *GRPCTransport) Stop() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.conns {
		c.Close()
	}
	return nil
}

func (t *GRPCTransport) Send(ctx context.Context, addr string, payload []byte) error {
	if len(payload) > BlobSize {
		return fmt.Errorf("transport: payload %d bytes exceeds BlobSize %d", len(payload), BlobSize)
	}
	conn, err := t.clientConn(addr)
	if err != nil {
		return err
	}
	reply := new(rawMessage)
	return conn.Invoke(ctx, "/gossipmesh.Gossip/Send", &rawMessage{data: payload}, reply, grpc.CallContentSubtype(rawCodec{}.Name()))
}

func (t *GRPCTransport) clientConn(addr string) (*grpc.ClientConn, error) {
	t.mu.RLock()
	c, ok := t.conns[addr]
	t.mu.RUnlock()
	if ok {
		return c, nil
	}

	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	t.mu.Lock()
	t.conns[addr] = conn
	t.mu.Unlock()
	return conn, nil
}
