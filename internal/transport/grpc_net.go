package transport

import (
	"context"
	"net"

	"google.golang.org/grpc/peer"
)

func newListener(bindAddr string) (net.Listener, error) {
	return net.Listen("tcp", bindAddr)
}

func peerAddrFromContext(ctx context.Context) (string, bool) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "", false
	}
	return p.Addr.String(), true
}
