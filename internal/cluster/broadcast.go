package cluster

import (
	"context"
	"fmt"
	"sync"

	"gossipmesh/internal/crds"
	"gossipmesh/internal/logging"
	"gossipmesh/internal/transport"
)

// BroadcastOrder pairs a blob index with the peer it should be sent to.
type BroadcastOrder struct {
	BlobIndex int
	Peer      *crds.ContactInfo
}

// CreateBroadcastOrders picks a uniform random offset into table and
// assigns each blob a recipient by rotating from it; if containsLastTick
// is set, an extra order sends the final blob to every node in table.
// Rotating the starting point balances load across a burst; the
// last-tick broadcast maximizes the odds that the next leader's handoff
// tick survives loss.
func (ci *ClusterInfo) CreateBroadcastOrders(containsLastTick bool, blobCount int, table []*crds.ContactInfo) []BroadcastOrder {
	if len(table) == 0 || blobCount == 0 {
		return nil
	}

	x := ci.rng.Intn(len(table))
	orders := make([]BroadcastOrder, 0, blobCount)
	for i := 0; i < blobCount; i++ {
		orders = append(orders, BroadcastOrder{BlobIndex: i, Peer: table[(x+i)%len(table)]})
	}

	if containsLastTick {
		lastBlob := blobCount - 1
		for _, peer := range table {
			orders = append(orders, BroadcastOrder{BlobIndex: lastBlob, Peer: peer})
		}
	}
	return orders
}

// Retransmit sends payload in parallel to every peer's TVU endpoint.
// The payload is sent unchanged: no identity field inside the blob is
// rewritten to self. Per-send errors are logged and counted but never
// abort the batch.
func (ci *ClusterInfo) Retransmit(ctx context.Context, payload []byte, peers []*crds.ContactInfo) error {
	if len(payload) > transport.BlobSize {
		return fmt.Errorf("cluster: blob of %d bytes exceeds BlobSize %d", len(payload), transport.BlobSize)
	}

	var wg sync.WaitGroup
	var failures int32
	var mu sync.Mutex

	for _, peer := range peers {
		if peer.TVU.IsUnspecified() {
			continue
		}
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			if err := ci.transport.Send(ctx, addr, payload); err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				logging.Warn("[cluster] retransmit to %s failed: %v", addr, err)
			}
		}(peer.TVU.String())
	}
	wg.Wait()

	if failures > 0 {
		logging.Warn("[cluster] retransmit completed with %d/%d send failures", failures, len(peers))
	}
	return nil
}
