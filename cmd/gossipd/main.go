// Command gossipd runs one gossip/membership node: it joins a cluster
// via a comma-separated seed list, serves the push/pull/prune/repair
// protocol on its gossip socket, and exposes health, status, peer, and
// Prometheus endpoints on its admin socket.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gossipmesh/internal/admin"
	"gossipmesh/internal/bank"
	"gossipmesh/internal/cluster"
	"gossipmesh/internal/crds"
	"gossipmesh/internal/crypto"
	"gossipmesh/internal/ledger"
	"gossipmesh/internal/logging"
	"gossipmesh/internal/signer"
	"gossipmesh/internal/transport"
)

func main() {
	logging.Init()

	nodeID := os.Getenv("GOSSIPMESH_NODE_ID")
	if nodeID == "" {
		nodeID = fmt.Sprintf("node-%d", time.Now().UnixNano())
	}

	bindAddr := os.Getenv("GOSSIPMESH_BIND_ADDR")
	if bindAddr == "" {
		bindAddr = "0.0.0.0"
	}

	gossipPort := envInt("GOSSIPMESH_GOSSIP_PORT", 9000)
	adminPort := envInt("GOSSIPMESH_ADMIN_PORT", 9100)

	var seeds []string
	if raw := os.Getenv("GOSSIPMESH_SEEDS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				seeds = append(seeds, s)
			}
		}
	}

	keypair, err := loadIdentity()
	if err != nil {
		logging.Error("failed to establish node identity: %v", err)
		os.Exit(1)
	}

	tr, err := newTransport(fmt.Sprintf("%s:%d", bindAddr, gossipPort))
	if err != nil {
		logging.Error("failed to construct transport: %v", err)
		os.Exit(1)
	}

	ip := net.ParseIP(bindAddr)
	if ip == nil || ip.IsUnspecified() {
		ip = net.ParseIP("127.0.0.1")
	}

	cfg := cluster.Config{
		Keypair:   keypair,
		Transport: tr,
		Ledger:    ledger.NewBlobStore(256 << 20),
		Stakes:    bank.NewMemoryStakeSource(),
		Signer:    signer.NewLocalSigner(keypair),
		Gossip:    crds.Endpoint{IP: ip, Port: uint16(gossipPort)},
		TVU:       crds.Endpoint{IP: ip, Port: uint16(gossipPort + 1)},
		TPU:       crds.Endpoint{IP: ip, Port: uint16(gossipPort + 2)},
		Storage:   crds.Endpoint{IP: ip, Port: uint16(gossipPort + 3)},
		RPC:       crds.Endpoint{IP: ip, Port: uint16(adminPort)},
		RPCPubsub: crds.Endpoint{IP: ip, Port: uint16(adminPort + 1)},
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ci := cluster.New(cfg, rng)

	logging.Info("gossipmesh node %s starting: gossip=%s:%d admin=%s:%d seeds=%v",
		nodeID, bindAddr, gossipPort, bindAddr, adminPort, seeds)

	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan error, 1)
	go func() { runDone <- ci.Run(ctx) }()

	if len(seeds) > 0 {
		// Give the gossip socket a moment to bind before the first
		// direct-to-seed pull request goes out.
		time.Sleep(100 * time.Millisecond)
		ci.Bootstrap(ctx, seeds)
	}

	adminServer := admin.NewServer(ci, 100, 200)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", bindAddr, adminPort),
		Handler: adminServer.Router(),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("admin server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logging.Info("received shutdown signal, stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = adminServer.Close()

	cancel()
	if err := <-runDone; err != nil {
		logging.Warn("cluster run loop exited with error: %v", err)
	}
}

func newTransport(bindAddr string) (transport.Transport, error) {
	switch strings.ToLower(os.Getenv("GOSSIPMESH_TRANSPORT")) {
	case "grpc":
		return transport.NewGRPCTransport(bindAddr), nil
	default:
		return transport.NewUDPTransport(bindAddr)
	}
}

func loadIdentity() (*crypto.Keypair, error) {
	passphrase := os.Getenv("GOSSIPMESH_IDENTITY_PASSPHRASE")
	if passphrase == "" {
		return crypto.GenerateKeypair()
	}

	var salt []byte
	if saltHex := os.Getenv("GOSSIPMESH_IDENTITY_SALT"); saltHex != "" {
		decoded, err := hex.DecodeString(saltHex)
		if err != nil {
			return nil, fmt.Errorf("invalid GOSSIPMESH_IDENTITY_SALT: %w", err)
		}
		salt = decoded
	} else {
		generated, err := crypto.GenerateSalt()
		if err != nil {
			return nil, err
		}
		salt = generated
		logging.Warn("no GOSSIPMESH_IDENTITY_SALT set; generated salt %s — save it to derive the same identity on restart", hex.EncodeToString(salt))
	}

	return crypto.DeriveKeypair([]byte(passphrase), salt)
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
