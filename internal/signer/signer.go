// Package signer is the external remote vote-signer collaborator. Real
// deployments sign votes out-of-process (an HSM-backed signer reachable
// over RPC); this subsystem depends only on the VoteSigner interface so
// push_vote never needs to know which.
package signer

import "gossipmesh/internal/crypto"

// VoteSigner signs a vote transaction payload and returns the signature.
type VoteSigner interface {
	SignVote(tx []byte) ([]byte, error)
}

// LocalSigner signs in-process with the node's own keypair. This is the
// default, and what tests use; a future out-of-process signer implements
// the same interface without touching gossip code.
type LocalSigner struct {
	keypair *crypto.Keypair
}

func NewLocalSigner(keypair *crypto.Keypair) *LocalSigner {
	return &LocalSigner{keypair: keypair}
}

func (s *LocalSigner) SignVote(tx []byte) ([]byte, error) {
	return s.keypair.Sign(tx), nil
}
