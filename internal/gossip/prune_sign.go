package gossip

import "gossipmesh/internal/crypto"

// SignPruneData signs data's canonical byte sequence and attaches the
// signature, using kp (whose public key must equal data.Pubkey).
func SignPruneData(data *PruneData, kp *crypto.Keypair) {
	data.Signature = kp.Sign(data.SignableBytes())
}

// VerifyPruneData checks data's signature against its own pubkey field.
func VerifyPruneData(data *PruneData) bool {
	return crypto.Verify(data.Pubkey[:], data.SignableBytes(), data.Signature)
}
