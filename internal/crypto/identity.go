// Package crypto provides the signing and hashing primitives that the
// gossip core treats as opaque: keypair generation, signature
// verification, and the value hash used by the CRDS store and the
// Bloom filter.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PublicKeySize is the size in bytes of a node's opaque identity.
	PublicKeySize = ed25519.PublicKeySize
	// SaltSize is the size of the salt used for passphrase-derived identities.
	SaltSize = 16
)

// Keypair is a node's signing identity. PublicKey is the node id carried
// in ContactInfo and CrdsValue labels; PrivateKey never leaves the node.
type Keypair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateKeypair creates a fresh random identity.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return &Keypair{PublicKey: pub, PrivateKey: priv}, nil
}

// GenerateSalt returns fresh random salt for DeriveKeypair.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// DeriveKeypair deterministically derives an identity from a passphrase
// and salt, so an operator can recreate the same node id across restarts
// without persisting the private key. Generalizes the teacher's
// encryption key derivation (PBKDF2-HMAC-SHA256) from a data-encryption
// key to an Ed25519 seed.
func DeriveKeypair(passphrase, salt []byte) (*Keypair, error) {
	seed := pbkdf2.Key(passphrase, salt, 100000, ed25519.SeedSize, sha256.New)
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Keypair{PublicKey: pub, PrivateKey: priv}, nil
}

// Sign signs data with the keypair's private key.
func (k *Keypair) Sign(data []byte) []byte {
	return ed25519.Sign(k.PrivateKey, data)
}

// Verify checks that signature is a valid Ed25519 signature of data under pub.
func Verify(pub []byte, data []byte, signature []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, signature)
}

// ErrShortPublicKey is returned when a wire-decoded public key is malformed.
var ErrShortPublicKey = errors.New("crypto: public key too short")
