// Package wallet loads the signing keypair and signs venue payloads.
package wallet

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-sniper/internal/domain"
)

// Wallet holds the ed25519 keypair used to sign swap transactions.
type Wallet struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// Load decodes a base58-encoded secret key. Both formats in the wild are
// accepted: a 64-byte full keypair and a 32-byte seed.
func Load(secret string) (*Wallet, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty private key", domain.ErrConfig)
	}

	decoded, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: decode private key: %v", domain.ErrConfig, err)
	}

	var priv ed25519.PrivateKey
	switch len(decoded) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(decoded)
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(decoded)
	default:
		return nil, fmt.Errorf("%w: private key must be 32 or 64 bytes, got %d", domain.ErrConfig, len(decoded))
	}

	pub := priv.Public().(ed25519.PublicKey)
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("%w: public key not on curve: %v", domain.ErrConfig, err)
	}

	return &Wallet{priv: priv, pub: pub}, nil
}

// PublicKey returns the wallet address as base58.
func (w *Wallet) PublicKey() string {
	return base58.Encode(w.pub)
}

// SignTransaction signs a serialized transaction payload. It returns the
// signed bytes (signature prepended) and the base58 signature string. The
// signature identifies the transaction on chain, so it is known before
// broadcast and can be used to reconcile an ambiguous send.
func (w *Wallet) SignTransaction(payload []byte) ([]byte, string) {
	sig := ed25519.Sign(w.priv, payload)
	signed := make([]byte, 0, len(sig)+len(payload))
	signed = append(signed, sig...)
	signed = append(signed, payload...)
	return signed, base58.Encode(sig)
}
