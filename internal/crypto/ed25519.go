package crypto

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"vesper/internal/domain"
)

// GenerateEd25519 returns a new Ed25519 signing key pair read from rand.
func GenerateEd25519(rand io.Reader) (priv domain.Ed25519Private, pub domain.Ed25519Public, err error) {
	pk, sk, err := ed25519.GenerateKey(rand)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], sk)
	copy(pub[:], pk)
	return priv, pub, nil
}

// Sign signs msg with priv and returns the signature.
func Sign(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
}

// Verify reports whether sig is a valid signature over msg by pub.
func Verify(pub domain.Ed25519Public, msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// Ed25519PublicFromBytes validates length and copies b into a key.
func Ed25519PublicFromBytes(b []byte) (domain.Ed25519Public, error) {
	var pub domain.Ed25519Public
	if len(b) != len(pub) {
		return pub, fmt.Errorf("%w: Ed25519 public key is %d bytes, want %d",
			domain.ErrInvalidKeyMaterial, len(b), len(pub))
	}
	copy(pub[:], b)
	return pub, nil
}
