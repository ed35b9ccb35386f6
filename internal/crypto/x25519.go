package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"vesper/internal/domain"
)

// GenerateX25519 returns a fresh Curve25519 key pair read from rand.
// The private key is clamped per RFC 7748.
func GenerateX25519(rand io.Reader) (priv domain.X25519Private, pub domain.X25519Public, err error) {
	if _, err = io.ReadFull(rand, priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pub, err = X25519PublicFor(priv)
	return
}

// X25519PublicFor derives the public key for a private key.
func X25519PublicFor(priv domain.X25519Private) (domain.X25519Public, error) {
	var pub domain.X25519Public
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("%w: %v", domain.ErrInvalidKeyMaterial, err)
	}
	copy(pub[:], pb)
	return pub, nil
}

// DH computes the X25519 shared secret between priv and pub.
func DH(priv domain.X25519Private, pub domain.X25519Public) ([32]byte, error) {
	var out [32]byte
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrInvalidKeyMaterial, err)
	}
	copy(out[:], secret)
	return out, nil
}

// X25519PublicFromBytes validates length and copies b into a key.
func X25519PublicFromBytes(b []byte) (domain.X25519Public, error) {
	var pub domain.X25519Public
	if len(b) != len(pub) {
		return pub, fmt.Errorf("%w: X25519 public key is %d bytes, want %d",
			domain.ErrInvalidKeyMaterial, len(b), len(pub))
	}
	copy(pub[:], b)
	return pub, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
