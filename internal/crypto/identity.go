package crypto

import (
	"encoding/binary"
	"io"

	"vesper/internal/domain"
)

// GenerateIdentityKeyPair creates a fresh long-term identity: an X25519
// agreement pair and an Ed25519 signing pair.
func GenerateIdentityKeyPair(rand io.Reader) (domain.IdentityKeyPair, error) {
	xPriv, xPub, err := GenerateX25519(rand)
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	edPriv, edPub, err := GenerateEd25519(rand)
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	return domain.IdentityKeyPair{
		XPub:   xPub,
		XPriv:  xPriv,
		EdPub:  edPub,
		EdPriv: edPriv,
	}, nil
}

// GenerateRegistrationID returns a random 14-bit registration id in
// [1, 16380].
func GenerateRegistrationID(rand io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(rand, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:])%16380 + 1, nil
}
