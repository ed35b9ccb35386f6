package domain

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// IdentityKeyPair holds the long-term keys identifying a local endpoint:
// an X25519 pair for Diffie-Hellman agreement and an Ed25519 pair for
// signatures. It is created once per installation and never changes.
type IdentityKeyPair struct {
	XPub   X25519Public
	XPriv  X25519Private
	EdPub  Ed25519Public
	EdPriv Ed25519Private
}

// PublicKeys returns only the public halves, as published in bundles.
func (id IdentityKeyPair) PublicKeys() (X25519Public, Ed25519Public) {
	return id.XPub, id.EdPub
}
