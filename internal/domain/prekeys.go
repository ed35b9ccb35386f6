package domain

// PreKeyRecord is a one-time prekey pair stored locally. It is published
// in batches and deleted on first use.
type PreKeyRecord struct {
	ID   uint32
	Pub  X25519Public
	Priv X25519Private
}

// SignedPreKeyRecord is a medium-term prekey pair with a signature by the
// owner's Ed25519 identity key. Rotated periodically, retained until the
// caller removes it.
type SignedPreKeyRecord struct {
	ID        uint32
	CreatedAt int64 // milliseconds since epoch
	Pub       X25519Public
	Priv      X25519Private
	Signature []byte
}

// PreKeyBundle is a snapshot of a remote party's published keys, fetched
// once to bootstrap a session. It is never persisted.
type PreKeyBundle struct {
	RegistrationID uint32
	DeviceID       uint32

	IdentityKey X25519Public
	SigningKey  Ed25519Public

	SignedPreKeyID        uint32
	SignedPreKey          X25519Public
	SignedPreKeySignature []byte

	// One-time prekey, absent when the batch is exhausted.
	PreKeyID *uint32
	PreKey   *X25519Public
}
