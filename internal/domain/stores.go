package domain

// The storage contract is five independent capability interfaces so a
// backend can implement only what it needs and test doubles stay small.
// Lookups return (value, ok, error): absence is not an error. Operations
// on the same key must be linearizable; unrelated keys may proceed in
// parallel. No interface defines retry or caching policy.

// IdentityStore persists the local identity and pins remote identities.
type IdentityStore interface {
	IdentityKeyPair() (IdentityKeyPair, error)
	LocalRegistrationID() (uint32, error)

	// SaveIdentity pins the identity key for an address and reports
	// whether a previously pinned key changed. A change is advisory, not
	// an error: policy belongs to the caller.
	SaveIdentity(addr Address, key X25519Public) (changed bool, err error)
	Identity(addr Address) (X25519Public, bool, error)
}

// SessionStore persists session records keyed by address.
type SessionStore interface {
	LoadSession(addr Address) (*SessionRecord, bool, error)
	StoreSession(addr Address, rec *SessionRecord) error
}

// PreKeyStore persists one-time prekeys keyed by id. RemovePreKey of a
// missing id is not an error.
type PreKeyStore interface {
	LoadPreKey(id uint32) (PreKeyRecord, bool, error)
	StorePreKey(id uint32, rec PreKeyRecord) error
	RemovePreKey(id uint32) error
}

// SignedPreKeyStore persists signed prekeys keyed by id.
type SignedPreKeyStore interface {
	LoadSignedPreKey(id uint32) (SignedPreKeyRecord, bool, error)
	StoreSignedPreKey(id uint32, rec SignedPreKeyRecord) error
}

// SenderKeyStore persists group chain state keyed by
// (sender address, distribution id).
type SenderKeyStore interface {
	LoadSenderKey(sender Address, dist DistributionID) (*SenderKeyRecord, bool, error)
	StoreSenderKey(sender Address, dist DistributionID, rec *SenderKeyRecord) error
}
