package store

import (
	"bytes"
	"sync"

	"vesper/internal/domain"
)

// Memory holds all records in maps of CBOR blobs. Suited to tests and
// short-lived processes.
type Memory struct {
	mu sync.RWMutex

	identity       domain.IdentityKeyPair
	registrationID uint32

	identities    map[string]domain.X25519Public
	sessions      map[string][]byte
	prekeys       map[uint32][]byte
	signedPrekeys map[uint32][]byte
	senderKeys    map[string][]byte
}

// NewMemory returns a memory store owning the given local identity.
func NewMemory(identity domain.IdentityKeyPair, registrationID uint32) *Memory {
	return &Memory{
		identity:       identity,
		registrationID: registrationID,
		identities:     make(map[string]domain.X25519Public),
		sessions:       make(map[string][]byte),
		prekeys:        make(map[uint32][]byte),
		signedPrekeys:  make(map[uint32][]byte),
		senderKeys:     make(map[string][]byte),
	}
}

// IdentityKeyPair returns the local identity.
func (m *Memory) IdentityKeyPair() (domain.IdentityKeyPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity, nil
}

// LocalRegistrationID returns the local registration id.
func (m *Memory) LocalRegistrationID() (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registrationID, nil
}

// SaveIdentity pins key for addr and reports whether a different key was
// pinned before.
func (m *Memory) SaveIdentity(addr domain.Address, key domain.X25519Public) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, had := m.identities[addr.String()]
	m.identities[addr.String()] = key
	return had && !bytes.Equal(old[:], key[:]), nil
}

// Identity returns the pinned key for addr.
func (m *Memory) Identity(addr domain.Address) (domain.X25519Public, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.identities[addr.String()]
	return key, ok, nil
}

// LoadSession returns the session record for addr.
func (m *Memory) LoadSession(addr domain.Address) (*domain.SessionRecord, bool, error) {
	m.mu.RLock()
	b, ok := m.sessions[addr.String()]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	rec, err := decodeSessionRecord(b)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// StoreSession persists the session record for addr.
func (m *Memory) StoreSession(addr domain.Address, rec *domain.SessionRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[addr.String()] = b
	m.mu.Unlock()
	return nil
}

// LoadPreKey returns the one-time prekey with the given id.
func (m *Memory) LoadPreKey(id uint32) (domain.PreKeyRecord, bool, error) {
	m.mu.RLock()
	b, ok := m.prekeys[id]
	m.mu.RUnlock()
	if !ok {
		return domain.PreKeyRecord{}, false, nil
	}
	rec, err := decodePreKeyRecord(b)
	if err != nil {
		return domain.PreKeyRecord{}, false, err
	}
	return rec, true, nil
}

// StorePreKey persists a one-time prekey.
func (m *Memory) StorePreKey(id uint32, rec domain.PreKeyRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.prekeys[id] = b
	m.mu.Unlock()
	return nil
}

// RemovePreKey deletes a one-time prekey; removing a missing id is a
// no-op.
func (m *Memory) RemovePreKey(id uint32) error {
	m.mu.Lock()
	delete(m.prekeys, id)
	m.mu.Unlock()
	return nil
}

// LoadSignedPreKey returns the signed prekey with the given id.
func (m *Memory) LoadSignedPreKey(id uint32) (domain.SignedPreKeyRecord, bool, error) {
	m.mu.RLock()
	b, ok := m.signedPrekeys[id]
	m.mu.RUnlock()
	if !ok {
		return domain.SignedPreKeyRecord{}, false, nil
	}
	rec, err := decodeSignedPreKeyRecord(b)
	if err != nil {
		return domain.SignedPreKeyRecord{}, false, err
	}
	return rec, true, nil
}

// StoreSignedPreKey persists a signed prekey.
func (m *Memory) StoreSignedPreKey(id uint32, rec domain.SignedPreKeyRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.signedPrekeys[id] = b
	m.mu.Unlock()
	return nil
}

// LoadSenderKey returns the sender-key record for (sender, dist).
func (m *Memory) LoadSenderKey(sender domain.Address, dist domain.DistributionID) (*domain.SenderKeyRecord, bool, error) {
	m.mu.RLock()
	b, ok := m.senderKeys[senderKeyKey(sender, dist)]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	rec, err := decodeSenderKeyRecord(b)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// StoreSenderKey persists the sender-key record for (sender, dist).
func (m *Memory) StoreSenderKey(sender domain.Address, dist domain.DistributionID, rec *domain.SenderKeyRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.senderKeys[senderKeyKey(sender, dist)] = b
	m.mu.Unlock()
	return nil
}

// Compile-time assertions that Memory covers the full contract.
var (
	_ domain.IdentityStore     = (*Memory)(nil)
	_ domain.SessionStore      = (*Memory)(nil)
	_ domain.PreKeyStore       = (*Memory)(nil)
	_ domain.SignedPreKeyStore = (*Memory)(nil)
	_ domain.SenderKeyStore    = (*Memory)(nil)
)
