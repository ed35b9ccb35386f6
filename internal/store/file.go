package store

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"vesper/internal/domain"
	"vesper/internal/util/memzero"
)

const (
	identityFile      = "identity.enc"
	identitiesFile    = "identities.cbor"
	sessionsDir       = "sessions"
	senderKeysDir     = "sender_keys"
	prekeysFile       = "prekeys.cbor"
	signedPrekeysFile = "signed_prekeys.cbor"

	saltBytes = 16
)

// File persists records under a directory. The local identity blob is
// encrypted with a key derived from the passphrase via Argon2id; record
// files are plain CBOR with 0600 permissions.
type File struct {
	dir        string
	passphrase string
	mu         sync.Mutex
}

// NewFile returns a file store rooted at dir. The directory is created
// on first write.
func NewFile(dir, passphrase string) *File {
	return &File{dir: dir, passphrase: passphrase}
}

type localIdentity struct {
	Identity       domain.IdentityKeyPair
	RegistrationID uint32
}

// SaveLocalIdentity writes the encrypted local identity blob. Not part
// of the store contract; used at provisioning time.
func (f *File) SaveLocalIdentity(id domain.IdentityKeyPair, registrationID uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := encodeRecord(localIdentity{Identity: id, RegistrationID: registrationID})
	if err != nil {
		return err
	}
	blob, err := encryptBlob(f.passphrase, raw)
	memzero.Zero(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.dir, identityFile), blob, 0o600)
}

func (f *File) loadLocalIdentity() (localIdentity, error) {
	blob, err := os.ReadFile(filepath.Join(f.dir, identityFile))
	if err != nil {
		return localIdentity{}, fmt.Errorf("read identity: %w", err)
	}
	raw, err := decryptBlob(f.passphrase, blob)
	if err != nil {
		return localIdentity{}, err
	}
	defer memzero.Zero(raw)

	var id localIdentity
	if err := cborUnmarshal(raw, &id); err != nil {
		return localIdentity{}, err
	}
	return id, nil
}

// IdentityKeyPair decrypts and returns the local identity.
func (f *File) IdentityKeyPair() (domain.IdentityKeyPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := f.loadLocalIdentity()
	return id.Identity, err
}

// LocalRegistrationID decrypts and returns the local registration id.
func (f *File) LocalRegistrationID() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := f.loadLocalIdentity()
	return id.RegistrationID, err
}

// SaveIdentity pins key for addr and reports whether a different key was
// pinned before.
func (f *File) SaveIdentity(addr domain.Address, key domain.X25519Public) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := make(map[string]domain.X25519Public)
	if err := f.readCBOR(identitiesFile, &m); err != nil {
		return false, err
	}
	old, had := m[addr.String()]
	m[addr.String()] = key
	if err := f.writeCBOR(identitiesFile, m); err != nil {
		return false, err
	}
	return had && !bytes.Equal(old[:], key[:]), nil
}

// Identity returns the pinned key for addr.
func (f *File) Identity(addr domain.Address) (domain.X25519Public, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := make(map[string]domain.X25519Public)
	if err := f.readCBOR(identitiesFile, &m); err != nil {
		return domain.X25519Public{}, false, err
	}
	key, ok := m[addr.String()]
	return key, ok, nil
}

// LoadSession returns the session record for addr.
func (f *File) LoadSession(addr domain.Address) (*domain.SessionRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(filepath.Join(f.dir, sessionsDir, addr.String()+".cbor"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read session: %w", err)
	}
	rec, err := decodeSessionRecord(b)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// StoreSession persists the session record for addr.
func (f *File) StoreSession(addr domain.Address, rec *domain.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	dir := filepath.Join(f.dir, sessionsDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, addr.String()+".cbor"), b)
}

// LoadPreKey returns the one-time prekey with the given id.
func (f *File) LoadPreKey(id uint32) (domain.PreKeyRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := make(map[uint32]domain.PreKeyRecord)
	if err := f.readCBOR(prekeysFile, &m); err != nil {
		return domain.PreKeyRecord{}, false, err
	}
	rec, ok := m[id]
	return rec, ok, nil
}

// StorePreKey persists a one-time prekey.
func (f *File) StorePreKey(id uint32, rec domain.PreKeyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := make(map[uint32]domain.PreKeyRecord)
	if err := f.readCBOR(prekeysFile, &m); err != nil {
		return err
	}
	m[id] = rec
	return f.writeCBOR(prekeysFile, m)
}

// RemovePreKey deletes a one-time prekey; removing a missing id is a
// no-op.
func (f *File) RemovePreKey(id uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := make(map[uint32]domain.PreKeyRecord)
	if err := f.readCBOR(prekeysFile, &m); err != nil {
		return err
	}
	if _, ok := m[id]; !ok {
		return nil
	}
	delete(m, id)
	return f.writeCBOR(prekeysFile, m)
}

// LoadSignedPreKey returns the signed prekey with the given id.
func (f *File) LoadSignedPreKey(id uint32) (domain.SignedPreKeyRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := make(map[uint32]domain.SignedPreKeyRecord)
	if err := f.readCBOR(signedPrekeysFile, &m); err != nil {
		return domain.SignedPreKeyRecord{}, false, err
	}
	rec, ok := m[id]
	return rec, ok, nil
}

// StoreSignedPreKey persists a signed prekey.
func (f *File) StoreSignedPreKey(id uint32, rec domain.SignedPreKeyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := make(map[uint32]domain.SignedPreKeyRecord)
	if err := f.readCBOR(signedPrekeysFile, &m); err != nil {
		return err
	}
	m[id] = rec
	return f.writeCBOR(signedPrekeysFile, m)
}

// LoadSenderKey returns the sender-key record for (sender, dist).
func (f *File) LoadSenderKey(sender domain.Address, dist domain.DistributionID) (*domain.SenderKeyRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(filepath.Join(f.dir, senderKeysDir, sender.String()+"_"+dist.String()+".cbor"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read sender key: %w", err)
	}
	rec, err := decodeSenderKeyRecord(b)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// StoreSenderKey persists the sender-key record for (sender, dist).
func (f *File) StoreSenderKey(sender domain.Address, dist domain.DistributionID, rec *domain.SenderKeyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	dir := filepath.Join(f.dir, senderKeysDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, sender.String()+"_"+dist.String()+".cbor"), b)
}

// ---------- helpers ----------

func (f *File) readCBOR(name string, v any) error {
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return cborUnmarshal(b, v)
}

func (f *File) writeCBOR(name string, v any) error {
	b, err := encodeRecord(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(f.dir, name), b)
}

// writeFileAtomic writes via a temp file and rename so a crash never
// leaves a half-written record behind.
func writeFileAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func deriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1<<16, 8, 1, chacha20poly1305.KeySize)
}

// encryptBlob seals raw under a passphrase-derived key. Layout:
// salt ‖ nonce ‖ ciphertext.
func encryptBlob(passphrase string, raw []byte) ([]byte, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	kek := deriveKEK(passphrase, salt)
	defer memzero.Zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := append(salt, nonce...)
	return aead.Seal(out, nonce, raw, nil), nil
}

func decryptBlob(passphrase string, blob []byte) ([]byte, error) {
	if len(blob) < saltBytes+chacha20poly1305.NonceSize {
		return nil, errors.New("identity blob truncated")
	}
	salt := blob[:saltBytes]
	nonce := blob[saltBytes : saltBytes+chacha20poly1305.NonceSize]
	kek := deriveKEK(passphrase, salt)
	defer memzero.Zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, blob[saltBytes+chacha20poly1305.NonceSize:], nil)
}

var (
	_ domain.IdentityStore     = (*File)(nil)
	_ domain.SessionStore      = (*File)(nil)
	_ domain.PreKeyStore       = (*File)(nil)
	_ domain.SignedPreKeyStore = (*File)(nil)
	_ domain.SenderKeyStore    = (*File)(nil)
)
