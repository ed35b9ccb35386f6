package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"vesper/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS local_identity (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	identity        BLOB NOT NULL,
	registration_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS identities (
	address TEXT PRIMARY KEY,
	key     BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	address TEXT PRIMARY KEY,
	record  BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS prekeys (
	id     INTEGER PRIMARY KEY,
	record BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS signed_prekeys (
	id     INTEGER PRIMARY KEY,
	record BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS sender_keys (
	address         TEXT NOT NULL,
	distribution_id TEXT NOT NULL,
	record          BLOB NOT NULL,
	PRIMARY KEY (address, distribution_id)
);
`

// SQLite persists records in a single SQLite database. Records are CBOR
// blobs; the local identity row is fixed at id 1.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveLocalIdentity writes the local identity row. Not part of the store
// contract; used at provisioning time.
func (s *SQLite) SaveLocalIdentity(id domain.IdentityKeyPair, registrationID uint32) error {
	b, err := encodeRecord(id)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO local_identity (id, identity, registration_id) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET identity = excluded.identity, registration_id = excluded.registration_id`,
		b, registrationID)
	return err
}

// IdentityKeyPair returns the local identity.
func (s *SQLite) IdentityKeyPair() (domain.IdentityKeyPair, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT identity FROM local_identity WHERE id = 1`).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IdentityKeyPair{}, errors.New("local identity not provisioned")
	}
	if err != nil {
		return domain.IdentityKeyPair{}, fmt.Errorf("load identity: %w", err)
	}
	var id domain.IdentityKeyPair
	if err := cborUnmarshal(b, &id); err != nil {
		return domain.IdentityKeyPair{}, err
	}
	return id, nil
}

// LocalRegistrationID returns the local registration id.
func (s *SQLite) LocalRegistrationID() (uint32, error) {
	var reg uint32
	err := s.db.QueryRow(`SELECT registration_id FROM local_identity WHERE id = 1`).Scan(&reg)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errors.New("local identity not provisioned")
	}
	if err != nil {
		return 0, fmt.Errorf("load registration id: %w", err)
	}
	return reg, nil
}

// SaveIdentity pins key for addr and reports whether a different key was
// pinned before.
func (s *SQLite) SaveIdentity(addr domain.Address, key domain.X25519Public) (bool, error) {
	var old []byte
	err := s.db.QueryRow(`SELECT key FROM identities WHERE address = ?`, addr.String()).Scan(&old)
	had := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("load identity: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO identities (address, key) VALUES (?, ?)
		ON CONFLICT (address) DO UPDATE SET key = excluded.key`,
		addr.String(), key.Slice())
	if err != nil {
		return false, fmt.Errorf("store identity: %w", err)
	}
	return had && !bytes.Equal(old, key.Slice()), nil
}

// Identity returns the pinned key for addr.
func (s *SQLite) Identity(addr domain.Address) (domain.X25519Public, bool, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT key FROM identities WHERE address = ?`, addr.String()).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.X25519Public{}, false, nil
	}
	if err != nil {
		return domain.X25519Public{}, false, fmt.Errorf("load identity: %w", err)
	}
	if len(b) != 32 {
		return domain.X25519Public{}, false, fmt.Errorf("%w: stored identity key is %d bytes", domain.ErrInvalidKeyMaterial, len(b))
	}
	var key domain.X25519Public
	copy(key[:], b)
	return key, true, nil
}

// LoadSession returns the session record for addr.
func (s *SQLite) LoadSession(addr domain.Address) (*domain.SessionRecord, bool, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT record FROM sessions WHERE address = ?`, addr.String()).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}
	rec, err := decodeSessionRecord(b)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// StoreSession persists the session record for addr.
func (s *SQLite) StoreSession(addr domain.Address, rec *domain.SessionRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions (address, record) VALUES (?, ?)
		ON CONFLICT (address) DO UPDATE SET record = excluded.record`,
		addr.String(), b)
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// LoadPreKey returns the one-time prekey with the given id.
func (s *SQLite) LoadPreKey(id uint32) (domain.PreKeyRecord, bool, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT record FROM prekeys WHERE id = ?`, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PreKeyRecord{}, false, nil
	}
	if err != nil {
		return domain.PreKeyRecord{}, false, fmt.Errorf("load prekey: %w", err)
	}
	rec, err := decodePreKeyRecord(b)
	if err != nil {
		return domain.PreKeyRecord{}, false, err
	}
	return rec, true, nil
}

// StorePreKey persists a one-time prekey.
func (s *SQLite) StorePreKey(id uint32, rec domain.PreKeyRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO prekeys (id, record) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET record = excluded.record`, id, b)
	if err != nil {
		return fmt.Errorf("store prekey: %w", err)
	}
	return nil
}

// RemovePreKey deletes a one-time prekey; removing a missing id is a
// no-op.
func (s *SQLite) RemovePreKey(id uint32) error {
	if _, err := s.db.Exec(`DELETE FROM prekeys WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove prekey: %w", err)
	}
	return nil
}

// LoadSignedPreKey returns the signed prekey with the given id.
func (s *SQLite) LoadSignedPreKey(id uint32) (domain.SignedPreKeyRecord, bool, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT record FROM signed_prekeys WHERE id = ?`, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SignedPreKeyRecord{}, false, nil
	}
	if err != nil {
		return domain.SignedPreKeyRecord{}, false, fmt.Errorf("load signed prekey: %w", err)
	}
	rec, err := decodeSignedPreKeyRecord(b)
	if err != nil {
		return domain.SignedPreKeyRecord{}, false, err
	}
	return rec, true, nil
}

// StoreSignedPreKey persists a signed prekey.
func (s *SQLite) StoreSignedPreKey(id uint32, rec domain.SignedPreKeyRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO signed_prekeys (id, record) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET record = excluded.record`, id, b)
	if err != nil {
		return fmt.Errorf("store signed prekey: %w", err)
	}
	return nil
}

// LoadSenderKey returns the sender-key record for (sender, dist).
func (s *SQLite) LoadSenderKey(sender domain.Address, dist domain.DistributionID) (*domain.SenderKeyRecord, bool, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT record FROM sender_keys WHERE address = ? AND distribution_id = ?`,
		sender.String(), dist.String()).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load sender key: %w", err)
	}
	rec, err := decodeSenderKeyRecord(b)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// StoreSenderKey persists the sender-key record for (sender, dist).
func (s *SQLite) StoreSenderKey(sender domain.Address, dist domain.DistributionID, rec *domain.SenderKeyRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sender_keys (address, distribution_id, record) VALUES (?, ?, ?)
		ON CONFLICT (address, distribution_id) DO UPDATE SET record = excluded.record`,
		sender.String(), dist.String(), b)
	if err != nil {
		return fmt.Errorf("store sender key: %w", err)
	}
	return nil
}

var (
	_ domain.IdentityStore     = (*SQLite)(nil)
	_ domain.SessionStore      = (*SQLite)(nil)
	_ domain.PreKeyStore       = (*SQLite)(nil)
	_ domain.SignedPreKeyStore = (*SQLite)(nil)
	_ domain.SenderKeyStore    = (*SQLite)(nil)
)
