package app

import (
	"crypto/rand"
	"fmt"
	"path/filepath"

	"vesper/internal/domain"
	groupsvc "vesper/internal/services/group"
	prekeysvc "vesper/internal/services/prekey"
	sealedsvc "vesper/internal/services/sealed"
	sessionsvc "vesper/internal/services/session"
	"vesper/internal/store"
)

// Stores is the full storage contract a backend must satisfy.
type Stores interface {
	domain.IdentityStore
	domain.SessionStore
	domain.PreKeyStore
	domain.SignedPreKeyStore
	domain.SenderKeyStore

	// SaveLocalIdentity provisions the local identity and registration id.
	SaveLocalIdentity(domain.IdentityKeyPair, uint32) error
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*App, error) {
	var (
		stores Stores
		closer func() error
	)
	switch cfg.Store {
	case BackendFile, "":
		stores = store.NewFile(cfg.Home, cfg.Passphrase)
		closer = func() error { return nil }
	case BackendSQLite:
		db, err := store.OpenSQLite(filepath.Join(cfg.Home, "vesper.db"))
		if err != nil {
			return nil, err
		}
		stores = db
		closer = db.Close
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}

	sessions := sessionsvc.New(stores, stores, stores, stores, rand.Reader)
	groups := groupsvc.New(stores, rand.Reader)

	return &App{
		PreKeys:  prekeysvc.New(stores, stores, stores, rand.Reader),
		Sessions: sessions,
		Groups:   groups,
		Sealed:   sealedsvc.New(stores, sessions, groups, rand.Reader),
		Stores:   stores,
		Close:    closer,
	}, nil
}
