package prekey

import (
	"fmt"
	"io"

	"vesper/internal/crypto"
	"vesper/internal/domain"
)

// Service creates and stores prekeys and assembles bundles.
type Service struct {
	prekeys       domain.PreKeyStore
	signedPrekeys domain.SignedPreKeyStore
	identities    domain.IdentityStore
	rand          io.Reader
}

// New constructs a prekey service over the given stores.
func New(
	prekeys domain.PreKeyStore,
	signedPrekeys domain.SignedPreKeyStore,
	identities domain.IdentityStore,
	rand io.Reader,
) *Service {
	return &Service{
		prekeys:       prekeys,
		signedPrekeys: signedPrekeys,
		identities:    identities,
		rand:          rand,
	}
}

// GeneratePreKeys creates and stores count one-time prekeys with ids
// start, start+1, ... and returns the records.
func (s *Service) GeneratePreKeys(start uint32, count int) ([]domain.PreKeyRecord, error) {
	records := make([]domain.PreKeyRecord, 0, count)
	for i := 0; i < count; i++ {
		priv, pub, err := crypto.GenerateX25519(s.rand)
		if err != nil {
			return nil, err
		}
		rec := domain.PreKeyRecord{ID: start + uint32(i), Pub: pub, Priv: priv}
		if err := s.prekeys.StorePreKey(rec.ID, rec); err != nil {
			return nil, fmt.Errorf("store prekey %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// GenerateSignedPreKey creates, signs with the identity key, and stores
// a signed prekey. now is milliseconds since epoch.
func (s *Service) GenerateSignedPreKey(id uint32, now int64) (domain.SignedPreKeyRecord, error) {
	us, err := s.identities.IdentityKeyPair()
	if err != nil {
		return domain.SignedPreKeyRecord{}, fmt.Errorf("load identity: %w", err)
	}
	priv, pub, err := crypto.GenerateX25519(s.rand)
	if err != nil {
		return domain.SignedPreKeyRecord{}, err
	}
	rec := domain.SignedPreKeyRecord{
		ID:        id,
		CreatedAt: now,
		Pub:       pub,
		Priv:      priv,
		Signature: crypto.Sign(us.EdPriv, pub.Slice()),
	}
	if err := s.signedPrekeys.StoreSignedPreKey(id, rec); err != nil {
		return domain.SignedPreKeyRecord{}, fmt.Errorf("store signed prekey: %w", err)
	}
	return rec, nil
}

// MakeBundle assembles the published snapshot for this party from the
// stored signed prekey and, when preKeyID is non-nil, a one-time prekey.
func (s *Service) MakeBundle(deviceID uint32, signedPreKeyID uint32, preKeyID *uint32) (domain.PreKeyBundle, error) {
	us, err := s.identities.IdentityKeyPair()
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("load identity: %w", err)
	}
	registrationID, err := s.identities.LocalRegistrationID()
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("load registration id: %w", err)
	}

	signed, ok, err := s.signedPrekeys.LoadSignedPreKey(signedPreKeyID)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("load signed prekey: %w", err)
	}
	if !ok {
		return domain.PreKeyBundle{}, fmt.Errorf("%w: signed prekey %d", domain.ErrPreKeyUnavailable, signedPreKeyID)
	}

	bundle := domain.PreKeyBundle{
		RegistrationID:        registrationID,
		DeviceID:              deviceID,
		IdentityKey:           us.XPub,
		SigningKey:            us.EdPub,
		SignedPreKeyID:        signed.ID,
		SignedPreKey:          signed.Pub,
		SignedPreKeySignature: append([]byte(nil), signed.Signature...),
	}

	if preKeyID != nil {
		rec, ok, err := s.prekeys.LoadPreKey(*preKeyID)
		if err != nil {
			return domain.PreKeyBundle{}, fmt.Errorf("load prekey: %w", err)
		}
		if !ok {
			return domain.PreKeyBundle{}, fmt.Errorf("%w: one-time prekey %d", domain.ErrPreKeyUnavailable, *preKeyID)
		}
		id := rec.ID
		pub := rec.Pub
		bundle.PreKeyID = &id
		bundle.PreKey = &pub
	}
	return bundle, nil
}
