package session

import (
	"bytes"
	"fmt"
	"io"

	"vesper/internal/domain"
	"vesper/internal/protocol/ratchet"
	"vesper/internal/protocol/x3dh"
	"vesper/internal/wire"
)

// Service establishes and advances pairwise ratchet sessions.
type Service struct {
	sessions      domain.SessionStore
	identities    domain.IdentityStore
	prekeys       domain.PreKeyStore
	signedPrekeys domain.SignedPreKeyStore
	rand          io.Reader
}

// New constructs a session service over the given stores. rand supplies
// all ephemeral and ratchet key generation.
func New(
	sessions domain.SessionStore,
	identities domain.IdentityStore,
	prekeys domain.PreKeyStore,
	signedPrekeys domain.SignedPreKeyStore,
	rand io.Reader,
) *Service {
	return &Service{
		sessions:      sessions,
		identities:    identities,
		prekeys:       prekeys,
		signedPrekeys: signedPrekeys,
		rand:          rand,
	}
}

// ProcessPreKeyBundle runs the initiator bootstrap against a fetched
// bundle and stores the fresh session. The signed-prekey signature is
// verified before anything else in the bundle is trusted.
func (s *Service) ProcessPreKeyBundle(remote domain.Address, bundle domain.PreKeyBundle) error {
	if err := x3dh.VerifySignedPreKey(bundle.SigningKey, bundle.SignedPreKey, bundle.SignedPreKeySignature); err != nil {
		return err
	}

	us, err := s.identities.IdentityKeyPair()
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	ourRegistrationID, err := s.identities.LocalRegistrationID()
	if err != nil {
		return fmt.Errorf("load registration id: %w", err)
	}

	// Identity-change detection is advisory; blocking on a changed key
	// is the caller's policy.
	if _, err := s.identities.SaveIdentity(remote, bundle.IdentityKey); err != nil {
		return fmt.Errorf("pin identity: %w", err)
	}

	baseKey, err := x3dh.GenerateKeyPair(s.rand)
	if err != nil {
		return err
	}

	state, err := x3dh.InitializeAlice(s.rand, x3dh.AliceParameters{
		OurIdentity:        us,
		OurBaseKey:         baseKey,
		TheirIdentity:      bundle.IdentityKey,
		TheirSignedPreKey:  bundle.SignedPreKey,
		TheirOneTimePreKey: bundle.PreKey,
		TheirRatchetKey:    bundle.SignedPreKey,
	})
	if err != nil {
		return err
	}
	state.LocalRegistrationID = ourRegistrationID
	state.RemoteRegistrationID = bundle.RegistrationID
	state.Pending = &domain.PendingPreKey{
		PreKeyID:       bundle.PreKeyID,
		SignedPreKeyID: bundle.SignedPreKeyID,
		BaseKey:        baseKey.Pub,
	}

	record, ok, err := s.sessions.LoadSession(remote)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		record = &domain.SessionRecord{}
	}
	record.ArchiveCurrent()
	record.Current = state
	if err := s.sessions.StoreSession(remote, record); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Encrypt derives the next sending message key, encrypts plaintext and
// persists the advanced state. While the initiator has not yet seen a
// reply, the result is a prekey message carrying the bootstrap
// parameters; afterwards it is a plain whisper message.
func (s *Service) Encrypt(remote domain.Address, plaintext []byte) (wire.Message, error) {
	record, ok, err := s.sessions.LoadSession(remote)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok || !record.HasCurrent() {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, remote)
	}
	state := record.Current

	keys, err := ratchet.MessageKeysForSending(state)
	if err != nil {
		return nil, err
	}
	ciphertext, err := ratchet.Seal(keys, plaintext)
	if err != nil {
		return nil, err
	}
	whisper := wire.NewWhisper(
		keys.MacKey,
		state.LocalIdentity, state.RemoteIdentity,
		state.Sender.RatchetPub,
		keys.Index, state.PreviousCounter,
		ciphertext,
	)

	var msg wire.Message = whisper
	if state.Pending != nil {
		msg = &wire.PreKey{
			RegistrationID: state.LocalRegistrationID,
			PreKeyID:       state.Pending.PreKeyID,
			SignedPreKeyID: state.Pending.SignedPreKeyID,
			BaseKey:        state.Pending.BaseKey,
			IdentityKey:    state.LocalIdentity,
			Message:        whisper,
		}
	}

	if err := s.sessions.StoreSession(remote, record); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return msg, nil
}

// Decrypt advances the session for an incoming message and returns the
// plaintext. Prekey messages bootstrap the responder side first when the
// embedded base key does not match an existing state.
func (s *Service) Decrypt(remote domain.Address, msg wire.Message) ([]byte, error) {
	switch m := msg.(type) {
	case *wire.PreKey:
		return s.decryptPreKey(remote, m)
	case *wire.Whisper:
		return s.decryptWhisper(remote, m)
	default:
		return nil, fmt.Errorf("%w: kind %d is not a session message", domain.ErrInvalidMessage, msg.Kind())
	}
}

func (s *Service) decryptPreKey(remote domain.Address, m *wire.PreKey) ([]byte, error) {
	if pinned, ok, err := s.identities.Identity(remote); err != nil {
		return nil, fmt.Errorf("load pinned identity: %w", err)
	} else if ok && !bytes.Equal(pinned[:], m.IdentityKey[:]) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUntrustedIdentity, remote)
	}

	record, ok, err := s.sessions.LoadSession(remote)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		record = &domain.SessionRecord{}
	}

	// A state bootstrapped from this very base key already exists when
	// the initiator's first messages arrive more than once; reuse it
	// rather than re-running the responder path.
	var consumedPreKey *uint32
	if _, exists := record.StateForBaseKey(m.BaseKey); !exists {
		state, err := s.bootstrapResponder(remote, m)
		if err != nil {
			return nil, err
		}
		record.ArchiveCurrent()
		record.Current = state
		consumedPreKey = m.PreKeyID
	}

	plaintext, err := s.decryptOnRecord(record, m.Message)
	if err != nil {
		return nil, err
	}

	if _, err := s.identities.SaveIdentity(remote, m.IdentityKey); err != nil {
		return nil, fmt.Errorf("pin identity: %w", err)
	}
	if consumedPreKey != nil {
		if err := s.prekeys.RemovePreKey(*consumedPreKey); err != nil {
			return nil, fmt.Errorf("remove one-time prekey: %w", err)
		}
	}
	if err := s.sessions.StoreSession(remote, record); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return plaintext, nil
}

func (s *Service) bootstrapResponder(remote domain.Address, m *wire.PreKey) (*domain.SessionState, error) {
	us, err := s.identities.IdentityKeyPair()
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	ourRegistrationID, err := s.identities.LocalRegistrationID()
	if err != nil {
		return nil, fmt.Errorf("load registration id: %w", err)
	}

	signed, ok, err := s.signedPrekeys.LoadSignedPreKey(m.SignedPreKeyID)
	if err != nil {
		return nil, fmt.Errorf("load signed prekey: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: signed prekey %d", domain.ErrPreKeyUnavailable, m.SignedPreKeyID)
	}
	signedPair := x3dh.KeyPair{Priv: signed.Priv, Pub: signed.Pub}

	var oneTime *x3dh.KeyPair
	if m.PreKeyID != nil {
		rec, ok, err := s.prekeys.LoadPreKey(*m.PreKeyID)
		if err != nil {
			return nil, fmt.Errorf("load one-time prekey: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: one-time prekey %d", domain.ErrPreKeyUnavailable, *m.PreKeyID)
		}
		oneTime = &x3dh.KeyPair{Priv: rec.Priv, Pub: rec.Pub}
	}

	state, err := x3dh.InitializeBob(x3dh.BobParameters{
		OurIdentity:      us,
		OurSignedPreKey:  signedPair,
		OurOneTimePreKey: oneTime,
		OurRatchetKey:    signedPair,
		TheirIdentity:    m.IdentityKey,
		TheirBaseKey:     m.BaseKey,
	})
	if err != nil {
		return nil, err
	}
	state.LocalRegistrationID = ourRegistrationID
	state.RemoteRegistrationID = m.RegistrationID
	return state, nil
}

func (s *Service) decryptWhisper(remote domain.Address, m *wire.Whisper) ([]byte, error) {
	record, ok, err := s.sessions.LoadSession(remote)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok || (!record.HasCurrent() && len(record.Archived) == 0) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, remote)
	}

	plaintext, err := s.decryptOnRecord(record, m)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.StoreSession(remote, record); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return plaintext, nil
}

// decryptOnRecord tries the current state first, then archived states; a
// failed attempt never mutates the record because every attempt runs on a
// clone. An archived state that decrypts is promoted to current.
func (s *Service) decryptOnRecord(record *domain.SessionRecord, m *wire.Whisper) ([]byte, error) {
	var firstErr error
	if record.Current != nil {
		candidate := record.Current.Clone()
		plaintext, err := s.decryptWithState(candidate, m)
		if err == nil {
			record.Current = candidate
			return plaintext, nil
		}
		firstErr = err
	}

	for i := range record.Archived {
		candidate := record.Archived[i].Clone()
		plaintext, err := s.decryptWithState(candidate, m)
		if err == nil {
			record.Promote(i)
			record.Current = candidate
			return plaintext, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func (s *Service) decryptWithState(state *domain.SessionState, m *wire.Whisper) ([]byte, error) {
	if _, ok := state.ReceiverChain(m.RatchetPub); !ok {
		if err := ratchet.StepReceiving(s.rand, state, m.RatchetPub, m.PreviousCounter); err != nil {
			return nil, err
		}
	}
	keys, err := ratchet.MessageKeysForReceiving(state, m.RatchetPub, m.Counter)
	if err != nil {
		return nil, err
	}
	// Sender of the message is the remote party.
	if err := m.VerifyMAC(keys.MacKey, state.RemoteIdentity, state.LocalIdentity); err != nil {
		return nil, err
	}
	plaintext, err := ratchet.Open(keys, m.Ciphertext)
	if err != nil {
		return nil, err
	}
	// A successful decrypt proves the session to the initiator; stop
	// attaching bootstrap parameters.
	state.Pending = nil
	return plaintext, nil
}
