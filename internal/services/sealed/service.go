package sealed

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"vesper/internal/crypto"
	"vesper/internal/domain"
	"vesper/internal/services/group"
	"vesper/internal/services/session"
	"vesper/internal/util/memzero"
	"vesper/internal/wire"
)

// EnvelopeVersion is the sealed envelope's leading version byte.
const EnvelopeVersion = 1

// Result is the outcome of a full sealed-sender decrypt: plaintext tied
// to the authenticated sender it came from.
type Result struct {
	SenderUUID string
	DeviceID   uint32
	Plaintext  []byte
}

// Service seals and opens sender-hiding envelopes on top of the session
// and group engines.
type Service struct {
	identities domain.IdentityStore
	sessions   *session.Service
	groups     *group.Service
	rand       io.Reader
}

// New constructs a sealed-sender service.
func New(identities domain.IdentityStore, sessions *session.Service, groups *group.Service, rand io.Reader) *Service {
	return &Service{identities: identities, sessions: sessions, groups: groups, rand: rand}
}

// Encrypt seals content for the remote address. Only the holder of the
// recipient's identity private key can recover the sender certificate
// inside.
func (s *Service) Encrypt(remote domain.Address, content *Content) ([]byte, error) {
	recipientKey, ok, err := s.identities.Identity(remote)
	if err != nil {
		return nil, fmt.Errorf("load recipient identity: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no identity pinned for %s", domain.ErrSessionNotFound, remote)
	}

	ephPriv, ephPub, err := crypto.GenerateX25519(s.rand)
	if err != nil {
		return nil, err
	}
	key, err := envelopeKey(ephPriv, recipientKey, ephPub)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	// One key per envelope, so a fixed nonce is safe.
	nonce := make([]byte, chacha20poly1305.NonceSize)

	envelope := make([]byte, 0, 1+32+len(content.Body)+128)
	envelope = append(envelope, EnvelopeVersion)
	envelope = append(envelope, ephPub[:]...)
	envelope = aead.Seal(envelope, nonce, content.Serialize(), nil)
	return envelope, nil
}

// DecryptToContent opens the envelope with the local identity key,
// returning the content without dispatching the inner message.
func (s *Service) DecryptToContent(envelope []byte) (*Content, error) {
	if len(envelope) < 1 {
		return nil, fmt.Errorf("%w: empty envelope", domain.ErrInvalidMessage)
	}
	if envelope[0] != EnvelopeVersion {
		return nil, fmt.Errorf("%w: envelope version %d", domain.ErrUnknownMessageVersion, envelope[0])
	}
	if len(envelope) < 1+32 {
		return nil, fmt.Errorf("%w: truncated envelope", domain.ErrInvalidMessage)
	}

	us, err := s.identities.IdentityKeyPair()
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	ephPub, err := crypto.X25519PublicFromBytes(envelope[1 : 1+32])
	if err != nil {
		return nil, err
	}
	key, err := envelopeKey(us.XPriv, ephPub, ephPub)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	plain, err := aead.Open(nil, nonce, envelope[1+32:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: envelope", domain.ErrSignatureVerification)
	}
	return ParseContent(plain)
}

// Decrypt opens the envelope, validates the sender certificate against
// the trust root at nowMillis, and dispatches the inner ciphertext to
// the session or group engine.
func (s *Service) Decrypt(envelope []byte, trustRoot domain.Ed25519Public, nowMillis int64) (*Result, error) {
	content, err := s.DecryptToContent(envelope)
	if err != nil {
		return nil, err
	}
	if err := content.Sender.Validate(trustRoot, nowMillis); err != nil {
		return nil, err
	}

	sender := domain.NewAddress(content.Sender.SenderUUID, content.Sender.DeviceID)

	var plaintext []byte
	switch content.Type {
	case ContentWhisper:
		msg, err := wire.ParseWhisper(content.Body)
		if err != nil {
			return nil, err
		}
		plaintext, err = s.sessions.Decrypt(sender, msg)
		if err != nil {
			return nil, err
		}
	case ContentPreKey:
		msg, err := wire.ParsePreKey(content.Body)
		if err != nil {
			return nil, err
		}
		plaintext, err = s.sessions.Decrypt(sender, msg)
		if err != nil {
			return nil, err
		}
	case ContentSenderKey:
		msg, err := wire.ParseSenderKey(content.Body)
		if err != nil {
			return nil, err
		}
		plaintext, err = s.groups.Decrypt(sender, msg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: envelope content type %d", domain.ErrUnknownMessageVersion, content.Type)
	}

	return &Result{
		SenderUUID: content.Sender.SenderUUID,
		DeviceID:   content.Sender.DeviceID,
		Plaintext:  plaintext,
	}, nil
}

// envelopeKey derives the envelope AEAD key from the ephemeral agreement,
// bound to the ephemeral public key so a transplanted header fails.
func envelopeKey(priv domain.X25519Private, pub domain.X25519Public, ephPub domain.X25519Public) ([]byte, error) {
	shared, err := crypto.DH(priv, pub)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(shared[:])

	info := append([]byte("vesper-sealed"), ephPub[:]...)
	r := hkdf.New(sha256.New, shared[:], nil, info)
	key := make([]byte, chacha20poly1305.KeySize)
	_, _ = io.ReadFull(r, key)
	return key, nil
}
