package wire

import (
	"fmt"

	"vesper/internal/domain"
)

// PreKey is the bootstrap variant: a whisper message wrapped with the
// X3DH parameters the responder needs to build the session.
type PreKey struct {
	RegistrationID uint32
	PreKeyID       *uint32 // absent when no one-time prekey was consumed
	SignedPreKeyID uint32
	BaseKey        domain.X25519Public
	IdentityKey    domain.X25519Public
	Message        *Whisper
}

func (*PreKey) Kind() Kind { return KindPreKey }
func (*PreKey) sealed()    {}

// Serialize renders the frame; the optional prekey id is a presence byte
// followed by the id when set.
func (m *PreKey) Serialize() []byte {
	inner := m.Message.Serialize()
	b := make([]byte, 0, 2+4+5+4+32+32+4+len(inner))
	b = append(b, byte(KindPreKey), domain.SessionVersion)
	b = appendUint32(b, m.RegistrationID)
	if m.PreKeyID != nil {
		b = append(b, 1)
		b = appendUint32(b, *m.PreKeyID)
	} else {
		b = append(b, 0)
	}
	b = appendUint32(b, m.SignedPreKeyID)
	b = append(b, m.BaseKey[:]...)
	b = append(b, m.IdentityKey[:]...)
	b = appendBytes(b, inner)
	return b
}

// ParsePreKey decodes a prekey frame, including the embedded whisper
// message.
func ParsePreKey(b []byte) (*PreKey, error) {
	r, err := header(b, KindPreKey)
	if err != nil {
		return nil, err
	}
	m := &PreKey{}
	if m.RegistrationID, err = r.uint32(); err != nil {
		return nil, err
	}
	flag, err := r.take(1)
	if err != nil {
		return nil, err
	}
	switch flag[0] {
	case 0:
	case 1:
		id, err := r.uint32()
		if err != nil {
			return nil, err
		}
		m.PreKeyID = &id
	default:
		return nil, fmt.Errorf("%w: bad prekey presence byte", domain.ErrInvalidMessage)
	}
	if m.SignedPreKeyID, err = r.uint32(); err != nil {
		return nil, err
	}
	if m.BaseKey, err = r.key32(); err != nil {
		return nil, err
	}
	if m.IdentityKey, err = r.key32(); err != nil {
		return nil, err
	}
	inner, err := r.bytes()
	if err != nil {
		return nil, err
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	if m.Message, err = ParseWhisper(inner); err != nil {
		return nil, err
	}
	return m, nil
}
