package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"vesper/internal/domain"
)

// MACSize is the truncated HMAC trailer length on whisper messages.
const MACSize = 8

// Whisper is an ordinary ratchet message: the sender's current ratchet
// key, chain counters, the AEAD ciphertext and a truncated MAC binding
// the whole frame to both identities.
type Whisper struct {
	RatchetPub      domain.X25519Public
	Counter         uint32
	PreviousCounter uint32
	Ciphertext      []byte
	MAC             [MACSize]byte
}

// NewWhisper builds a whisper message and computes its MAC with macKey,
// binding senderIdentity and receiverIdentity.
func NewWhisper(
	macKey []byte,
	senderIdentity, receiverIdentity domain.X25519Public,
	ratchetPub domain.X25519Public,
	counter, previousCounter uint32,
	ciphertext []byte,
) *Whisper {
	m := &Whisper{
		RatchetPub:      ratchetPub,
		Counter:         counter,
		PreviousCounter: previousCounter,
		Ciphertext:      ciphertext,
	}
	mac := computeMAC(macKey, senderIdentity, receiverIdentity, m.serializeWithoutMAC())
	copy(m.MAC[:], mac)
	return m
}

func (*Whisper) Kind() Kind { return KindWhisper }
func (*Whisper) sealed()    {}

// Serialize renders the full frame including the MAC trailer.
func (m *Whisper) Serialize() []byte {
	return append(m.serializeWithoutMAC(), m.MAC[:]...)
}

func (m *Whisper) serializeWithoutMAC() []byte {
	b := make([]byte, 0, 2+32+4+4+4+len(m.Ciphertext))
	b = append(b, byte(KindWhisper), domain.SessionVersion)
	b = append(b, m.RatchetPub[:]...)
	b = appendUint32(b, m.Counter)
	b = appendUint32(b, m.PreviousCounter)
	b = appendBytes(b, m.Ciphertext)
	return b
}

// VerifyMAC recomputes the trailer and compares in constant time. Failure
// is domain.ErrSignatureVerification.
func (m *Whisper) VerifyMAC(macKey []byte, senderIdentity, receiverIdentity domain.X25519Public) error {
	want := computeMAC(macKey, senderIdentity, receiverIdentity, m.serializeWithoutMAC())
	if subtle.ConstantTimeCompare(want, m.MAC[:]) != 1 {
		return fmt.Errorf("%w: whisper message MAC", domain.ErrSignatureVerification)
	}
	return nil
}

// ParseWhisper decodes a whisper frame. The MAC is carried, not checked:
// verification needs the message keys.
func ParseWhisper(b []byte) (*Whisper, error) {
	r, err := header(b, KindWhisper)
	if err != nil {
		return nil, err
	}
	m := &Whisper{}
	if m.RatchetPub, err = r.key32(); err != nil {
		return nil, err
	}
	if m.Counter, err = r.uint32(); err != nil {
		return nil, err
	}
	if m.PreviousCounter, err = r.uint32(); err != nil {
		return nil, err
	}
	if m.Ciphertext, err = r.bytes(); err != nil {
		return nil, err
	}
	mac, err := r.take(MACSize)
	if err != nil {
		return nil, err
	}
	copy(m.MAC[:], mac)
	if err := r.done(); err != nil {
		return nil, err
	}
	return m, nil
}

func computeMAC(macKey []byte, senderIdentity, receiverIdentity domain.X25519Public, serialized []byte) []byte {
	h := hmac.New(sha256.New, macKey)
	h.Write(senderIdentity[:])
	h.Write(receiverIdentity[:])
	h.Write(serialized)
	return h.Sum(nil)[:MACSize]
}
