package wire

import (
	"crypto/ed25519"
	"fmt"

	"github.com/google/uuid"

	"vesper/internal/crypto"
	"vesper/internal/domain"
)

// SenderKey is a group message: ciphertext under the sender's group chain,
// signed with the distribution's signing key.
type SenderKey struct {
	DistributionID domain.DistributionID
	ChainID        uint32
	Iteration      uint32
	Ciphertext     []byte
	Signature      [ed25519.SignatureSize]byte
}

// NewSenderKey builds and signs a sender-key message.
func NewSenderKey(
	signPriv domain.Ed25519Private,
	dist domain.DistributionID,
	chainID, iteration uint32,
	ciphertext []byte,
) *SenderKey {
	m := &SenderKey{
		DistributionID: dist,
		ChainID:        chainID,
		Iteration:      iteration,
		Ciphertext:     ciphertext,
	}
	copy(m.Signature[:], crypto.Sign(signPriv, m.serializeWithoutSignature()))
	return m
}

func (*SenderKey) Kind() Kind { return KindSenderKey }
func (*SenderKey) sealed()    {}

// Serialize renders the full frame including the signature trailer.
func (m *SenderKey) Serialize() []byte {
	return append(m.serializeWithoutSignature(), m.Signature[:]...)
}

func (m *SenderKey) serializeWithoutSignature() []byte {
	b := make([]byte, 0, 2+16+4+4+4+len(m.Ciphertext))
	b = append(b, byte(KindSenderKey), domain.SessionVersion)
	b = append(b, m.DistributionID[:]...)
	b = appendUint32(b, m.ChainID)
	b = appendUint32(b, m.Iteration)
	b = appendBytes(b, m.Ciphertext)
	return b
}

// VerifySignature checks the trailer against the distribution signing
// key. Failure is domain.ErrSignatureVerification.
func (m *SenderKey) VerifySignature(signPub domain.Ed25519Public) error {
	if !crypto.Verify(signPub, m.serializeWithoutSignature(), m.Signature[:]) {
		return fmt.Errorf("%w: sender-key message signature", domain.ErrSignatureVerification)
	}
	return nil
}

// ParseSenderKey decodes a sender-key frame. The signature is carried,
// not checked: verification needs the stored signing key.
func ParseSenderKey(b []byte) (*SenderKey, error) {
	r, err := header(b, KindSenderKey)
	if err != nil {
		return nil, err
	}
	m := &SenderKey{}
	id, err := r.take(16)
	if err != nil {
		return nil, err
	}
	m.DistributionID = uuid.UUID(id)
	if m.ChainID, err = r.uint32(); err != nil {
		return nil, err
	}
	if m.Iteration, err = r.uint32(); err != nil {
		return nil, err
	}
	if m.Ciphertext, err = r.bytes(); err != nil {
		return nil, err
	}
	sig, err := r.take(ed25519.SignatureSize)
	if err != nil {
		return nil, err
	}
	copy(m.Signature[:], sig)
	if err := r.done(); err != nil {
		return nil, err
	}
	return m, nil
}

// SenderKeyDistribution publishes a group chain to a recipient: the chain
// position, chain key, and the public signing key future messages will be
// verified against.
type SenderKeyDistribution struct {
	DistributionID domain.DistributionID
	ChainID        uint32
	Iteration      uint32
	ChainKey       []byte
	SigningKey     domain.Ed25519Public
}

func (*SenderKeyDistribution) Kind() Kind { return KindSenderKeyDistribution }
func (*SenderKeyDistribution) sealed()    {}

// Serialize renders the frame.
func (m *SenderKeyDistribution) Serialize() []byte {
	b := make([]byte, 0, 2+16+4+4+4+len(m.ChainKey)+32)
	b = append(b, byte(KindSenderKeyDistribution), domain.SessionVersion)
	b = append(b, m.DistributionID[:]...)
	b = appendUint32(b, m.ChainID)
	b = appendUint32(b, m.Iteration)
	b = appendBytes(b, m.ChainKey)
	b = append(b, m.SigningKey[:]...)
	return b
}

// ParseSenderKeyDistribution decodes a distribution frame.
func ParseSenderKeyDistribution(b []byte) (*SenderKeyDistribution, error) {
	r, err := header(b, KindSenderKeyDistribution)
	if err != nil {
		return nil, err
	}
	m := &SenderKeyDistribution{}
	id, err := r.take(16)
	if err != nil {
		return nil, err
	}
	m.DistributionID = uuid.UUID(id)
	if m.ChainID, err = r.uint32(); err != nil {
		return nil, err
	}
	if m.Iteration, err = r.uint32(); err != nil {
		return nil, err
	}
	if m.ChainKey, err = r.bytes(); err != nil {
		return nil, err
	}
	key, err := r.take(32)
	if err != nil {
		return nil, err
	}
	copy(m.SigningKey[:], key)
	if err := r.done(); err != nil {
		return nil, err
	}
	return m, nil
}
