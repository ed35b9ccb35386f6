package x3dh

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"vesper/internal/crypto"
	"vesper/internal/domain"
	"vesper/internal/protocol/ratchet"
	"vesper/internal/util/memzero"
)

// KeyPair is a plain X25519 pair used for base, prekey and ratchet keys.
type KeyPair struct {
	Priv domain.X25519Private
	Pub  domain.X25519Public
}

// GenerateKeyPair returns a fresh pair read from rand.
func GenerateKeyPair(rand io.Reader) (KeyPair, error) {
	priv, pub, err := crypto.GenerateX25519(rand)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Priv: priv, Pub: pub}, nil
}

// AliceParameters is the initiator's input set.
type AliceParameters struct {
	OurIdentity domain.IdentityKeyPair
	OurBaseKey  KeyPair

	TheirIdentity      domain.X25519Public
	TheirSignedPreKey  domain.X25519Public
	TheirOneTimePreKey *domain.X25519Public

	// TheirRatchetKey is the responder's initial ratchet key, which by
	// convention is the signed prekey.
	TheirRatchetKey domain.X25519Public
}

// BobParameters is the responder's mirrored input set.
type BobParameters struct {
	OurIdentity      domain.IdentityKeyPair
	OurSignedPreKey  KeyPair
	OurOneTimePreKey *KeyPair
	OurRatchetKey    KeyPair

	TheirIdentity domain.X25519Public
	TheirBaseKey  domain.X25519Public
}

// InitiatorRoot derives the root and base chain keys on Alice's side:
// DH(IK_A, SPK_B) ‖ DH(EK_A, IK_B) ‖ DH(EK_A, SPK_B) [‖ DH(EK_A, OPK_B)].
func InitiatorRoot(p AliceParameters) (rootKey, chainKey []byte, err error) {
	dh1, err := crypto.DH(p.OurIdentity.XPriv, p.TheirSignedPreKey)
	if err != nil {
		return nil, nil, err
	}
	dh2, err := crypto.DH(p.OurBaseKey.Priv, p.TheirIdentity)
	if err != nil {
		return nil, nil, err
	}
	dh3, err := crypto.DH(p.OurBaseKey.Priv, p.TheirSignedPreKey)
	if err != nil {
		return nil, nil, err
	}

	secrets := make([]byte, 0, 32*4)
	secrets = append(secrets, dh1[:]...)
	secrets = append(secrets, dh2[:]...)
	secrets = append(secrets, dh3[:]...)
	memzero.Zero(dh1[:])
	memzero.Zero(dh2[:])
	memzero.Zero(dh3[:])

	if p.TheirOneTimePreKey != nil {
		dh4, err := crypto.DH(p.OurBaseKey.Priv, *p.TheirOneTimePreKey)
		if err != nil {
			return nil, nil, err
		}
		secrets = append(secrets, dh4[:]...)
		memzero.Zero(dh4[:])
	}

	rootKey, chainKey = deriveKeys(secrets)
	memzero.Zero(secrets)
	return rootKey, chainKey, nil
}

// ResponderRoot derives the same keys on Bob's side:
// DH(SPK_B, IK_A) ‖ DH(IK_B, EK_A) ‖ DH(SPK_B, EK_A) [‖ DH(OPK_B, EK_A)].
func ResponderRoot(p BobParameters) (rootKey, chainKey []byte, err error) {
	dh1, err := crypto.DH(p.OurSignedPreKey.Priv, p.TheirIdentity)
	if err != nil {
		return nil, nil, err
	}
	dh2, err := crypto.DH(p.OurIdentity.XPriv, p.TheirBaseKey)
	if err != nil {
		return nil, nil, err
	}
	dh3, err := crypto.DH(p.OurSignedPreKey.Priv, p.TheirBaseKey)
	if err != nil {
		return nil, nil, err
	}

	secrets := make([]byte, 0, 32*4)
	secrets = append(secrets, dh1[:]...)
	secrets = append(secrets, dh2[:]...)
	secrets = append(secrets, dh3[:]...)
	memzero.Zero(dh1[:])
	memzero.Zero(dh2[:])
	memzero.Zero(dh3[:])

	if p.OurOneTimePreKey != nil {
		dh4, err := crypto.DH(p.OurOneTimePreKey.Priv, p.TheirBaseKey)
		if err != nil {
			return nil, nil, err
		}
		secrets = append(secrets, dh4[:]...)
		memzero.Zero(dh4[:])
	}

	rootKey, chainKey = deriveKeys(secrets)
	memzero.Zero(secrets)
	return rootKey, chainKey, nil
}

// InitializeAlice builds the initiator's session state: a receiving chain
// keyed by Bob's initial ratchet key carrying the base chain key, then
// one sender ratchet step so Alice can encrypt immediately.
func InitializeAlice(rand io.Reader, p AliceParameters) (*domain.SessionState, error) {
	rootKey, chainKey, err := InitiatorRoot(p)
	if err != nil {
		return nil, err
	}

	st := &domain.SessionState{
		Version:        domain.SessionVersion,
		RootKey:        rootKey,
		LocalIdentity:  p.OurIdentity.XPub,
		RemoteIdentity: p.TheirIdentity,
		AliceBaseKey:   p.OurBaseKey.Pub,
	}
	st.AddReceiverChain(domain.ReceiverChain{
		RatchetPub: p.TheirRatchetKey,
		ChainKey:   chainKey,
	})

	sendPriv, sendPub, err := crypto.GenerateX25519(rand)
	if err != nil {
		return nil, err
	}
	dh, err := crypto.DH(sendPriv, p.TheirRatchetKey)
	if err != nil {
		return nil, err
	}
	newRoot, sendCK := ratchet.AdvanceRoot(st.RootKey, dh)
	memzero.Zero(dh[:])
	memzero.Zero(st.RootKey)
	st.RootKey = newRoot
	st.Sender = &domain.SenderChain{
		RatchetPub:  sendPub,
		RatchetPriv: sendPriv,
		ChainKey:    sendCK,
	}
	return st, nil
}

// InitializeBob builds the responder's session state: a sending chain on
// his ratchet key pair carrying the base chain key. The receiving chain
// appears with Alice's first ratchet key.
func InitializeBob(p BobParameters) (*domain.SessionState, error) {
	rootKey, chainKey, err := ResponderRoot(p)
	if err != nil {
		return nil, err
	}

	return &domain.SessionState{
		Version:        domain.SessionVersion,
		RootKey:        rootKey,
		LocalIdentity:  p.OurIdentity.XPub,
		RemoteIdentity: p.TheirIdentity,
		AliceBaseKey:   p.TheirBaseKey,
		Sender: &domain.SenderChain{
			RatchetPub:  p.OurRatchetKey.Pub,
			RatchetPriv: p.OurRatchetKey.Priv,
			ChainKey:    chainKey,
		},
	}, nil
}

// VerifySignedPreKey checks a bundle's signed-prekey signature against
// the owner's signing key. Failure is domain.ErrSignatureVerification and
// must abort before any derivation trusts the bundle.
func VerifySignedPreKey(signingKey domain.Ed25519Public, signedPreKey domain.X25519Public, sig []byte) error {
	if !crypto.Verify(signingKey, signedPreKey.Slice(), sig) {
		return fmt.Errorf("%w: signed prekey signature", domain.ErrSignatureVerification)
	}
	return nil
}

func deriveKeys(secrets []byte) (rootKey, chainKey []byte) {
	r := hkdf.New(sha256.New, secrets, nil, []byte("vesper-x3dh"))
	rootKey = make([]byte, 32)
	chainKey = make([]byte, 32)
	_, _ = io.ReadFull(r, rootKey)
	_, _ = io.ReadFull(r, chainKey)
	return
}
