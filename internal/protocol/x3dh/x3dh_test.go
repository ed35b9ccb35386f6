package x3dh_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"vesper/internal/crypto"
	"vesper/internal/domain"
	"vesper/internal/protocol/x3dh"
)

// makeIdentity creates a full identity with fresh X25519 and Ed25519 pairs.
func makeIdentity(t *testing.T) domain.IdentityKeyPair {
	t.Helper()
	id, err := crypto.GenerateIdentityKeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateIdentityKeyPair: %v", err)
	}
	return id
}

func makePair(t *testing.T) x3dh.KeyPair {
	t.Helper()
	kp, err := x3dh.GenerateKeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func TestInitiatorAndResponderRoot_NoOneTimePreKey(t *testing.T) {
	// Alice is initiator, Bob is responder.
	alice := makeIdentity(t)
	bob := makeIdentity(t)

	signedPreKey := makePair(t)
	baseKey := makePair(t)

	aliceRoot, aliceChain, err := x3dh.InitiatorRoot(x3dh.AliceParameters{
		OurIdentity:       alice,
		OurBaseKey:        baseKey,
		TheirIdentity:     bob.XPub,
		TheirSignedPreKey: signedPreKey.Pub,
		TheirRatchetKey:   signedPreKey.Pub,
	})
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}

	bobRoot, bobChain, err := x3dh.ResponderRoot(x3dh.BobParameters{
		OurIdentity:     bob,
		OurSignedPreKey: signedPreKey,
		OurRatchetKey:   signedPreKey,
		TheirIdentity:   alice.XPub,
		TheirBaseKey:    baseKey.Pub,
	})
	if err != nil {
		t.Fatalf("ResponderRoot: %v", err)
	}

	if !bytes.Equal(aliceRoot, bobRoot) {
		t.Fatal("root keys differ (no OPK)")
	}
	if !bytes.Equal(aliceChain, bobChain) {
		t.Fatal("chain keys differ (no OPK)")
	}
}

func TestInitiatorAndResponderRoot_WithOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)

	signedPreKey := makePair(t)
	oneTime := makePair(t)
	baseKey := makePair(t)

	aliceRoot, aliceChain, err := x3dh.InitiatorRoot(x3dh.AliceParameters{
		OurIdentity:        alice,
		OurBaseKey:         baseKey,
		TheirIdentity:      bob.XPub,
		TheirSignedPreKey:  signedPreKey.Pub,
		TheirOneTimePreKey: &oneTime.Pub,
		TheirRatchetKey:    signedPreKey.Pub,
	})
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}

	bobRoot, bobChain, err := x3dh.ResponderRoot(x3dh.BobParameters{
		OurIdentity:      bob,
		OurSignedPreKey:  signedPreKey,
		OurOneTimePreKey: &oneTime,
		OurRatchetKey:    signedPreKey,
		TheirIdentity:    alice.XPub,
		TheirBaseKey:     baseKey.Pub,
	})
	if err != nil {
		t.Fatalf("ResponderRoot: %v", err)
	}

	if !bytes.Equal(aliceRoot, bobRoot) {
		t.Fatal("root keys differ (with OPK)")
	}
	if !bytes.Equal(aliceChain, bobChain) {
		t.Fatal("chain keys differ (with OPK)")
	}
}

func TestRootDerivation_OneTimePreKeyChangesResult(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)

	signedPreKey := makePair(t)
	oneTime := makePair(t)
	baseKey := makePair(t)

	params := x3dh.AliceParameters{
		OurIdentity:       alice,
		OurBaseKey:        baseKey,
		TheirIdentity:     bob.XPub,
		TheirSignedPreKey: signedPreKey.Pub,
		TheirRatchetKey:   signedPreKey.Pub,
	}
	without, _, err := x3dh.InitiatorRoot(params)
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}
	params.TheirOneTimePreKey = &oneTime.Pub
	with, _, err := x3dh.InitiatorRoot(params)
	if err != nil {
		t.Fatalf("InitiatorRoot (opk): %v", err)
	}
	if bytes.Equal(without, with) {
		t.Fatal("one-time prekey had no effect on the root key")
	}
}

func TestInitializeAlice_HasBothChains(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	signedPreKey := makePair(t)
	baseKey := makePair(t)

	st, err := x3dh.InitializeAlice(rand.Reader, x3dh.AliceParameters{
		OurIdentity:       alice,
		OurBaseKey:        baseKey,
		TheirIdentity:     bob.XPub,
		TheirSignedPreKey: signedPreKey.Pub,
		TheirRatchetKey:   signedPreKey.Pub,
	})
	if err != nil {
		t.Fatalf("InitializeAlice: %v", err)
	}
	if !st.HasSenderChain() {
		t.Fatal("initiator state has no sender chain")
	}
	if _, ok := st.ReceiverChain(signedPreKey.Pub); !ok {
		t.Fatal("initiator state has no receiver chain for the signed prekey")
	}
	if st.AliceBaseKey != baseKey.Pub {
		t.Fatal("base key not recorded on state")
	}
}

func TestInitializeBob_SenderChainOnly(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	signedPreKey := makePair(t)
	baseKey := makePair(t)

	st, err := x3dh.InitializeBob(x3dh.BobParameters{
		OurIdentity:     bob,
		OurSignedPreKey: signedPreKey,
		OurRatchetKey:   signedPreKey,
		TheirIdentity:   alice.XPub,
		TheirBaseKey:    baseKey.Pub,
	})
	if err != nil {
		t.Fatalf("InitializeBob: %v", err)
	}
	if !st.HasSenderChain() {
		t.Fatal("responder state has no sender chain")
	}
	if len(st.Receivers) != 0 {
		t.Fatalf("responder state has %d receiver chains before any message", len(st.Receivers))
	}
	if st.Sender.RatchetPub != signedPreKey.Pub {
		t.Fatal("responder sender chain is not keyed by the signed prekey")
	}
}

func TestVerifySignedPreKey(t *testing.T) {
	bob := makeIdentity(t)
	signedPreKey := makePair(t)
	sig := crypto.Sign(bob.EdPriv, signedPreKey.Pub.Slice())

	if err := x3dh.VerifySignedPreKey(bob.EdPub, signedPreKey.Pub, sig); err != nil {
		t.Fatalf("VerifySignedPreKey: %v", err)
	}

	sig[0] ^= 0xff
	err := x3dh.VerifySignedPreKey(bob.EdPub, signedPreKey.Pub, sig)
	if !errors.Is(err, domain.ErrSignatureVerification) {
		t.Fatalf("want ErrSignatureVerification, got %v", err)
	}
}
