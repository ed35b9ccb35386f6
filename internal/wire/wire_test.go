package wire_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/google/uuid"

	"vesper/internal/crypto"
	"vesper/internal/domain"
	"vesper/internal/wire"
)

func makeKey(t *testing.T, fill byte) domain.X25519Public {
	t.Helper()
	var k domain.X25519Public
	for i := range k {
		k[i] = fill
	}
	return k
}

func TestWhisper_RoundTrip(t *testing.T) {
	macKey := bytes.Repeat([]byte{0x77}, 32)
	sender := makeKey(t, 1)
	receiver := makeKey(t, 2)
	ratchetPub := makeKey(t, 3)

	m := wire.NewWhisper(macKey, sender, receiver, ratchetPub, 9, 4, []byte("ciphertext"))
	if err := m.VerifyMAC(macKey, sender, receiver); err != nil {
		t.Fatalf("VerifyMAC on fresh message: %v", err)
	}

	parsed, err := wire.ParseWhisper(m.Serialize())
	if err != nil {
		t.Fatalf("ParseWhisper: %v", err)
	}
	if parsed.RatchetPub != ratchetPub || parsed.Counter != 9 || parsed.PreviousCounter != 4 {
		t.Fatal("header fields did not survive the round trip")
	}
	if !bytes.Equal(parsed.Ciphertext, []byte("ciphertext")) {
		t.Fatal("ciphertext did not survive the round trip")
	}
	if err := parsed.VerifyMAC(macKey, sender, receiver); err != nil {
		t.Fatalf("VerifyMAC after parse: %v", err)
	}
}

func TestWhisper_MACBindsIdentities(t *testing.T) {
	macKey := bytes.Repeat([]byte{0x77}, 32)
	sender := makeKey(t, 1)
	receiver := makeKey(t, 2)

	m := wire.NewWhisper(macKey, sender, receiver, makeKey(t, 3), 0, 0, []byte("x"))

	// Swapped identities must fail.
	if err := m.VerifyMAC(macKey, receiver, sender); !errors.Is(err, domain.ErrSignatureVerification) {
		t.Fatalf("want ErrSignatureVerification with swapped identities, got %v", err)
	}
	// Wrong MAC key must fail.
	if err := m.VerifyMAC(bytes.Repeat([]byte{0x78}, 32), sender, receiver); !errors.Is(err, domain.ErrSignatureVerification) {
		t.Fatalf("want ErrSignatureVerification with wrong key, got %v", err)
	}
}

func TestWhisper_TamperedFrameFailsMAC(t *testing.T) {
	macKey := bytes.Repeat([]byte{0x77}, 32)
	sender := makeKey(t, 1)
	receiver := makeKey(t, 2)

	m := wire.NewWhisper(macKey, sender, receiver, makeKey(t, 3), 0, 0, []byte("payload"))
	frame := m.Serialize()
	frame[10] ^= 0x01 // inside the ratchet key field

	parsed, err := wire.ParseWhisper(frame)
	if err != nil {
		t.Fatalf("ParseWhisper: %v", err)
	}
	if err := parsed.VerifyMAC(macKey, sender, receiver); !errors.Is(err, domain.ErrSignatureVerification) {
		t.Fatalf("want ErrSignatureVerification on tampered frame, got %v", err)
	}
}

func TestPreKey_RoundTrip(t *testing.T) {
	macKey := bytes.Repeat([]byte{0x11}, 32)
	inner := wire.NewWhisper(macKey, makeKey(t, 1), makeKey(t, 2), makeKey(t, 3), 0, 0, []byte("first"))

	preKeyID := uint32(42)
	m := &wire.PreKey{
		RegistrationID: 777,
		PreKeyID:       &preKeyID,
		SignedPreKeyID: 5,
		BaseKey:        makeKey(t, 4),
		IdentityKey:    makeKey(t, 5),
		Message:        inner,
	}

	parsed, err := wire.ParsePreKey(m.Serialize())
	if err != nil {
		t.Fatalf("ParsePreKey: %v", err)
	}
	if parsed.RegistrationID != 777 || parsed.SignedPreKeyID != 5 {
		t.Fatal("ids did not survive the round trip")
	}
	if parsed.PreKeyID == nil || *parsed.PreKeyID != 42 {
		t.Fatal("one-time prekey id did not survive the round trip")
	}
	if parsed.BaseKey != m.BaseKey || parsed.IdentityKey != m.IdentityKey {
		t.Fatal("keys did not survive the round trip")
	}
	if !bytes.Equal(parsed.Message.Ciphertext, []byte("first")) {
		t.Fatal("embedded message did not survive the round trip")
	}
}

func TestPreKey_NoOneTimePreKey(t *testing.T) {
	macKey := bytes.Repeat([]byte{0x11}, 32)
	m := &wire.PreKey{
		RegistrationID: 1,
		SignedPreKeyID: 2,
		BaseKey:        makeKey(t, 4),
		IdentityKey:    makeKey(t, 5),
		Message:        wire.NewWhisper(macKey, makeKey(t, 1), makeKey(t, 2), makeKey(t, 3), 0, 0, nil),
	}
	parsed, err := wire.ParsePreKey(m.Serialize())
	if err != nil {
		t.Fatalf("ParsePreKey: %v", err)
	}
	if parsed.PreKeyID != nil {
		t.Fatalf("want nil prekey id, got %d", *parsed.PreKeyID)
	}
}

func TestSenderKey_SignAndVerify(t *testing.T) {
	signPriv, signPub, err := crypto.GenerateEd25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	dist := uuid.New()

	m := wire.NewSenderKey(signPriv, dist, 12, 3, []byte("group ct"))
	if err := m.VerifySignature(signPub); err != nil {
		t.Fatalf("VerifySignature on fresh message: %v", err)
	}

	parsed, err := wire.ParseSenderKey(m.Serialize())
	if err != nil {
		t.Fatalf("ParseSenderKey: %v", err)
	}
	if parsed.DistributionID != dist || parsed.ChainID != 12 || parsed.Iteration != 3 {
		t.Fatal("header fields did not survive the round trip")
	}
	if err := parsed.VerifySignature(signPub); err != nil {
		t.Fatalf("VerifySignature after parse: %v", err)
	}

	parsed.Ciphertext[0] ^= 0x01
	if err := parsed.VerifySignature(signPub); !errors.Is(err, domain.ErrSignatureVerification) {
		t.Fatalf("want ErrSignatureVerification on tampered body, got %v", err)
	}
}

func TestSenderKeyDistribution_RoundTrip(t *testing.T) {
	_, signPub, err := crypto.GenerateEd25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	m := &wire.SenderKeyDistribution{
		DistributionID: uuid.New(),
		ChainID:        8,
		Iteration:      100,
		ChainKey:       bytes.Repeat([]byte{0xAA}, 32),
		SigningKey:     signPub,
	}
	parsed, err := wire.ParseSenderKeyDistribution(m.Serialize())
	if err != nil {
		t.Fatalf("ParseSenderKeyDistribution: %v", err)
	}
	if parsed.DistributionID != m.DistributionID || parsed.ChainID != 8 || parsed.Iteration != 100 {
		t.Fatal("header fields did not survive the round trip")
	}
	if !bytes.Equal(parsed.ChainKey, m.ChainKey) || parsed.SigningKey != signPub {
		t.Fatal("key material did not survive the round trip")
	}
}

func TestParse_Dispatch(t *testing.T) {
	macKey := bytes.Repeat([]byte{0x11}, 32)
	whisper := wire.NewWhisper(macKey, makeKey(t, 1), makeKey(t, 2), makeKey(t, 3), 0, 0, []byte("x"))

	msg, err := wire.Parse(whisper.Serialize())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := msg.(*wire.Whisper); !ok {
		t.Fatalf("Parse returned %T, want *wire.Whisper", msg)
	}
}

func TestParse_Errors(t *testing.T) {
	macKey := bytes.Repeat([]byte{0x11}, 32)
	whisper := wire.NewWhisper(macKey, makeKey(t, 1), makeKey(t, 2), makeKey(t, 3), 0, 0, []byte("x"))
	frame := whisper.Serialize()

	if _, err := wire.Parse(nil); !errors.Is(err, domain.ErrInvalidMessage) {
		t.Fatalf("empty frame: want ErrInvalidMessage, got %v", err)
	}

	bad := append([]byte(nil), frame...)
	bad[0] = 99
	if _, err := wire.Parse(bad); !errors.Is(err, domain.ErrUnknownMessageVersion) {
		t.Fatalf("unknown kind: want ErrUnknownMessageVersion, got %v", err)
	}

	bad = append([]byte(nil), frame...)
	bad[1] = domain.SessionVersion + 1
	if _, err := wire.Parse(bad); !errors.Is(err, domain.ErrUnknownMessageVersion) {
		t.Fatalf("bad version: want ErrUnknownMessageVersion, got %v", err)
	}

	if _, err := wire.ParseWhisper(frame[:len(frame)-3]); !errors.Is(err, domain.ErrInvalidMessage) {
		t.Fatalf("truncated frame: want ErrInvalidMessage, got %v", err)
	}

	if _, err := wire.ParseWhisper(append(frame, 0x00)); !errors.Is(err, domain.ErrInvalidMessage) {
		t.Fatalf("trailing bytes: want ErrInvalidMessage, got %v", err)
	}
}
