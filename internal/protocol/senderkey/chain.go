package senderkey

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"vesper/internal/domain"
)

const (
	messageSeedByte = 0x01
	chainSeedByte   = 0x02
)

// Next advances a group chain key one step.
func Next(ck domain.SenderChainKey) domain.SenderChainKey {
	return domain.SenderChainKey{
		Iteration: ck.Iteration + 1,
		Seed:      hmacByte(ck.Seed, chainSeedByte),
	}
}

// MessageKey splits the message key for the chain's current iteration off
// the chain key.
func MessageKey(ck domain.SenderChainKey) domain.SenderMessageKey {
	return domain.SenderMessageKey{
		Iteration: ck.Iteration,
		Seed:      hmacByte(ck.Seed, messageSeedByte),
	}
}

// MessageKeyFor advances the state's chain to the given iteration and
// returns its message key, caching any keys skipped on the way. An
// iteration behind the chain is served from the cache or rejected as a
// replay; a jump beyond domain.MaxSenderKeyJump is rejected outright.
func MessageKeyFor(st *domain.SenderKeyState, iteration uint32) (domain.SenderMessageKey, error) {
	if iteration < st.Chain.Iteration {
		if key, ok := st.TakeSkipped(iteration); ok {
			return key, nil
		}
		return domain.SenderMessageKey{}, fmt.Errorf(
			"%w: group iteration %d already consumed (chain at %d)",
			domain.ErrReplayOrOutOfOrder, iteration, st.Chain.Iteration)
	}
	if iteration-st.Chain.Iteration > domain.MaxSenderKeyJump {
		return domain.SenderMessageKey{}, fmt.Errorf(
			"%w: group iteration jump of %d exceeds bound %d",
			domain.ErrReplayOrOutOfOrder, iteration-st.Chain.Iteration, domain.MaxSenderKeyJump)
	}

	for st.Chain.Iteration < iteration {
		st.AddSkipped(MessageKey(st.Chain))
		st.Chain = Next(st.Chain)
	}
	key := MessageKey(st.Chain)
	st.Chain = Next(st.Chain)
	return key, nil
}

// Seal encrypts plaintext under a group message key.
func Seal(key domain.SenderMessageKey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(expand(key.Seed))
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonceFor(key.Iteration), plaintext, nil), nil
}

// Open decrypts a group ciphertext. Failure is
// domain.ErrSignatureVerification.
func Open(key domain.SenderMessageKey, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(expand(key.Seed))
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonceFor(key.Iteration), ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: group message payload", domain.ErrSignatureVerification)
	}
	return pt, nil
}

func expand(seed []byte) []byte {
	r := hkdf.New(sha256.New, seed, nil, []byte("vesper-group"))
	key := make([]byte, 32)
	_, _ = io.ReadFull(r, key)
	return key
}

func nonceFor(iteration uint32) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[chacha20poly1305.NonceSize-4:], iteration)
	return nonce
}

func hmacByte(key []byte, b byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte{b})
	return h.Sum(nil)
}
