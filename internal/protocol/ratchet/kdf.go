package ratchet

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"vesper/internal/domain"
)

// Chain and message-key derivation. The chain key advances with one seed
// byte, message material splits off with another, so a chain key never
// reveals the message keys already derived from its predecessors.
const (
	messageSeedByte = 0x01
	chainSeedByte   = 0x02
)

// AdvanceRoot mixes a fresh DH output into the root key, yielding the
// next root key and the chain key for the new direction.
func AdvanceRoot(rootKey []byte, dh [32]byte) (newRoot, chainKey []byte) {
	r := hkdf.New(sha256.New, dh[:], rootKey, []byte("vesper-root"))
	newRoot = make([]byte, 32)
	chainKey = make([]byte, 32)
	_, _ = io.ReadFull(r, newRoot)
	_, _ = io.ReadFull(r, chainKey)
	return
}

// NextChainKey advances a chain key one step. One-way: the previous chain
// key is not recoverable from the result.
func NextChainKey(ck []byte) []byte {
	return hmacByte(ck, chainSeedByte)
}

// DeriveMessageKeys expands the message seed of the current chain key
// into the AEAD and MAC keys for the message at index.
func DeriveMessageKeys(ck []byte, index uint32) domain.MessageKeys {
	seed := hmacByte(ck, messageSeedByte)
	r := hkdf.New(sha256.New, seed, nil, []byte("vesper-msg"))
	keys := domain.MessageKeys{
		CipherKey: make([]byte, 32),
		MacKey:    make([]byte, 32),
		Index:     index,
	}
	_, _ = io.ReadFull(r, keys.CipherKey)
	_, _ = io.ReadFull(r, keys.MacKey)
	return keys
}

func hmacByte(key []byte, b byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte{b})
	return h.Sum(nil)
}
