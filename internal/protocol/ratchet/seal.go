package ratchet

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"vesper/internal/domain"
)

// Seal encrypts plaintext under the message keys. The nonce is the
// message index; each key is used for exactly one message.
func Seal(keys domain.MessageKeys, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(keys.CipherKey)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonceFor(keys.Index), plaintext, nil), nil
}

// Open decrypts a ciphertext sealed with the same message keys. Failure
// is domain.ErrSignatureVerification: the payload was tampered with or
// the keys are wrong.
func Open(keys domain.MessageKeys, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(keys.CipherKey)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonceFor(keys.Index), ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: message payload", domain.ErrSignatureVerification)
	}
	return pt, nil
}

func nonceFor(index uint32) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[chacha20poly1305.NonceSize-4:], index)
	return nonce
}
