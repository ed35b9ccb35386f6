package domain

import "errors"

// Sentinel errors shared across the protocol packages. Callers match with
// errors.Is; packages wrap these with context via fmt.Errorf("...: %w").
var (
	// ErrInvalidKeyMaterial reports malformed, short or out-of-curve key
	// bytes. Distinct from verification failure on well-formed input.
	ErrInvalidKeyMaterial = errors.New("invalid key material")

	// ErrSignatureVerification reports a MAC or signature that did not
	// verify. Always terminal for the call that hit it.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrInvalidCertificate reports a certificate whose signature chain
	// does not verify against the supplied trust root.
	ErrInvalidCertificate = errors.New("invalid certificate")

	// ErrCertificateExpired reports a certificate past its expiration.
	ErrCertificateExpired = errors.New("certificate expired")

	// ErrUnknownMessageVersion reports an unrecognized wire version or
	// type discriminant.
	ErrUnknownMessageVersion = errors.New("unknown message version")

	// ErrInvalidMessage reports truncated or structurally corrupt wire
	// bytes, distinct from an unknown version.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrSessionNotFound reports a missing session for an address.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSenderKeyNotFound reports a missing sender-key state for an
	// (address, distribution id) pair.
	ErrSenderKeyNotFound = errors.New("sender key not found")

	// ErrUntrustedIdentity reports an identity key that conflicts with
	// the one pinned for the address.
	ErrUntrustedIdentity = errors.New("untrusted identity")

	// ErrReplayOrOutOfOrder reports a counter behind an already-evicted
	// window or a gap beyond the reorder bound.
	ErrReplayOrOutOfOrder = errors.New("message replayed or too far out of order")

	// ErrPreKeyUnavailable reports a referenced one-time prekey that is
	// not (or no longer) in the store.
	ErrPreKeyUnavailable = errors.New("one-time prekey unavailable")
)
