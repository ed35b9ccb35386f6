// Package ratchet implements Double Ratchet chain advancement over a
// domain.SessionState.
//
// The root key advances by HKDF over a fresh Diffie-Hellman output once
// per ratchet turn; chain keys advance by one-way HMAC per message, and
// each message key is derived from the chain key it consumes and never
// stored in later state. Skipped message keys for out-of-order delivery
// are cached per receiving chain up to a hard bound; gaps beyond the
// bound, or counters behind an evicted window, fail with
// domain.ErrReplayOrOutOfOrder.
package ratchet
