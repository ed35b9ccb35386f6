// Package wire encodes and decodes the protocol's binary message
// variants.
//
// Every message starts with a one-byte kind discriminant followed by a
// one-byte protocol version:
//
//	2  whisper (ratchet) message
//	3  prekey-bootstrap message
//	4  sender-key message
//	5  sender-key distribution message
//
// Remaining fields are fixed-width big-endian integers, raw 32-byte keys
// and length-prefixed variable parts, so identical logical content always
// serializes to identical bytes. MACs and signatures are computed over
// the serialized form minus their own trailer.
//
// Decoding validates the discriminant and version before touching the
// payload: an unknown kind or version fails with
// domain.ErrUnknownMessageVersion, truncated or corrupt bytes with
// domain.ErrInvalidMessage.
package wire
