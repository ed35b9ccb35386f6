// Package sealed implements metadata-hiding delivery: a two-level
// certificate chain binding a server trust root to a sender identity,
// and an envelope that hides the sender certificate from everyone but
// the recipient behind a one-time ephemeral key agreement.
//
// Decryption returns sender identity, device id and plaintext as one
// value so a caller cannot use the plaintext without having
// authenticated its origin.
package sealed
