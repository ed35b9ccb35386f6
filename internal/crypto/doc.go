// Package crypto exposes the key primitives the protocol engine builds
// on.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     X25519PublicFor, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     Sign, Verify)
//   - Identity key pair and registration-id generation
//   - Key-byte parsing with length validation
//   - Short public-key fingerprints for display (Fingerprint)
//
// Every generation function takes an io.Reader randomness source so the
// engine stays deterministic under test; callers pass crypto/rand.Reader
// in production.
package crypto
