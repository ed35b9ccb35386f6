// Package session orchestrates pairwise messaging: X3DH bootstrap from
// prekey bundles and prekey messages, per-message ratchet encryption and
// decryption, and persistence of the resulting session records.
//
// Every operation is a single read-modify-persist unit against the
// session store; concurrent calls for the same address must be serialized
// by the caller or the store.
package session
