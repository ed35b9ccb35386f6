// Package x3dh derives the shared root of a session from the asymmetric
// prekey agreement.
//
// The initiator (Alice) combines her identity and a fresh base key with
// the responder's published identity, signed prekey and optional one-time
// prekey; the responder (Bob) mirrors the combination with his private
// halves. Both paths must produce bit-identical root and base chain keys
// — that symmetry is the protocol's correctness anchor and the primary
// test target.
package x3dh
