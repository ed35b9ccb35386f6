// Package senderkey implements the symmetric group ratchet: one
// monotonically advancing chain per (sender, distribution id), from which
// every group message key is derived one-way.
//
// A receiver behind the sender fast-forwards the stored chain, caching
// the message keys it skips; a receiver asked to rewind past its cache,
// or to jump further than domain.MaxSenderKeyJump, fails with
// domain.ErrReplayOrOutOfOrder. Chains never rewind.
package senderkey
