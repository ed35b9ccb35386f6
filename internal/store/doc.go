// Package store provides storage backends implementing the domain store
// interfaces: an in-memory store for tests and ephemeral use, an
// encrypted file-backed store, and a SQLite-backed store.
//
// All backends serialize records with CBOR and guard each key with a
// mutex, so read-modify-persist cycles for one key are linearizable
// while unrelated keys proceed in parallel. None of them retries or
// caches; that policy belongs to callers.
package store
