// Package prekey generates and publishes the key material a party needs
// to be reachable asynchronously: batches of one-time prekeys, signed
// prekeys with a signing timestamp, and the bundle snapshot assembled
// from them.
package prekey
