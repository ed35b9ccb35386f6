// Package domain defines the value types the protocol engine operates on
// and the narrow storage interfaces it consumes.
//
// Everything here is plain data: key material as fixed-size arrays, record
// types that are freely copyable, and sentinel errors shared across the
// protocol packages. The authoritative, durable copy of any record is
// always the one held by a store implementation; the engine works on
// snapshots and writes updated snapshots back through the store
// interfaces.
package domain
